package localstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/teamsync/internal/backend"
	"github.com/roach88/teamsync/internal/testutil"
)

type user struct {
	UID      string `json:"uid"`
	Name     string `json:"name"`
	PhotoURL string `json:"photoURL"`
	Team     string `json:"team"`
}

func TestDocument_SetGet(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	doc := s.Collection("users").Doc("u1")

	require.NoError(t, doc.Set(ctx, user{UID: "u1", Name: "Ann", PhotoURL: "https://example.com/a.png"}))

	snap, err := doc.Get(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Exists)
	assert.Equal(t, "u1", snap.ID)
	assert.Equal(t, "users/u1", snap.Path)
	assert.Equal(t, int64(1), snap.Metadata.Seq)

	var got user
	require.NoError(t, snap.DataTo(&got))
	assert.Equal(t, "Ann", got.Name)

	// Stored canonically: sorted keys, no HTML escaping.
	assert.Equal(t, `{"name":"Ann","photoURL":"https://example.com/a.png","team":"","uid":"u1"}`, string(snap.Raw()))
}

func TestDocument_GetMissing(t *testing.T) {
	s := createTestStore(t)

	snap, err := s.Collection("users").Doc("nobody").Get(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.Exists)
	assert.Nil(t, snap.Data())
	assert.ErrorIs(t, snap.DataTo(&user{}), backend.ErrNotFound)
}

func TestDocument_SetReplaces(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	doc := s.Collection("users").Doc("u1")

	require.NoError(t, doc.Set(ctx, map[string]any{"name": "Ann", "team": "t1"}))
	require.NoError(t, doc.Set(ctx, map[string]any{"name": "Bob"}))

	snap, err := doc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Bob"}, snap.Data())
	assert.Equal(t, int64(2), snap.Metadata.Seq)
}

func TestDocument_UpdateMerges(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	doc := s.Collection("users").Doc("u1")

	require.NoError(t, doc.Set(ctx, user{UID: "u1", Name: "Ann"}))
	require.NoError(t, doc.Update(ctx, map[string]any{"team": "t1"}))

	snap, err := doc.Get(ctx)
	require.NoError(t, err)
	var got user
	require.NoError(t, snap.DataTo(&got))
	assert.Equal(t, user{UID: "u1", Name: "Ann", Team: "t1"}, got)
}

func TestDocument_UpdateKeepsNumbers(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	doc := s.Collection("counters").Doc("c")

	require.NoError(t, doc.Set(ctx, map[string]any{"big": int64(9007199254740993), "ratio": 0.25}))
	require.NoError(t, doc.Update(ctx, map[string]any{"label": "x"}))

	snap, err := doc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"big":9007199254740993,"label":"x","ratio":0.25}`, string(snap.Raw()))
}

func TestDocument_UpdateMissing(t *testing.T) {
	s := createTestStore(t)

	err := s.Collection("users").Doc("ghost").Update(context.Background(), map[string]any{"team": "t1"})
	assert.ErrorIs(t, err, backend.ErrNotFound)
	assert.Equal(t, int64(0), s.Seq(), "failed update must not advance the clock")
}

func TestDocument_SetRejectsNonObject(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	doc := s.Collection("users").Doc("u1")

	assert.ErrorIs(t, doc.Set(ctx, "just a string"), backend.ErrInvalidArgument)
	assert.ErrorIs(t, doc.Set(ctx, []int{1}), backend.ErrInvalidArgument)
	assert.ErrorIs(t, doc.Set(ctx, make(chan int)), backend.ErrInvalidArgument)
}

func TestDocument_InvalidPaths(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Collection("users").Doc("").Get(ctx)
	assert.ErrorIs(t, err, backend.ErrInvalidArgument)

	_, err = s.Collection("users").Doc("a/b").Get(ctx)
	assert.ErrorIs(t, err, backend.ErrInvalidArgument)

	err = s.Collection("").Doc("a").Set(ctx, map[string]any{})
	assert.ErrorIs(t, err, backend.ErrInvalidArgument)
}

func TestDocument_RefIdentity(t *testing.T) {
	s := createTestStore(t)
	other := createTestStore(t)

	a := s.Collection("users").Doc("u1")
	assert.Equal(t, "u1", a.ID())
	assert.Equal(t, "users/u1", a.Path())
	assert.Equal(t, "users", a.Parent().ID())

	assert.True(t, a.IsEqual(s.Collection("users").Doc("u1")))
	assert.False(t, a.IsEqual(s.Collection("users").Doc("u2")))
	assert.False(t, a.IsEqual(s.Collection("teams").Doc("u1")))
	assert.False(t, a.IsEqual(other.Collection("users").Doc("u1")))
	assert.False(t, a.IsEqual(nil))
}

func TestCollection_Add(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	teams := s.Collection("teams")

	ref, err := teams.Add(ctx, map[string]any{"name": "Red"})
	require.NoError(t, err)
	assert.Equal(t, "doc-1", ref.ID())

	ref, err = teams.Add(ctx, map[string]any{"name": "Blue"})
	require.NoError(t, err)
	assert.Equal(t, "doc-2", ref.ID())

	snap, err := teams.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Size())
}

func TestCollection_AddUsesConfiguredGenerator(t *testing.T) {
	s := createTestStore(t, WithIDGenerator(testutil.NewFixedIDGenerator("team-red", "team-blue")))
	ctx := context.Background()
	teams := s.Collection("teams")

	_, err := teams.Add(ctx, map[string]any{"name": "Red"})
	require.NoError(t, err)
	_, err = teams.Add(ctx, map[string]any{"name": "Blue"})
	require.NoError(t, err)

	snap, err := teams.OrderBy("name", backend.Asc).Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, snap.Size())
	assert.Equal(t, "team-blue", snap.Docs[0].ID)
	assert.Equal(t, "team-red", snap.Docs[1].ID)
}

func TestCollection_AddDefaultsToUUIDv7(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ref, err := s.Collection("teams").Add(context.Background(), map[string]any{"name": "Red"})
	require.NoError(t, err)
	assert.Len(t, ref.ID(), 36)
	assert.Equal(t, byte('7'), ref.ID()[14], "version nibble")
}
