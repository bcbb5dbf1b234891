package localstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/teamsync/internal/backend"
)

// collectionRef is a collection and, as a query, a scan of all its
// documents ordered by ID.
type collectionRef struct {
	*query
}

func newCollection(s *Store, path string) *collectionRef {
	return &collectionRef{query: &query{store: s, collection: path}}
}

// ID returns the last path segment.
func (c *collectionRef) ID() string {
	return c.collection[strings.LastIndex(c.collection, "/")+1:]
}

func (c *collectionRef) Doc(id string) backend.DocumentRef {
	return newDocRef(c.store, c.collection, id)
}

// Add creates a document with an ID from the store's IDGenerator.
func (c *collectionRef) Add(ctx context.Context, data any) (backend.DocumentRef, error) {
	if err := validateCollection(c.collection); err != nil {
		return nil, err
	}
	ref := newDocRef(c.store, c.collection, c.store.ids.Generate())
	if err := ref.Set(ctx, data); err != nil {
		return nil, fmt.Errorf("add to %s: %w", c.collection, err)
	}
	return ref, nil
}
