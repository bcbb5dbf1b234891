package localstore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/teamsync/internal/backend"
	"github.com/roach88/teamsync/internal/canon"
)

// docRef addresses one document. It is a value: building refs never
// touches the database.
type docRef struct {
	store      *Store
	collection string
	id         string
}

func newDocRef(s *Store, collection, id string) *docRef {
	return &docRef{store: s, collection: collection, id: id}
}

func (d *docRef) ID() string   { return d.id }
func (d *docRef) Path() string { return d.collection + "/" + d.id }

func (d *docRef) Parent() backend.CollectionRef {
	return newCollection(d.store, d.collection)
}

func (d *docRef) IsEqual(other backend.DocumentRef) bool {
	o, ok := other.(*docRef)
	return ok && o.store == d.store && o.collection == d.collection && o.id == d.id
}

func (d *docRef) validate() error {
	if err := validateCollection(d.collection); err != nil {
		return err
	}
	if d.id == "" || strings.Contains(d.id, "/") {
		return fmt.Errorf("document id %q: %w", d.id, backend.ErrInvalidArgument)
	}
	return nil
}

// Get reads the document. A missing document is a snapshot with
// Exists == false, not an error.
func (d *docRef) Get(ctx context.Context) (*backend.DocumentSnapshot, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	if err := d.store.checkOpen(); err != nil {
		return nil, err
	}

	var (
		data string
		seq  int64
	)
	err := d.store.db.QueryRowContext(ctx, `
		SELECT data, seq FROM documents
		WHERE collection = ? AND id = ?
	`, d.collection, d.id).Scan(&data, &seq)
	if errors.Is(err, sql.ErrNoRows) {
		return backend.NewDocumentSnapshot(d.id, d.Path(), nil, backend.SnapshotMetadata{Seq: d.store.Seq()}), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", d.Path(), d.store.mapErr(err))
	}
	return backend.NewDocumentSnapshot(d.id, d.Path(), []byte(data), backend.SnapshotMetadata{Seq: seq}), nil
}

// Set replaces the document with data, creating it if needed. data must
// encode to a JSON object.
func (d *docRef) Set(ctx context.Context, data any) error {
	if err := d.validate(); err != nil {
		return err
	}
	raw, err := encodeDocument(data)
	if err != nil {
		return fmt.Errorf("set %s: %w", d.Path(), err)
	}
	if err := d.store.checkOpen(); err != nil {
		return err
	}

	d.store.writeMu.Lock()
	seq, err := d.store.upsert(ctx, d.store.db, d.collection, d.id, raw)
	if err == nil {
		d.store.clock.observe(seq)
	}
	d.store.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("set %s: %w", d.Path(), err)
	}

	d.store.hub.notify(d.collection, d.id, seq)
	return nil
}

// Update merges top-level fields into an existing document. It fails with
// backend.ErrNotFound when the document does not exist.
func (d *docRef) Update(ctx context.Context, fields map[string]any) error {
	if err := d.validate(); err != nil {
		return err
	}
	if err := d.store.checkOpen(); err != nil {
		return err
	}

	d.store.writeMu.Lock()
	seq, err := d.update(ctx, fields)
	if err == nil {
		d.store.clock.observe(seq)
	}
	d.store.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("update %s: %w", d.Path(), err)
	}

	d.store.hub.notify(d.collection, d.id, seq)
	return nil
}

func (d *docRef) update(ctx context.Context, fields map[string]any) (int64, error) {
	tx, err := d.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, d.store.mapErr(err)
	}
	defer tx.Rollback()

	var data string
	err = tx.QueryRowContext(ctx, `
		SELECT data FROM documents
		WHERE collection = ? AND id = ?
	`, d.collection, d.id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, backend.ErrNotFound
	}
	if err != nil {
		return 0, d.store.mapErr(err)
	}

	merged, err := decodeObject([]byte(data))
	if err != nil {
		return 0, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	raw, err := encodeDocument(merged)
	if err != nil {
		return 0, err
	}

	seq, err := d.store.upsert(ctx, tx, d.collection, d.id, raw)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, d.store.mapErr(err)
	}
	return seq, nil
}

// OnSnapshot delivers the document's current snapshot and then a fresh one
// after every write to it.
func (d *docRef) OnSnapshot(opts backend.ListenOptions, next func(*backend.DocumentSnapshot), fail func(error)) backend.Unsubscribe {
	if err := d.validate(); err != nil {
		fail(err)
		return func() {}
	}
	return d.store.hub.add(d.collection, d.id, d.Path(), func() {
		snap, err := d.Get(context.Background())
		if err != nil {
			fail(err)
			return
		}
		next(snap)
	}, fail)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// upsert writes raw under the seq after the highest one committed by any
// connection to the file and returns it. Callers hold writeMu and advance
// the clock once the write is committed.
func (s *Store) upsert(ctx context.Context, db querier, collection, id string, raw []byte) (int64, error) {
	var seq int64
	err := db.QueryRowContext(ctx, `
		INSERT INTO documents (collection, id, data, seq, update_time)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM documents), ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			data = excluded.data,
			seq = excluded.seq,
			update_time = excluded.update_time
		RETURNING seq
	`,
		collection,
		id,
		string(raw),
		s.now().UTC().Format(time.RFC3339Nano),
	).Scan(&seq)
	if err != nil {
		return 0, s.mapErr(err)
	}
	return seq, nil
}

// encodeDocument returns the canonical JSON of data, which must be an
// object.
func encodeDocument(data any) ([]byte, error) {
	raw, err := canon.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrInvalidArgument, err)
	}
	if !bytes.HasPrefix(raw, []byte("{")) {
		return nil, fmt.Errorf("%w: document data must be an object, got %s", backend.ErrInvalidArgument, raw)
	}
	return raw, nil
}

func decodeObject(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode stored document: %w", err)
	}
	if m == nil {
		m = make(map[string]any)
	}
	return m, nil
}
