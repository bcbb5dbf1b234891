package backend

import (
	"context"
	"encoding/json"
	"fmt"
)

// ListenOptions controls snapshot listener behavior.
type ListenOptions struct {
	// IncludeMetadataChanges also fires when only metadata changed and
	// asks adapters to publish snapshot metadata.
	IncludeMetadataChanges bool
}

// SnapshotMetadata describes where a snapshot came from.
type SnapshotMetadata struct {
	HasPendingWrites bool  `json:"hasPendingWrites"`
	FromCache        bool  `json:"fromCache"`
	Seq              int64 `json:"seq"`
}

// DocumentSnapshot is a point-in-time read of one document.
type DocumentSnapshot struct {
	ID       string
	Path     string
	Exists   bool
	Metadata SnapshotMetadata

	raw json.RawMessage
}

// NewDocumentSnapshot builds a snapshot around JSON-encoded data.
// A nil raw means the document does not exist.
func NewDocumentSnapshot(id, path string, raw []byte, md SnapshotMetadata) *DocumentSnapshot {
	return &DocumentSnapshot{
		ID:       id,
		Path:     path,
		Exists:   raw != nil,
		Metadata: md,
		raw:      raw,
	}
}

// DataTo decodes the document into v. It fails with ErrNotFound when the
// document does not exist.
func (s *DocumentSnapshot) DataTo(v any) error {
	if !s.Exists {
		return fmt.Errorf("document %s: %w", s.Path, ErrNotFound)
	}
	if err := json.Unmarshal(s.raw, v); err != nil {
		return fmt.Errorf("decode document %s: %w", s.Path, err)
	}
	return nil
}

// Data returns the document fields, or nil if it does not exist.
func (s *DocumentSnapshot) Data() map[string]any {
	if !s.Exists {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(s.raw, &m); err != nil {
		return nil
	}
	return m
}

// Raw returns the JSON encoding of the document, or nil.
func (s *DocumentSnapshot) Raw() json.RawMessage {
	return s.raw
}

// QuerySnapshot is the full, ordered result set of a query at one point in
// time.
type QuerySnapshot struct {
	Docs []*DocumentSnapshot
}

// Size returns the number of documents.
func (s *QuerySnapshot) Size() int {
	return len(s.Docs)
}

// Operator is a where-clause comparison.
type Operator string

const (
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
)

// Valid reports whether op is a supported operator.
func (op Operator) Valid() bool {
	switch op {
	case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		return true
	}
	return false
}

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// DocumentRef addresses one document.
type DocumentRef interface {
	ID() string
	Path() string
	Parent() CollectionRef

	Get(ctx context.Context) (*DocumentSnapshot, error)
	// Set replaces the document with data (any JSON-encodable value).
	Set(ctx context.Context, data any) error
	// Update merges top-level fields into an existing document.
	Update(ctx context.Context, fields map[string]any) error

	// OnSnapshot delivers the current snapshot and then one per change.
	// next and fail may be called on any goroutine and must not block.
	OnSnapshot(opts ListenOptions, next func(*DocumentSnapshot), fail func(error)) Unsubscribe

	// IsEqual reports whether other addresses the same document.
	IsEqual(other DocumentRef) bool
}

// Query describes a filtered, ordered view of a collection. Builders
// return new queries and never mutate the receiver.
type Query interface {
	// Path is the collection path the query reads.
	Path() string

	Where(field string, op Operator, value any) Query
	OrderBy(field string, dir Direction) Query
	Limit(n int) Query

	Get(ctx context.Context) (*QuerySnapshot, error)
	OnSnapshot(opts ListenOptions, next func(*QuerySnapshot), fail func(error)) Unsubscribe

	// IsEqual is structural: two queries with the same collection,
	// filters, ordering and limit are equal even if built separately.
	IsEqual(other Query) bool
}

// CollectionRef addresses a collection. As a Query it reads every
// document ordered by ID.
type CollectionRef interface {
	Query

	ID() string
	Doc(id string) DocumentRef
	// Add creates a document with a generated ID.
	Add(ctx context.Context, data any) (DocumentRef, error)
}
