package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/teamsync/internal/backend"
	"github.com/roach88/teamsync/internal/canon"
)

// fieldPattern restricts filter and order fields to plain top-level names,
// which are interpolated into json_extract paths.
var fieldPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

type filter struct {
	Field string           `json:"field"`
	Op    backend.Operator `json:"op"`
	Value any              `json:"value"`
}

type order struct {
	Field string            `json:"field"`
	Dir   backend.Direction `json:"dir"`
}

// query is an immutable query description. Builder errors are kept and
// reported by Get and OnSnapshot, since the builder methods cannot fail.
type query struct {
	store      *Store
	collection string
	filters    []filter
	order      *order
	limit      int
	err        error
}

func (q *query) clone() *query {
	c := *q
	c.filters = slices.Clone(q.filters)
	if q.order != nil {
		o := *q.order
		c.order = &o
	}
	return &c
}

func (q *query) Path() string { return q.collection }

func (q *query) Where(field string, op backend.Operator, value any) backend.Query {
	c := q.clone()
	if c.err != nil {
		return c
	}
	switch {
	case !fieldPattern.MatchString(field):
		c.err = fmt.Errorf("where: field %q: %w", field, backend.ErrInvalidArgument)
	case !op.Valid():
		c.err = fmt.Errorf("where: operator %q: %w", op, backend.ErrInvalidArgument)
	default:
		v, err := normalizeValue(value)
		if err != nil {
			c.err = fmt.Errorf("where %s: %w", field, err)
			break
		}
		if v == nil && op != backend.OpEqual && op != backend.OpNotEqual {
			c.err = fmt.Errorf("where %s: null only supports == and !=: %w", field, backend.ErrInvalidArgument)
			break
		}
		c.filters = append(c.filters, filter{Field: field, Op: op, Value: v})
	}
	return c
}

func (q *query) OrderBy(field string, dir backend.Direction) backend.Query {
	c := q.clone()
	if c.err != nil {
		return c
	}
	switch {
	case !fieldPattern.MatchString(field):
		c.err = fmt.Errorf("order by: field %q: %w", field, backend.ErrInvalidArgument)
	case dir != backend.Asc && dir != backend.Desc:
		c.err = fmt.Errorf("order by: direction %q: %w", dir, backend.ErrInvalidArgument)
	case c.order != nil:
		c.err = fmt.Errorf("order by: only one ordering field is supported: %w", backend.ErrInvalidArgument)
	default:
		c.order = &order{Field: field, Dir: dir}
	}
	return c
}

func (q *query) Limit(n int) backend.Query {
	c := q.clone()
	if c.err != nil {
		return c
	}
	if n < 0 {
		c.err = fmt.Errorf("limit %d: %w", n, backend.ErrInvalidArgument)
		return c
	}
	c.limit = n
	return c
}

// structuralKey identifies the query by content: same collection,
// filters, ordering and limit.
func (q *query) structuralKey() string {
	key := map[string]any{
		"collection": q.collection,
		"filters":    q.filters,
		"order":      q.order,
		"limit":      q.limit,
	}
	if q.err != nil {
		key["error"] = q.err.Error()
	}
	return string(canon.MustMarshal(key))
}

func (q *query) owner() *Store { return q.store }

// IsEqual is structural. A collection and an unfiltered query over it are
// equal.
func (q *query) IsEqual(other backend.Query) bool {
	o, ok := other.(interface {
		owner() *Store
		structuralKey() string
	})
	return ok && o.owner() == q.store && o.structuralKey() == q.structuralKey()
}

// compile converts the query to parameterized SQL.
//
// MANDATORY: every query ends with the id COLLATE BINARY tiebreaker.
// MANDATORY: values are always parameters; only validated field names are
// interpolated.
func (q *query) compile() (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}
	if err := validateCollection(q.collection); err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	params := []any{q.collection}
	sb.WriteString("SELECT id, data, seq FROM documents WHERE collection = ?")

	for _, f := range q.filters {
		expr := jsonField(f.Field)
		switch {
		case f.Value == nil && f.Op == backend.OpEqual:
			fmt.Fprintf(&sb, " AND %s IS NULL", expr)
		case f.Value == nil:
			fmt.Fprintf(&sb, " AND %s IS NOT NULL", expr)
		default:
			fmt.Fprintf(&sb, " AND %s %s ?", expr, sqlOperator(f.Op))
			params = append(params, f.Value)
		}
	}

	sb.WriteString(" ORDER BY ")
	if q.order != nil {
		dir := "ASC"
		if q.order.Dir == backend.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&sb, "%s %s, ", jsonField(q.order.Field), dir)
	}
	sb.WriteString("id COLLATE BINARY ASC")

	if q.limit > 0 {
		sb.WriteString(" LIMIT ?")
		params = append(params, q.limit)
	}

	return sb.String(), params, nil
}

// Get runs the query once.
func (q *query) Get(ctx context.Context) (*backend.QuerySnapshot, error) {
	stmt, params, err := q.compile()
	if err != nil {
		return nil, err
	}
	if err := q.store.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := q.store.db.QueryContext(ctx, stmt, params...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.collection, q.store.mapErr(err))
	}
	defer rows.Close()

	snap := &backend.QuerySnapshot{Docs: []*backend.DocumentSnapshot{}}
	for rows.Next() {
		var (
			id   string
			data string
			seq  int64
		)
		if err := rows.Scan(&id, &data, &seq); err != nil {
			return nil, fmt.Errorf("query %s: scan: %w", q.collection, err)
		}
		snap.Docs = append(snap.Docs, backend.NewDocumentSnapshot(
			id, q.collection+"/"+id, []byte(data), backend.SnapshotMetadata{Seq: seq}))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", q.collection, q.store.mapErr(err))
	}
	return snap, nil
}

// OnSnapshot delivers the current result set and then a fresh one after
// every write to the collection.
func (q *query) OnSnapshot(opts backend.ListenOptions, next func(*backend.QuerySnapshot), fail func(error)) backend.Unsubscribe {
	if _, _, err := q.compile(); err != nil {
		fail(err)
		return func() {}
	}
	return q.store.hub.add(q.collection, "", q.collection, func() {
		snap, err := q.Get(context.Background())
		if err != nil {
			fail(err)
			return
		}
		next(snap)
	}, fail)
}

func jsonField(field string) string {
	return "json_extract(data, '$." + field + "')"
}

func sqlOperator(op backend.Operator) string {
	if op == backend.OpEqual {
		return "="
	}
	return string(op)
}

// normalizeValue maps a filter value onto the types SQLite compares the
// same way json_extract returns them.
func normalizeValue(v any) (any, error) {
	switch val := v.(type) {
	case nil, string, bool, int64, float64:
		return val, nil
	case int:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case float32:
		return float64(val), nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %q: %w", val, backend.ErrInvalidArgument)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unsupported filter value %T: %w", v, backend.ErrInvalidArgument)
	}
}

func validateCollection(path string) error {
	if path == "" || strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") || strings.Contains(path, "//") {
		return fmt.Errorf("collection path %q: %w", path, backend.ErrInvalidArgument)
	}
	return nil
}
