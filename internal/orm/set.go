package orm

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"mini_orm/internal/codec"
	"mini_orm/internal/predicate"
	"mini_orm/internal/schema"
	"mini_orm/internal/statement"
	"mini_orm/internal/tracker"
)

// RecordSet is the entry point for loading and tracking records of type T.
type RecordSet[T any] struct {
	s   *Session
	b   *binding
	err error
}

// Set returns the record set of model m. m must be the model the session's
// catalog was built with; otherwise every operation fails.
func Set[T any](s *Session, m *Model[T]) *RecordSet[T] {
	b, err := s.catalog.binding(m.Schema.Name)
	if err == nil && b.owner != any(m) {
		err = fmt.Errorf("model %s is not the one registered in the catalog", m.Schema.Name)
	}
	return &RecordSet[T]{s: s, b: b, err: err}
}

// Add tracks rec as Added.
func (rs *RecordSet[T]) Add(rec *T) error {
	if rs.err != nil {
		return rs.err
	}
	_, err := rs.s.tracker.Track(rs.b.desc.Name, rec, tracker.Added)
	return err
}

// Update marks rec Modified, tracking it first if needed.
func (rs *RecordSet[T]) Update(rec *T) error {
	if rs.err != nil {
		return rs.err
	}
	_, err := rs.s.tracker.SetState(rs.b.desc.Name, rec, tracker.Modified)
	return err
}

// Remove marks rec Deleted. A record that was only Added is detached instead.
func (rs *RecordSet[T]) Remove(rec *T) error {
	if rs.err != nil {
		return rs.err
	}
	if h, ok := rs.s.tracker.Lookup(rec); ok {
		if e, _ := rs.s.tracker.Entry(h); e != nil && e.State == tracker.Added {
			rs.s.tracker.Detach(h)
			return nil
		}
	}
	_, err := rs.s.tracker.SetState(rs.b.desc.Name, rec, tracker.Deleted)
	return err
}

// Entry returns the tracking entry of rec.
func (rs *RecordSet[T]) Entry(rec *T) (*tracker.Entry, error) {
	h, ok := rs.s.tracker.Lookup(rec)
	if !ok {
		return nil, ErrNotTracked
	}
	e, _ := rs.s.tracker.Entry(h)
	return e, nil
}

// Find loads the record with the given primary key, or nil when there is
// none. It always queries; the result is a new tracked record.
func (rs *RecordSet[T]) Find(ctx context.Context, key any) (*T, error) {
	if rs.err != nil {
		return nil, rs.err
	}
	desc := rs.b.desc
	pk, err := desc.PrimaryKey()
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, errors.New("find: key is nil")
	}
	bound, err := codec.ToStorage(key, pk.Type)
	if err != nil {
		return nil, err
	}
	where, err := statement.ByKey(desc, 1)
	if err != nil {
		return nil, err
	}

	ctx, cancel := rs.s.bound(ctx)
	defer cancel()
	rows, err := rs.s.conn.Query(ctx, statement.Select(desc, statement.Options{Where: where, Limit: 1}), bound)
	if err != nil {
		return nil, err
	}
	recs, err := rs.s.materialize(rs.b, rows)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0].(*T), nil
}

// Query starts an unfiltered query.
func (rs *RecordSet[T]) Query() *Query[T] {
	return &Query[T]{set: rs, err: rs.err}
}

func (rs *RecordSet[T]) Where(expr predicate.Expr) *Query[T] { return rs.Query().Where(expr) }

func (rs *RecordSet[T]) OrderBy(field string) *Query[T] { return rs.Query().OrderBy(field) }

func (rs *RecordSet[T]) OrderByDescending(field string) *Query[T] {
	return rs.Query().OrderByDescending(field)
}

func (rs *RecordSet[T]) Include(relation string) *Query[T] { return rs.Query().Include(relation) }

func (rs *RecordSet[T]) ToList(ctx context.Context) ([]*T, error) { return rs.Query().ToList(ctx) }

func (rs *RecordSet[T]) FirstOrDefault(ctx context.Context) (*T, error) {
	return rs.Query().FirstOrDefault(ctx)
}

func (rs *RecordSet[T]) Count(ctx context.Context) (int64, error) { return rs.Query().Count(ctx) }

// Query is an immutable query description. Every builder method returns a
// new Query; nothing runs until ToList, FirstOrDefault or Count.
type Query[T any] struct {
	set      *RecordSet[T]
	where    predicate.Expr
	order    []statement.Order
	includes []string
	err      error
}

func (q *Query[T]) clone() *Query[T] {
	c := *q
	c.order = slices.Clone(q.order)
	c.includes = slices.Clone(q.includes)
	return &c
}

// Where adds a filter. Successive filters are combined with AND.
func (q *Query[T]) Where(expr predicate.Expr) *Query[T] {
	c := q.clone()
	if c.where == nil {
		c.where = expr
	} else {
		c.where = predicate.And(c.where, expr)
	}
	return c
}

// OrderBy replaces the ordering with field ascending.
func (q *Query[T]) OrderBy(field string) *Query[T] {
	c := q.clone()
	c.order = []statement.Order{{Field: field}}
	return c
}

// OrderByDescending replaces the ordering with field descending.
func (q *Query[T]) OrderByDescending(field string) *Query[T] {
	c := q.clone()
	c.order = []statement.Order{{Field: field, Desc: true}}
	return c
}

// ThenBy appends an ascending ordering term.
func (q *Query[T]) ThenBy(field string) *Query[T] {
	c := q.clone()
	c.order = append(c.order, statement.Order{Field: field})
	return c
}

// ThenByDescending appends a descending ordering term.
func (q *Query[T]) ThenByDescending(field string) *Query[T] {
	c := q.clone()
	c.order = append(c.order, statement.Order{Field: field, Desc: true})
	return c
}

// Include queues a relation to load after the main query. Loading issues one
// query per returned record.
func (q *Query[T]) Include(relation string) *Query[T] {
	c := q.clone()
	if c.err == nil {
		if _, err := c.set.b.desc.Relation(relation); err != nil {
			c.err = err
		}
	}
	c.includes = append(c.includes, relation)
	return c
}

// ToList runs the query, tracks every record Unchanged and loads the queued
// relations.
func (q *Query[T]) ToList(ctx context.Context) ([]*T, error) {
	return q.load(ctx, 0)
}

// FirstOrDefault returns the first record or nil.
func (q *Query[T]) FirstOrDefault(ctx context.Context) (*T, error) {
	recs, err := q.load(ctx, 1)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0], nil
}

// Count returns the number of matching rows. Ordering and includes are
// ignored.
func (q *Query[T]) Count(ctx context.Context) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	where, args, err := q.compile()
	if err != nil {
		return 0, err
	}
	ctx, cancel := q.set.s.bound(ctx)
	defer cancel()
	v, err := q.set.s.conn.Scalar(ctx, statement.Count(q.set.b.desc, where), args...)
	if err != nil {
		return 0, err
	}
	n, err := codec.FromStorage(v, schema.BigInt)
	if err != nil {
		return 0, err
	}
	return codec.Int64(n), nil
}

func (q *Query[T]) compile() (string, []any, error) {
	if q.where == nil {
		return "", nil, nil
	}
	frag, err := predicate.Compile(q.set.b.desc, q.where, 1)
	if err != nil {
		return "", nil, err
	}
	return frag.SQL, frag.Args, nil
}

func (q *Query[T]) load(ctx context.Context, limit int) ([]*T, error) {
	if q.err != nil {
		return nil, q.err
	}
	desc := q.set.b.desc
	where, args, err := q.compile()
	if err != nil {
		return nil, err
	}
	opts := statement.Options{Where: where, Limit: limit}
	if len(q.order) > 0 {
		if opts.OrderBy, err = statement.OrderBy(desc, q.order); err != nil {
			return nil, err
		}
	}

	s := q.set.s
	ctx, cancel := s.bound(ctx)
	defer cancel()
	rows, err := s.conn.Query(ctx, statement.Select(desc, opts), args...)
	if err != nil {
		return nil, err
	}
	recs, err := s.materialize(q.set.b, rows)
	if err != nil {
		return nil, err
	}
	for _, rel := range q.includes {
		if err := s.include(ctx, q.set.b, recs, rel); err != nil {
			return nil, fmt.Errorf("include %s: %w", rel, err)
		}
	}
	out := make([]*T, len(recs))
	for i, r := range recs {
		out[i] = r.(*T)
	}
	return out, nil
}
