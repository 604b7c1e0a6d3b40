// Package db is the boundary between the mapping layer and the physical
// PostgreSQL connection.
package db

import (
	"context"
	"strings"

	"mini_orm/internal/codec"
	"mini_orm/internal/schema"
)

// Executor runs statements against a connection or an open transaction.
type Executor interface {
	// Exec runs a statement and returns the number of affected rows.
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	// Scalar returns the first column of the first row, or nil when the
	// query yields no rows.
	Scalar(ctx context.Context, query string, args ...any) (any, error)
	// Query materializes every row of the result.
	Query(ctx context.Context, query string, args ...any) ([]Row, error)
}

// Conn is an open database handle.
type Conn interface {
	Executor
	Begin(ctx context.Context) (Tx, error)
	Ping(ctx context.Context) error
	Close() error
}

// Tx is a transaction. Rollback after Commit, or after the context
// already aborted it, is a no-op.
type Tx interface {
	Executor
	Commit() error
	Rollback() error
}

// Row is one materialized result row addressed by column name.
type Row struct {
	columns []string
	values  []any
}

func NewRow(columns []string, values []any) Row {
	return Row{columns: columns, values: values}
}

func (r Row) Columns() []string { return r.columns }

// Value returns the raw driver value of a column. A NULL column reports
// (nil, true); a missing column reports (nil, false).
func (r Row) Value(name string) (any, bool) {
	for i, c := range r.columns {
		if strings.EqualFold(c, name) {
			return r.values[i], true
		}
	}
	return nil, false
}

// IsNull reports whether the column is present and NULL.
func (r Row) IsNull(name string) bool {
	v, ok := r.Value(name)
	return ok && v == nil
}

// Decode extracts a column converted to the given semantic type.
func (r Row) Decode(name string, t schema.Type) (any, error) {
	v, ok := r.Value(name)
	if !ok {
		return nil, &MissingColumnError{Column: name}
	}
	return codec.FromStorage(v, t)
}

func (r Row) String(name string) (string, error) {
	v, err := r.Decode(name, schema.Text)
	return codec.String(v), err
}

func (r Row) Int64(name string) (int64, error) {
	v, err := r.Decode(name, schema.BigInt)
	return codec.Int64(v), err
}

func (r Row) Bool(name string) (bool, error) {
	v, err := r.Decode(name, schema.Boolean)
	return codec.Bool(v), err
}
