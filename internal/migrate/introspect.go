package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"mini_orm/internal/db"
)

const columnsQuery = `
SELECT column_name, data_type, character_maximum_length, numeric_precision, numeric_scale, is_nullable, column_default
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`

const primaryKeyQuery = `
SELECT kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name
 AND tc.table_schema = kcu.table_schema
 AND tc.table_name = kcu.table_name
WHERE tc.table_schema = $1 AND tc.table_name = $2 AND tc.constraint_type = 'PRIMARY KEY'
ORDER BY kcu.ordinal_position`

// Introspector reads the live structure of tables from information_schema.
type Introspector struct {
	ex     db.Executor
	schema string
}

// NewIntrospector reads tables of the given schema; an empty name means
// public.
func NewIntrospector(ex db.Executor, schema string) *Introspector {
	if schema == "" {
		schema = "public"
	}
	return &Introspector{ex: ex, schema: schema}
}

// Table returns the live structure of a table, or nil when it has no
// columns, which is how a missing table shows up in the catalog.
func (i *Introspector) Table(ctx context.Context, name string) (*db.Table, error) {
	rows, err := i.ex.Query(ctx, columnsQuery, i.schema, name)
	if err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", name, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	t := &db.Table{Name: name, Columns: make([]db.Column, 0, len(rows))}
	for _, r := range rows {
		c, err := scanColumn(r)
		if err != nil {
			return nil, fmt.Errorf("read columns of %s: %w", name, err)
		}
		t.Columns = append(t.Columns, c)
	}

	pkRows, err := i.ex.Query(ctx, primaryKeyQuery, i.schema, name)
	if err != nil {
		return nil, fmt.Errorf("read primary key of %s: %w", name, err)
	}
	for _, r := range pkRows {
		col, err := r.String("column_name")
		if err != nil {
			return nil, fmt.Errorf("read primary key of %s: %w", name, err)
		}
		t.PrimaryKey = append(t.PrimaryKey, col)
	}
	return t, nil
}

func scanColumn(r db.Row) (db.Column, error) {
	var c db.Column
	var err error
	if c.Name, err = r.String("column_name"); err != nil {
		return c, err
	}
	dataType, err := r.String("data_type")
	if err != nil {
		return c, err
	}
	nullable, err := r.String("is_nullable")
	if err != nil {
		return c, err
	}
	c.IsNullable = strings.EqualFold(nullable, "YES")
	if !r.IsNull("column_default") {
		def, err := r.String("column_default")
		if err != nil {
			return c, err
		}
		c.DefaultValue = sql.NullString{String: def, Valid: true}
	}

	length, err := optionalInt(r, "character_maximum_length")
	if err != nil {
		return c, err
	}
	precision, err := optionalInt(r, "numeric_precision")
	if err != nil {
		return c, err
	}
	scale, err := optionalInt(r, "numeric_scale")
	if err != nil {
		return c, err
	}
	c.DataType = fullType(dataType, length, precision, scale)
	return c, nil
}

// fullType folds length and precision back into the catalog type name.
// information_schema reports precision for integer types too, so it is only
// used for numeric.
func fullType(dataType string, length, precision, scale *int64) string {
	switch dataType {
	case "character varying", "character":
		if length != nil {
			return fmt.Sprintf("%s(%d)", dataType, *length)
		}
	case "numeric":
		if precision != nil && scale != nil {
			return fmt.Sprintf("numeric(%d,%d)", *precision, *scale)
		}
		if precision != nil {
			return fmt.Sprintf("numeric(%d)", *precision)
		}
	}
	return dataType
}

func optionalInt(r db.Row, name string) (*int64, error) {
	if r.IsNull(name) {
		return nil, nil
	}
	v, err := r.Int64(name)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
