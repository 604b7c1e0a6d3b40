// Package statement renders SQL text from schema descriptors. Every function
// is pure; values are always left to positional placeholders.
package statement

import (
	"strconv"
	"strings"

	"mini_orm/internal/db"
	"mini_orm/internal/schema"
)

// Order is one ORDER BY term over a logical field.
type Order struct {
	Field string
	Desc  bool
}

// Options are the optional clauses of a SELECT.
type Options struct {
	// Where is a compiled boolean fragment without the WHERE keyword.
	Where string
	// OrderBy is an ORDER BY list without the keywords, see OrderBy.
	OrderBy string
	Limit   int
}

// Select projects every column of d in registry order.
func Select(d *schema.Descriptor, opts Options) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(columnList(d.Columns))
	b.WriteString(" FROM ")
	b.WriteString(db.QuoteIdent(d.Table))
	if opts.Where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(opts.Where)
	}
	if opts.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(opts.OrderBy)
	}
	if opts.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(opts.Limit))
	}
	return b.String()
}

// Count renders SELECT COUNT(*) with an optional WHERE fragment.
func Count(d *schema.Descriptor, where string) string {
	q := "SELECT COUNT(*) FROM " + db.QuoteIdent(d.Table)
	if where != "" {
		q += " WHERE " + where
	}
	return q
}

// OrderBy resolves ordering terms to an ORDER BY list.
func OrderBy(d *schema.Descriptor, terms []Order) (string, error) {
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		col, err := d.Column(t.Field)
		if err != nil {
			return "", err
		}
		dir := " ASC"
		if t.Desc {
			dir = " DESC"
		}
		parts = append(parts, db.QuoteIdent(col.Name)+dir)
	}
	return strings.Join(parts, ", "), nil
}

// ByKey renders "pk = $n" for d's identity column.
func ByKey(d *schema.Descriptor, n int) (string, error) {
	pk, err := d.PrimaryKey()
	if err != nil {
		return "", err
	}
	return db.QuoteIdent(pk.Name) + " = $" + strconv.Itoa(n), nil
}

// Insert renders an INSERT of every non-generated column followed by
// RETURNING of the full row. The returned columns are the bound ones, in
// placeholder order.
func Insert(d *schema.Descriptor) (string, []schema.Column) {
	cols := make([]schema.Column, 0, len(d.Columns))
	for _, c := range d.Columns {
		if c.Generated() {
			continue
		}
		cols = append(cols, c)
	}
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(db.QuoteIdent(d.Table))
	if len(cols) == 0 {
		b.WriteString(" DEFAULT VALUES")
	} else {
		b.WriteString(" (")
		b.WriteString(columnList(cols))
		b.WriteString(") VALUES (")
		b.WriteString(placeholders(1, len(cols)))
		b.WriteString(")")
	}
	b.WriteString(" RETURNING ")
	b.WriteString(columnList(d.Columns))
	return b.String(), cols
}

// Update renders an UPDATE of every non-key column filtered by the key. The
// key is bound last, after the returned columns.
func Update(d *schema.Descriptor) (string, []schema.Column, error) {
	pk, err := d.PrimaryKey()
	if err != nil {
		return "", nil, err
	}
	cols := make([]schema.Column, 0, len(d.Columns))
	sets := make([]string, 0, len(d.Columns))
	for _, c := range d.Columns {
		if c.PrimaryKey {
			continue
		}
		cols = append(cols, c)
		sets = append(sets, db.QuoteIdent(c.Name)+" = $"+strconv.Itoa(len(cols)))
	}
	if len(cols) == 0 {
		return "", nil, &schema.ValidationError{Type: d.Name, Message: "no updatable columns"}
	}
	q := "UPDATE " + db.QuoteIdent(d.Table) +
		" SET " + strings.Join(sets, ", ") +
		" WHERE " + db.QuoteIdent(pk.Name) + " = $" + strconv.Itoa(len(cols)+1)
	return q, cols, nil
}

// Delete renders a single-row delete by key bound to $1.
func Delete(d *schema.Descriptor) (string, error) {
	where, err := ByKey(d, 1)
	if err != nil {
		return "", err
	}
	return "DELETE FROM " + db.QuoteIdent(d.Table) + " WHERE " + where, nil
}

// CreateTable renders an idempotent CREATE TABLE for d.
func CreateTable(d *schema.Descriptor) string {
	defs := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		defs[i] = "    " + ColumnDefinition(c)
	}
	return "CREATE TABLE IF NOT EXISTS " + db.QuoteIdent(d.Table) + " (\n" +
		strings.Join(defs, ",\n") + "\n)"
}

// ColumnDefinition renders one column as it appears in CREATE TABLE.
func ColumnDefinition(c schema.Column) string {
	name := db.QuoteIdent(c.Name)
	if c.Generated() {
		if c.Type == schema.BigInt {
			return name + " BIGSERIAL PRIMARY KEY"
		}
		return name + " SERIAL PRIMARY KEY"
	}
	if c.PrimaryKey {
		return name + " " + c.SQLTypeName() + " NOT NULL PRIMARY KEY"
	}
	def := name + " " + c.SQLTypeName()
	if !c.Nullable {
		def += " NOT NULL"
	}
	if c.Unique {
		def += " UNIQUE"
	}
	return def
}

// DropTable renders DROP TABLE IF EXISTS.
func DropTable(table string) string {
	return "DROP TABLE IF EXISTS " + db.QuoteIdent(table)
}

// AddColumn renders ALTER TABLE ... ADD COLUMN with type, nullability and
// uniqueness.
func AddColumn(table, column, sqlType string, nullable, unique bool) string {
	q := "ALTER TABLE " + db.QuoteIdent(table) + " ADD COLUMN " + db.QuoteIdent(column) + " " + sqlType
	if !nullable {
		q += " NOT NULL"
	}
	if unique {
		q += " UNIQUE"
	}
	return q
}

func DropColumn(table, column string) string {
	return "ALTER TABLE " + db.QuoteIdent(table) + " DROP COLUMN " + db.QuoteIdent(column)
}

func AlterColumnType(table, column, sqlType string) string {
	return "ALTER TABLE " + db.QuoteIdent(table) + " ALTER COLUMN " + db.QuoteIdent(column) + " TYPE " + sqlType
}

// SetNullability renders SET NOT NULL, or DROP NOT NULL when nullable.
func SetNullability(table, column string, nullable bool) string {
	op := "SET NOT NULL"
	if nullable {
		op = "DROP NOT NULL"
	}
	return "ALTER TABLE " + db.QuoteIdent(table) + " ALTER COLUMN " + db.QuoteIdent(column) + " " + op
}

func columnList(cols []schema.Column) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = db.QuoteIdent(c.Name)
	}
	return strings.Join(names, ", ")
}

func placeholders(from, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = "$" + strconv.Itoa(from+i)
	}
	return strings.Join(ph, ", ")
}
