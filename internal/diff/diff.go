// Package diff compares the live structure of a table with the descriptor it
// should match and renders the forward and reverse DDL that bridges them.
package diff

import (
	"regexp"
	"strings"

	"mini_orm/internal/db"
	"mini_orm/internal/schema"
	"mini_orm/internal/statement"
)

// Changes holds the statements that move one table from its live structure to
// the desired one (Up) and back (Down). Down is already in undo order: it is
// the reverse of Up.
type Changes struct {
	Table string
	Up    []string
	Down  []string
}

// HasChanges reports whether any statement is needed.
func (c Changes) HasChanges() bool {
	return len(c.Up) > 0
}

// Script renders Up and Down as executable scripts. No changes render as two
// empty scripts.
func (c Changes) Script() (up, down string) {
	return Join(c.Up), Join(c.Down)
}

// Join renders statements separated by blank lines, each terminated by a
// semicolon.
func Join(stmts []string) string {
	if len(stmts) == 0 {
		return ""
	}
	return strings.Join(stmts, ";\n\n") + ";"
}

// Table diffs one table. A nil live table means it does not exist yet.
//
// Column level changes are emitted in this order: added columns, dropped
// columns, type changes, nullability changes. Types are compared after
// Normalize, so length and precision changes are not detected.
func Table(live *db.Table, desired *schema.Descriptor) Changes {
	res := Changes{Table: desired.Table}
	if live == nil {
		res.Up = []string{statement.CreateTable(desired)}
		res.Down = []string{statement.DropTable(desired.Table)}
		return res
	}

	var up, down []string
	table := desired.Table

	desiredNames := make([]string, len(desired.Columns))
	for i, c := range desired.Columns {
		desiredNames[i] = c.Name
	}
	liveNames := make([]string, len(live.Columns))
	for i, c := range live.Columns {
		liveNames[i] = c.Name
	}

	for _, name := range difference(desiredNames, liveNames) {
		c := column(desired, name)
		up = append(up, statement.AddColumn(table, c.Name, c.SQLTypeName(), nullable(c), c.Unique))
		down = append(down, statement.DropColumn(table, c.Name))
	}

	for _, name := range difference(liveNames, desiredNames) {
		c, _ := live.Column(name)
		up = append(up, statement.DropColumn(table, c.Name))
		down = append(down, statement.AddColumn(table, c.Name, c.DataType, c.IsNullable, false))
	}

	for _, want := range desired.Columns {
		have, ok := live.Column(want.Name)
		if !ok {
			continue
		}
		if Normalize(have.DataType) != Normalize(want.SQLTypeName()) {
			up = append(up, statement.AlterColumnType(table, want.Name, want.SQLTypeName()))
			down = append(down, statement.AlterColumnType(table, have.Name, have.DataType))
		}
		if have.IsNullable != nullable(&want) {
			up = append(up, statement.SetNullability(table, want.Name, nullable(&want)))
			down = append(down, statement.SetNullability(table, have.Name, have.IsNullable))
		}
	}

	res.Up = up
	res.Down = reversed(down)
	return res
}

func column(d *schema.Descriptor, name string) *schema.Column {
	for i := range d.Columns {
		if d.Columns[i].Name == name {
			return &d.Columns[i]
		}
	}
	return nil
}

// nullable is the effective nullability of a desired column.
func nullable(c *schema.Column) bool {
	return c.Nullable && !c.PrimaryKey
}

var (
	typeModifier = regexp.MustCompile(`\(\s*\d+\s*(,\s*\d+\s*)?\)`)
	spaces       = regexp.MustCompile(`\s+`)
)

// Normalize maps a SQL type name to a canonical spelling so that catalog
// names and declared names compare equal, e.g. "character varying(100)" and
// "VARCHAR(200)" both become "varchar".
func Normalize(sqlType string) string {
	t := strings.ToLower(sqlType)
	t = typeModifier.ReplaceAllString(t, "")
	t = strings.TrimSpace(spaces.ReplaceAllString(t, " "))
	switch t {
	case "varchar", "character varying":
		return "varchar"
	case "char", "character", "bpchar":
		return "char"
	case "int", "int4", "integer", "serial", "serial4":
		return "integer"
	case "int8", "bigint", "bigserial", "serial8":
		return "bigint"
	case "int2", "smallint", "smallserial":
		return "smallint"
	case "timestamp", "timestamp without time zone":
		return "timestamp"
	case "timestamptz", "timestamp with time zone":
		return "timestamptz"
	case "numeric", "decimal":
		return "numeric"
	case "bool", "boolean":
		return "boolean"
	case "float8", "double precision", "float":
		return "double precision"
	case "float4", "real":
		return "real"
	}
	return t
}

// difference returns the items of a missing from b, keeping a's order.
func difference(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, v := range b {
		set[v] = struct{}{}
	}
	var out []string
	for _, v := range a {
		if _, ok := set[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}

func reversed(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}
