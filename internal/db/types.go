package db

import "database/sql"

// Table is the live structure of a table as reported by the catalog.
type Table struct {
	Name       string
	Columns    []Column
	PrimaryKey []string
}

// Column describes a live table column. DataType is the catalog's type name
// with any length or precision folded back in, e.g. character varying(100).
type Column struct {
	Name         string
	DataType     string
	IsNullable   bool
	DefaultValue sql.NullString
}

// Column looks a column up by name.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// IsPrimaryKey reports whether the named column is part of the primary key.
func (t *Table) IsPrimaryKey(name string) bool {
	for _, pk := range t.PrimaryKey {
		if pk == name {
			return true
		}
	}
	return false
}
