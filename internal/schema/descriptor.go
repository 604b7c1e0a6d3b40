package schema

import "strings"

// Column describes how one record field maps to a table column.
type Column struct {
	// Field is the logical name used by predicates, ordering and snapshots.
	// It defaults to Name.
	Field string
	Name  string
	Type  Type
	// SQLType overrides the type derived from Type, e.g. VARCHAR(100).
	SQLType       string
	Nullable      bool
	Unique        bool
	PrimaryKey    bool
	AutoIncrement bool
}

// SQLTypeName returns the explicit override or the derived SQL type.
func (c Column) SQLTypeName() string {
	if c.SQLType != "" {
		return c.SQLType
	}
	s, _ := SQLTypeFor(c.Type)
	return s
}

// Generated reports whether the database assigns this column's value.
func (c Column) Generated() bool {
	return c.PrimaryKey && c.AutoIncrement
}

// Cardinality of a relation.
type Cardinality int

const (
	One Cardinality = iota + 1
	Many
)

func (c Cardinality) String() string {
	switch c {
	case One:
		return "one"
	case Many:
		return "many"
	default:
		return "unknown"
	}
}

// Relation declares a navigable link to another registered type.
//
// For Many, ForeignKey names a field of Target that holds this type's key.
// For One, ForeignKey names either a field of this type holding Target's key
// (belongs-to) or a field of Target holding this type's key (has-one).
type Relation struct {
	Name        string
	Target      string
	ForeignKey  string
	Cardinality Cardinality
}

// Descriptor is the static mapping of one record type. It is immutable once
// registered.
type Descriptor struct {
	Name      string
	Table     string
	Columns   []Column
	Relations []Relation
}

// PrimaryKey returns the identity column.
func (d *Descriptor) PrimaryKey() (*Column, error) {
	for i := range d.Columns {
		if d.Columns[i].PrimaryKey {
			return &d.Columns[i], nil
		}
	}
	return nil, &MissingPrimaryKeyError{Type: d.Name}
}

// Column resolves a field name to its column.
func (d *Descriptor) Column(field string) (*Column, error) {
	for i := range d.Columns {
		if d.Columns[i].Field == field {
			return &d.Columns[i], nil
		}
	}
	return nil, &UnknownFieldError{Type: d.Name, Field: field}
}

// ColumnByName looks a column up by its database name.
func (d *Descriptor) ColumnByName(name string) (*Column, bool) {
	for i := range d.Columns {
		if strings.EqualFold(d.Columns[i].Name, name) {
			return &d.Columns[i], true
		}
	}
	return nil, false
}

// Relation resolves a relation slot by name.
func (d *Descriptor) Relation(name string) (*Relation, error) {
	for i := range d.Relations {
		if d.Relations[i].Name == name {
			return &d.Relations[i], nil
		}
	}
	return nil, &UnknownFieldError{Type: d.Name, Field: name}
}

// Fields lists field names in registry order.
func (d *Descriptor) Fields() []string {
	out := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		out[i] = c.Field
	}
	return out
}

// Validate checks the invariants a descriptor must hold before registration.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return &ValidationError{Type: "<unnamed>", Message: "type name is required"}
	}
	if len(d.Columns) == 0 {
		return &ValidationError{Type: d.Name, Message: "at least one column is required"}
	}
	names := make(map[string]struct{}, len(d.Columns))
	fields := make(map[string]struct{}, len(d.Columns))
	keys := 0
	for _, c := range d.Columns {
		if c.Name == "" {
			return &ValidationError{Type: d.Name, Message: "column name is required"}
		}
		lower := strings.ToLower(c.Name)
		if _, dup := names[lower]; dup {
			return &ValidationError{Type: d.Name, Column: c.Name, Message: "duplicate column"}
		}
		names[lower] = struct{}{}
		if _, dup := fields[c.Field]; dup {
			return &ValidationError{Type: d.Name, Column: c.Name, Message: "duplicate field " + c.Field}
		}
		fields[c.Field] = struct{}{}
		if c.SQLType == "" && !c.Type.Valid() {
			return &UnsupportedTypeError{Type: c.Type}
		}
		if c.PrimaryKey {
			keys++
			if c.Nullable {
				return &ValidationError{Type: d.Name, Column: c.Name, Message: "primary key cannot be nullable"}
			}
		}
		if c.AutoIncrement && !c.PrimaryKey {
			return &ValidationError{Type: d.Name, Column: c.Name, Message: "only the primary key may be auto-generated"}
		}
		if c.AutoIncrement && c.Type != Integer && c.Type != BigInt {
			return &ValidationError{Type: d.Name, Column: c.Name, Message: "auto-generated key must be integer or bigint"}
		}
	}
	if keys > 1 {
		return &ValidationError{Type: d.Name, Message: "more than one primary key column"}
	}
	rels := make(map[string]struct{}, len(d.Relations))
	for _, r := range d.Relations {
		if r.Name == "" || r.Target == "" || r.ForeignKey == "" {
			return &ValidationError{Type: d.Name, Message: "relation needs name, target and foreign key"}
		}
		if r.Cardinality != One && r.Cardinality != Many {
			return &ValidationError{Type: d.Name, Message: "relation " + r.Name + " has no cardinality"}
		}
		if _, dup := fields[r.Name]; dup {
			return &ValidationError{Type: d.Name, Message: "relation " + r.Name + " shadows a field"}
		}
		if _, dup := rels[r.Name]; dup {
			return &ValidationError{Type: d.Name, Message: "duplicate relation " + r.Name}
		}
		rels[r.Name] = struct{}{}
	}
	return nil
}
