package orm

import (
	"fmt"

	"mini_orm/internal/codec"
	"mini_orm/internal/db"
	"mini_orm/internal/schema"
)

// Field binds the logical field of one column to accessors on *T.
//
// Get returns the value held by the record; pointer fields are fine for
// nullable columns. Set receives the decoded column value as produced by
// codec.FromStorage, nil for NULL.
type Field[T any] struct {
	Name string
	Get  func(*T) any
	Set  func(*T, any)
}

// Link binds a relation slot. Assign receives the loaded related records,
// each a pointer to the target type; see One and Many.
type Link[T any] struct {
	Name   string
	Assign func(*T, []any)
}

// Model maps the record type T to a table through a descriptor and explicit
// accessors. Every column needs a Field; relations need a Link only if they
// are ever included.
type Model[T any] struct {
	Schema schema.Descriptor
	New    func() *T
	Fields []Field[T]
	Links  []Link[T]
}

// Mapper is implemented by *Model[T] only.
type Mapper interface {
	descriptor() schema.Descriptor
	bind(desc *schema.Descriptor) (*binding, error)
}

func (m *Model[T]) descriptor() schema.Descriptor { return m.Schema }

func (m *Model[T]) bind(desc *schema.Descriptor) (*binding, error) {
	b := &binding{
		owner: m,
		desc:  desc,
		get:   make(map[string]func(any) any, len(m.Fields)),
		set:   make(map[string]func(any, any), len(m.Fields)),
		links: make(map[string]func(any, []any), len(m.Links)),
	}
	b.create = func() any {
		if m.New != nil {
			return m.New()
		}
		return new(T)
	}
	for _, f := range m.Fields {
		if _, err := desc.Column(f.Name); err != nil {
			return nil, err
		}
		if f.Get == nil || f.Set == nil {
			return nil, &schema.ValidationError{Type: desc.Name, Column: f.Name, Message: "field binding needs Get and Set"}
		}
		get, set := f.Get, f.Set
		b.get[f.Name] = func(rec any) any { return get(rec.(*T)) }
		b.set[f.Name] = func(rec, v any) { set(rec.(*T), v) }
	}
	for _, c := range desc.Columns {
		if _, ok := b.get[c.Field]; !ok {
			return nil, &schema.ValidationError{Type: desc.Name, Column: c.Name, Message: "no field binding for " + c.Field}
		}
	}
	for _, l := range m.Links {
		if _, err := desc.Relation(l.Name); err != nil {
			return nil, err
		}
		if l.Assign == nil {
			return nil, &schema.ValidationError{Type: desc.Name, Message: "link " + l.Name + " needs Assign"}
		}
		assign := l.Assign
		b.links[l.Name] = func(rec any, related []any) { assign(rec.(*T), related) }
	}
	return b, nil
}

// One returns the first loaded record, or nil.
func One[U any](related []any) *U {
	if len(related) == 0 {
		return nil
	}
	u, _ := related[0].(*U)
	return u
}

// Many converts loaded records to a typed slice.
func Many[U any](related []any) []*U {
	out := make([]*U, 0, len(related))
	for _, r := range related {
		if u, ok := r.(*U); ok {
			out = append(out, u)
		}
	}
	return out
}

// binding is the type-erased handler set of one registered model. Records
// travel as pointers to the model's type.
type binding struct {
	owner  any
	desc   *schema.Descriptor
	create func() any
	get    map[string]func(any) any
	set    map[string]func(any, any)
	links  map[string]func(any, []any)
}

// storage returns the driver value of one field.
func (b *binding) storage(rec any, col *schema.Column) (any, error) {
	return codec.ToStorage(b.get[col.Field](rec), col.Type)
}

// args converts the given columns of rec to driver values in order.
func (b *binding) args(rec any, cols []schema.Column) ([]any, error) {
	out := make([]any, len(cols))
	for i := range cols {
		v, err := b.storage(rec, &cols[i])
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", b.desc.Name, cols[i].Field, err)
		}
		out[i] = v
	}
	return out, nil
}

// key returns the driver value of rec's primary key.
func (b *binding) key(rec any) (any, error) {
	pk, err := b.desc.PrimaryKey()
	if err != nil {
		return nil, err
	}
	return b.storage(rec, pk)
}

// hydrate copies every mapped column of row into rec.
func (b *binding) hydrate(rec any, row db.Row) error {
	vals, err := b.decode(row)
	if err != nil {
		return err
	}
	b.apply(rec, vals)
	return nil
}

// decode reads every mapped column of row, in column order.
func (b *binding) decode(row db.Row) ([]any, error) {
	vals := make([]any, len(b.desc.Columns))
	for i, c := range b.desc.Columns {
		v, err := row.Decode(c.Name, c.Type)
		if err != nil {
			return nil, fmt.Errorf("decode %s.%s: %w", b.desc.Table, c.Name, err)
		}
		vals[i] = v
	}
	return vals, nil
}

func (b *binding) apply(rec any, vals []any) {
	for i, c := range b.desc.Columns {
		b.set[c.Field](rec, vals[i])
	}
}
