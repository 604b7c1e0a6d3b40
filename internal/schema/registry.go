// Package schema holds the static table mapping of every record type.
//
// Descriptors are declared as plain values, registered once at startup and
// only read afterwards. Nothing here inspects Go types at runtime.
package schema

import (
	"fmt"
	"strings"
)

// Registry indexes descriptors by type name. Register is not safe for
// concurrent use; lookups are once registration is complete.
type Registry struct {
	byName map[string]*Descriptor
	order  []*Descriptor
}

func NewRegistry() *Registry {
	return &Registry{byName: map[string]*Descriptor{}}
}

// Register validates d, fills defaults and stores a private copy.
func (r *Registry) Register(d Descriptor) (*Descriptor, error) {
	desc := normalize(d)
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if _, exists := r.byName[desc.Name]; exists {
		return nil, fmt.Errorf("type %s already registered", desc.Name)
	}
	for _, other := range r.order {
		if strings.EqualFold(other.Table, desc.Table) {
			return nil, fmt.Errorf("table %s already mapped by %s", desc.Table, other.Name)
		}
	}
	r.byName[desc.Name] = desc
	r.order = append(r.order, desc)
	return desc, nil
}

// MustRegister is Register for package-level setup.
func (r *Registry) MustRegister(d Descriptor) *Descriptor {
	desc, err := r.Register(d)
	if err != nil {
		panic(err)
	}
	return desc
}

// Describe returns the descriptor registered under name.
func (r *Registry) Describe(name string) (*Descriptor, error) {
	d, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("type %s is not registered", name)
	}
	return d, nil
}

// All returns descriptors in registration order.
func (r *Registry) All() []*Descriptor {
	out := make([]*Descriptor, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Len() int { return len(r.order) }

func normalize(d Descriptor) *Descriptor {
	out := d
	if out.Table == "" {
		out.Table = strings.ToLower(out.Name) + "s"
	}
	out.Columns = make([]Column, len(d.Columns))
	for i, c := range d.Columns {
		if c.Field == "" {
			c.Field = c.Name
		}
		out.Columns[i] = c
	}
	out.Relations = append([]Relation(nil), d.Relations...)
	return &out
}
