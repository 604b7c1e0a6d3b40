package orm

import (
	"fmt"

	"mini_orm/internal/schema"
	"mini_orm/internal/tracker"
)

// Catalog is the set of models a session can work with. It is built once and
// read-only afterwards, so it may be shared between sessions.
type Catalog struct {
	registry *schema.Registry
	bindings map[string]*binding
	joins    map[string]map[string]join
}

// join is a resolved relation: the related records of a parent are those
// whose targetField equals the parent's parentField.
type join struct {
	rel         schema.Relation
	target      *binding
	parentField string
	targetField string
}

// NewCatalog registers every model, checks that each column has a field
// binding and that every relation resolves to a registered target.
func NewCatalog(models ...Mapper) (*Catalog, error) {
	c := &Catalog{
		registry: schema.NewRegistry(),
		bindings: make(map[string]*binding, len(models)),
		joins:    make(map[string]map[string]join, len(models)),
	}
	for _, m := range models {
		desc, err := c.registry.Register(m.descriptor())
		if err != nil {
			return nil, err
		}
		b, err := m.bind(desc)
		if err != nil {
			return nil, err
		}
		c.bindings[desc.Name] = b
	}
	for _, desc := range c.registry.All() {
		joins := make(map[string]join, len(desc.Relations))
		for _, rel := range desc.Relations {
			j, err := c.resolve(desc, rel)
			if err != nil {
				return nil, err
			}
			joins[rel.Name] = j
		}
		c.joins[desc.Name] = joins
	}
	return c, nil
}

func (c *Catalog) resolve(desc *schema.Descriptor, rel schema.Relation) (join, error) {
	target, ok := c.bindings[rel.Target]
	if !ok {
		return join{}, &schema.ValidationError{Type: desc.Name, Message: fmt.Sprintf("relation %s targets unregistered type %s", rel.Name, rel.Target)}
	}
	parentPK, err := desc.PrimaryKey()
	if err != nil {
		return join{}, err
	}
	j := join{rel: rel, target: target}
	_, targetErr := target.desc.Column(rel.ForeignKey)

	switch rel.Cardinality {
	case schema.Many:
		if targetErr != nil {
			return join{}, &schema.ValidationError{Type: desc.Name, Message: fmt.Sprintf("relation %s: %s has no field %s", rel.Name, rel.Target, rel.ForeignKey)}
		}
		j.parentField, j.targetField = parentPK.Field, rel.ForeignKey
	case schema.One:
		own, err := desc.Column(rel.ForeignKey)
		switch {
		case err == nil && !own.PrimaryKey:
			targetPK, err := target.desc.PrimaryKey()
			if err != nil {
				return join{}, err
			}
			j.parentField, j.targetField = rel.ForeignKey, targetPK.Field
		case targetErr == nil:
			j.parentField, j.targetField = parentPK.Field, rel.ForeignKey
		default:
			return join{}, &schema.ValidationError{Type: desc.Name, Message: fmt.Sprintf("relation %s: neither %s nor %s has field %s", rel.Name, desc.Name, rel.Target, rel.ForeignKey)}
		}
	}
	return j, nil
}

// Registry exposes the underlying schema registry.
func (c *Catalog) Registry() *schema.Registry { return c.registry }

// Descriptors returns every descriptor in registration order.
func (c *Catalog) Descriptors() []*schema.Descriptor { return c.registry.All() }

// Snapshot reads the storage form of every field of rec. Pointers are
// dereferenced, so a snapshot never aliases the record.
func (c *Catalog) Snapshot(typ string, rec any) (tracker.Snapshot, error) {
	b, err := c.binding(typ)
	if err != nil {
		return nil, err
	}
	snap := make(tracker.Snapshot, len(b.desc.Columns))
	for i := range b.desc.Columns {
		col := &b.desc.Columns[i]
		v, err := b.storage(rec, col)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s.%s: %w", typ, col.Field, err)
		}
		snap[col.Field] = v
	}
	return snap, nil
}

func (c *Catalog) binding(typ string) (*binding, error) {
	b, ok := c.bindings[typ]
	if !ok {
		return nil, fmt.Errorf("type %s is not in the catalog", typ)
	}
	return b, nil
}

func (c *Catalog) join(typ, relation string) (join, error) {
	j, ok := c.joins[typ][relation]
	if !ok {
		return join{}, &schema.UnknownFieldError{Type: typ, Field: relation}
	}
	return j, nil
}
