package table

import (
	"fmt"
	"slices"

	"github.com/roach88/fanout/internal/fanout"
	"github.com/roach88/fanout/internal/ndarray"
	"golang.org/x/text/unicode/norm"
)

// Kind is a built table kind: its declaration, its schema and the kinds of
// its groups.
type Kind struct {
	decl   Decl
	schema *fanout.Schema[*Table]
	groups map[string]*Kind
}

// Name returns the kind name.
func (k *Kind) Name() string {
	return k.decl.Name
}

// Decl returns the declaration the kind was built from.
func (k *Kind) Decl() Decl {
	return k.decl
}

// Schema returns the kind's fan-out schema. Tag and Untag on it affect every
// table of the kind once their cached tag lists are cleared.
func (k *Kind) Schema() *fanout.Schema[*Table] {
	return k.schema
}

// GroupKind returns the kind of the named group.
func (k *Kind) GroupKind(name string) (*Kind, bool) {
	g, ok := k.groups[norm.NFC.String(name)]
	return g, ok
}

// Registry holds the kinds built from a set of declarations.
type Registry struct {
	kinds map[string]*Kind
}

// NewRegistry validates decls and builds a kind for each. Every group must
// name a declared kind, and kinds must not contain themselves through their
// groups.
func NewRegistry(decls []Decl) (*Registry, error) {
	byName := make(map[string]Decl, len(decls))
	names := make([]string, len(decls))
	for i, d := range decls {
		d = d.Normalize()
		names[i] = d.Name
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := byName[d.Name]; dup {
			return nil, fmt.Errorf("kind %s declared twice", d.Name)
		}
		byName[d.Name] = d
	}

	r := &Registry{kinds: make(map[string]*Kind, len(decls))}
	building := make(map[string]bool)
	var build func(name string) (*Kind, error)
	build = func(name string) (*Kind, error) {
		if k, ok := r.kinds[name]; ok {
			return k, nil
		}
		d, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown kind %q", name)
		}
		if building[name] {
			return nil, fmt.Errorf("kind %s contains itself", name)
		}
		building[name] = true
		defer delete(building, name)

		k := &Kind{decl: d, groups: make(map[string]*Kind, len(d.Groups))}
		for _, g := range d.Groups {
			child, err := build(g.Kind)
			if err != nil {
				return nil, fmt.Errorf("kind %s: group %s: %w", d.Name, g.Name, err)
			}
			k.groups[g.Name] = child
		}
		schema, err := newSchema(d)
		if err != nil {
			return nil, err
		}
		k.schema = schema
		r.kinds[name] = k
		return k, nil
	}

	for _, name := range names {
		if _, err := build(name); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Kind returns the named kind.
func (r *Registry) Kind(name string) (*Kind, bool) {
	k, ok := r.kinds[norm.NFC.String(name)]
	return k, ok
}

// Names returns the kind names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.kinds))
	for name := range r.kinds {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func newSchema(d Decl) (*fanout.Schema[*Table], error) {
	defs := make([]fanout.FieldDef[*Table], 0, len(d.Arrays)+len(d.Groups)+len(d.Meta))
	for _, name := range d.Arrays {
		name := name
		defs = append(defs, fanout.Array(name,
			func(t *Table) *ndarray.Array { return t.columns[name] },
			func(t *Table, v *ndarray.Array) error { return t.SetColumn(name, v) },
		).WithRestorer(func(t *Table, v *ndarray.Array) error { return t.restoreColumn(name, v) }))
	}
	for _, g := range d.Groups {
		g := g
		defs = append(defs, fanout.Array(g.Name,
			func(t *Table) *Table { return t.groups[g.Name] },
			func(t *Table, v *Table) error { return t.SetGroup(g.Name, v) },
		).WithRestorer(func(t *Table, v *Table) error { return t.restoreGroup(g.Name, v) }))
	}
	for _, key := range d.metaKeys() {
		key := key
		defs = append(defs, fanout.Attribute[*Table, string](key,
			func(t *Table) string { return t.meta[key] },
			nil,
		).WithInternalSetter(func(t *Table, v string) error {
			t.meta[key] = v
			return nil
		}))
	}
	return fanout.NewSchema("table."+d.Name, cloneTable, defs...)
}
