package table

import (
	"fmt"
	"slices"

	"golang.org/x/text/unicode/norm"
)

// Decl is the declaration of one table kind.
type Decl struct {
	// Name identifies the kind.
	Name string

	// Arrays are the numeric columns, in fan-out order.
	Arrays []string

	// Groups are nested tables, fanned out after the arrays.
	Groups []GroupDecl

	// SortKey names the column Qsort orders by. Empty means the kind
	// cannot be qsorted.
	SortKey string

	// Meta lists the metadata keys with their default values. Metadata is
	// not fanned out; clones carry it over.
	Meta map[string]string
}

// GroupDecl is a nested table column.
type GroupDecl struct {
	Name string
	Kind string
}

// Fields returns every attribute name the kind declares: arrays, then
// groups, then metadata keys in sorted order.
func (d Decl) Fields() []string {
	names := slices.Clone(d.Arrays)
	for _, g := range d.Groups {
		names = append(names, g.Name)
	}
	return append(names, d.metaKeys()...)
}

func (d Decl) metaKeys() []string {
	keys := make([]string, 0, len(d.Meta))
	for k := range d.Meta {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Normalize returns a copy of d with every kind and attribute name in NFC
// form. NewRegistry normalizes each declaration before validating it, so two
// spellings of the same name collide.
func (d Decl) Normalize() Decl {
	out := Decl{
		Name:    norm.NFC.String(d.Name),
		SortKey: norm.NFC.String(d.SortKey),
	}
	if d.Arrays != nil {
		out.Arrays = make([]string, len(d.Arrays))
		for i, name := range d.Arrays {
			out.Arrays[i] = norm.NFC.String(name)
		}
	}
	if d.Groups != nil {
		out.Groups = make([]GroupDecl, len(d.Groups))
		for i, g := range d.Groups {
			out.Groups[i] = GroupDecl{Name: norm.NFC.String(g.Name), Kind: norm.NFC.String(g.Kind)}
		}
	}
	if d.Meta != nil {
		out.Meta = make(map[string]string, len(d.Meta))
		for k, v := range d.Meta {
			out.Meta[norm.NFC.String(k)] = v
		}
	}
	return out
}

// Validate checks the declaration on its own. References to other kinds are
// checked by NewRegistry.
func (d Decl) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("kind name is required")
	}
	seen := make(map[string]bool)
	for _, name := range d.Fields() {
		if name == "" {
			return fmt.Errorf("kind %s: empty attribute name", d.Name)
		}
		if seen[name] {
			return fmt.Errorf("kind %s: attribute %q declared twice", d.Name, name)
		}
		seen[name] = true
	}
	for _, g := range d.Groups {
		if g.Kind == "" {
			return fmt.Errorf("kind %s: group %q has no kind", d.Name, g.Name)
		}
	}
	if d.SortKey != "" && !slices.Contains(d.Arrays, d.SortKey) {
		return fmt.Errorf("kind %s: sort key %q is not an array", d.Name, d.SortKey)
	}
	return nil
}
