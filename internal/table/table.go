package table

import (
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/fanout/internal/fanout"
	"github.com/roach88/fanout/internal/ndarray"
	"golang.org/x/text/unicode/norm"
)

// Table is a host of a data-declared kind.
type Table struct {
	fanout.State

	kind    *Kind
	columns map[string]*ndarray.Array
	groups  map[string]*Table
	meta    map[string]string
	version int
}

// New builds a table of kind k. Every declared array and group must be given
// and all of them must have the same length. Metadata keys not given take
// their declared default; undeclared keys are rejected.
func (k *Kind) New(columns map[string]*ndarray.Array, groups map[string]*Table, meta map[string]string) (*Table, error) {
	t := &Table{
		kind:    k,
		columns: make(map[string]*ndarray.Array, len(k.decl.Arrays)),
		groups:  make(map[string]*Table, len(k.decl.Groups)),
		meta:    maps.Clone(k.decl.Meta),
	}
	if t.meta == nil {
		t.meta = make(map[string]string)
	}

	columns, groups, meta = nfcKeys(columns), nfcKeys(groups), nfcKeys(meta)
	for name := range columns {
		if !k.hasArray(name) {
			return nil, fmt.Errorf("kind %s: unknown array %q", k.Name(), name)
		}
	}
	for name := range groups {
		if _, ok := k.groups[name]; !ok {
			return nil, fmt.Errorf("kind %s: unknown group %q", k.Name(), name)
		}
	}
	for key, v := range meta {
		if _, ok := k.decl.Meta[key]; !ok {
			return nil, fmt.Errorf("kind %s: unknown metadata key %q", k.Name(), key)
		}
		t.meta[key] = v
	}

	n := -1
	checkLen := func(name string, l int) error {
		if n < 0 {
			n = l
			return nil
		}
		if l != n {
			return fmt.Errorf("kind %s: %s has length %d, expected %d", k.Name(), name, l, n)
		}
		return nil
	}
	for _, name := range k.decl.Arrays {
		col, ok := columns[name]
		if !ok || col == nil {
			return nil, fmt.Errorf("kind %s: missing array %q", k.Name(), name)
		}
		if err := checkLen(name, col.Len()); err != nil {
			return nil, err
		}
		t.columns[name] = col
	}
	for _, g := range k.decl.Groups {
		child, ok := groups[g.Name]
		if !ok || child == nil {
			return nil, fmt.Errorf("kind %s: missing group %q", k.Name(), g.Name)
		}
		if child.kind != k.groups[g.Name] {
			return nil, fmt.Errorf("kind %s: group %q must be a %s, got %s", k.Name(), g.Name, g.Kind, child.kind.Name())
		}
		if err := checkLen(g.Name, child.Len()); err != nil {
			return nil, err
		}
		t.groups[g.Name] = child
	}
	return t, nil
}

func (k *Kind) hasArray(name string) bool {
	return slices.Contains(k.decl.Arrays, name)
}

func cloneTable(src *Table, attrs *fanout.Attrs) (*Table, error) {
	t := &Table{
		kind:    src.kind,
		columns: maps.Clone(src.columns),
		groups:  maps.Clone(src.groups),
		meta:    maps.Clone(src.meta),
	}
	for _, name := range attrs.Names() {
		v, _ := attrs.Lookup(name)
		switch val := v.(type) {
		case *ndarray.Array:
			t.columns[name] = val
		case *Table:
			t.groups[name] = val
		default:
			return nil, fmt.Errorf("kind %s: attribute %q has unexpected type %T", src.kind.Name(), name, v)
		}
	}
	return t, nil
}

// Kind returns the table's kind.
func (t *Table) Kind() *Kind {
	return t.kind
}

// Fanout binds the table to its kind's schema.
func (t *Table) Fanout() fanout.Proxy[*Table] {
	return t.kind.schema.Bind(t)
}

// Column returns the named array column.
func (t *Table) Column(name string) (*ndarray.Array, bool) {
	c, ok := t.columns[norm.NFC.String(name)]
	return c, ok
}

// Group returns the named nested table.
func (t *Table) Group(name string) (*Table, bool) {
	g, ok := t.groups[norm.NFC.String(name)]
	return g, ok
}

// Meta returns the value of a metadata key.
func (t *Table) Meta(key string) string {
	return t.meta[norm.NFC.String(key)]
}

// Version counts the column and group replacements made through the public
// setters. Writes into existing storage do not change it.
func (t *Table) Version() int {
	return t.version
}

// SetColumn replaces an array column and bumps the version.
func (t *Table) SetColumn(name string, v *ndarray.Array) error {
	name = norm.NFC.String(name)
	if !t.kind.hasArray(name) {
		return fmt.Errorf("kind %s: unknown array %q", t.kind.Name(), name)
	}
	if v == nil {
		return fmt.Errorf("kind %s: array %q cannot be nil", t.kind.Name(), name)
	}
	t.columns[name] = v
	t.version++
	return nil
}

// SetGroup replaces a nested table and bumps the version.
func (t *Table) SetGroup(name string, v *Table) error {
	name = norm.NFC.String(name)
	want, ok := t.kind.groups[name]
	if !ok {
		return fmt.Errorf("kind %s: unknown group %q", t.kind.Name(), name)
	}
	if v == nil || v.kind != want {
		return fmt.Errorf("kind %s: group %q must be a %s", t.kind.Name(), name, want.Name())
	}
	t.groups[name] = v
	t.version++
	return nil
}

// restoreColumn puts back a column replaced by SetColumn during an in-place
// pass that was rolled back, and undoes its version bump.
func (t *Table) restoreColumn(name string, v *ndarray.Array) error {
	t.columns[name] = v
	t.version--
	return nil
}

func (t *Table) restoreGroup(name string, v *Table) error {
	t.groups[name] = v
	t.version--
	return nil
}

// QsortIndices orders the rows by the kind's sort key.
func (t *Table) QsortIndices() ([]int, error) {
	key := t.kind.decl.SortKey
	if key == "" {
		return nil, &fanout.Error{
			Code:    fanout.ErrCodeMissingCapability,
			Op:      "qsort",
			Message: fmt.Sprintf("kind %s has no sort key", t.kind.Name()),
		}
	}
	return t.columns[key].Argsort()
}

// Snapshot returns the observable contents of the table in a form canon can
// encode: arrays as value lists (with their shape when not one-dimensional),
// groups as nested snapshots and metadata as strings.
func (t *Table) Snapshot() map[string]any {
	arrays := make(map[string]any, len(t.columns))
	for name, col := range t.columns {
		if col.Ndim() == 1 {
			arrays[name] = col.Values()
			continue
		}
		shape := make([]any, col.Ndim())
		for i, d := range col.Shape() {
			shape[i] = d
		}
		arrays[name] = map[string]any{"shape": shape, "values": col.Values()}
	}
	groups := make(map[string]any, len(t.groups))
	for name, g := range t.groups {
		groups[name] = g.Snapshot()
	}
	meta := make(map[string]any, len(t.meta))
	for k, v := range t.meta {
		meta[k] = v
	}
	return map[string]any{
		"kind":   t.kind.Name(),
		"arrays": arrays,
		"groups": groups,
		"meta":   meta,
	}
}

func nfcKeys[V any](m map[string]V) map[string]V {
	if m == nil {
		return nil
	}
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[norm.NFC.String(k)] = v
	}
	return out
}
