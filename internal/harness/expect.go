package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/roach88/fanout/internal/fanout"
	"github.com/roach88/fanout/internal/ndarray"
	"github.com/roach88/fanout/internal/table"
	"github.com/roach88/fanout/internal/testutil"
)

// checkExpect returns one message per failed expectation. target is the
// binding the step ran on; out and rec are what it returned. Only error and
// inplace_after are checked when the step failed.
func (h *Harness) checkExpect(exp *Expect, target, out *table.Table, rec *fanout.Record, ok bool) []string {
	var msgs []string
	fail := func(format string, args ...any) {
		msgs = append(msgs, fmt.Sprintf(format, args...))
	}

	if exp.InplaceAfter != nil {
		if got := target.Fanout().IsInplace(); got != *exp.InplaceAfter {
			fail("expected inplace pending = %t, got %t", *exp.InplaceAfter, got)
		}
	}
	if !ok {
		return msgs
	}

	if exp.Record != nil {
		if rec == nil {
			fail("record expectation needs a record result")
		} else {
			want := normalizeExpected(exp.Record)
			got := recordMap(*rec)
			if diff := cmp.Diff(want, any(got), floatOpts()...); diff != "" {
				fail("record mismatch (-want +got):\n%s", diff)
			}
		}
	}

	if !hostExpectations(exp) {
		return msgs
	}
	if out == nil {
		fail("host expectations need a host result")
		return msgs
	}

	if exp.SameAs != "" {
		if other, err := h.binding(exp.SameAs); err != nil {
			fail("%v", err)
		} else if other != out {
			fail("expected result to be %s, got a different host", exp.SameAs)
		}
	}
	if exp.DistinctFrom != "" {
		if other, err := h.binding(exp.DistinctFrom); err != nil {
			fail("%v", err)
		} else if other == out {
			fail("expected result to differ from %s", exp.DistinctFrom)
		}
	}

	for _, path := range sortedKeys(exp.Arrays) {
		want := exp.Arrays[path]
		col, err := lookupColumn(out, "expect", path)
		if err != nil {
			fail("%v", err)
			continue
		}
		if diff := testutil.ValuesDiff(want.Flat(), col); diff != "" {
			fail("array %s mismatch (-want +got):\n%s", path, diff)
		}
		if len(want.Rows) > 0 {
			shape := []int{len(want.Rows), len(want.Rows[0])}
			if !slices.Equal(shape, col.Shape()) {
				fail("array %s shape = %v, expected %v", path, col.Shape(), shape)
			}
		}
	}

	for _, key := range sortedKeys(exp.Meta) {
		if got := out.Meta(key); got != exp.Meta[key] {
			fail("meta %s = %q, expected %q", key, got, exp.Meta[key])
		}
	}
	if exp.Version != nil && out.Version() != *exp.Version {
		fail("version = %d, expected %d", out.Version(), *exp.Version)
	}
	if exp.Len != nil && out.Len() != *exp.Len {
		fail("len = %d, expected %d", out.Len(), *exp.Len)
	}

	if exp.SharesBuffer != "" {
		msgs = append(msgs, h.compareBuffers(out, exp.SharesBuffer, true)...)
	}
	if exp.DetachedFrom != "" {
		msgs = append(msgs, h.compareBuffers(out, exp.DetachedFrom, false)...)
	}
	if exp.OwnsData != nil {
		forEachColumn(out, "", func(path string, col *ndarray.Array) {
			if col.OwnsData() != *exp.OwnsData {
				fail("array %s owns data = %t, expected %t", path, col.OwnsData(), *exp.OwnsData)
			}
		})
	}
	return msgs
}

func hostExpectations(exp *Expect) bool {
	return exp.SameAs != "" || exp.DistinctFrom != "" || exp.Arrays != nil ||
		exp.Meta != nil || exp.Version != nil || exp.Len != nil ||
		exp.SharesBuffer != "" || exp.DetachedFrom != "" || exp.OwnsData != nil
}

// compareBuffers checks every column of out against the column at the same
// path in the named binding.
func (h *Harness) compareBuffers(out *table.Table, name string, shared bool) []string {
	other, err := h.binding(name)
	if err != nil {
		return []string{err.Error()}
	}
	var msgs []string
	forEachColumn(out, "", func(path string, col *ndarray.Array) {
		peer, err := lookupColumn(other, "expect", path)
		if err != nil {
			msgs = append(msgs, err.Error())
			return
		}
		if col.SharesBuffer(peer) != shared {
			if shared {
				msgs = append(msgs, fmt.Sprintf("array %s does not share storage with %s", path, name))
			} else {
				msgs = append(msgs, fmt.Sprintf("array %s shares storage with %s", path, name))
			}
		}
	})
	return msgs
}

func (h *Harness) binding(name string) (*table.Table, error) {
	t, ok := h.bindings[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", errUnknownBinding, name)
	}
	return t, nil
}

// lookupColumn resolves a dotted column path such as "members.p1".
func lookupColumn(t *table.Table, op, path string) (*ndarray.Array, error) {
	parts := strings.Split(path, ".")
	for _, group := range parts[:len(parts)-1] {
		g, ok := t.Group(group)
		if !ok {
			return nil, &fanout.Error{Code: fanout.ErrCodeMissingCapability, Op: op, Attr: path, Message: "no such group"}
		}
		t = g
	}
	col, ok := t.Column(parts[len(parts)-1])
	if !ok {
		return nil, &fanout.Error{Code: fanout.ErrCodeMissingCapability, Op: op, Attr: path, Message: "no such column"}
	}
	return col, nil
}

// forEachColumn visits every column of t and its groups in declaration order.
func forEachColumn(t *table.Table, prefix string, fn func(path string, col *ndarray.Array)) {
	decl := t.Kind().Decl()
	for _, name := range decl.Arrays {
		if col, ok := t.Column(name); ok {
			fn(prefix+name, col)
		}
	}
	for _, g := range decl.Groups {
		if child, ok := t.Group(g.Name); ok {
			forEachColumn(child, prefix+g.Name+".", fn)
		}
	}
}

// recordMap converts a record to plain values: scalars as float64, partial
// rows as []float64 and nested records as maps.
func recordMap(r fanout.Record) map[string]any {
	out := make(map[string]any, r.Len())
	for _, name := range r.Names() {
		v, _ := r.Get(name)
		switch v := v.(type) {
		case fanout.Record:
			out[name] = recordMap(v)
		case *ndarray.Array:
			out[name] = v.Values()
		default:
			out[name] = v
		}
	}
	return out
}

// normalizeExpected converts decoded YAML into the shapes recordMap
// produces: numbers become float64 and numeric lists []float64.
func normalizeExpected(v any) any {
	switch v := v.(type) {
	case int:
		return float64(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = normalizeExpected(e)
		}
		return out
	case []any:
		floats := make([]float64, 0, len(v))
		for _, e := range v {
			f, ok := normalizeExpected(e).(float64)
			if !ok {
				return v
			}
			floats = append(floats, f)
		}
		return floats
	}
	return v
}

func floatOpts() []cmp.Option {
	return []cmp.Option{
		cmpopts.EquateApprox(testutil.FloatTolerance, testutil.FloatTolerance),
		cmpopts.EquateEmpty(),
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
