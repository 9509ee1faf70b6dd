package fanout

import (
	"fmt"
	"slices"
)

// Attrs maps attribute names to the values one fan-out pass produced. It is
// handed to the clone factory and never retained by the engine.
type Attrs struct {
	names  []string
	values map[string]Value
}

func newAttrs(n int) *Attrs {
	return &Attrs{names: make([]string, 0, n), values: make(map[string]Value, n)}
}

func (a *Attrs) put(name string, v Value) {
	if _, ok := a.values[name]; !ok {
		a.names = append(a.names, name)
	}
	a.values[name] = v
}

// Names returns the attribute names in fan-out order.
func (a *Attrs) Names() []string {
	return slices.Clone(a.names)
}

// Len returns the number of attributes.
func (a *Attrs) Len() int {
	return len(a.names)
}

// Lookup returns the unwrapped value for name.
func (a *Attrs) Lookup(name string) (any, bool) {
	v, ok := a.values[name]
	if !ok {
		return nil, false
	}
	return v.Unwrap(), true
}

// Get returns the value for name as T.
func Get[T any](a *Attrs, name string) (T, error) {
	var zero T
	raw, ok := a.Lookup(name)
	if !ok {
		return zero, fmt.Errorf("attribute %q not in result", name)
	}
	v, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("attribute %q is %T, not %T", name, raw, zero)
	}
	return v, nil
}
