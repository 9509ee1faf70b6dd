package fanout

import (
	"fmt"
	"slices"
	"strings"
)

// Record is the read-only result of At: one entry per tagged attribute.
type Record struct {
	names  []string
	values map[string]any
}

// Names returns the attribute names in fan-out order.
func (r Record) Names() []string {
	return slices.Clone(r.names)
}

// Len returns the number of entries.
func (r Record) Len() int {
	return len(r.names)
}

// Get returns the entry for name.
func (r Record) Get(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Float returns the entry for name if it is a scalar.
func (r Record) Float(name string) (float64, bool) {
	v, ok := r.values[name].(float64)
	return v, ok
}

// Sub returns the entry for name if it is a nested Record.
func (r Record) Sub(name string) (Record, bool) {
	v, ok := r.values[name].(Record)
	return v, ok
}

func (r Record) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, name := range r.names {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s: %v", name, r.values[name])
	}
	sb.WriteByte('}')
	return sb.String()
}
