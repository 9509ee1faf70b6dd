package fanout

import (
	"slices"

	"github.com/roach88/fanout/internal/ndarray"
)

// QsortIndexer is implemented by hosts that designate a sort key.
// QsortIndices returns the permutation that sorts the host by that key.
type QsortIndexer interface {
	QsortIndices() ([]int, error)
}

// IndexBy selects rows by position from every tagged attribute.
func (p Proxy[H]) IndexBy(indices []int) (H, error) {
	return p.apply("index_by", func(v Value, _ bool) (Value, error) {
		return v.IndexBy(indices)
	})
}

// Where keeps the rows whose mask entry is true in every tagged attribute.
func (p Proxy[H]) Where(mask []bool) (H, error) {
	return p.apply("where", func(v Value, _ bool) (Value, error) {
		return v.Where(mask)
	})
}

// SliceBy selects a range of rows from every tagged attribute.
func (p Proxy[H]) SliceBy(s ndarray.Slice) (H, error) {
	return p.apply("slice_by", func(v Value, _ bool) (Value, error) {
		return v.SliceBy(s)
	})
}

// Copy returns a new host holding deep copies of every tagged attribute.
// With an in-place mode pending it consumes the mode and returns the host
// itself.
func (p Proxy[H]) Copy() (H, error) {
	st := p.state()
	if st.mode != NotInplace {
		st.mode = NotInplace
		return p.host, nil
	}
	attrs, err := p.transform(NotInplace, func(v Value, _ bool) (Value, error) {
		return v.Copy()
	})
	if err != nil {
		var zero H
		return zero, err
	}
	return p.cloneWith(attrs)
}

// Sever detaches every tagged attribute from any storage it shares with
// another array. It ignores and keeps the pending mode.
func (p Proxy[H]) Sever() H {
	for _, name := range p.ListTaggedAttributes() {
		f, _ := p.schema.field(name)
		f.value(p.host).Sever()
	}
	return p.host
}

// At reads the element (or sub-array) at indices from every tagged attribute.
// It never touches the pending mode.
func (p Proxy[H]) At(indices ...int) (Record, error) {
	names := p.ListTaggedAttributes()
	values := make(map[string]any, len(names))
	for _, name := range names {
		f, _ := p.schema.field(name)
		v, err := f.value(p.host).At(indices...)
		if err != nil {
			return Record{}, err
		}
		values[name] = v
	}
	return Record{names: names, values: values}, nil
}

// Qsort reorders the host by the permutation from its QsortIndices method.
func (p Proxy[H]) Qsort() (H, error) {
	indexer, ok := any(p.host).(QsortIndexer)
	if !ok {
		var zero H
		return zero, missingCapability("qsort", "", "%s does not provide QsortIndices", p.schema.name)
	}
	indices, err := indexer.QsortIndices()
	if err != nil {
		var zero H
		return zero, err
	}
	return p.IndexBy(indices)
}

// QsortOn reorders the host by the stable ascending order of key.
func (p Proxy[H]) QsortOn(key *ndarray.Array) (H, error) {
	indices, err := key.Argsort()
	if err != nil {
		var zero H
		return zero, err
	}
	return p.IndexBy(indices)
}

type boundKind int

const (
	boundMin boundKind = iota
	boundMax
)

// Bound is one side of a ClipOn interval.
type Bound struct {
	kind  boundKind
	value float64
}

// AtLeast keeps rows whose value is >= min.
func AtLeast(min float64) Bound {
	return Bound{kind: boundMin, value: min}
}

// Below keeps rows whose value is < max.
func Below(max float64) Bound {
	return Bound{kind: boundMax, value: max}
}

// ClipOn keeps the rows whose entry in values lies in the half-open interval
// described by bounds. At least one bound is required.
func (p Proxy[H]) ClipOn(values *ndarray.Array, bounds ...Bound) (H, error) {
	var zero H
	if len(bounds) == 0 {
		return zero, invalidArgument("clip_on", "", "at least one bound required")
	}

	var mask []bool
	for _, b := range bounds {
		var (
			m   []bool
			err error
		)
		if b.kind == boundMin {
			m, err = values.GreaterEqual(b.value)
		} else {
			m, err = values.Less(b.value)
		}
		if err != nil {
			return zero, err
		}
		if mask == nil {
			mask = m
			continue
		}
		if mask, err = ndarray.And(mask, m); err != nil {
			return zero, err
		}
	}
	return p.Where(mask)
}

// SetAttributes writes each value through the attribute's resolved setter,
// in name order. Setters are resolved (and cached) before anything is
// written.
func (p Proxy[H]) SetAttributes(values map[string]any) (H, error) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	slices.Sort(names)

	vals := make([]any, len(names))
	for i, name := range names {
		vals[i] = values[name]
	}
	if err := p.write("set_attributes", names, vals); err != nil {
		var zero H
		return zero, err
	}
	return p.host, nil
}

// Len returns the length of the first tagged attribute, or 0 if none is
// tagged.
func (p Proxy[H]) Len() int {
	names := p.ListTaggedAttributes()
	if len(names) == 0 {
		return 0
	}
	f, _ := p.schema.field(names[0])
	return f.value(p.host).Len()
}

// AssignFrom copies src's tagged attributes into the host's existing storage.
// Composite hosts use it to implement ArrayLike.AssignFrom.
func (p Proxy[H]) AssignFrom(src H) error {
	names := p.ListTaggedAttributes()
	attrs := newAttrs(len(names))
	for _, name := range names {
		f, _ := p.schema.field(name)
		attrs.put(name, f.value(src))
	}
	return p.assignAll(attrs)
}

// CanAssign reports whether AssignFrom(src) would succeed, checking every
// tagged attribute. Composite hosts use it to implement AssignChecker.
func (p Proxy[H]) CanAssign(src H) error {
	names := p.ListTaggedAttributes()
	attrs := newAttrs(len(names))
	for _, name := range names {
		f, _ := p.schema.field(name)
		attrs.put(name, f.value(src))
	}
	_, err := p.assignTargets(attrs)
	return err
}
