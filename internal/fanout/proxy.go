package fanout

import (
	"slices"
)

// Transform computes the new value of one attribute. inplace reports whether
// the result will be written back into the host. A transform must depend only
// on the value it is given.
type Transform func(v Value, inplace bool) (Value, error)

// Proxy binds a host to its schema and exposes the fan-out operations.
// It is a small value; create one with Schema.Bind whenever needed.
type Proxy[H Host] struct {
	schema *Schema[H]
	host   H
}

// Host returns the bound host.
func (p Proxy[H]) Host() H {
	return p.host
}

// Schema returns the schema the proxy was bound with.
func (p Proxy[H]) Schema() *Schema[H] {
	return p.schema
}

func (p Proxy[H]) state() *State {
	return p.host.FanoutState()
}

// ListTaggedAttributes returns the names of the array-tagged attributes, in
// declaration order. The list is computed once per host and cached until
// ClearTaggedAttributes.
func (p Proxy[H]) ListTaggedAttributes() []string {
	st := p.state()
	if !st.cached {
		st.tagged = p.schema.tagged(TagArray)
		st.cached = true
	}
	return slices.Clone(st.tagged)
}

// ClearTaggedAttributes drops the cached list.
func (p Proxy[H]) ClearTaggedAttributes() {
	st := p.state()
	st.tagged = nil
	st.cached = false
}

// SetInplaceMode sets the mode the next fan-out pass uses. With no argument
// it selects InplaceViaAccessor.
func (p Proxy[H]) SetInplaceMode(modes ...Mode) error {
	mode := InplaceViaAccessor
	switch len(modes) {
	case 0:
	case 1:
		mode = modes[0]
	default:
		return invalidArgument("set_inplace_mode", "", "expected at most one mode, got %d", len(modes))
	}
	if !mode.valid() {
		return invalidArgument("set_inplace_mode", "", "unrecognized in-place mode %s", mode)
	}
	p.state().mode = mode
	return nil
}

// Inplace makes the next pass write through the attribute setters.
func (p Proxy[H]) Inplace() Proxy[H] {
	return p.InplaceViaAccessor()
}

// InplaceViaAccessor makes the next pass write through the attribute setters.
func (p Proxy[H]) InplaceViaAccessor() Proxy[H] {
	p.state().mode = InplaceViaAccessor
	return p
}

// InplaceViaStore makes the next pass copy into the existing storage.
func (p Proxy[H]) InplaceViaStore() Proxy[H] {
	p.state().mode = InplaceViaStore
	return p
}

// IsInplace reports whether an in-place mode is pending, without consuming it.
func (p Proxy[H]) IsInplace() bool {
	return p.state().mode != NotInplace
}

// Mode returns the pending mode without consuming it.
func (p Proxy[H]) Mode() Mode {
	return p.state().mode
}

// Apply runs t over every tagged attribute and commits the results according
// to the pending mode, which it consumes. If t fails for any attribute, or the
// commit is refused, nothing is committed and the mode stays pending.
func (p Proxy[H]) Apply(t Transform) (H, error) {
	return p.apply("apply", t)
}

// ApplyMode is like Apply with an explicit mode. The pending mode is neither
// read nor consumed.
func (p Proxy[H]) ApplyMode(mode Mode, t Transform) (H, error) {
	if !mode.valid() {
		var zero H
		return zero, &Error{Code: ErrCodeUnknownMode, Op: "apply", Message: "unrecognized in-place mode " + mode.String()}
	}
	attrs, err := p.transform(mode, t)
	if err != nil {
		var zero H
		return zero, err
	}
	return p.commit("apply", mode, attrs)
}

func (p Proxy[H]) apply(op string, t Transform) (H, error) {
	st := p.state()
	mode := st.mode
	attrs, err := p.transform(mode, t)
	if err != nil {
		var zero H
		return zero, err
	}
	st.mode = NotInplace
	out, err := p.commit(op, mode, attrs)
	if err != nil {
		st.mode = mode
	}
	return out, err
}

// transform reads every tagged attribute first, then applies t to each.
func (p Proxy[H]) transform(mode Mode, t Transform) (*Attrs, error) {
	names := p.ListTaggedAttributes()
	current := make([]Value, len(names))
	for i, name := range names {
		f, _ := p.schema.field(name)
		current[i] = f.value(p.host)
	}

	attrs := newAttrs(len(names))
	for i, name := range names {
		v, err := t(current[i], mode != NotInplace)
		if err != nil {
			return nil, err
		}
		attrs.put(name, v)
	}
	return attrs, nil
}

func (p Proxy[H]) commit(op string, mode Mode, attrs *Attrs) (H, error) {
	switch mode {
	case NotInplace:
		return p.cloneWith(attrs)
	case InplaceViaAccessor:
		vals := make([]any, len(attrs.names))
		for i, name := range attrs.names {
			vals[i] = attrs.values[name].Unwrap()
		}
		if err := p.write(op, attrs.names, vals); err != nil {
			var zero H
			return zero, err
		}
		return p.host, nil
	case InplaceViaStore:
		for _, name := range attrs.names {
			attrs.values[name].Sever()
		}
		if err := p.assignAll(attrs); err != nil {
			var zero H
			return zero, err
		}
		return p.host, nil
	default:
		var zero H
		return zero, &Error{Code: ErrCodeUnknownMode, Op: op, Message: "unrecognized in-place mode " + mode.String()}
	}
}

func (p Proxy[H]) cloneWith(attrs *Attrs) (H, error) {
	out, err := p.schema.clone(p.host, attrs)
	if err != nil {
		var zero H
		return zero, err
	}
	out.FanoutState().reset()
	return out, nil
}

// assignAll copies every value in attrs into the host's current storage.
// Every target is checked before the first write, so a refused attribute
// leaves the others untouched.
func (p Proxy[H]) assignAll(attrs *Attrs) error {
	targets, err := p.assignTargets(attrs)
	if err != nil {
		return err
	}
	for i, name := range attrs.names {
		if err := targets[i].AssignFrom(attrs.values[name]); err != nil {
			return err
		}
	}
	return nil
}

func (p Proxy[H]) assignTargets(attrs *Attrs) ([]Value, error) {
	targets := make([]Value, len(attrs.names))
	for i, name := range attrs.names {
		f, ok := p.schema.field(name)
		if !ok || f.box == nil {
			return nil, missingCapability("assign", name, "no such array attribute")
		}
		targets[i] = f.value(p.host)
		if err := targets[i].CanAssign(attrs.values[name]); err != nil {
			return nil, err
		}
	}
	return targets, nil
}

// write stores vals[i] into names[i] through the resolved setters. All setters
// are resolved before the first write; if a write fails, attributes already
// written get their previous values back through the field's restorer, or
// the same setter when it has none.
func (p Proxy[H]) write(op string, names []string, vals []any) error {
	setters := make([]func(H, any) error, len(names))
	for i, name := range names {
		set, err := p.resolveSetter(op, name)
		if err != nil {
			return err
		}
		setters[i] = set
	}

	type written struct {
		set  func(H, any) error
		prev any
	}
	done := make([]written, 0, len(names))
	for i, name := range names {
		f, _ := p.schema.field(name)
		prev := f.get(p.host)
		if err := setters[i](p.host, vals[i]); err != nil {
			for j := len(done) - 1; j >= 0; j-- {
				_ = done[j].set(p.host, done[j].prev)
			}
			return err
		}
		restore := setters[i]
		if f.restore != nil {
			restore = f.restore
		}
		done = append(done, written{set: restore, prev: prev})
	}
	return nil
}

// resolveSetter returns the setter for name, preferring the internal setter,
// and caches it on the host.
func (p Proxy[H]) resolveSetter(op, name string) (func(H, any) error, error) {
	st := p.state()
	if cached, ok := st.setters[name]; ok {
		return cached.(func(H, any) error), nil
	}

	f, ok := p.schema.field(name)
	if !ok {
		return nil, missingCapability(op, name, "no such attribute")
	}
	set := f.setInternal
	if set == nil {
		set = f.set
	}
	if set == nil {
		return nil, missingCapability(op, name, "attribute has no setter")
	}

	if st.setters == nil {
		st.setters = make(map[string]any)
	}
	st.setters[name] = set
	return set, nil
}
