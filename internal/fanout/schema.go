package fanout

import (
	"fmt"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// TagArray is the tag group fan-out operations act on.
const TagArray = "array"

// CloneFunc builds a new host from src, with the tagged attributes taken from
// attrs and all other state carried over as the host sees fit.
type CloneFunc[H Host] func(src H, attrs *Attrs) (H, error)

// FieldDef is a field registration accepted by NewSchema.
type FieldDef[H Host] interface {
	build() (*field[H], error)
}

type field[H Host] struct {
	name        string
	get         func(H) any
	set         func(H, any) error
	setInternal func(H, any) error
	restore     func(H, any) error
	box         func(any) Value // nil for fields that cannot take part in fan-out
	tags        []string
}

func (f *field[H]) value(h H) Value {
	return f.box(f.get(h))
}

// ArrayField registers an ArrayLike attribute. It is tagged TagArray.
type ArrayField[H Host, T ArrayLike[T]] struct {
	name     string
	get      func(H) T
	set      func(H, T) error
	internal func(H, T) error
	restore  func(H, T) error
	untagged bool
}

// Array registers an array attribute with its getter and public setter.
// set may be nil for attributes that are only written through an internal
// setter.
func Array[H Host, T ArrayLike[T]](name string, get func(H) T, set func(H, T) error) ArrayField[H, T] {
	return ArrayField[H, T]{name: name, get: get, set: set}
}

// WithInternalSetter adds a setter that bypasses the public one. It is
// preferred whenever the engine or SetAttributes writes the attribute.
func (f ArrayField[H, T]) WithInternalSetter(fn func(H, T) error) ArrayField[H, T] {
	f.internal = fn
	return f
}

// WithRestorer adds a setter used only to put a previous value back when an
// in-place pass is rolled back. Without one the pass's own setter is used.
func (f ArrayField[H, T]) WithRestorer(fn func(H, T) error) ArrayField[H, T] {
	f.restore = fn
	return f
}

// Untagged registers the attribute without the array tag. Schema.Tag can add
// it later.
func (f ArrayField[H, T]) Untagged() ArrayField[H, T] {
	f.untagged = true
	return f
}

func (f ArrayField[H, T]) build() (*field[H], error) {
	if f.get == nil {
		return nil, fmt.Errorf("field %q: getter is required", f.name)
	}
	out := &field[H]{
		name: f.name,
		get:  func(h H) any { return f.get(h) },
		box:  func(v any) Value { return Box(v.(T)) },
		set:  typedSetter(f.name, f.set),
	}
	out.setInternal = typedSetter(f.name, f.internal)
	out.restore = typedSetter(f.name, f.restore)
	if !f.untagged {
		out.tags = []string{TagArray}
	}
	return out, nil
}

// AttrField registers a plain attribute that never takes part in fan-out but
// can be written with SetAttributes.
type AttrField[H Host, T any] struct {
	name     string
	get      func(H) T
	set      func(H, T) error
	internal func(H, T) error
}

// Attribute registers a plain attribute.
func Attribute[H Host, T any](name string, get func(H) T, set func(H, T) error) AttrField[H, T] {
	return AttrField[H, T]{name: name, get: get, set: set}
}

// WithInternalSetter adds a setter preferred over the public one.
func (f AttrField[H, T]) WithInternalSetter(fn func(H, T) error) AttrField[H, T] {
	f.internal = fn
	return f
}

func (f AttrField[H, T]) build() (*field[H], error) {
	if f.get == nil {
		return nil, fmt.Errorf("field %q: getter is required", f.name)
	}
	return &field[H]{
		name:        f.name,
		get:         func(h H) any { return f.get(h) },
		set:         typedSetter(f.name, f.set),
		setInternal: typedSetter(f.name, f.internal),
	}, nil
}

func typedSetter[H Host, T any](name string, fn func(H, T) error) func(H, any) error {
	if fn == nil {
		return nil
	}
	return func(h H, v any) error {
		tv, ok := v.(T)
		if !ok {
			var zero T
			return invalidArgument("set", name, "value of type %T is not assignable to %T", v, zero)
		}
		return fn(h, tv)
	}
}

// Schema is the static registration of a host type: its attributes in
// declaration order, their tags, and the clone factory.
type Schema[H Host] struct {
	name   string
	clone  CloneFunc[H]
	fields []*field[H]
	index  map[string]*field[H]

	mu   sync.RWMutex
	tags map[string]map[string]bool // field -> group -> member
}

// NewSchema builds a schema. Field names are NFC-normalized and must be
// unique.
func NewSchema[H Host](name string, clone CloneFunc[H], defs ...FieldDef[H]) (*Schema[H], error) {
	if clone == nil {
		return nil, fmt.Errorf("schema %s: clone factory is required", name)
	}
	s := &Schema[H]{
		name:  name,
		clone: clone,
		index: make(map[string]*field[H], len(defs)),
		tags:  make(map[string]map[string]bool, len(defs)),
	}
	for _, def := range defs {
		f, err := def.build()
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
		f.name = norm.NFC.String(f.name)
		if f.name == "" {
			return nil, fmt.Errorf("schema %s: field name is required", name)
		}
		if _, dup := s.index[f.name]; dup {
			return nil, fmt.Errorf("schema %s: duplicate field %q", name, f.name)
		}
		s.fields = append(s.fields, f)
		s.index[f.name] = f
		s.tags[f.name] = make(map[string]bool)
		for _, g := range f.tags {
			s.tags[f.name][g] = true
		}
	}
	return s, nil
}

// MustSchema is like NewSchema but panics on error.
// Use for package-level schema variables.
func MustSchema[H Host](name string, clone CloneFunc[H], defs ...FieldDef[H]) *Schema[H] {
	s, err := NewSchema(name, clone, defs...)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the schema name.
func (s *Schema[H]) Name() string {
	return s.name
}

// Fields returns every registered field name in declaration order.
func (s *Schema[H]) Fields() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.name
	}
	return names
}

// Tag adds field to group. Only array fields can join TagArray. Hosts that
// already cached their tagged attributes see the change after
// ClearTaggedAttributes.
func (s *Schema[H]) Tag(name, group string) error {
	f, ok := s.index[norm.NFC.String(name)]
	if !ok {
		return missingCapability("tag", name, "no such attribute")
	}
	if group == TagArray && f.box == nil {
		return invalidArgument("tag", name, "attribute is not array-like")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags[f.name][group] = true
	return nil
}

// Untag removes field from group.
func (s *Schema[H]) Untag(name, group string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if groups, ok := s.tags[norm.NFC.String(name)]; ok {
		delete(groups, group)
	}
}

// Bind returns the Proxy for h.
func (s *Schema[H]) Bind(h H) Proxy[H] {
	return Proxy[H]{schema: s, host: h}
}

func (s *Schema[H]) tagged(group string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var names []string
	for _, f := range s.fields {
		if s.tags[f.name][group] {
			names = append(names, f.name)
		}
	}
	if names == nil {
		names = []string{}
	}
	return names
}

func (s *Schema[H]) field(name string) (*field[H], bool) {
	f, ok := s.index[norm.NFC.String(name)]
	return f, ok
}
