package fanout

import (
	"fmt"

	"github.com/roach88/fanout/internal/ndarray"
)

// ArrayLike is what a tagged attribute must support. T is the attribute's own
// type, so operations return the same concrete type they were called on.
// *ndarray.Array implements ArrayLike[*ndarray.Array]; composite hosts
// implement it by delegating to their Proxy.
type ArrayLike[T any] interface {
	Len() int
	IndexBy(indices []int) (T, error)
	Where(mask []bool) (T, error)
	SliceBy(s ndarray.Slice) (T, error)
	At(indices ...int) (any, error)
	Copy() (T, error)
	Sever() T
	AssignFrom(src T) error
}

// AssignChecker is implemented by ArrayLike types whose AssignFrom can be
// refused, such as views that do not own their storage. Types without it are
// assumed to accept any source of their own type.
type AssignChecker[T any] interface {
	CanAssign(src T) error
}

// Value is the type-erased form of an ArrayLike attribute that transforms
// receive and return.
type Value interface {
	Len() int
	IndexBy(indices []int) (Value, error)
	Where(mask []bool) (Value, error)
	SliceBy(s ndarray.Slice) (Value, error)
	At(indices ...int) (any, error)
	Copy() (Value, error)
	Sever()
	AssignFrom(src Value) error

	// CanAssign reports whether AssignFrom(src) would succeed without
	// writing anything.
	CanAssign(src Value) error

	// Unwrap returns the underlying ArrayLike.
	Unwrap() any
}

// Box wraps an ArrayLike as a Value.
func Box[T ArrayLike[T]](v T) Value {
	return boxed[T]{v: v}
}

type boxed[T ArrayLike[T]] struct {
	v T
}

func (b boxed[T]) Len() int {
	return b.v.Len()
}

func (b boxed[T]) IndexBy(indices []int) (Value, error) {
	out, err := b.v.IndexBy(indices)
	if err != nil {
		return nil, err
	}
	return boxed[T]{v: out}, nil
}

func (b boxed[T]) Where(mask []bool) (Value, error) {
	out, err := b.v.Where(mask)
	if err != nil {
		return nil, err
	}
	return boxed[T]{v: out}, nil
}

func (b boxed[T]) SliceBy(s ndarray.Slice) (Value, error) {
	out, err := b.v.SliceBy(s)
	if err != nil {
		return nil, err
	}
	return boxed[T]{v: out}, nil
}

func (b boxed[T]) At(indices ...int) (any, error) {
	return b.v.At(indices...)
}

func (b boxed[T]) Copy() (Value, error) {
	out, err := b.v.Copy()
	if err != nil {
		return nil, err
	}
	return boxed[T]{v: out}, nil
}

func (b boxed[T]) Sever() {
	b.v.Sever()
}

func (b boxed[T]) AssignFrom(src Value) error {
	v, err := b.source(src)
	if err != nil {
		return err
	}
	return b.v.AssignFrom(v)
}

func (b boxed[T]) CanAssign(src Value) error {
	v, err := b.source(src)
	if err != nil {
		return err
	}
	if c, ok := any(b.v).(AssignChecker[T]); ok {
		return c.CanAssign(v)
	}
	return nil
}

func (b boxed[T]) source(src Value) (T, error) {
	v, ok := src.Unwrap().(T)
	if !ok {
		return v, fmt.Errorf("cannot assign %T to %T", src.Unwrap(), b.v)
	}
	return v, nil
}

func (b boxed[T]) Unwrap() any {
	return b.v
}
