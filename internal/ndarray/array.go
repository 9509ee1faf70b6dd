package ndarray

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// buffer is the storage shared between an owner and its views.
type buffer struct {
	data []float64
}

// Array is a row-major float64 array.
//
// The zero value is not usable; construct arrays with FromSlice, FromRows,
// Zeros or Arange.
type Array struct {
	buf   *buffer
	pos   []int // element i lives at buf.data[pos[i]]; nil for owners
	shape []int
	base  *Array
}

// FromSlice returns a 1-D owner holding a copy of vals.
func FromSlice(vals []float64) *Array {
	return &Array{
		buf:   &buffer{data: slices.Clone(vals)},
		shape: []int{len(vals)},
	}
}

// FromRows returns a 2-D owner built from equally sized rows.
func FromRows(rows [][]float64) (*Array, error) {
	width := 0
	if len(rows) > 0 {
		width = len(rows[0])
	}
	data := make([]float64, 0, len(rows)*width)
	for i, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d elements, want %d", ErrShapeMismatch, i, len(row), width)
		}
		data = append(data, row...)
	}
	return &Array{buf: &buffer{data: data}, shape: []int{len(rows), width}}, nil
}

// Zeros returns an owner of the given shape filled with zeros.
// With no dimensions it returns an empty 1-D array.
func Zeros(shape ...int) *Array {
	if len(shape) == 0 {
		shape = []int{0}
	}
	return &Array{buf: &buffer{data: make([]float64, product(shape))}, shape: slices.Clone(shape)}
}

// Arange returns the 1-D owner [0, 1, ..., n-1].
func Arange(n int) *Array {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = float64(i)
	}
	return &Array{buf: &buffer{data: vals}, shape: []int{n}}
}

// Shape returns a copy of the array's dimensions.
func (a *Array) Shape() []int {
	return slices.Clone(a.shape)
}

// Ndim returns the number of dimensions.
func (a *Array) Ndim() int {
	return len(a.shape)
}

// Len returns the length along axis 0.
func (a *Array) Len() int {
	return a.shape[0]
}

// Size returns the total number of elements.
func (a *Array) Size() int {
	return product(a.shape)
}

// Base returns the owner a view was derived from, or nil for owners.
func (a *Array) Base() *Array {
	return a.base
}

// OwnsData reports whether a is not a view.
func (a *Array) OwnsData() bool {
	return a.pos == nil && a.base == nil
}

// SharesBuffer reports whether a and b read from the same storage.
func (a *Array) SharesBuffer(b *Array) bool {
	return a != nil && b != nil && a.buf == b.buf
}

// Values returns a row-major copy of the elements. Elements of a stale view
// read as NaN.
func (a *Array) Values() []float64 {
	n := a.Size()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v, err := a.elem(i)
		if err != nil {
			v = math.NaN()
		}
		out[i] = v
	}
	return out
}

// Get returns the element at a full index.
func (a *Array) Get(idx ...int) (float64, error) {
	if len(idx) != len(a.shape) {
		return 0, fmt.Errorf("%w: got %d indices for %d-dimensional array", ErrShapeMismatch, len(idx), len(a.shape))
	}
	flat, err := a.flatOffset(idx)
	if err != nil {
		return 0, err
	}
	return a.elem(flat)
}

// Set writes v at a full index. Writes through a view reach the parent.
func (a *Array) Set(v float64, idx ...int) error {
	if len(idx) != len(a.shape) {
		return fmt.Errorf("%w: got %d indices for %d-dimensional array", ErrShapeMismatch, len(idx), len(a.shape))
	}
	flat, err := a.flatOffset(idx)
	if err != nil {
		return err
	}
	p := a.position(flat)
	if p >= len(a.buf.data) {
		return ErrStaleView
	}
	a.buf.data[p] = v
	return nil
}

// IndexBy returns a view of the rows at indices, in the given order.
// Negative indices count from the end.
func (a *Array) IndexBy(indices []int) (*Array, error) {
	rows := make([]int, len(indices))
	for i, idx := range indices {
		r, err := normalize(idx, 0, a.Len())
		if err != nil {
			return nil, err
		}
		rows[i] = r
	}
	return a.rows(rows), nil
}

// Where returns a view of the rows whose mask entry is true.
func (a *Array) Where(mask []bool) (*Array, error) {
	if len(mask) != a.Len() {
		return nil, fmt.Errorf("%w: mask length %d, array length %d", ErrShapeMismatch, len(mask), a.Len())
	}
	rows := make([]int, 0, len(mask))
	for i, keep := range mask {
		if keep {
			rows = append(rows, i)
		}
	}
	return a.rows(rows), nil
}

// SliceBy returns a view of the rows selected by s.
func (a *Array) SliceBy(s Slice) (*Array, error) {
	rows, err := s.Indices(a.Len())
	if err != nil {
		return nil, err
	}
	return a.rows(rows), nil
}

// At indexes the leading axes. A full index returns a float64; a partial
// index returns a view of the remaining block.
func (a *Array) At(idx ...int) (any, error) {
	if len(idx) == 0 {
		return nil, fmt.Errorf("%w: at least one index is required", ErrShapeMismatch)
	}
	if len(idx) > len(a.shape) {
		return nil, fmt.Errorf("%w: %d indices for %d-dimensional array", ErrTooManyIndices, len(idx), len(a.shape))
	}
	if len(idx) == len(a.shape) {
		return a.Get(idx...)
	}

	rest := a.shape[len(idx):]
	block := product(rest)
	start := 0
	stride := a.Size()
	for axis, i := range idx {
		n, err := normalize(i, axis, a.shape[axis])
		if err != nil {
			return nil, err
		}
		stride /= a.shape[axis]
		start += n * stride
	}

	pos := make([]int, block)
	for k := range pos {
		pos[k] = a.position(start + k)
	}
	return &Array{buf: a.buf, pos: pos, shape: slices.Clone(rest), base: a.root()}, nil
}

// Copy returns an independent owner with the same shape and contents.
func (a *Array) Copy() (*Array, error) {
	vals := make([]float64, a.Size())
	for i := range vals {
		v, err := a.elem(i)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return &Array{buf: &buffer{data: vals}, shape: slices.Clone(a.shape)}, nil
}

// Sever detaches a view from its parent's storage in place and returns a.
// Owners are returned unchanged.
func (a *Array) Sever() *Array {
	if a.OwnsData() {
		return a
	}
	a.buf = &buffer{data: a.Values()}
	a.pos = nil
	a.base = nil
	return a
}

// CanAssign reports whether AssignFrom(src) would be accepted.
func (a *Array) CanAssign(src *Array) error {
	if !a.OwnsData() {
		return ErrNotOwner
	}
	return nil
}

// AssignFrom resizes a's buffer to src's shape and copies src's contents into
// it. The buffer identity is kept, so other arrays sharing it observe the new
// contents. a must own its data.
func (a *Array) AssignFrom(src *Array) error {
	if err := a.CanAssign(src); err != nil {
		return err
	}
	vals := make([]float64, src.Size())
	for i := range vals {
		v, err := src.elem(i)
		if err != nil {
			return err
		}
		vals[i] = v
	}

	if cap(a.buf.data) >= len(vals) {
		a.buf.data = a.buf.data[:len(vals)]
	} else {
		a.buf.data = make([]float64, len(vals))
	}
	copy(a.buf.data, vals)
	a.shape = slices.Clone(src.shape)
	return nil
}

// Reshape changes the dimensions in place. The total size must not change.
func (a *Array) Reshape(shape ...int) error {
	if len(shape) == 0 || product(shape) != a.Size() {
		return fmt.Errorf("%w: cannot reshape %v into %v", ErrShapeMismatch, a.shape, shape)
	}
	a.shape = slices.Clone(shape)
	return nil
}

// Equal reports whether a and b have the same shape and elements.
func (a *Array) Equal(b *Array) bool {
	if a == nil || b == nil {
		return a == b
	}
	return slices.Equal(a.shape, b.shape) && slices.Equal(a.Values(), b.Values())
}

// String renders the array with nested brackets per dimension.
func (a *Array) String() string {
	var sb strings.Builder
	vals := a.Values()
	var render func(dim, offset int)
	render = func(dim, offset int) {
		sb.WriteByte('[')
		stride := product(a.shape[dim+1:])
		for i := 0; i < a.shape[dim]; i++ {
			if i > 0 {
				sb.WriteByte(' ')
			}
			if dim == len(a.shape)-1 {
				fmt.Fprintf(&sb, "%g", vals[offset+i])
			} else {
				render(dim+1, offset+i*stride)
			}
		}
		sb.WriteByte(']')
	}
	render(0, 0)
	return sb.String()
}

// rows builds a view of the given axis-0 rows.
func (a *Array) rows(rows []int) *Array {
	width := a.rowWidth()
	pos := make([]int, 0, len(rows)*width)
	for _, r := range rows {
		for k := 0; k < width; k++ {
			pos = append(pos, a.position(r*width+k))
		}
	}
	shape := slices.Clone(a.shape)
	shape[0] = len(rows)
	return &Array{buf: a.buf, pos: pos, shape: shape, base: a.root()}
}

func (a *Array) root() *Array {
	if a.base != nil {
		return a.base
	}
	return a
}

func (a *Array) rowWidth() int {
	return product(a.shape[1:])
}

func (a *Array) position(flat int) int {
	if a.pos == nil {
		return flat
	}
	return a.pos[flat]
}

func (a *Array) elem(flat int) (float64, error) {
	p := a.position(flat)
	if p >= len(a.buf.data) {
		return 0, ErrStaleView
	}
	return a.buf.data[p], nil
}

func (a *Array) flatOffset(idx []int) (int, error) {
	flat := 0
	for axis, i := range idx {
		n, err := normalize(i, axis, a.shape[axis])
		if err != nil {
			return 0, err
		}
		flat = flat*a.shape[axis] + n
	}
	return flat, nil
}

func normalize(idx, axis, size int) (int, error) {
	n := idx
	if n < 0 {
		n += size
	}
	if n < 0 || n >= size {
		return 0, &IndexError{Index: idx, Axis: axis, Size: size}
	}
	return n, nil
}

func product(dims []int) int {
	p := 1
	for _, d := range dims {
		p *= d
	}
	return p
}
