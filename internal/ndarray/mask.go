package ndarray

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// Mask evaluates pred on every element of a 1-D array.
func (a *Array) Mask(pred func(float64) bool) ([]bool, error) {
	if a.Ndim() != 1 {
		return nil, fmt.Errorf("%w: mask source must be 1-D, got %v", ErrShapeMismatch, a.shape)
	}
	vals := a.Values()
	mask := make([]bool, len(vals))
	for i, v := range vals {
		mask[i] = pred(v)
	}
	return mask, nil
}

// GreaterEqual returns the mask a >= v.
func (a *Array) GreaterEqual(v float64) ([]bool, error) {
	return a.Mask(func(x float64) bool { return x >= v })
}

// Less returns the mask a < v.
func (a *Array) Less(v float64) ([]bool, error) {
	return a.Mask(func(x float64) bool { return x < v })
}

// And combines two masks of equal length.
func And(x, y []bool) ([]bool, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("%w: mask lengths %d and %d", ErrShapeMismatch, len(x), len(y))
	}
	out := make([]bool, len(x))
	for i := range x {
		out[i] = x[i] && y[i]
	}
	return out, nil
}

// Argsort returns the permutation that sorts a 1-D array ascending.
// The sort is stable and places NaN last.
func (a *Array) Argsort() ([]int, error) {
	if a.Ndim() != 1 {
		return nil, fmt.Errorf("%w: argsort needs a 1-D array, got %v", ErrShapeMismatch, a.shape)
	}
	vals := a.Values()
	idx := make([]int, len(vals))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(i, j int) int {
		x, y := vals[i], vals[j]
		xn, yn := math.IsNaN(x), math.IsNaN(y)
		switch {
		case xn && yn:
			return 0
		case xn:
			return 1
		case yn:
			return -1
		}
		return cmp.Compare(x, y)
	})
	return idx, nil
}
