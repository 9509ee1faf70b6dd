package ndarray

import (
	"fmt"
	"math"
)

// End marks an open upper bound in a Slice.
const End = math.MaxInt

// Slice selects rows start, start+step, ... up to but excluding stop.
// Negative bounds count from the end and are clamped to the array. A zero
// Step means 1; negative steps are not supported.
type Slice struct {
	Start int
	Stop  int
	Step  int
}

// S returns the slice [start:stop].
func S(start, stop int) Slice {
	return Slice{Start: start, Stop: stop, Step: 1}
}

// SStep returns the slice [start:stop:step].
func SStep(start, stop, step int) Slice {
	return Slice{Start: start, Stop: stop, Step: step}
}

// All returns the slice [:].
func All() Slice {
	return Slice{Start: 0, Stop: End, Step: 1}
}

// Indices resolves s against an axis of length n.
func (s Slice) Indices(n int) ([]int, error) {
	step := s.Step
	if step == 0 {
		step = 1
	}
	if step < 0 {
		return nil, fmt.Errorf("%w: step %d", ErrInvalidSlice, s.Step)
	}
	start := clamp(s.Start, n)
	stop := clamp(s.Stop, n)

	var out []int
	for i := start; i < stop; i += step {
		out = append(out, i)
	}
	if out == nil {
		out = []int{}
	}
	return out, nil
}

func (s Slice) String() string {
	stop := fmt.Sprint(s.Stop)
	if s.Stop == End {
		stop = ""
	}
	if s.Step == 0 || s.Step == 1 {
		return fmt.Sprintf("%d:%s", s.Start, stop)
	}
	return fmt.Sprintf("%d:%s:%d", s.Start, stop, s.Step)
}

func clamp(i, n int) int {
	if i < 0 {
		i += n
		if i < 0 {
			return 0
		}
	}
	if i > n {
		return n
	}
	return i
}
