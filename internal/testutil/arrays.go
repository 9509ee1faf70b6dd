package testutil

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/roach88/fanout/internal/ndarray"
)

// FloatTolerance is the absolute and relative tolerance used when comparing
// array values.
const FloatTolerance = 1e-9

// ValuesDiff returns a readable diff between want and the values of got, or
// "" if they match within FloatTolerance. NaNs compare equal to NaNs.
func ValuesDiff(want []float64, got *ndarray.Array) string {
	if got == nil {
		return "array is nil"
	}
	return cmp.Diff(want, got.Values(),
		cmpopts.EquateApprox(FloatTolerance, FloatTolerance),
		cmpopts.EquateNaNs(),
		cmpopts.EquateEmpty(),
	)
}

// AssertValues fails t if got's values differ from want.
func AssertValues(t testing.TB, want []float64, got *ndarray.Array) bool {
	t.Helper()
	if diff := ValuesDiff(want, got); diff != "" {
		t.Errorf("array values mismatch (-want +got):\n%s", diff)
		return false
	}
	return true
}
