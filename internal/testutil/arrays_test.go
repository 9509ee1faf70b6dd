package testutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/fanout/internal/ndarray"
)

func TestValuesDiff(t *testing.T) {
	a := ndarray.FromSlice([]float64{0.1 + 0.2, math.NaN()})

	assert.Empty(t, ValuesDiff([]float64{0.3, math.NaN()}, a))
	assert.NotEmpty(t, ValuesDiff([]float64{0.3, 1}, a))
	assert.Equal(t, "array is nil", ValuesDiff(nil, nil))
	assert.Empty(t, ValuesDiff(nil, ndarray.Zeros(0)))
}

func TestAssertValues(t *testing.T) {
	assert.True(t, AssertValues(t, []float64{0, 1, 2}, ndarray.Arange(3)))
}
