package canon

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashWithDomainSeparatesDomains(t *testing.T) {
	data := []byte(`{"p1":[1,3]}`)
	a := HashWithDomain(DomainSnapshot, data)
	b := HashWithDomain(DomainStep, data)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, HashWithDomain(DomainSnapshot, data))
}

func TestSnapshotIDIgnoresKeyOrder(t *testing.T) {
	a := MustSnapshotID(map[string]any{"p1": []float64{1, 3}, "p2": []float64{2, 4}})
	b := MustSnapshotID(map[string]any{"p2": []float64{2, 4}, "p1": []float64{1, 3}})
	c := MustSnapshotID(map[string]any{"p1": []float64{1, 3}, "p2": []float64{2, 5}})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestStepIDChangesWithInput(t *testing.T) {
	snap := MustSnapshotID(map[string]any{"p1": []float64{0}})

	id1, err := StepID("run-1", 1, "where", snap)
	require.NoError(t, err)
	id2, err := StepID("run-1", 2, "where", snap)
	require.NoError(t, err)
	id3, err := StepID("run-2", 1, "where", snap)
	require.NoError(t, err)
	id4, err := StepID("run-1", 1, "index_by", snap)
	require.NoError(t, err)

	again, err := StepID("run-1", 1, "where", snap)
	require.NoError(t, err)
	assert.Equal(t, id1, again)
	assert.NotEqual(t, id1, id2)
	assert.NotEqual(t, id1, id3)
	assert.NotEqual(t, id1, id4)
}

func TestSnapshotIDRejectsNaN(t *testing.T) {
	_, err := SnapshotID(map[string]any{"p1": []float64{math.NaN()}})
	assert.ErrorContains(t, err, "SnapshotID")
}
