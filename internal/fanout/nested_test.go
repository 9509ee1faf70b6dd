package fanout

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fanout/internal/ndarray"
)

func newCluster() *cluster {
	return &cluster{
		Mass:    ndarray.FromSlice([]float64{10, 11, 12, 13}),
		Members: newParticles([]float64{0, 1, 2, 3}, []float64{1, 2, 3, 4}),
	}
}

func TestNestedWhereRecurses(t *testing.T) {
	c := newCluster()
	members := c.Members

	out, err := clusterSchema.Bind(c).Where([]bool{true, false, true, false})
	require.NoError(t, err)

	assert.NotSame(t, c, out)
	assert.NotSame(t, members, out.Members)
	assert.Equal(t, []float64{10, 12}, out.Mass.Values())
	assert.Equal(t, []float64{0, 2}, out.Members.P1.Values())
	assert.Equal(t, []float64{1, 3}, out.Members.P2.Values())
	assert.Equal(t, "m", out.Members.Units)
	assert.Same(t, members, c.Members)
}

func TestNestedAtReturnsSubRecord(t *testing.T) {
	c := newCluster()

	rec, err := clusterSchema.Bind(c).At(1)
	require.NoError(t, err)

	mass, ok := rec.Float("mass")
	require.True(t, ok)
	assert.Equal(t, 11.0, mass)

	sub, ok := rec.Sub("members")
	require.True(t, ok)
	assert.Equal(t, "{p1: 1, p2: 2}", sub.String())
	assert.Equal(t, "{mass: 11, members: {p1: 1, p2: 2}}", rec.String())
}

func TestNestedInplaceViaStoreKeepsChildIdentity(t *testing.T) {
	c := newCluster()
	members, p1 := c.Members, c.Members.P1

	out, err := clusterSchema.Bind(c).InplaceViaStore().SliceBy(ndarray.S(1, 3))
	require.NoError(t, err)

	assert.Same(t, c, out)
	assert.Same(t, members, c.Members)
	assert.Same(t, p1, c.Members.P1)
	assert.Equal(t, []float64{11, 12}, c.Mass.Values())
	assert.Equal(t, []float64{1, 2}, c.Members.P1.Values())
	assert.False(t, c.Members.arrays().IsInplace(), "the child's own mode is untouched")
}

func TestNestedInplaceViaStoreChecksChildrenFirst(t *testing.T) {
	c := newCluster()
	view, err := c.Members.P2.SliceBy(ndarray.All())
	require.NoError(t, err)
	c.Members.P2 = view

	_, err = clusterSchema.Bind(c).InplaceViaStore().SliceBy(ndarray.S(1, 3))
	require.ErrorIs(t, err, ndarray.ErrNotOwner)

	assert.Equal(t, []float64{10, 11, 12, 13}, c.Mass.Values())
	assert.Equal(t, []float64{0, 1, 2, 3}, c.Members.P1.Values())
	assert.Equal(t, 4, c.Members.P2.Len())
}

func TestNestedInplaceViaAccessorReplacesChild(t *testing.T) {
	c := newCluster()
	members := c.Members

	_, err := clusterSchema.Bind(c).Inplace().IndexBy([]int{3, 0})
	require.NoError(t, err)

	assert.NotSame(t, members, c.Members)
	assert.Equal(t, []float64{3, 0}, c.Members.P1.Values())
	assert.Equal(t, []float64{0, 1, 2, 3}, members.P1.Values())
}

func TestNestedSeverAndCopy(t *testing.T) {
	c := newCluster()

	view, err := clusterSchema.Bind(c).IndexBy([]int{0, 1})
	require.NoError(t, err)
	clusterSchema.Bind(view).Sever()
	require.NoError(t, view.Members.P1.Set(99, 0))
	assert.Equal(t, []float64{0, 1, 2, 3}, c.Members.P1.Values())

	cp, err := clusterSchema.Bind(c).Copy()
	require.NoError(t, err)
	assert.False(t, cp.Members.P2.SharesBuffer(c.Members.P2))
	assert.True(t, cp.Members.P2.Equal(c.Members.P2))
}

func TestHostsAreIndependentAcrossGoroutines(t *testing.T) {
	var wg sync.WaitGroup
	results := make([][]float64, 8)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := newParticles([]float64{0, 1, 2, 3, 4}, []float64{1, 2, 3, 4, 5})
			out, err := h.arrays().Inplace().IndexBy([]int{i % 5})
			if err == nil {
				results[i] = out.P1.Values()
			}
		}()
	}
	wg.Wait()

	for i, got := range results {
		assert.Equal(t, []float64{float64(i % 5)}, got)
	}
}
