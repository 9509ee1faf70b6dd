package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fanout/internal/canon"
	"github.com/roach88/fanout/internal/fanout"
	"github.com/roach88/fanout/internal/ndarray"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry([]Decl{
		{
			Name:    "Swarm",
			Arrays:  []string{"mass"},
			Groups:  []GroupDecl{{Name: "particles", Kind: "Particles"}},
			SortKey: "mass",
		},
		{
			Name:    "Particles",
			Arrays:  []string{"p1", "p2"},
			SortKey: "p2",
			Meta:    map[string]string{"units": "m"},
		},
	})
	require.NoError(t, err)
	return r
}

func newParticles(t *testing.T, r *Registry, p1, p2 []float64) *Table {
	t.Helper()
	k, ok := r.Kind("Particles")
	require.True(t, ok)
	tbl, err := k.New(map[string]*ndarray.Array{
		"p1": ndarray.FromSlice(p1),
		"p2": ndarray.FromSlice(p2),
	}, nil, nil)
	require.NoError(t, err)
	return tbl
}

func newSwarm(t *testing.T, r *Registry) *Table {
	t.Helper()
	k, _ := r.Kind("Swarm")
	tbl, err := k.New(
		map[string]*ndarray.Array{"mass": ndarray.FromSlice([]float64{4, 3, 2, 1})},
		map[string]*Table{"particles": newParticles(t, r, []float64{0, 1, 2, 3}, []float64{1, 2, 3, 4})},
		nil,
	)
	require.NoError(t, err)
	return tbl
}

func TestRegistryNames(t *testing.T) {
	r := testRegistry(t)
	assert.Equal(t, []string{"Particles", "Swarm"}, r.Names())

	k, _ := r.Kind("Particles")
	assert.Equal(t, []string{"p1", "p2", "units"}, k.Schema().Fields())
}

func TestRegistryRejectsBadDecls(t *testing.T) {
	tests := []struct {
		name  string
		decls []Decl
		want  string
	}{
		{"unknown group kind", []Decl{{Name: "A", Groups: []GroupDecl{{Name: "g", Kind: "B"}}}}, `unknown kind "B"`},
		{"self nesting", []Decl{{Name: "A", Groups: []GroupDecl{{Name: "g", Kind: "A"}}}}, "contains itself"},
		{"duplicate kind", []Decl{{Name: "A"}, {Name: "A"}}, "declared twice"},
		{"duplicate attribute", []Decl{{Name: "A", Arrays: []string{"x"}, Meta: map[string]string{"x": ""}}}, `"x" declared twice`},
		{"bad sort key", []Decl{{Name: "A", Arrays: []string{"x"}, SortKey: "y"}}, "sort key"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.decls)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestNewValidatesIndexCompatibility(t *testing.T) {
	r := testRegistry(t)
	k, _ := r.Kind("Particles")

	_, err := k.New(map[string]*ndarray.Array{
		"p1": ndarray.Arange(3),
		"p2": ndarray.Arange(4),
	}, nil, nil)
	assert.ErrorContains(t, err, "p2 has length 4, expected 3")

	_, err = k.New(map[string]*ndarray.Array{"p1": ndarray.Arange(3)}, nil, nil)
	assert.ErrorContains(t, err, `missing array "p2"`)

	_, err = k.New(map[string]*ndarray.Array{
		"p1": ndarray.Arange(1), "p2": ndarray.Arange(1),
	}, nil, map[string]string{"color": "red"})
	assert.ErrorContains(t, err, "unknown metadata key")
}

func TestWhereCarriesMetadata(t *testing.T) {
	r := testRegistry(t)
	tbl := newParticles(t, r, []float64{0, 1, 2, 3, 4}, []float64{1, 2, 3, 4, 5})

	_, err := tbl.Fanout().SetAttributes(map[string]any{"units": "km"})
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.Version(), "metadata uses the internal setter")

	out, err := tbl.Where([]bool{false, true, false, true, false})
	require.NoError(t, err)
	p1, _ := out.Column("p1")
	p2, _ := out.Column("p2")
	assert.Equal(t, []float64{1, 3}, p1.Values())
	assert.Equal(t, []float64{2, 4}, p2.Values())
	assert.Equal(t, "km", out.Meta("units"))
	assert.Equal(t, 0, out.Version())
}

func TestVersionDistinguishesInplaceModes(t *testing.T) {
	r := testRegistry(t)

	a := newParticles(t, r, []float64{0, 1, 2}, []float64{1, 2, 3})
	_, err := a.Fanout().Inplace().SliceBy(ndarray.S(0, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, a.Version())

	b := newParticles(t, r, []float64{0, 1, 2}, []float64{1, 2, 3})
	_, err = b.Fanout().InplaceViaStore().SliceBy(ndarray.S(0, 2))
	require.NoError(t, err)
	assert.Equal(t, 0, b.Version())
	p1, _ := b.Column("p1")
	assert.Equal(t, []float64{0, 1}, p1.Values())
}

func TestQsortUsesSortKey(t *testing.T) {
	r := testRegistry(t)
	swarm := newSwarm(t, r)

	out, err := swarm.Fanout().Qsort()
	require.NoError(t, err)
	mass, _ := out.Column("mass")
	assert.Equal(t, []float64{1, 2, 3, 4}, mass.Values())
	members, _ := out.Group("particles")
	p1, _ := members.Column("p1")
	assert.Equal(t, []float64{3, 2, 1, 0}, p1.Values())
}

func TestQsortWithoutSortKey(t *testing.T) {
	r, err := NewRegistry([]Decl{{Name: "Plain", Arrays: []string{"x"}}})
	require.NoError(t, err)
	k, _ := r.Kind("Plain")
	tbl, err := k.New(map[string]*ndarray.Array{"x": ndarray.Arange(2)}, nil, nil)
	require.NoError(t, err)

	_, err = tbl.Fanout().Qsort()
	assert.True(t, fanout.IsMissingCapability(err))
}

func TestNestedAtAndStore(t *testing.T) {
	r := testRegistry(t)
	swarm := newSwarm(t, r)
	members, _ := swarm.Group("particles")

	rec, err := swarm.Fanout().At(2)
	require.NoError(t, err)
	assert.Equal(t, "{mass: 2, particles: {p1: 2, p2: 3}}", rec.String())

	_, err = swarm.Fanout().InplaceViaStore().Where([]bool{true, true, false, false})
	require.NoError(t, err)
	same, _ := swarm.Group("particles")
	assert.Same(t, members, same)
	p2, _ := same.Column("p2")
	assert.Equal(t, []float64{1, 2}, p2.Values())
	assert.Equal(t, 2, swarm.Len())
}

func TestSetGroupChecksKind(t *testing.T) {
	r := testRegistry(t)
	swarm := newSwarm(t, r)

	err := swarm.SetGroup("particles", swarm)
	assert.ErrorContains(t, err, "must be a Particles")
	assert.Error(t, swarm.SetColumn("nope", ndarray.Arange(4)))
}

func TestSnapshotIsCanonical(t *testing.T) {
	r := testRegistry(t)
	swarm := newSwarm(t, r)

	data, err := canon.Marshal(swarm.Snapshot())
	require.NoError(t, err)
	assert.Equal(t,
		`{"arrays":{"mass":[4,3,2,1]},"groups":{"particles":{"arrays":{"p1":[0,1,2,3],"p2":[1,2,3,4]},"groups":{},"kind":"Particles","meta":{"units":"m"}}},"kind":"Swarm","meta":{}}`,
		string(data))
}

func TestAttributeNamesAreNormalized(t *testing.T) {
	decomposed, composed := "e\u0301", "\u00e9"
	r, err := NewRegistry([]Decl{{Name: "Accents", Arrays: []string{decomposed, "b"}}})
	require.NoError(t, err)
	k, ok := r.Kind("Accents")
	require.True(t, ok)
	assert.Equal(t, []string{composed, "b"}, k.Decl().Arrays)

	tbl, err := k.New(map[string]*ndarray.Array{
		decomposed: ndarray.Arange(3),
		"b":        ndarray.FromSlice([]float64{5, 6, 7}),
	}, nil, nil)
	require.NoError(t, err)

	out, err := tbl.Where([]bool{false, true, false})
	require.NoError(t, err)
	col, ok := out.Column(decomposed)
	require.True(t, ok)
	assert.Equal(t, []float64{1}, col.Values())
	b, _ := out.Column("b")
	assert.Equal(t, []float64{6}, b.Values())

	_, err = tbl.Fanout().SetAttributes(map[string]any{decomposed: ndarray.FromSlice([]float64{9, 9, 9})})
	require.NoError(t, err)
	col, _ = tbl.Column(composed)
	assert.Equal(t, []float64{9, 9, 9}, col.Values())

	_, err = NewRegistry([]Decl{{Name: "Twice", Arrays: []string{decomposed, composed}}})
	assert.ErrorContains(t, err, "declared twice")
}

func TestRolledBackAccessorPassKeepsVersion(t *testing.T) {
	r := testRegistry(t)
	swarm := newSwarm(t, r)
	mass, _ := swarm.Column("mass")
	stranger := newSwarm(t, r)

	_, err := swarm.Fanout().ApplyMode(fanout.InplaceViaAccessor, func(v fanout.Value, _ bool) (fanout.Value, error) {
		if _, ok := v.Unwrap().(*Table); ok {
			return fanout.Box(stranger), nil
		}
		return v.Copy()
	})
	require.ErrorContains(t, err, "must be a Particles")

	got, _ := swarm.Column("mass")
	assert.Same(t, mass, got)
	assert.Equal(t, 0, swarm.Version())
}

func TestStoreIntoNestedViewLeavesTableUnchanged(t *testing.T) {
	r := testRegistry(t)
	swarm := newSwarm(t, r)
	particles, _ := swarm.Group("particles")
	p2, _ := particles.Column("p2")
	view, err := p2.SliceBy(ndarray.All())
	require.NoError(t, err)
	particles.columns["p2"] = view

	_, err = swarm.Fanout().InplaceViaStore().SliceBy(ndarray.S(0, 2))
	require.ErrorIs(t, err, ndarray.ErrNotOwner)

	mass, _ := swarm.Column("mass")
	assert.Equal(t, []float64{4, 3, 2, 1}, mass.Values())
	assert.Equal(t, 4, swarm.Len())
	assert.True(t, swarm.Fanout().IsInplace())
}
