package fanout

import (
	"errors"

	"github.com/roach88/fanout/internal/ndarray"
)

// particles is a flat host: two index-compatible arrays plus untagged state.
type particles struct {
	State
	P1, P2 *ndarray.Array
	Units  string

	publicSets int  // incremented by the public array setters
	rejectP2   bool // makes the p2 setter fail
}

func newParticles(p1, p2 []float64) *particles {
	return &particles{P1: ndarray.FromSlice(p1), P2: ndarray.FromSlice(p2), Units: "m"}
}

func newParticlesSchema() *Schema[*particles] {
	return MustSchema[*particles]("particles", cloneParticles,
		Array("p1",
			func(p *particles) *ndarray.Array { return p.P1 },
			func(p *particles, v *ndarray.Array) error {
				p.publicSets++
				p.P1 = v
				return nil
			}),
		Array("p2",
			func(p *particles) *ndarray.Array { return p.P2 },
			func(p *particles, v *ndarray.Array) error {
				if p.rejectP2 {
					return errors.New("p2 rejected")
				}
				p.publicSets++
				p.P2 = v
				return nil
			}),
		Attribute[*particles, string]("units",
			func(p *particles) string { return p.Units },
			nil,
		).WithInternalSetter(func(p *particles, v string) error {
			p.Units = v
			return nil
		}),
	)
}

var particlesSchema = newParticlesSchema()

func cloneParticles(src *particles, attrs *Attrs) (*particles, error) {
	out := &particles{P1: src.P1, P2: src.P2, Units: src.Units}
	if v, ok := attrs.Lookup("p1"); ok {
		out.P1 = v.(*ndarray.Array)
	}
	if v, ok := attrs.Lookup("p2"); ok {
		out.P2 = v.(*ndarray.Array)
	}
	return out, nil
}

func (p *particles) arrays() Proxy[*particles] {
	return particlesSchema.Bind(p)
}

func (p *particles) QsortIndices() ([]int, error) {
	return p.P1.Argsort()
}

// particles implements ArrayLike so it can be nested in cluster.

func (p *particles) Len() int { return p.arrays().Len() }

func (p *particles) IndexBy(indices []int) (*particles, error) { return p.arrays().IndexBy(indices) }

func (p *particles) Where(mask []bool) (*particles, error) { return p.arrays().Where(mask) }

func (p *particles) SliceBy(s ndarray.Slice) (*particles, error) { return p.arrays().SliceBy(s) }

func (p *particles) At(indices ...int) (any, error) { return p.arrays().At(indices...) }

func (p *particles) Copy() (*particles, error) { return p.arrays().Copy() }

func (p *particles) Sever() *particles { return p.arrays().Sever() }

func (p *particles) AssignFrom(src *particles) error { return p.arrays().AssignFrom(src) }

func (p *particles) CanAssign(src *particles) error { return p.arrays().CanAssign(src) }

// cluster nests a particles host next to its own array.
type cluster struct {
	State
	Mass    *ndarray.Array
	Members *particles
}

var clusterSchema = MustSchema[*cluster]("cluster",
	func(src *cluster, attrs *Attrs) (*cluster, error) {
		mass, err := Get[*ndarray.Array](attrs, "mass")
		if err != nil {
			return nil, err
		}
		members, err := Get[*particles](attrs, "members")
		if err != nil {
			return nil, err
		}
		return &cluster{Mass: mass, Members: members}, nil
	},
	Array("mass",
		func(c *cluster) *ndarray.Array { return c.Mass },
		func(c *cluster, v *ndarray.Array) error { c.Mass = v; return nil }),
	Array("members",
		func(c *cluster) *particles { return c.Members },
		func(c *cluster, v *particles) error { c.Members = v; return nil }),
)

// bare has no QsortIndices and one attribute that is not tagged.
type bare struct {
	State
	X *ndarray.Array
}

var bareSchema = MustSchema[*bare]("bare",
	func(src *bare, attrs *Attrs) (*bare, error) { return &bare{X: src.X}, nil },
	Array("x",
		func(b *bare) *ndarray.Array { return b.X },
		func(b *bare, v *ndarray.Array) error { b.X = v; return nil },
	).Untagged(),
)
