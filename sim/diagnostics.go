package sim

import (
	"gonum.org/v1/gonum/floats"

	log "github.com/sirupsen/logrus"

	"github.com/stefano-meschiari/gandalf/sim/particle"
	"github.com/stefano-meschiari/gandalf/sim/sph"
)

// Diagnostics tallies the conserved quantities of a run at one instant:
// total energy split into kinetic, thermal and gravitational parts,
// linear and angular momentum, and the net force sum. Workers compute
// partial tallies over their owned particles; rank 0 merges them and
// counts the replicated stars once.
type Diagnostics struct {
	Time  float64
	NSph  int
	NStar int

	Mass   float64
	Ekin   float64
	Etherm float64
	Egrav  float64
	Etot   float64

	Mom    [3]float64
	AngMom [3]float64
	Force  [3]float64
}

// Collect tallies the live owned particles, plus every star when
// withStars is set. Gravitational energy pairs are counted once via the
// half potential sum; with self-gravity off the potentials are zero and
// the term vanishes.
func Collect(ndim int, time float64, f *sph.Fluid, stars []particle.Star, withStars bool) Diagnostics {
	d := Diagnostics{Time: time}

	n := 0
	for i := 0; i < f.NSph; i++ {
		if !f.Parts[i].Dead {
			n++
		}
	}
	if withStars {
		n += len(stars)
	}
	mass := make([]float64, 0, n)
	ekin := make([]float64, 0, n)
	eth := make([]float64, 0, n)
	epot := make([]float64, 0, n)

	for i := 0; i < f.NSph; i++ {
		p := &f.Parts[i]
		if p.Dead {
			continue
		}
		d.NSph++
		v2 := particle.Dot(p.V, p.V, ndim)
		mass = append(mass, p.M)
		ekin = append(ekin, 0.5*p.M*v2)
		eth = append(eth, p.M*p.U)
		epot = append(epot, p.M*p.GPot)
		d.addVectors(ndim, p.M, p.R, p.V, p.A)
	}
	if withStars {
		for i := range stars {
			s := &stars[i]
			d.NStar++
			v2 := particle.Dot(s.V, s.V, ndim)
			mass = append(mass, s.M)
			ekin = append(ekin, 0.5*s.M*v2)
			epot = append(epot, s.M*s.GPot)
			d.addVectors(ndim, s.M, s.R, s.V, s.A)
		}
	}

	d.Mass = floats.Sum(mass)
	d.Ekin = floats.Sum(ekin)
	d.Etherm = floats.Sum(eth)
	d.Egrav = -0.5 * floats.Sum(epot)
	d.Etot = d.Ekin + d.Etherm + d.Egrav
	return d
}

func (d *Diagnostics) addVectors(ndim int, m float64, r, v, a particle.Vec) {
	for k := 0; k < ndim; k++ {
		d.Mom[k] += m * v[k]
		d.Force[k] += m * a[k]
	}
	if ndim == 3 {
		d.AngMom[0] += m * (r[1]*v[2] - r[2]*v[1])
		d.AngMom[1] += m * (r[2]*v[0] - r[0]*v[2])
	}
	if ndim >= 2 {
		d.AngMom[2] += m * (r[0]*v[1] - r[1]*v[0])
	}
}

// Add merges another partial tally into d. Time is taken from d.
func (d *Diagnostics) Add(o Diagnostics) {
	d.NSph += o.NSph
	d.NStar += o.NStar
	d.Mass += o.Mass
	d.Ekin += o.Ekin
	d.Etherm += o.Etherm
	d.Egrav += o.Egrav
	d.Etot += o.Etot
	for k := 0; k < 3; k++ {
		d.Mom[k] += o.Mom[k]
		d.AngMom[k] += o.AngMom[k]
		d.Force[k] += o.Force[k]
	}
}

// Fields renders the tally for one structured log line.
func (d Diagnostics) Fields() log.Fields {
	return log.Fields{
		"t":      d.Time,
		"nsph":   d.NSph,
		"nstar":  d.NStar,
		"mass":   d.Mass,
		"etot":   d.Etot,
		"ekin":   d.Ekin,
		"etherm": d.Etherm,
		"egrav":  d.Egrav,
		"mom":    vecNorm(d.Mom),
		"angmom": vecNorm(d.AngMom),
	}
}

func vecNorm(v [3]float64) float64 {
	return floats.Norm(v[:], 2)
}
