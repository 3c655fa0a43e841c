// Package sink converts collapsing gas into accreting point masses.
// A sink is a star particle with an accretion radius attached: once a
// fluid particle passes the density and convergence tests at a potential
// minimum it becomes a star, and from then on it swallows gas that falls
// inside its radius.
package sink

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/stefano-meschiari/gandalf/sim/particle"
	"github.com/stefano-meschiari/gandalf/sim/sph"
)

// Mode selects how in-radius gas transfers onto the sink.
type Mode uint8

const (
	// Smooth drains donors over the local dynamical time.
	Smooth Mode = iota
	// Sudden absorbs whole particles as soon as they cross the radius.
	Sudden
)

func (m Mode) String() string {
	switch m {
	case Smooth:
		return "smooth"
	case Sudden:
		return "sudden"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// ParseMode maps a configuration tag to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "smooth", "":
		return Smooth, nil
	case "sudden":
		return Sudden, nil
	}
	return Smooth, fmt.Errorf("sink: unknown accretion mode %q", s)
}

// Options configures sink creation and accretion.
type Options struct {
	NDim       int
	Mode       Mode
	RhoSink    float64 // conversion density threshold
	RadiusMult float64 // sink radius in units of the candidate's h
	MinMass    float64 // donors drained below this mass are absorbed whole
}

func (o Options) validate() error {
	if o.NDim < 1 || o.NDim > 3 {
		return fmt.Errorf("sink: ndim must be 1, 2 or 3, got %d", o.NDim)
	}
	if o.RhoSink <= 0.0 {
		return fmt.Errorf("sink: rho_sink must be positive, got %v", o.RhoSink)
	}
	if o.RadiusMult <= 0.0 {
		return fmt.Errorf("sink: sink_radius must be positive, got %v", o.RadiusMult)
	}
	if o.MinMass < 0.0 {
		return fmt.Errorf("sink: min_mass must be non-negative, got %v", o.MinMass)
	}
	return nil
}

// Sink ties a star to its accretion radius and accounting.
type Sink struct {
	StarID int // index into the shared star array
	Radius float64

	MAcc      float64 // accreted gas mass
	UAcc      float64 // internal energy carried in by accreted gas
	NAbsorbed int     // particles swallowed whole
}

// Manager owns the sink records of one worker. Stars converted from gas
// are appended to the shared star array; the manager references them by
// index only.
type Manager struct {
	opts  Options
	Sinks []Sink
}

// New builds a sink manager.
func New(opts Options) (*Manager, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Manager{opts: opts}, nil
}

// SearchNew scans the owned particles for a sink candidate: a potential
// minimum above the density threshold in converging flow, outside every
// existing sink. At most one sink forms per call, from the densest
// candidate; the winning particle is converted to a star in place and
// marked dead. Returns true when a sink formed.
//
// Copies must have been cleared: conversion precedes compaction.
func (m *Manager) SearchNew(f *sph.Fluid, stars *[]particle.Star) bool {
	best := -1
	for i := 0; i < f.NSph; i++ {
		p := &f.Parts[i]
		if p.Dead || !p.PotMin || p.SinkID != -1 {
			continue
		}
		if p.Rho < m.opts.RhoSink || p.DivV >= 0.0 {
			continue
		}
		if best == -1 || p.Rho > f.Parts[best].Rho {
			best = i
		}
	}
	if best == -1 {
		return false
	}

	p := &f.Parts[best]
	st := particle.Star{
		R: p.R, V: p.V, A: p.A,
		R0: p.R, V0: p.V, A0: p.A,
		M: p.M, H: p.H,
		Level: p.Level, NStep: p.NStep, NLast: p.NLast,
	}
	*stars = append(*stars, st)
	m.Sinks = append(m.Sinks, Sink{
		StarID: len(*stars) - 1,
		Radius: m.opts.RadiusMult * p.H,
	})
	p.Dead = true

	logrus.WithFields(logrus.Fields{
		"sink":   len(m.Sinks) - 1,
		"rho":    p.Rho,
		"radius": m.opts.RadiusMult * p.H,
		"mass":   p.M,
	}).Info("sink formed")
	return true
}

// Accrete transfers gas onto every sink: whole particles in sudden mode,
// the dynamical-time fraction in smooth mode. Donor particles keep their
// SinkID tag while inside the radius and are marked dead once fully
// drained; mass, momentum and internal energy move conservatively onto
// the star. Returns the number of particles absorbed whole.
func (m *Manager) Accrete(dt float64, f *sph.Fluid, stars []particle.Star) int {
	for i := 0; i < f.NSph; i++ {
		f.Parts[i].SinkID = -1
	}

	absorbed := 0
	for s := range m.Sinks {
		snk := &m.Sinks[s]
		st := &stars[snk.StarID]

		// The smooth drain fraction is shared by every donor of this sink.
		frac := 1.0
		if m.opts.Mode == Smooth {
			tdyn := math.Sqrt(snk.Radius * snk.Radius * snk.Radius / st.M)
			frac = math.Min(1.0, dt/tdyn)
		}

		for i := 0; i < f.NSph; i++ {
			p := &f.Parts[i]
			if p.Dead {
				continue
			}
			var dr particle.Vec
			for k := 0; k < m.opts.NDim; k++ {
				dr[k] = p.R[k] - st.R[k]
			}
			if particle.Dot(dr, dr, m.opts.NDim) > snk.Radius*snk.Radius {
				continue
			}
			p.SinkID = s

			dm := frac * p.M
			whole := m.opts.Mode == Sudden || p.M-dm < m.opts.MinMass
			if whole {
				dm = p.M
			}

			// Centre-of-mass transfer; the block-step checkpoints take
			// the same impulse so the next drift continues from it.
			mtot := st.M + dm
			for k := 0; k < m.opts.NDim; k++ {
				rnew := (st.M*st.R[k] + dm*p.R[k]) / mtot
				vnew := (st.M*st.V[k] + dm*p.V[k]) / mtot
				st.R0[k] += rnew - st.R[k]
				st.V0[k] += vnew - st.V[k]
				st.R[k] = rnew
				st.V[k] = vnew
			}
			st.M = mtot
			snk.MAcc += dm
			snk.UAcc += dm * p.U

			if whole {
				p.Dead = true
				snk.NAbsorbed++
				absorbed++
			} else {
				p.M -= dm
			}
		}
	}
	return absorbed
}

// Count returns how many sinks exist.
func (m *Manager) Count() int { return len(m.Sinks) }

// AccretedMass sums the gas mass swallowed by all sinks.
func (m *Manager) AccretedMass() float64 {
	total := 0.0
	for i := range m.Sinks {
		total += m.Sinks[i].MAcc
	}
	return total
}
