package eos

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stefano-meschiari/gandalf/sim/particle"
)

func testParams() Params {
	return Params{Gamma: 5.0 / 3.0, MuBar: 1.0, Temp0: 1.0, RhoBary: 1e-2}
}

func TestIsothermal(t *testing.T) {
	e, err := New("isothermal", testParams())
	require.NoError(t, err)

	p := &particle.Particle{Rho: 2.0}
	p.U = e.SpecificInternalEnergy(p)

	// GIVEN temp0=1, mu_bar=1 and gamma=5/3 the fixed internal energy is
	// 1/(gamma-1) and the sound speed is exactly 1.
	assert.InDelta(t, 1.5, p.U, 1e-12)
	assert.InDelta(t, 1.0, e.SoundSpeed(p), 1e-12)
	assert.InDelta(t, 1.0, e.Temperature(p), 1e-12)

	// P = (gamma-1) rho u = rho for an isothermal gas at c_s=1.
	assert.InDelta(t, p.Rho, e.Pressure(p), 1e-12)

	// u never depends on the particle's evolved U.
	p.U = 42.0
	assert.InDelta(t, 1.5, e.SpecificInternalEnergy(p), 1e-12)
}

func TestBarotropicLimits(t *testing.T) {
	params := testParams()
	e, err := New("barotropic", params)
	require.NoError(t, err)
	iso := NewIsothermal(params)

	// WHEN rho << rho_bary the closure is isothermal.
	thin := &particle.Particle{Rho: params.RhoBary * 1e-9}
	assert.InDelta(t, iso.SpecificInternalEnergy(thin),
		e.SpecificInternalEnergy(thin), 1e-4)

	// WHEN rho >> rho_bary the temperature follows the adiabat
	// T ~ temp0 (rho/rho_bary)^(gamma-1).
	thick := &particle.Particle{Rho: params.RhoBary * 1e6}
	want := params.Temp0 * math.Pow(1e6, params.Gamma-1.0)
	assert.InEpsilon(t, want, e.Temperature(thick), 1e-3)

	// Temperature is monotone in density.
	prev := 0.0
	for rho := 1e-6; rho < 1e2; rho *= 10 {
		p := &particle.Particle{Rho: rho}
		temp := e.Temperature(p)
		assert.Greater(t, temp, prev)
		prev = temp
	}
}

func TestAdiabatic(t *testing.T) {
	e, err := New("adiabatic", testParams())
	require.NoError(t, err)

	p := &particle.Particle{Rho: 0.5, U: 2.0}

	// u is left to the energy equation.
	assert.Equal(t, p.U, e.SpecificInternalEnergy(p))

	gamma := e.Gamma()
	assert.InDelta(t, (gamma-1.0)*p.Rho*p.U, e.Pressure(p), 1e-12)
	assert.InDelta(t, math.Sqrt(gamma*(gamma-1.0)*p.U), e.SoundSpeed(p), 1e-12)
	assert.InDelta(t, (gamma-1.0)*p.U, e.Temperature(p), 1e-12)

	// K = P/rho^gamma ties the entropic function to the pressure.
	k := e.EntropicFunction(p)
	assert.InDelta(t, e.Pressure(p), k*math.Pow(p.Rho, gamma), 1e-12)
}

func TestNewValidation(t *testing.T) {
	cases := []struct {
		name   string
		eosTag string
		params Params
	}{
		{"unknown closure", "polytropic", testParams()},
		{"gamma at unity", "adiabatic", Params{Gamma: 1.0, MuBar: 1.0}},
		{"negative mu_bar", "isothermal", Params{Gamma: 1.4, MuBar: -1.0}},
		{"zero rho_bary", "barotropic", Params{Gamma: 1.4, MuBar: 1.0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.eosTag, tc.params)
			assert.Error(t, err)
		})
	}
}
