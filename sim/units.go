package sim

import "fmt"

// Scales converts code units to cgs. The three base factors come from
// the named units in the config; everything else derives from them.
// Runs are unit-free internally (G=1); scales apply only on output.
type Scales struct {
	R float64 // length, cm per code unit
	M float64 // mass, g per code unit
	T float64 // time, s per code unit

	V    float64 // velocity, R/T
	A    float64 // acceleration, R/T²
	Rho  float64 // density, M/R³
	U    float64 // specific internal energy, V²
	DUDt float64 // heating rate, U/T
}

var lengthUnits = map[string]float64{
	"cm":    1.0,
	"m":     1.0e2,
	"km":    1.0e5,
	"r_sun": 6.96e10,
	"au":    1.49597870e13,
	"pc":    3.08568025e18,
}

var massUnits = map[string]float64{
	"g":       1.0,
	"kg":      1.0e3,
	"m_earth": 5.9736e27,
	"m_jup":   1.8986e30,
	"m_sun":   1.98892e33,
}

var timeUnits = map[string]float64{
	"s":   1.0,
	"day": 8.64e4,
	"yr":  3.1556952e7,
	"myr": 3.1556952e13,
}

// NewScales resolves the three named base units. Empty names (or
// "code") leave that family dimensionless.
func NewScales(r, m, t string) (Scales, error) {
	br, err := baseUnit("length", r, lengthUnits)
	if err != nil {
		return Scales{}, err
	}
	bm, err := baseUnit("mass", m, massUnits)
	if err != nil {
		return Scales{}, err
	}
	bt, err := baseUnit("time", t, timeUnits)
	if err != nil {
		return Scales{}, err
	}
	s := Scales{R: br, M: bm, T: bt}
	s.V = s.R / s.T
	s.A = s.V / s.T
	s.Rho = s.M / (s.R * s.R * s.R)
	s.U = s.V * s.V
	s.DUDt = s.U / s.T
	return s, nil
}

func baseUnit(family, name string, table map[string]float64) (float64, error) {
	if name == "" || name == "code" {
		return 1.0, nil
	}
	f, ok := table[name]
	if !ok {
		return 0, fmt.Errorf("%w: unknown %s unit %q", ErrBadParameters, family, name)
	}
	return f, nil
}

// Scale returns the cgs factor for a named snapshot array, so callers
// can convert columns without knowing which family each belongs to.
func (s Scales) Scale(array string) (float64, error) {
	switch array {
	case "x", "y", "z", "h":
		return s.R, nil
	case "vx", "vy", "vz":
		return s.V, nil
	case "ax", "ay", "az":
		return s.A, nil
	case "m":
		return s.M, nil
	case "rho":
		return s.Rho, nil
	case "u":
		return s.U, nil
	case "dudt":
		return s.DUDt, nil
	case "t", "time":
		return s.T, nil
	}
	return 0, fmt.Errorf("sim: no unit scale for array %q", array)
}
