package sim

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/stefano-meschiari/gandalf/sim/domain"
	"github.com/stefano-meschiari/gandalf/sim/ic"
	"github.com/stefano-meschiari/gandalf/sim/snapshot"
	"github.com/stefano-meschiari/gandalf/sim/trace"
)

// Config is the full parameter set of one run. Parameter files supply a
// subset of the keys; everything else keeps the DefaultConfig value.
type Config struct {
	NDim int   `yaml:"ndim"`
	Seed int64 `yaml:"seed"`

	IC      ic.Params     `yaml:"ic"`
	Box     BoxConfig     `yaml:"box"`
	SPH     SPHConfig     `yaml:"sph"`
	EOS     EOSConfig     `yaml:"eos"`
	Time    TimeConfig    `yaml:"time"`
	Sinks   SinkConfig    `yaml:"sinks"`
	Cluster ClusterConfig `yaml:"cluster"`
	Output  OutputConfig  `yaml:"output"`
	Units   UnitsConfig   `yaml:"units"`
}

// BoxConfig describes the simulation volume and the condition on each
// face. Boundary tags are open, periodic or mirror; axes beyond ndim are
// ignored.
type BoxConfig struct {
	Min     [3]float64 `yaml:"min"`
	Max     [3]float64 `yaml:"max"`
	BoundLo [3]string  `yaml:"bound_lo"`
	BoundHi [3]string  `yaml:"bound_hi"`
}

// ToBox resolves the boundary tags into a validated domain box.
func (b *BoxConfig) ToBox(ndim int) (*domain.Box, error) {
	box := &domain.Box{NDim: ndim, Min: b.Min, Max: b.Max}
	for k := 0; k < ndim; k++ {
		lo, err := domain.ParseBoundary(b.BoundLo[k])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadParameters, err)
		}
		hi, err := domain.ParseBoundary(b.BoundHi[k])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadParameters, err)
		}
		box.BoundLo[k] = lo
		box.BoundHi[k] = hi
	}
	if err := box.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadParameters, err)
	}
	return box, nil
}

// SPHConfig selects the force engine and its knobs.
type SPHConfig struct {
	Engine         string  `yaml:"engine"`          // gradhsph | sm2012sph
	Kernel         string  `yaml:"kernel"`          // m4 | quintic | gaussian
	TabulateKernel bool    `yaml:"tabulate_kernel"` // wrap the kernel in lookup tables
	Search         string  `yaml:"search"`          // bruteforce | grid
	HFac           float64 `yaml:"h_fac"`
	HConverge      float64 `yaml:"h_converge"`
	AVisc          string  `yaml:"avisc"` // none | mon97 | mon97td
	ACond          string  `yaml:"acond"` // none | wadsley2008 | price2008
	AlphaVisc      float64 `yaml:"alpha_visc"`
	BetaVisc       float64 `yaml:"beta_visc"`
	AlphaMin       float64 `yaml:"alpha_min"`
	TDLength       float64 `yaml:"td_length"`
	HydroForces    bool    `yaml:"hydro_forces"`
	SelfGravity    bool    `yaml:"self_gravity"`
	SoftenStars    bool    `yaml:"soften_stars"`
}

// EOSConfig selects the thermodynamic closure.
type EOSConfig struct {
	Name    string  `yaml:"name"` // isothermal | barotropic | adiabatic
	Gamma   float64 `yaml:"gamma"`
	MuBar   float64 `yaml:"mu_bar"`
	Temp0   float64 `yaml:"temp0"`
	RhoBary float64 `yaml:"rho_bary"`
}

// TimeConfig controls integration: the scheme, the end time, the global
// step and the block-level hierarchy beneath it.
type TimeConfig struct {
	TEnd         float64 `yaml:"t_end"`
	DtMax        float64 `yaml:"dt_max"`
	Scheme       string  `yaml:"scheme"`    // lfkdk | lfdkd
	LevelMax     int     `yaml:"level_max"` // block levels below dt_max; 0 = single level
	LevelDiffMax int     `yaml:"level_diff_max"`
	CourantMult  float64 `yaml:"courant_mult"`
	AccelMult    float64 `yaml:"accel_mult"`
	EnergyMult   float64 `yaml:"energy_mult"`
	NbodyMult    float64 `yaml:"nbody_mult"`
}

// SinkConfig controls sink particle creation and accretion.
type SinkConfig struct {
	Create     bool    `yaml:"create"`
	Mode       string  `yaml:"mode"` // smooth | sudden
	RhoSink    float64 `yaml:"rho_sink"`
	RadiusMult float64 `yaml:"radius_mult"`
	MinMass    float64 `yaml:"min_mass"`
	HMin       float64 `yaml:"h_min"` // smoothing length floor inside sinks
}

// ClusterConfig sizes the in-process worker fabric.
type ClusterConfig struct {
	Workers      int     `yaml:"workers"`       // power of two
	Threads      int     `yaml:"threads"`       // sweep goroutines per worker; 0 = one per CPU
	BalanceEvery int     `yaml:"balance_every"` // in resyncs; 0 disables
	NMaxMult     float64 `yaml:"nmax_mult"`     // capacity multiplier over the even share
}

// OutputConfig controls snapshots and run tracing.
type OutputConfig struct {
	DtSnapshot float64 `yaml:"dt_snapshot"` // 0 writes only the first and final states
	Format     string  `yaml:"format"`      // column | binary
	Dir        string  `yaml:"dir"`
	Basename   string  `yaml:"basename"`
	Trace      string  `yaml:"trace"` // "" | none | steps
}

// UnitsConfig names the output unit of each base family. Empty means
// code units.
type UnitsConfig struct {
	R string `yaml:"r"`
	M string `yaml:"m"`
	T string `yaml:"t"`
}

// DefaultConfig supplies the baseline every parameter file is decoded
// over.
func DefaultConfig() *Config {
	return &Config{
		NDim: 1,
		Seed: 1,
		IC: ic.Params{
			Name:     "lattice",
			NSph:     64,
			RhoFluid: 1.0,
			Press:    1.0,
		},
		Box: BoxConfig{
			Min: [3]float64{0, 0, 0},
			Max: [3]float64{1, 1, 1},
		},
		SPH: SPHConfig{
			Engine:      "gradhsph",
			Kernel:      "m4",
			Search:      "grid",
			HFac:        1.2,
			HConverge:   0.01,
			AVisc:       "mon97",
			ACond:       "none",
			AlphaVisc:   1.0,
			BetaVisc:    2.0,
			AlphaMin:    0.1,
			TDLength:    0.1,
			HydroForces: true,
			SoftenStars: true,
		},
		EOS: EOSConfig{
			Name:    "adiabatic",
			Gamma:   5.0 / 3.0,
			MuBar:   1.0,
			Temp0:   1.0,
			RhoBary: 1.0e-14,
		},
		Time: TimeConfig{
			TEnd:         1.0,
			DtMax:        0.01,
			Scheme:       "lfkdk",
			LevelMax:     0,
			LevelDiffMax: 1,
			CourantMult:  0.15,
			AccelMult:    0.3,
			EnergyMult:   0.5,
			NbodyMult:    0.1,
		},
		Sinks: SinkConfig{
			Mode:       "smooth",
			RhoSink:    1.0e6,
			RadiusMult: 2.0,
		},
		Cluster: ClusterConfig{
			Workers:      1,
			BalanceEvery: 8,
			NMaxMult:     4.0,
		},
		Output: OutputConfig{
			Format:   "column",
			Dir:      ".",
			Basename: "output",
		},
	}
}

// LoadConfig reads a yaml parameter file and decodes it over the
// defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading parameter file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing parameter file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects parameters the driver itself consumes. Component
// constructors check their own knobs; this covers what never reaches
// them.
func (c *Config) Validate() error {
	if c.NDim < 1 || c.NDim > 3 {
		return fmt.Errorf("%w: ndim must be 1, 2 or 3, got %d", ErrBadParameters, c.NDim)
	}
	if c.Time.TEnd <= 0.0 {
		return fmt.Errorf("%w: t_end must be positive, got %g", ErrBadParameters, c.Time.TEnd)
	}
	if c.Time.DtMax <= 0.0 || c.Time.DtMax > c.Time.TEnd {
		return fmt.Errorf("%w: dt_max must lie in (0, t_end], got %g", ErrBadParameters, c.Time.DtMax)
	}
	if c.Time.LevelMax < 0 || c.Time.LevelMax > 20 {
		return fmt.Errorf("%w: level_max must lie in [0, 20], got %d", ErrBadParameters, c.Time.LevelMax)
	}
	if c.Time.LevelDiffMax < 0 {
		return fmt.Errorf("%w: level_diff_max must be non-negative, got %d", ErrBadParameters, c.Time.LevelDiffMax)
	}
	if c.Cluster.Workers < 1 || c.Cluster.Workers&(c.Cluster.Workers-1) != 0 {
		return fmt.Errorf("%w: workers must be a power of two, got %d", ErrBadParameters, c.Cluster.Workers)
	}
	if c.SPH.Engine == "sm2012sph" && c.SPH.SelfGravity {
		return fmt.Errorf("%w: self-gravity requires the gradhsph engine", ErrBadParameters)
	}
	if c.SPH.SelfGravity && c.Cluster.Workers > 1 {
		return fmt.Errorf("%w: gas self-gravity runs on a single worker; ghost exchange carries kernel-range partners only", ErrBadParameters)
	}
	if c.Sinks.Create && c.Cluster.Workers > 1 {
		return fmt.Errorf("%w: sink creation runs on a single worker", ErrBadParameters)
	}
	if c.Cluster.Threads < 0 {
		return fmt.Errorf("%w: threads must be non-negative, got %d", ErrBadParameters, c.Cluster.Threads)
	}
	if c.Cluster.BalanceEvery < 0 {
		return fmt.Errorf("%w: balance_every must be non-negative, got %d", ErrBadParameters, c.Cluster.BalanceEvery)
	}
	if c.Cluster.NMaxMult < 1.0 {
		return fmt.Errorf("%w: nmax_mult must be at least 1, got %g", ErrBadParameters, c.Cluster.NMaxMult)
	}
	if c.Output.DtSnapshot < 0.0 {
		return fmt.Errorf("%w: dt_snapshot must be non-negative, got %g", ErrBadParameters, c.Output.DtSnapshot)
	}
	if _, err := snapshot.New(c.Output.Format); err != nil {
		return fmt.Errorf("%w: %v", ErrBadParameters, err)
	}
	if !trace.IsValidTraceLevel(c.Output.Trace) {
		return fmt.Errorf("%w: unknown trace level %q", ErrBadParameters, c.Output.Trace)
	}
	return nil
}
