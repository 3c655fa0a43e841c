package sim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stefano-meschiari/gandalf/sim/domain"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	// The default box must resolve for every supported dimensionality.
	for ndim := 1; ndim <= 3; ndim++ {
		box, err := cfg.Box.ToBox(ndim)
		require.NoError(t, err)
		assert.Equal(t, ndim, box.NDim)
	}
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	// GIVEN a parameter file that sets a handful of keys.
	path := filepath.Join(t.TempDir(), "params.yaml")
	text := `
ndim: 3
ic:
  name: shocktube
  nsph: 200
  rho_left: 1.0
  rho_right: 0.125
time:
  t_end: 0.25
  dt_max: 0.005
sph:
  avisc: mon97td
cluster:
  workers: 4
  threads: 1
`
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	// Overridden keys take the file value.
	assert.Equal(t, 3, cfg.NDim)
	assert.Equal(t, "shocktube", cfg.IC.Name)
	assert.Equal(t, 200, cfg.IC.NSph)
	assert.Equal(t, 0.25, cfg.Time.TEnd)
	assert.Equal(t, "mon97td", cfg.SPH.AVisc)
	assert.Equal(t, 4, cfg.Cluster.Workers)
	assert.Equal(t, 1, cfg.Cluster.Threads)

	// Untouched keys keep their defaults.
	def := DefaultConfig()
	assert.Equal(t, def.SPH.Engine, cfg.SPH.Engine)
	assert.Equal(t, def.SPH.HFac, cfg.SPH.HFac)
	assert.Equal(t, def.EOS.Gamma, cfg.EOS.Gamma)
	assert.Equal(t, def.Time.Scheme, cfg.Time.Scheme)
	assert.Equal(t, def.Output.Format, cfg.Output.Format)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte("time: [not, a, map]"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"ndim zero", func(c *Config) { c.NDim = 0 }},
		{"ndim four", func(c *Config) { c.NDim = 4 }},
		{"t_end zero", func(c *Config) { c.Time.TEnd = 0 }},
		{"dt_max zero", func(c *Config) { c.Time.DtMax = 0 }},
		{"dt_max above t_end", func(c *Config) { c.Time.DtMax = c.Time.TEnd * 2 }},
		{"level_max negative", func(c *Config) { c.Time.LevelMax = -1 }},
		{"level_max huge", func(c *Config) { c.Time.LevelMax = 21 }},
		{"level_diff_max negative", func(c *Config) { c.Time.LevelDiffMax = -1 }},
		{"workers zero", func(c *Config) { c.Cluster.Workers = 0 }},
		{"workers not power of two", func(c *Config) { c.Cluster.Workers = 3 }},
		{"threads negative", func(c *Config) { c.Cluster.Threads = -1 }},
		{"balance_every negative", func(c *Config) { c.Cluster.BalanceEvery = -1 }},
		{"nmax_mult below one", func(c *Config) { c.Cluster.NMaxMult = 0.5 }},
		{"dt_snapshot negative", func(c *Config) { c.Output.DtSnapshot = -0.1 }},
		{"unknown format", func(c *Config) { c.Output.Format = "hdf5" }},
		{"unknown trace level", func(c *Config) { c.Output.Trace = "everything" }},
		{"sm2012 with self-gravity", func(c *Config) {
			c.SPH.Engine = "sm2012sph"
			c.SPH.SelfGravity = true
		}},
		{"sinks on multiple workers", func(c *Config) {
			c.Sinks.Create = true
			c.Cluster.Workers = 2
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrBadParameters)
		})
	}
}

func TestValidateAcceptsSinkOnSingleWorker(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sinks.Create = true
	cfg.Cluster.Workers = 1
	assert.NoError(t, cfg.Validate())
}

func TestToBoxParsesBoundaries(t *testing.T) {
	b := BoxConfig{
		Min:     [3]float64{-1, -2, 0},
		Max:     [3]float64{1, 2, 1},
		BoundLo: [3]string{"periodic", "mirror", ""},
		BoundHi: [3]string{"periodic", "open", ""},
	}
	box, err := b.ToBox(2)
	require.NoError(t, err)

	assert.Equal(t, domain.Periodic, box.BoundLo[0])
	assert.Equal(t, domain.Periodic, box.BoundHi[0])
	assert.Equal(t, domain.Mirror, box.BoundLo[1])
	assert.Equal(t, domain.Open, box.BoundHi[1])
	assert.Equal(t, 2.0, box.Size(0))
	assert.Equal(t, 4.0, box.Size(1))
}

func TestToBoxRejectsBadBoundary(t *testing.T) {
	b := BoxConfig{
		Min:     [3]float64{0, 0, 0},
		Max:     [3]float64{1, 1, 1},
		BoundLo: [3]string{"slippery", "", ""},
	}
	_, err := b.ToBox(1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadParameters)
}

func TestToBoxRejectsInvertedPeriodicExtent(t *testing.T) {
	// Extent checks apply to closed axes only; a fully open axis may
	// stay degenerate because nothing ever wraps or reflects there.
	b := BoxConfig{
		Min:     [3]float64{1, 0, 0},
		Max:     [3]float64{0, 1, 1},
		BoundLo: [3]string{"periodic", "", ""},
		BoundHi: [3]string{"periodic", "", ""},
	}
	_, err := b.ToBox(1)
	assert.Error(t, err)

	open := BoxConfig{Min: b.Min, Max: b.Max}
	_, err = open.ToBox(1)
	assert.NoError(t, err)
}
