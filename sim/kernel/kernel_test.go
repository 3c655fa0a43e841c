package kernel

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var kernelNames = []string{"m4", "quintic", "gaussian"}

// volumeIntegral integrates W0 over the support in ndim dimensions with
// the midpoint rule. A correctly normalised kernel integrates to one.
func volumeIntegral(k Kernel, ndim int) float64 {
	const n = 200000
	ds := k.Range() / float64(n)
	sum := 0.0
	for i := 0; i < n; i++ {
		s := (float64(i) + 0.5) * ds
		w := k.W0(s)
		switch ndim {
		case 1:
			sum += 2.0 * w * ds
		case 2:
			sum += 2.0 * math.Pi * s * w * ds
		default:
			sum += 4.0 * math.Pi * s * s * w * ds
		}
	}
	return sum
}

func TestKernelNormalisation(t *testing.T) {
	for _, name := range kernelNames {
		for ndim := 1; ndim <= 3; ndim++ {
			t.Run(fmt.Sprintf("%s/%dd", name, ndim), func(t *testing.T) {
				k, err := New(name, ndim)
				require.NoError(t, err)
				assert.InDelta(t, 1.0, volumeIntegral(k, ndim), 1e-4)
			})
		}
	}
}

func TestKernelCompactSupport(t *testing.T) {
	for _, name := range kernelNames {
		k, err := New(name, 3)
		require.NoError(t, err)
		r := k.Range()
		for _, s := range []float64{r, r + 0.1, 2 * r} {
			assert.Zero(t, k.W0(s), "%s W0(%v)", name, s)
			assert.Zero(t, k.W1(s), "%s W1(%v)", name, s)
			assert.Zero(t, k.W0S2(s*s), "%s W0S2(%v)", name, s*s)
			assert.Zero(t, k.WOmegaS2(s*s), "%s WOmegaS2(%v)", name, s*s)
			assert.Zero(t, k.WZetaS2(s*s), "%s WZetaS2(%v)", name, s*s)
		}
	}
}

func TestKernelMonotoneNonIncreasing(t *testing.T) {
	for _, name := range kernelNames {
		k, err := New(name, 3)
		require.NoError(t, err)
		prev := k.W0(0.0)
		for i := 1; i <= 600; i++ {
			s := k.Range() * float64(i) / 600.0
			w := k.W0(s)
			assert.LessOrEqual(t, w, prev+1e-14, "%s not monotone at s=%v", name, s)
			prev = w
		}
	}
}

// The omega weight must satisfy its defining identity
// w_omega(s) = -ndim*W0(s) - s*W1(s).
func TestGradHOmegaIdentity(t *testing.T) {
	for _, name := range kernelNames {
		for ndim := 1; ndim <= 3; ndim++ {
			k, err := New(name, ndim)
			require.NoError(t, err)
			for i := 0; i < 500; i++ {
				s := k.Range() * (float64(i) + 0.5) / 500.0
				want := -float64(ndim)*k.W0(s) - s*k.W1(s)
				assert.InDelta(t, want, k.WOmegaS2(s*s), 1e-12,
					"%s/%dd at s=%v", name, ndim, s)
			}
		}
	}
}

// The softened-gravity profiles are related by w_pot' = -w_grav and
// w_zeta = w_pot - s*w_grav, and must join the point-mass forms at the
// edge of the support.
func TestGravityProfileIdentities(t *testing.T) {
	for _, name := range kernelNames {
		k, err := New(name, 3)
		require.NoError(t, err)
		r := k.Range()

		// Enclosed mass at the support edge is the full unit mass.
		assert.InDelta(t, 1.0, k.WGrav(r)*r*r, 1e-6, "%s enclosed mass", name)
		assert.InDelta(t, 1.0/r, k.WPot(r), 1e-6, "%s potential tail", name)

		for i := 1; i < 300; i++ {
			s := r * float64(i) / 300.0
			// Zeta identity holds exactly for the closed forms.
			want := k.WPot(s) - s*k.WGrav(s)
			assert.InDelta(t, want, k.WZetaS2(s*s), 1e-10,
				"%s zeta identity at s=%v", name, s)
			// Force is the negative gradient of the potential.
			const eps = 1e-6
			dpot := (k.WPot(s+eps) - k.WPot(s-eps)) / (2 * eps)
			assert.InDelta(t, -k.WGrav(s), dpot, 1e-5,
				"%s potential gradient at s=%v", name, s)
		}
	}
}

func TestGravityPieceContinuity(t *testing.T) {
	joins := map[string][]float64{
		"m4":      {1.0, 2.0},
		"quintic": {1.0, 2.0, 3.0},
	}
	for name, ss := range joins {
		k, err := New(name, 3)
		require.NoError(t, err)
		for _, s := range ss {
			const eps = 1e-9
			assert.InDelta(t, k.WGrav(s-eps), k.WGrav(s+eps), 1e-6, "%s wgrav at %v", name, s)
			assert.InDelta(t, k.WPot(s-eps), k.WPot(s+eps), 1e-6, "%s wpot at %v", name, s)
			assert.InDelta(t, k.W0(s-eps), k.W0(s+eps), 1e-6, "%s w0 at %v", name, s)
			assert.InDelta(t, k.W1(s-eps), k.W1(s+eps), 1e-6, "%s w1 at %v", name, s)
		}
	}
}

func TestTabulatedTracksBase(t *testing.T) {
	base := NewM4(3)
	tab := NewTabulated(base)

	assert.Equal(t, "tabulated:m4", tab.Name())
	assert.Equal(t, base.Range(), tab.Range())

	// Mid-cell lookups return the stored left-node value exactly.
	for i := 0; i < tableSize; i += 7 {
		node := float64(i) / tab.res
		mid := (float64(i) + 0.5) / tab.res
		assert.Equal(t, base.W0(node), tab.W0(mid))
		assert.Equal(t, base.W1(node), tab.W1(mid))
	}

	// Close between nodes.
	for i := 0; i < 400; i++ {
		s := base.Range() * (float64(i) + 0.37) / 400.0
		assert.InDelta(t, base.W0(s), tab.W0(s), 2e-2)
		assert.InDelta(t, base.WGrav(s), tab.WGrav(s), 2e-2)
		assert.InDelta(t, base.W0S2(s*s), tab.W0S2(s*s), 2e-2)
	}

	// Point-mass tails survive tabulation.
	assert.Equal(t, base.WGrav(5.0), tab.WGrav(5.0))
	assert.Equal(t, base.WPot(5.0), tab.WPot(5.0))
}

func TestNewKernelValidation(t *testing.T) {
	for _, name := range kernelNames {
		_, err := New(name, 3)
		assert.NoError(t, err)
	}
	_, err := New("m5", 3)
	assert.Error(t, err)
	_, err = New("m4", 0)
	assert.Error(t, err)
	_, err = New("m4", 4)
	assert.Error(t, err)
}
