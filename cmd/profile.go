package cmd

import (
	"fmt"
	"math"

	"github.com/guptarohit/asciigraph"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/stefano-meschiari/gandalf/sim/snapshot"
)

var (
	// CLI flags for the profile command
	profilePath   string // snapshot file to profile
	profileFormat string // snapshot format name
	profileBins   int    // number of radial shells
	profileHeight int    // chart height in rows
)

// profileCmd charts the radial density profile of a snapshot: particle
// mass binned into equal-width shells around the origin, divided by the
// shell measures.
var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Plot the radial density profile of a snapshot",
	Run: func(cmd *cobra.Command, args []string) {
		format, err := snapshot.New(profileFormat)
		if err != nil {
			logrus.Fatalf("Bad snapshot format: %v", err)
		}
		st, err := format.Read(profilePath)
		if err != nil {
			logrus.Fatalf("Reading %s failed: %v", profilePath, err)
		}
		rho, err := radialDensity(st, profileBins)
		if err != nil {
			logrus.Fatalf("Profiling failed: %v", err)
		}
		chart := asciigraph.Plot(rho,
			asciigraph.Height(profileHeight),
			asciigraph.Width(72),
			asciigraph.Caption(fmt.Sprintf("mean density over %d radial shells at t=%g", profileBins, st.Time)),
		)
		fmt.Println(chart)
	},
}

// radialDensity histograms particle mass over equal-width radial shells
// and converts the shell masses to mean densities.
func radialDensity(st *snapshot.State, bins int) ([]float64, error) {
	if bins < 1 {
		return nil, fmt.Errorf("profile needs at least one bin, got %d", bins)
	}
	if st.N() == 0 {
		return nil, fmt.Errorf("snapshot holds no particles")
	}

	radii := make([]float64, st.N())
	for i := range radii {
		r := st.X[i] * st.X[i]
		if st.NDim > 1 {
			r += st.Y[i] * st.Y[i]
		}
		if st.NDim > 2 {
			r += st.Z[i] * st.Z[i]
		}
		radii[i] = math.Sqrt(r)
	}
	mass := append([]float64(nil), st.M...)
	stat.SortWeighted(radii, mass)

	rmax := radii[len(radii)-1]
	if rmax == 0 {
		return nil, fmt.Errorf("snapshot has no radial extent")
	}
	// The histogram needs the last divider strictly above the largest
	// radius.
	dividers := make([]float64, bins+1)
	floats.Span(dividers, 0, rmax)
	dividers[bins] = math.Nextafter(rmax, math.Inf(1))
	shellMass := stat.Histogram(nil, dividers, radii, mass)

	rho := make([]float64, bins)
	for b := range rho {
		rho[b] = shellMass[b] / shellVolume(st.NDim, dividers[b], dividers[b+1])
	}
	return rho, nil
}

// shellVolume is the measure between two radii: a symmetric interval
// pair in 1d, an annulus in 2d and a spherical shell in 3d.
func shellVolume(ndim int, r0, r1 float64) float64 {
	switch ndim {
	case 1:
		return 2 * (r1 - r0)
	case 2:
		return math.Pi * (r1*r1 - r0*r0)
	default:
		return 4 * math.Pi / 3 * (r1*r1*r1 - r0*r0*r0)
	}
}

func init() {
	profileCmd.Flags().StringVar(&profilePath, "snap", "", "Snapshot file to profile")
	profileCmd.Flags().StringVar(&profileFormat, "format", "column", "Snapshot format (column, binary)")
	profileCmd.Flags().IntVar(&profileBins, "bins", 24, "Number of radial shells")
	profileCmd.Flags().IntVar(&profileHeight, "height", 12, "Chart height in rows")
	_ = profileCmd.MarkFlagRequired("snap")

	rootCmd.AddCommand(profileCmd)
}
