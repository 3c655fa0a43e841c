package snapshot

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stefano-meschiari/gandalf/sim/particle"
)

// awkwardParticles exercises values that lossy printing would mangle.
func awkwardParticles() []particle.Particle {
	return []particle.Particle{
		{R: particle.Vec{math.Pi, 0, 0}, V: particle.Vec{1.0 / 3.0, 0, 0},
			M: 1e-17, H: 0.1, Rho: 6.02214076e23, U: math.SmallestNonzeroFloat64},
		{R: particle.Vec{-math.MaxFloat64 / 2, 0, 0}, V: particle.Vec{0, 0, 0},
			M: 1.0, H: 2.0, Rho: 1.0, U: 0.0, DUDt: -1e-300},
	}
}

func assertSameFrame(t *testing.T, want, got *State) {
	t.Helper()
	require.Equal(t, want.NDim, got.NDim)
	require.Equal(t, want.N(), got.N())
	assert.Equal(t, want.Time, got.Time)
	wcols, gcols := want.Columns(), got.Columns()
	for i := range wcols {
		assert.Equal(t, wcols[i].Data, gcols[i].Data, "array %s", wcols[i].Name)
	}
}

func TestColumnRoundTripIsExact(t *testing.T) {
	// GIVEN a frame with values that stress decimal printing
	s, err := Capture(1, 0.0625, awkwardParticles())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "snap.dat")

	// WHEN writing and re-reading the column format
	fmtr, err := New("column")
	require.NoError(t, err)
	require.NoError(t, fmtr.Write(path, s))
	got, err := fmtr.Read(path)
	require.NoError(t, err)

	// THEN every bit survives the text round trip
	assertSameFrame(t, s, got)
}

func TestBinaryRoundTripIsExact(t *testing.T) {
	// GIVEN a 3d frame
	parts := testParticles()
	parts[0].R[2], parts[0].V[2], parts[0].A[2] = 0.33, -0.66, 0.99
	s, err := Capture(3, 42.0, parts)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "snap.gsnp")

	// WHEN writing and re-reading the binary format
	fmtr, err := New("binary")
	require.NoError(t, err)
	require.NoError(t, fmtr.Write(path, s))
	got, err := fmtr.Read(path)
	require.NoError(t, err)

	// THEN the frame reloads bit-identically
	assertSameFrame(t, s, got)
}

func TestConvertBetweenFormats(t *testing.T) {
	// GIVEN a column snapshot on disk
	s, err := Capture(2, 7.5, testParticles())
	require.NoError(t, err)
	dir := t.TempDir()
	colPath := filepath.Join(dir, "snap.dat")
	binPath := filepath.Join(dir, "snap.gsnp")

	column, err := New("column")
	require.NoError(t, err)
	bin, err := New("binary")
	require.NoError(t, err)
	require.NoError(t, column.Write(colPath, s))

	// WHEN reading it and writing the other format
	loaded, err := column.Read(colPath)
	require.NoError(t, err)
	require.NoError(t, bin.Write(binPath, loaded))

	// THEN the binary copy still matches the original frame
	got, err := bin.Read(binPath)
	require.NoError(t, err)
	assertSameFrame(t, s, got)
}

func TestColumnReadRejectsTruncatedFile(t *testing.T) {
	// GIVEN a column file whose header promises more rows than it holds
	path := filepath.Join(t.TempDir(), "short.dat")
	body := "# gandalf snapshot\n# time 0\n# ndim 1\n# nsph 3\n" +
		"0.1 0 0 1 0.1 1 1 0\n" +
		"0.2 0 0 1 0.1 1 1 0\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	fmtr, err := New("column")
	require.NoError(t, err)

	// WHEN reading THEN the short body is reported
	_, err = fmtr.Read(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "truncated")
}

func TestColumnReadRejectsMissingHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bare.dat")
	require.NoError(t, os.WriteFile(path, []byte("0.1 0 0 1 0.1 1 1 0\n"), 0o644))

	fmtr, err := New("column")
	require.NoError(t, err)
	_, err = fmtr.Read(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header")
}

func TestColumnReadRejectsRaggedRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragged.dat")
	body := "# time 0\n# ndim 1\n# nsph 1\n0.1 0 0 1\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	fmtr, err := New("column")
	require.NoError(t, err)
	_, err = fmtr.Read(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "columns")
}

func TestBinaryReadRejectsForeignFile(t *testing.T) {
	// GIVEN a file that is not a binary snapshot
	path := filepath.Join(t.TempDir(), "foreign.gsnp")
	require.NoError(t, os.WriteFile(path, []byte("# gandalf snapshot but in text\n"), 0o644))

	bin, err := New("binary")
	require.NoError(t, err)

	// WHEN reading THEN the magic check fires
	_, err = bin.Read(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a binary snapshot")
}

func TestFormatsHoldEmptyFrames(t *testing.T) {
	// Zero particles is a legal frame; headers alone round-trip.
	s, err := NewState(2, 0, 3.0)
	require.NoError(t, err)
	dir := t.TempDir()
	for _, name := range []string{"column", "binary"} {
		fmtr, err := New(name)
		require.NoError(t, err)
		path := filepath.Join(dir, "empty."+name)
		require.NoError(t, fmtr.Write(path, s))
		got, err := fmtr.Read(path)
		require.NoError(t, err, name)
		assert.Equal(t, 0, got.N(), name)
		assert.Equal(t, 3.0, got.Time, name)
	}
}
