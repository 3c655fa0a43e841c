package cmd

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stefano-meschiari/gandalf/sim"
	"github.com/stefano-meschiari/gandalf/sim/trace"
)

// captureStdout runs fn with stdout redirected to a pipe and returns
// everything it printed.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	_ = w.Close()
	os.Stdout = old
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

func TestApplyRunOverrides(t *testing.T) {
	// GIVEN a loaded config and no flags set on the command line
	cfg := sim.DefaultConfig()
	cfg.Seed = 99
	cfg.Cluster.Workers = 2
	applyRunOverrides(runCmd, cfg)

	// THEN the file values survive untouched
	assert.Equal(t, int64(99), cfg.Seed)
	assert.Equal(t, 2, cfg.Cluster.Workers)

	// WHEN flags are set explicitly
	require.NoError(t, runCmd.Flags().Set("seed", "7"))
	require.NoError(t, runCmd.Flags().Set("workers", "4"))
	require.NoError(t, runCmd.Flags().Set("t-end", "2.5"))
	require.NoError(t, runCmd.Flags().Set("dir", "/tmp/out"))
	require.NoError(t, runCmd.Flags().Set("trace", "steps"))
	applyRunOverrides(runCmd, cfg)

	// THEN they win over the file
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, 4, cfg.Cluster.Workers)
	assert.Equal(t, 2.5, cfg.Time.TEnd)
	assert.Equal(t, "/tmp/out", cfg.Output.Dir)
	assert.Equal(t, "steps", cfg.Output.Trace)
}

func TestPrintRunSummaryChartsWorkers(t *testing.T) {
	// GIVEN a traced run with a final rebalance over two workers
	rt := trace.NewRunTrace(trace.TraceConfig{Level: trace.TraceLevelSteps})
	rt.RecordStep(trace.StepRecord{Step: 1, Time: 0.01, NActive: 64})
	rt.RecordBalance(trace.BalanceRecord{
		Step: 1,
		Loads: []trace.WorkerLoad{
			{Rank: 0, NSph: 60, Work: 1.0},
			{Rank: 1, NSph: 140, Work: 3.0},
		},
	})

	// WHEN the end-of-run summary prints
	output := captureStdout(t, func() { printRunSummary(rt) })

	// THEN the work chart lands on stdout
	assert.Contains(t, output, "work per worker")
}

func TestPrintRunSummaryQuietWithoutTrace(t *testing.T) {
	// GIVEN tracing disabled
	rt := trace.NewRunTrace(trace.TraceConfig{Level: trace.TraceLevelNone})

	// WHEN the summary prints
	output := captureStdout(t, func() { printRunSummary(rt) })

	// THEN nothing reaches stdout
	assert.Empty(t, output)
	assert.Empty(t, captureStdout(t, func() { printRunSummary(nil) }))
}
