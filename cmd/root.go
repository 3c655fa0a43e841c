package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/stefano-meschiari/gandalf/sim"
	"github.com/stefano-meschiari/gandalf/sim/trace"
)

var (
	// CLI flags for the run command
	paramsPath string  // yaml parameter file driving the run
	logLevel   string  // log verbosity level
	runSeed    int64   // master seed override
	runWorkers int     // cluster worker count override
	runTEnd    float64 // end time override, code units
	runOutDir  string  // output directory override
	runTrace   string  // trace level override (none, steps)
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "gandalf",
	Short: "Smoothed-particle hydrodynamics with self-gravity and sinks",
}

// runCmd executes a simulation from a yaml parameter file
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation from a parameter file",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		cfg, err := sim.LoadConfig(paramsPath)
		if err != nil {
			logrus.Fatalf("Reading parameters failed: %v", err)
		}
		applyRunOverrides(cmd, cfg)

		s, err := sim.NewSimulator(cfg)
		if err != nil {
			logrus.Fatalf("Configuring the simulation failed: %v", err)
		}

		start := time.Now()
		if err := s.Run(); err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}

		d := s.FinalDiagnostics()
		logrus.Infof("Reached t=%g in %v: E=%g M=%g nsph=%d nstar=%d",
			d.Time, time.Since(start).Round(time.Millisecond), d.Etot, d.Mass, d.NSph, d.NStar)
		printRunSummary(s.Trace())
	},
}

// applyRunOverrides lets flags given on the command line win over the
// parameter file. Unset flags leave the file values alone.
func applyRunOverrides(cmd *cobra.Command, cfg *sim.Config) {
	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed = runSeed
	}
	if flags.Changed("workers") {
		cfg.Cluster.Workers = runWorkers
	}
	if flags.Changed("t-end") {
		cfg.Time.TEnd = runTEnd
	}
	if flags.Changed("dir") {
		cfg.Output.Dir = runOutDir
	}
	if flags.Changed("trace") {
		cfg.Output.Trace = runTrace
	}
}

// printRunSummary reports the trace aggregates and charts the worker
// shares at the last rebalance. Untraced runs print nothing.
func printRunSummary(rt *trace.RunTrace) {
	if rt == nil || !rt.Config.Enabled() {
		return
	}
	sum := trace.Summarize(rt)
	logrus.Infof("Trace: %d steps, mean active %.1f, deepest level %d, %d rebalances, %d sinks formed",
		sum.TotalSteps, sum.MeanActive, sum.MaxLevel, sum.Rebalances, sum.SinksFormed)
	if len(rt.Balances) == 0 {
		return
	}
	loads := rt.Balances[len(rt.Balances)-1].Loads
	if len(loads) < 2 {
		return
	}
	works := make([]float64, len(loads))
	for i, load := range loads {
		works[i] = load.Work
	}
	chart := asciigraph.Plot(works,
		asciigraph.Height(8),
		asciigraph.Width(60),
		asciigraph.Caption("work per worker at the last rebalance"),
	)
	fmt.Println(chart)
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().StringVar(&paramsPath, "params", "", "Path to the yaml parameter file")
	runCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().Int64Var(&runSeed, "seed", 1, "Master seed override")
	runCmd.Flags().IntVar(&runWorkers, "workers", 1, "Worker count override (power of two)")
	runCmd.Flags().Float64Var(&runTEnd, "t-end", 0, "End time override in code units")
	runCmd.Flags().StringVar(&runOutDir, "dir", ".", "Output directory override")
	runCmd.Flags().StringVar(&runTrace, "trace", "", "Trace level override (none, steps)")
	_ = runCmd.MarkFlagRequired("params")

	rootCmd.AddCommand(runCmd)
}
