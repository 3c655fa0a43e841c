// Package trace provides run-trace recording for step-level analysis.
// It holds plain data types and depends on nothing in sim/ or
// sim/cluster/, so both can import it freely.
package trace

// StepRecord captures one step of the outer integration loop.
type StepRecord struct {
	Step     int64
	Time     float64
	Dt       float64 // tick advanced this step
	NActive  int     // particles integrated this step across all workers
	NGhost   int     // boundary ghosts alive after the step
	LevelMax int
}

// WorkerLoad captures one worker's share at a rebalance.
type WorkerLoad struct {
	Rank  int
	NSph  int
	Work  float64 // summed 1/nstep over owned particles
	Moved int     // particles handed to peers during migration
}

// BalanceRecord captures a single load-balance pass.
type BalanceRecord struct {
	Step      int64
	Level     int // tree level whose planes moved; -1 on single-worker runs
	Imbalance float64
	Spread    float64 // max minus min work across workers
	Loads     []WorkerLoad
}

// SinkRecord captures a sink formation or accretion event.
type SinkRecord struct {
	Step      int64
	SinkID    int
	Formed    bool    // true on creation, false on an accretion update
	StarMass  float64 // host star mass after the event
	NAccreted int     // gas particles absorbed whole in this event
}
