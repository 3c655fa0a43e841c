package trace

// TraceLevel controls the verbosity of run tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelSteps captures every step, rebalance and sink event.
	TraceLevelSteps TraceLevel = "steps"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:  true,
	TraceLevelSteps: true,
	"":              true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// Enabled reports whether the level asks for records at all. The driver
// checks this once per step and skips record construction entirely when
// tracing is off.
func (c TraceConfig) Enabled() bool {
	return c.Level == TraceLevelSteps
}

// RunTrace collects records during a simulation run.
type RunTrace struct {
	Config   TraceConfig
	Steps    []StepRecord
	Balances []BalanceRecord
	Sinks    []SinkRecord
}

// NewRunTrace creates a RunTrace ready for recording.
func NewRunTrace(config TraceConfig) *RunTrace {
	return &RunTrace{
		Config:   config,
		Steps:    make([]StepRecord, 0),
		Balances: make([]BalanceRecord, 0),
		Sinks:    make([]SinkRecord, 0),
	}
}

// RecordStep appends a step record.
func (rt *RunTrace) RecordStep(record StepRecord) {
	rt.Steps = append(rt.Steps, record)
}

// RecordBalance appends a load-balance record.
func (rt *RunTrace) RecordBalance(record BalanceRecord) {
	rt.Balances = append(rt.Balances, record)
}

// RecordSink appends a sink event record.
func (rt *RunTrace) RecordSink(record SinkRecord) {
	rt.Sinks = append(rt.Sinks, record)
}
