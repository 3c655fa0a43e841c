package trace

// TraceSummary aggregates statistics from a RunTrace.
type TraceSummary struct {
	TotalSteps        int
	TimeSpan          float64 // last recorded time minus first
	MeanActive        float64
	MaxLevel          int
	Rebalances        int
	MeanImbalance     float64
	MaxImbalance      float64
	ParticlesMigrated int
	SinksFormed       int
	AccretionEvents   int
	MassAccretedInto  map[int]float64 // sink ID → final host star mass seen
}

// Summarize computes aggregate statistics from a RunTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(rt *RunTrace) *TraceSummary {
	summary := &TraceSummary{
		MassAccretedInto: make(map[int]float64),
	}
	if rt == nil {
		return summary
	}

	summary.TotalSteps = len(rt.Steps)
	if len(rt.Steps) > 0 {
		totalActive := 0
		for _, s := range rt.Steps {
			totalActive += s.NActive
			if s.LevelMax > summary.MaxLevel {
				summary.MaxLevel = s.LevelMax
			}
		}
		summary.MeanActive = float64(totalActive) / float64(len(rt.Steps))
		summary.TimeSpan = rt.Steps[len(rt.Steps)-1].Time - rt.Steps[0].Time
	}

	summary.Rebalances = len(rt.Balances)
	if len(rt.Balances) > 0 {
		totalImbalance := 0.0
		for _, b := range rt.Balances {
			totalImbalance += b.Imbalance
			if b.Imbalance > summary.MaxImbalance {
				summary.MaxImbalance = b.Imbalance
			}
			for _, load := range b.Loads {
				summary.ParticlesMigrated += load.Moved
			}
		}
		summary.MeanImbalance = totalImbalance / float64(len(rt.Balances))
	}

	for _, s := range rt.Sinks {
		if s.Formed {
			summary.SinksFormed++
		} else {
			summary.AccretionEvents++
		}
		summary.MassAccretedInto[s.SinkID] = s.StarMass
	}

	return summary
}
