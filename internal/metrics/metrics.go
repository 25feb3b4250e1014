package metrics

// #region imports
import (
	"math"

	"github.com/danielpatrickdp/qec-controller/internal/orchestrator"
)

// #endregion

// #region summary

// Summary holds the derived quality metrics for one run's history.
type Summary struct {
	LogicalErrorRate      float64
	SyndromeReliability   float64
	CorrectionSuccessRate float64
	Cycles                int
}

// #endregion summary

// #region summarize

// Summarize derives a run's metrics from its cycle history. Pure and
// stateless: it reads only the immutable records, never live
// controller state.
//
// When records carry logical readout samples, the logical error rate
// is measured directly: disagreeing shots over total shots. Histories
// without readout data (replayed fixtures, older databases) fall back
// to inference: a cycle contributes one logical error when its error
// went uncorrected into the next cycle (a failed cycle followed by a
// non-trivial syndrome) or when two consecutive cycles both triggered
// both stabilizers, which under the single-error assumption signals a
// double error past the code distance.
func Summarize(records []orchestrator.CycleRecord) Summary {
	s := Summary{Cycles: len(records)}
	if len(records) == 0 {
		return s
	}

	succeeded := 0
	logicalErrors := 0
	agreements := 0
	comparisons := 0
	shotTotal := 0
	shotErrors := 0

	for i, rec := range records {
		if rec.Success {
			succeeded++
		}
		shotTotal += rec.LogicalShots
		shotErrors += rec.LogicalErrors
		if i == 0 {
			continue
		}
		prev := records[i-1]

		// Syndrome reliability: under a static error hypothesis two
		// consecutive reads should agree. Only compare pairs where both
		// reads actually happened.
		if rec.Success && prev.Success {
			comparisons++
			if rec.Syndrome == prev.Syndrome {
				agreements++
			}
		}

		if !prev.Success && rec.Success && !rec.Syndrome.Trivial() {
			logicalErrors++
		}
		if rec.Success && prev.Success &&
			rec.Syndrome.Weight() == 2 && prev.Syndrome.Weight() == 2 {
			logicalErrors++
		}
	}

	s.CorrectionSuccessRate = float64(succeeded) / float64(len(records))
	if shotTotal > 0 {
		s.LogicalErrorRate = float64(shotErrors) / float64(shotTotal)
	} else {
		s.LogicalErrorRate = float64(logicalErrors) / float64(len(records))
	}
	if comparisons > 0 {
		s.SyndromeReliability = float64(agreements) / float64(comparisons)
	}
	return s
}

// #endregion summarize

// #region distribution

// Distribution is the spread of one metric across repeated runs.
type Distribution struct {
	Mean float64
	Std  float64
	Min  float64
	Max  float64
}

// RunStats aggregates each metric's distribution across runs.
type RunStats struct {
	LogicalErrorRate      Distribution
	SyndromeReliability   Distribution
	CorrectionSuccessRate Distribution
	Runs                  int
}

// Aggregate computes per-metric distributions over repeated runs.
func Aggregate(summaries []Summary) RunStats {
	stats := RunStats{Runs: len(summaries)}
	if len(summaries) == 0 {
		return stats
	}
	stats.LogicalErrorRate = distribution(summaries, func(s Summary) float64 { return s.LogicalErrorRate })
	stats.SyndromeReliability = distribution(summaries, func(s Summary) float64 { return s.SyndromeReliability })
	stats.CorrectionSuccessRate = distribution(summaries, func(s Summary) float64 { return s.CorrectionSuccessRate })
	return stats
}

func distribution(summaries []Summary, pick func(Summary) float64) Distribution {
	d := Distribution{Min: math.Inf(1), Max: math.Inf(-1)}
	var sum float64
	for _, s := range summaries {
		v := pick(s)
		sum += v
		if v < d.Min {
			d.Min = v
		}
		if v > d.Max {
			d.Max = v
		}
	}
	d.Mean = sum / float64(len(summaries))

	var sq float64
	for _, s := range summaries {
		diff := pick(s) - d.Mean
		sq += diff * diff
	}
	d.Std = math.Sqrt(sq / float64(len(summaries)))
	return d
}

// #endregion distribution
