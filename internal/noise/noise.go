package noise

// #region imports
import (
	"fmt"

	"github.com/danielpatrickdp/qec-controller/internal/code"
)

// #endregion

// #region config

// Config holds the tuning knobs for the error model.
type Config struct {
	LearningRate      float64 // bump added to implicated qubits per non-trivial syndrome
	DecayRate         float64 // per-cycle decay of estimates toward the floor
	Floor             float64 // residual noise floor; estimates never fall below it
	CorrelationWeight float64 // weight of correlation terms in the aggregate risk (>1: correlated errors escalate faster)
}

// DefaultConfig returns sensible defaults. CorrelationWeight is the
// tunable from the risk formula: correlated errors predict escalation
// to uncorrectable double-errors, so they count double by default.
func DefaultConfig() Config {
	return Config{
		LearningRate:      0.15,
		DecayRate:         0.10,
		Floor:             0.01,
		CorrelationWeight: 2.0,
	}
}

// Validate rejects unusable parameters before any cycle runs.
func (c Config) Validate() error {
	if c.LearningRate <= 0 || c.LearningRate > 1 {
		return fmt.Errorf("learning rate %v outside (0,1]", c.LearningRate)
	}
	if c.DecayRate < 0 || c.DecayRate >= 1 {
		return fmt.Errorf("decay rate %v outside [0,1)", c.DecayRate)
	}
	if c.Floor < 0 || c.Floor >= 1 {
		return fmt.Errorf("floor %v outside [0,1)", c.Floor)
	}
	if c.CorrelationWeight < 0 {
		return fmt.Errorf("correlation weight %v negative", c.CorrelationWeight)
	}
	return nil
}

// #endregion config

// #region estimate

// Estimate is the error model's state: instantaneous per-qubit bit-flip
// probabilities plus excess joint-flip probability for the two adjacent
// pairs (0,1) and (1,2). LastSyndrome carries the previous cycle's
// outcome so consecutive triggers on the same stabilizer can be
// detected; nil before the first observation.
type Estimate struct {
	PerQubit     [3]float64
	Correlation  [2]float64
	LastSyndrome *code.Syndrome
}

// NewEstimate seeds all per-qubit estimates at the residual floor.
func NewEstimate(cfg Config) Estimate {
	return Estimate{
		PerQubit: [3]float64{cfg.Floor, cfg.Floor, cfg.Floor},
	}
}

// #endregion estimate

// #region observe

// Observe is a pure function computing the next estimate from the
// current one and a cycle's syndrome. Two passes, mirroring the
// non-stationarity assumption: first every estimate decays toward the
// floor (thermal drift forgets old evidence), then qubits implicated by
// a non-trivial syndrome get a learning-rate bump. A stabilizer that
// triggers in two consecutive cycles increments the correlation entry
// for its qubit pair.
func Observe(est Estimate, outcome code.Syndrome, cfg Config) Estimate {
	next := est

	// Decay pass.
	for i := range next.PerQubit {
		next.PerQubit[i] = cfg.Floor + (next.PerQubit[i]-cfg.Floor)*(1-cfg.DecayRate)
	}
	for i := range next.Correlation {
		next.Correlation[i] *= 1 - cfg.DecayRate
	}

	// Bump pass.
	for _, q := range code.Implicated(outcome) {
		next.PerQubit[q] = clamp(next.PerQubit[q]+cfg.LearningRate, cfg.Floor, 1)
	}

	// Consecutive triggers on the same stabilizer raise the excess
	// joint-flip estimate for that stabilizer's qubit pair.
	if est.LastSyndrome != nil {
		if outcome.S0 == 1 && est.LastSyndrome.S0 == 1 {
			next.Correlation[0] = clamp(next.Correlation[0]+cfg.LearningRate, 0, 1)
		}
		if outcome.S1 == 1 && est.LastSyndrome.S1 == 1 {
			next.Correlation[1] = clamp(next.Correlation[1]+cfg.LearningRate, 0, 1)
		}
	}

	last := outcome
	next.LastSyndrome = &last
	return next
}

// #endregion observe

// #region risk

// AggregateRisk collapses the estimate into a single score in [0,1]:
// a weighted sum of per-qubit and correlation terms, normalized by the
// maximum attainable sum so the scheduler can compare it against fixed
// water marks.
func AggregateRisk(est Estimate, cfg Config) float64 {
	var sum float64
	for _, p := range est.PerQubit {
		sum += p
	}
	for _, c := range est.Correlation {
		sum += cfg.CorrelationWeight * c
	}
	maxSum := 3 + cfg.CorrelationWeight*2
	return clamp(sum/maxSum, 0, 1)
}

// #endregion risk

// #region helpers

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// #endregion helpers
