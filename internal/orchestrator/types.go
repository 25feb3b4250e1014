package orchestrator

// #region imports
import (
	"fmt"
	"time"

	"github.com/danielpatrickdp/qec-controller/internal/code"
	"github.com/danielpatrickdp/qec-controller/internal/noise"
	"github.com/danielpatrickdp/qec-controller/internal/schedule"
)

// #endregion

// #region cycle-record

// CycleRecord is the immutable account of one completed correction
// cycle. Records are constructed fully, then appended; partial records
// are never visible outside the orchestrator. The accumulated history
// is the sole input to the metrics aggregator.
type CycleRecord struct {
	Index      int
	RunID      string
	Timestamp  time.Time
	Syndrome   code.Syndrome
	Correction code.Correction
	WaitBefore time.Duration // delay observed before this cycle
	RoundTrip  time.Duration // hardware round-trip latency for the cycle
	Success    bool          // false when retries were exhausted

	LogicalShots  int // readout samples taken after the correction; 0 when readout was lost
	LogicalErrors int // samples whose majority vote disagreed with the encoded value
}

// #endregion cycle-record

// #region run-status

// RunStatus distinguishes how a run ended.
type RunStatus string

const (
	StatusCompleted         RunStatus = "completed"          // all requested cycles ran
	StatusStopped           RunStatus = "stopped"            // external stop between cycles
	StatusCoherenceExceeded RunStatus = "coherence_exceeded" // scheduler demanded more than the budget
	StatusAborted           RunStatus = "aborted"            // unrecoverable decode fault
)

// #endregion run-status

// #region run-result

// RunResult bundles a run's history with its terminal condition. The
// records are valid and complete even when the status is not
// StatusCompleted: callers consume whatever was produced before the
// interruption. Scheduler carries the last valid scheduler state for
// diagnosis.
type RunResult struct {
	RunID     string
	Records   []CycleRecord
	Status    RunStatus
	Scheduler schedule.State
	Estimate  noise.Estimate
}

// #endregion run-result

// #region config

// Config is the controller configuration surface consumed by the
// orchestrator. Validated at construction, before any hardware call.
type Config struct {
	Noise       noise.Config
	Schedule    schedule.Config
	RetryCap    int           // retries per hardware call after the first attempt
	BackoffBase time.Duration // first backoff interval, doubled per retry
	Qubits      []int         // physical data qubit indices; defaults to {0,1,2}
}

// DefaultConfig returns a controller configuration with all stage
// defaults applied.
func DefaultConfig() Config {
	return Config{
		Noise:       noise.DefaultConfig(),
		Schedule:    schedule.DefaultConfig(),
		RetryCap:    3,
		BackoffBase: 200 * time.Microsecond,
		Qubits:      []int{0, 1, 2},
	}
}

// Validate rejects unusable configuration.
func (c Config) Validate() error {
	if err := c.Noise.Validate(); err != nil {
		return fmt.Errorf("noise config: %w", err)
	}
	if err := c.Schedule.Validate(); err != nil {
		return err
	}
	if c.RetryCap < 0 {
		return fmt.Errorf("retry cap %d negative", c.RetryCap)
	}
	if c.BackoffBase <= 0 {
		return fmt.Errorf("backoff base %v not positive", c.BackoffBase)
	}
	if len(c.Qubits) != 3 {
		return fmt.Errorf("bit-flip code needs exactly 3 data qubits, got %d", len(c.Qubits))
	}
	return nil
}

// #endregion config
