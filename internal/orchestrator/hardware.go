package orchestrator

// #region imports
import (
	"context"
	"errors"

	"github.com/danielpatrickdp/qec-controller/internal/code"
	"github.com/danielpatrickdp/qec-controller/internal/schedule"
)

// #endregion

// #region errors

// Transient hardware faults. The orchestrator retries these with
// bounded backoff; exhaustion marks one cycle failed and the loop
// continues.
var (
	ErrHardwareUnavailable = errors.New("hardware unavailable")
	ErrTimeout             = errors.New("hardware timeout")
)

// IsTransient reports whether an error is retryable under the cycle
// retry policy. A deadline expiry from the per-call coherence budget
// counts as a timeout, not a success.
func IsTransient(err error) bool {
	return errors.Is(err, ErrHardwareUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}

// #endregion errors

// #region capabilities

// Capabilities describes what the backend can do. Validated once at
// controller construction; the run loop never branches on it.
type Capabilities struct {
	NumQubits       int
	DynamicCircuits bool // mid-circuit measurement with conditional correction
}

// #endregion capabilities

// #region hardware-interface

// Hardware abstracts the backend the controller drives. Circuit
// construction, transpilation, and job submission live behind this
// interface; the core only sees syndromes and corrections.
//
// Every blocking call receives a context whose deadline is the
// coherence ceiling; exceeding it counts as a transient fault.
// ApplyCorrection must be applied before the next measurement is
// meaningful. MeasureLogical samples the majority-vote logical readout
// shots times without disturbing the encoded state and returns the
// number of samples that disagreed with the encoded value.
type Hardware interface {
	MeasureSyndrome(ctx context.Context, qubits []int) (code.Syndrome, error)
	ApplyCorrection(ctx context.Context, c code.Correction, qubits []int) error
	MeasureLogical(ctx context.Context, shots int) (int, error)
	CoherenceTimes() schedule.Coherence
	Capabilities() Capabilities
}

// #endregion hardware-interface
