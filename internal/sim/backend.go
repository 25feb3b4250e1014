package sim

// #region imports
import (
	"context"
	"math/rand"
	"time"

	"github.com/danielpatrickdp/qec-controller/internal/code"
	"github.com/danielpatrickdp/qec-controller/internal/orchestrator"
	"github.com/danielpatrickdp/qec-controller/internal/schedule"
)

// #endregion

// #region config

// BackendConfig describes a simulated backend. The zero value is not
// usable; start from DefaultBackendConfig.
type BackendConfig struct {
	Coherence schedule.Coherence
	FlipProb  float64       // per-qubit bit-flip probability per measurement
	Seed      int64         // RNG seed for the flip channel
	Latency   time.Duration // simulated round-trip per hardware call

	// InjectAt maps a measurement ordinal to qubits flipped just before
	// that measurement, for deterministic per-qubit error-injection
	// benchmark scenarios.
	InjectAt map[int][]int

	// Fault injection for retry-policy tests: the first MeasureFails
	// measurement calls (and ApplyFails correction calls) return
	// FailWith before the backend starts succeeding.
	MeasureFails int
	ApplyFails   int
	FailWith     error

	// Script, when non-empty, overrides state-derived measurement: call
	// k returns Script[k] (clamped to the last entry).
	Script []code.Syndrome
}

// DefaultBackendConfig returns a quiet, fault-free backend with
// generous coherence times.
func DefaultBackendConfig() BackendConfig {
	return BackendConfig{
		Coherence: schedule.Coherence{T1Min: time.Second, T2Min: time.Second},
	}
}

// #endregion config

// #region backend

// Backend is an in-memory hardware simulator tracking the classical
// bit-flip frame of the three data qubits. It implements
// orchestrator.Hardware. Not safe for concurrent use: one backend per
// controller, matching the one-loop-per-logical-qubit model.
type Backend struct {
	config   BackendConfig
	state    code.DataState
	rng      *rand.Rand
	measured int // successful measurement count
	applied  int // successful correction count
	mFails   int
	aFails   int
}

// NewBackend creates a simulator from config.
func NewBackend(cfg BackendConfig) *Backend {
	if cfg.FailWith == nil {
		cfg.FailWith = orchestrator.ErrHardwareUnavailable
	}
	return &Backend{
		config: cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		mFails: cfg.MeasureFails,
		aFails: cfg.ApplyFails,
	}
}

// State returns the current bit-flip frame, for test assertions.
func (b *Backend) State() code.DataState {
	return b.state
}

// LogicalValue returns the majority-vote readout of the frame.
func (b *Backend) LogicalValue() uint8 {
	return code.MajorityVote(b.state)
}

// MeasureCalls returns the total number of successful measurements.
func (b *Backend) MeasureCalls() int {
	return b.measured
}

// AppliedCorrections returns the number of corrections accepted.
func (b *Backend) AppliedCorrections() int {
	return b.applied
}

// #endregion backend

// #region hardware-impl

// MeasureSyndrome applies channel noise and any scheduled injection,
// then returns the stabilizer parities of the frame.
func (b *Backend) MeasureSyndrome(ctx context.Context, qubits []int) (code.Syndrome, error) {
	if err := b.latency(ctx); err != nil {
		return code.Syndrome{}, err
	}
	if b.mFails > 0 {
		b.mFails--
		return code.Syndrome{}, b.config.FailWith
	}

	if b.config.FlipProb > 0 {
		for q := range b.state {
			if b.rng.Float64() < b.config.FlipProb {
				b.state = code.Flip(q, b.state)
			}
		}
	}
	if flips, ok := b.config.InjectAt[b.measured]; ok {
		for _, q := range flips {
			b.state = code.Flip(q, b.state)
		}
	}

	var syn code.Syndrome
	if len(b.config.Script) > 0 {
		i := b.measured
		if i >= len(b.config.Script) {
			i = len(b.config.Script) - 1
		}
		syn = b.config.Script[i]
	} else {
		syn = code.Measure(b.state)
	}
	b.measured++
	return syn, nil
}

// ApplyCorrection flips the correction's target qubit in the frame.
func (b *Backend) ApplyCorrection(ctx context.Context, c code.Correction, qubits []int) error {
	if err := b.latency(ctx); err != nil {
		return err
	}
	if b.aFails > 0 {
		b.aFails--
		return b.config.FailWith
	}
	b.state = code.Apply(c, b.state)
	b.applied++
	return nil
}

// MeasureLogical samples the majority-vote readout shots times. Each
// shot re-draws the stochastic flip channel on a copy of the frame, so
// the encoded state is not disturbed. Returns the number of samples
// that read logical one against the encoded zero.
func (b *Backend) MeasureLogical(ctx context.Context, shots int) (int, error) {
	if err := b.latency(ctx); err != nil {
		return 0, err
	}
	disagree := 0
	for s := 0; s < shots; s++ {
		frame := b.state
		if b.config.FlipProb > 0 {
			for q := range frame {
				if b.rng.Float64() < b.config.FlipProb {
					frame = code.Flip(q, frame)
				}
			}
		}
		if code.MajorityVote(frame) != 0 {
			disagree++
		}
	}
	return disagree, nil
}

// CoherenceTimes returns the configured coherence floor.
func (b *Backend) CoherenceTimes() schedule.Coherence {
	return b.config.Coherence
}

// Capabilities reports a 3-qubit dynamic-circuit backend.
func (b *Backend) Capabilities() orchestrator.Capabilities {
	return orchestrator.Capabilities{NumQubits: 3, DynamicCircuits: true}
}

// #endregion hardware-impl

// #region latency

func (b *Backend) latency(ctx context.Context) error {
	if b.config.Latency <= 0 {
		return nil
	}
	t := time.NewTimer(b.config.Latency)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// #endregion latency
