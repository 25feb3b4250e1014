package orchestrator

// #region imports
import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/danielpatrickdp/qec-controller/internal/code"
	"github.com/danielpatrickdp/qec-controller/internal/noise"
	"github.com/danielpatrickdp/qec-controller/internal/schedule"
	"github.com/google/uuid"
)

// #endregion

// #region orchestrator-struct

// Orchestrator drives the closed correction loop for one logical
// qubit: measure syndrome, decode, apply correction, update the error
// model, ask the scheduler for the next delay, record history. It owns
// all mutable state; the decoder and metrics stages are pure functions
// over data it passes in. Cycles are strictly sequential — cycle N's
// correction completes before cycle N+1's measurement means anything.
type Orchestrator struct {
	hw       Hardware
	config   Config
	retry    *RetryEngine
	sched    *schedule.Scheduler
	estimate noise.Estimate
	log      *slog.Logger

	adaptive   bool // kill switch: QEC_ADAPTIVE=false pins the delay at InitialDelay
	cycleIndex int  // monotone across Run invocations; no cycle index is re-emitted
}

// #endregion orchestrator-struct

// #region constructor

// New validates the configuration and the backend's capabilities, then
// wires the controller. Coherence times are queried exactly once here
// to seed the scheduler's ceiling; nothing else touches hardware until
// Run.
func New(hw Hardware, cfg Config, logger *slog.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Qubits == nil {
		cfg.Qubits = []int{0, 1, 2}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("controller config: %w", err)
	}

	caps := hw.Capabilities()
	if caps.NumQubits < len(cfg.Qubits) {
		return nil, fmt.Errorf("backend has %d qubits, code needs %d", caps.NumQubits, len(cfg.Qubits))
	}
	if !caps.DynamicCircuits {
		return nil, fmt.Errorf("backend lacks dynamic-circuit support required for in-loop correction")
	}

	sched, err := schedule.New(cfg.Schedule, hw.CoherenceTimes())
	if err != nil {
		return nil, err
	}

	adaptive := true
	if v := os.Getenv("QEC_ADAPTIVE"); v == "false" {
		adaptive = false
	}

	return &Orchestrator{
		hw:       hw,
		config:   cfg,
		retry:    NewRetryEngine(cfg.RetryCap, cfg.BackoffBase),
		sched:    sched,
		estimate: noise.NewEstimate(cfg.Noise),
		log:      logger,
		adaptive: adaptive,
	}, nil
}

// #endregion constructor

// #region run

// Run executes numCycles correction cycles and returns the records
// produced, including on partial failure. shots is the per-cycle
// logical readout sample count: after each successful correction the
// backend samples the majority-vote readout that many times, and the
// disagreement count lands in the cycle record. The stop signal (ctx
// cancellation) is honored between cycles only, never mid-cycle, so
// physical qubits are not left with a measured-but-uncorrected
// syndrome.
//
// Run may be called again on the same orchestrator; cycle indices
// continue where the previous run left off.
func (o *Orchestrator) Run(ctx context.Context, numCycles, shots int) (RunResult, error) {
	if numCycles <= 0 {
		return RunResult{}, fmt.Errorf("cycles requested must be positive, got %d", numCycles)
	}
	if shots <= 0 {
		return RunResult{}, fmt.Errorf("shots per cycle must be positive, got %d", shots)
	}

	result := RunResult{
		RunID:   uuid.NewString(),
		Records: make([]CycleRecord, 0, numCycles),
		Status:  StatusCompleted,
	}
	delay := o.sched.State().Delay

	o.log.Info("run started",
		"run_id", result.RunID, "cycles", numCycles, "shots", shots,
		"adaptive", o.adaptive, "ceiling", o.sched.State().Ceiling)

	for n := 0; n < numCycles; n++ {
		select {
		case <-ctx.Done():
			result.Status = StatusStopped
			result.Scheduler = o.sched.State()
			result.Estimate = o.estimate
			o.log.Info("run stopped", "run_id", result.RunID, "completed_cycles", len(result.Records))
			return result, nil
		default:
		}

		if !wait(ctx, delay) {
			result.Status = StatusStopped
			result.Scheduler = o.sched.State()
			result.Estimate = o.estimate
			o.log.Info("run stopped", "run_id", result.RunID, "completed_cycles", len(result.Records))
			return result, nil
		}

		rec, next, err := o.cycle(ctx, result.RunID, delay, shots)
		result.Records = append(result.Records, rec)

		var cohErr *schedule.CoherenceBudgetError
		switch {
		case err == nil:
			delay = next
		case errors.As(err, &cohErr):
			result.Status = StatusCoherenceExceeded
			result.Scheduler = cohErr.State
			result.Estimate = o.estimate
			o.log.Error("coherence budget exceeded, terminating run",
				"run_id", result.RunID, "computed", cohErr.Computed, "ceiling", cohErr.State.Ceiling)
			return result, fmt.Errorf("run %s: %w", result.RunID, cohErr)
		default:
			// Decode fault: hardware produced a syndrome outside the
			// table. Never silently corrected to Identity.
			result.Status = StatusAborted
			result.Scheduler = o.sched.State()
			result.Estimate = o.estimate
			return result, fmt.Errorf("run %s: %w", result.RunID, err)
		}
	}

	result.Scheduler = o.sched.State()
	result.Estimate = o.estimate
	o.log.Info("run completed", "run_id", result.RunID, "cycles", len(result.Records))
	return result, nil
}

// #endregion run

// #region cycle

// cycle executes one full correction cycle and returns its record and
// the delay before the next cycle. A record is always returned, fully
// built; on transient-fault exhaustion it is marked failed and the
// current delay carries over unchanged.
func (o *Orchestrator) cycle(ctx context.Context, runID string, delay time.Duration, shots int) (CycleRecord, time.Duration, error) {
	rec := CycleRecord{
		Index:      o.cycleIndex,
		RunID:      runID,
		Timestamp:  time.Now().UTC(),
		Correction: code.Identity,
		WaitBefore: delay,
	}
	o.cycleIndex++

	// Cancellation is honored between cycles only: hardware calls in a
	// started cycle run to completion under their own deadlines.
	hwCtx := context.WithoutCancel(ctx)

	start := time.Now()
	var syn code.Syndrome
	calls, err := o.retry.Do(hwCtx, func(ctx context.Context) error {
		mctx, cancel := context.WithTimeout(ctx, o.sched.State().Ceiling)
		defer cancel()
		var merr error
		syn, merr = o.hw.MeasureSyndrome(mctx, o.config.Qubits)
		return merr
	})
	if err != nil {
		rec.RoundTrip = time.Since(start)
		o.log.Warn("cycle failed: measurement retries exhausted",
			"cycle", rec.Index, "calls", calls, "err", err)
		return rec, delay, nil
	}

	correction, err := code.Decode(syn)
	if err != nil {
		rec.RoundTrip = time.Since(start)
		return rec, delay, err
	}
	rec.Syndrome = syn
	rec.Correction = correction

	if correction != code.Identity {
		_, err = o.retry.Do(hwCtx, func(ctx context.Context) error {
			actx, cancel := context.WithTimeout(ctx, o.sched.State().Ceiling)
			defer cancel()
			return o.hw.ApplyCorrection(actx, correction, o.config.Qubits)
		})
		if err != nil {
			// Measured but uncorrected: the error persists into the next
			// cycle, where a fresh syndrome will catch it again.
			rec.RoundTrip = time.Since(start)
			o.log.Warn("cycle failed: correction retries exhausted",
				"cycle", rec.Index, "correction", correction, "err", err)
			return rec, delay, nil
		}
	}

	var readoutErrs int
	_, err = o.retry.Do(hwCtx, func(ctx context.Context) error {
		rctx, cancel := context.WithTimeout(ctx, o.sched.State().Ceiling)
		defer cancel()
		var rerr error
		readoutErrs, rerr = o.hw.MeasureLogical(rctx, shots)
		return rerr
	})
	if err != nil {
		// The correction stood; only the diagnostic readout was lost.
		// LogicalShots stays zero so the metrics layer skips this cycle.
		o.log.Warn("logical readout retries exhausted",
			"cycle", rec.Index, "err", err)
	} else {
		rec.LogicalShots = shots
		rec.LogicalErrors = readoutErrs
	}
	rec.RoundTrip = time.Since(start)
	rec.Success = true

	o.estimate = noise.Observe(o.estimate, syn, o.config.Noise)
	risk := noise.AggregateRisk(o.estimate, o.config.Noise)

	next := delay
	if o.adaptive {
		next, err = o.sched.NextDelay(risk, syn.Weight())
		if err != nil {
			return rec, delay, err
		}
	}

	o.log.Debug("cycle completed",
		"cycle", rec.Index, "syndrome", syn.String(), "correction", correction,
		"risk", risk, "next_delay", next)
	return rec, next, nil
}

// #endregion cycle

// #region helpers

// wait sleeps for the inter-cycle delay. Returns false if cancellation
// arrived first; the cycle about to start has not touched hardware yet,
// so stopping here still counts as between cycles.
func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// #endregion helpers
