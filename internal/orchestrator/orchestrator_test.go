package orchestrator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danielpatrickdp/qec-controller/internal/code"
	"github.com/danielpatrickdp/qec-controller/internal/metrics"
	"github.com/danielpatrickdp/qec-controller/internal/orchestrator"
	"github.com/danielpatrickdp/qec-controller/internal/schedule"
	"github.com/danielpatrickdp/qec-controller/internal/sim"
)

func testControllerConfig() orchestrator.Config {
	cfg := orchestrator.DefaultConfig()
	cfg.Schedule = schedule.Config{
		InitialDelay:   100 * time.Microsecond,
		MinCycleTime:   20 * time.Microsecond,
		HighWater:      0.25,
		LowWater:       0.08,
		QuietCycles:    1,
		GrowthFactor:   1.25,
		DirectionDwell: 2,
	}
	cfg.BackoffBase = 10 * time.Microsecond
	return cfg
}

func newController(t *testing.T, backend *sim.Backend, cfg orchestrator.Config) *orchestrator.Orchestrator {
	t.Helper()
	o, err := orchestrator.New(backend, cfg, nil)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return o
}

func TestQuietRunEndToEnd(t *testing.T) {
	backend := sim.NewBackend(sim.DefaultBackendConfig())
	o := newController(t, backend, testControllerConfig())

	result, err := o.Run(context.Background(), 10, 100)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Status != orchestrator.StatusCompleted {
		t.Fatalf("status %s, want completed", result.Status)
	}
	if len(result.Records) != 10 {
		t.Fatalf("%d records, want 10", len(result.Records))
	}

	for i, rec := range result.Records {
		if !rec.Success {
			t.Fatalf("cycle %d failed on a clean backend", i)
		}
		if rec.Correction != code.Identity {
			t.Fatalf("cycle %d applied %s to a clean state", i, rec.Correction)
		}
		if rec.LogicalShots != 100 || rec.LogicalErrors != 0 {
			t.Fatalf("cycle %d readout %d/%d, want 0/100", i, rec.LogicalErrors, rec.LogicalShots)
		}
		// Quiet cycles grow the delay, so the observed wait before each
		// subsequent cycle strictly increases (capped at the ceiling).
		if i > 0 && rec.WaitBefore <= result.Records[i-1].WaitBefore {
			t.Fatalf("cycle %d wait %v did not grow from %v", i, rec.WaitBefore, result.Records[i-1].WaitBefore)
		}
	}

	sum := metrics.Summarize(result.Records)
	if sum.LogicalErrorRate != 0 {
		t.Fatalf("logical error rate %v, want 0", sum.LogicalErrorRate)
	}
	if sum.CorrectionSuccessRate != 1 {
		t.Fatalf("correction success rate %v, want 1", sum.CorrectionSuccessRate)
	}
}

func TestInjectedErrorCorrectedAndDecays(t *testing.T) {
	bc := sim.DefaultBackendConfig()
	bc.InjectAt = map[int][]int{5: {1}} // flip qubit 1 before cycle 5's measurement
	backend := sim.NewBackend(bc)
	o := newController(t, backend, testControllerConfig())

	result, err := o.Run(context.Background(), 10, 100)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	rec := result.Records[5]
	if rec.Syndrome != (code.Syndrome{S0: 1, S1: 1}) {
		t.Fatalf("cycle 5 syndrome %v, want (1,1)", rec.Syndrome)
	}
	if rec.Correction != code.FlipQubit1 {
		t.Fatalf("cycle 5 correction %s, want FlipQubit1", rec.Correction)
	}

	// The correction restored the frame.
	if backend.State() != (code.DataState{}) {
		t.Fatalf("residual state %v after correction", backend.State())
	}
	if backend.LogicalValue() != 0 {
		t.Fatal("logical value corrupted")
	}
	if backend.AppliedCorrections() != 1 {
		t.Fatalf("%d corrections applied, want exactly 1", backend.AppliedCorrections())
	}

	// The qubit-1 estimate bumped and then decayed over the trailing
	// trivial cycles, staying above the floor and below a fresh bump.
	cfg := testControllerConfig()
	floor := cfg.Noise.Floor
	p1 := result.Estimate.PerQubit[1]
	if p1 <= floor {
		t.Fatalf("qubit-1 estimate %v not above floor %v", p1, floor)
	}
	if p1 >= floor+cfg.Noise.LearningRate {
		t.Fatalf("qubit-1 estimate %v did not decay after the bump", p1)
	}
	if result.Estimate.PerQubit[0] > result.Estimate.PerQubit[1] {
		t.Fatal("unimplicated qubit rose above the implicated one")
	}
}

func TestMeasurementRetriesExhaustedMarksCycleFailed(t *testing.T) {
	cfg := testControllerConfig()
	cfg.RetryCap = 3

	bc := sim.DefaultBackendConfig()
	bc.MeasureFails = 5 // cycle 0 burns 4 calls and fails; cycle 1 retries once and succeeds
	backend := sim.NewBackend(bc)
	o := newController(t, backend, cfg)

	result, err := o.Run(context.Background(), 3, 10)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Status != orchestrator.StatusCompleted {
		t.Fatalf("status %s: a failed cycle must not abort the run", result.Status)
	}
	if result.Records[0].Success {
		t.Fatal("cycle 0 should have exhausted retries")
	}
	if !result.Records[1].Success || !result.Records[2].Success {
		t.Fatal("loop did not self-heal after the failed cycle")
	}

	sum := metrics.Summarize(result.Records)
	want := 1 - 1.0/3.0
	if diff := sum.CorrectionSuccessRate - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("correction success rate %v, want %v", sum.CorrectionSuccessRate, want)
	}
}

func TestBlockedCorrectionTimesOutAsFailedCycle(t *testing.T) {
	cfg := testControllerConfig()
	cfg.RetryCap = 1

	// The backend's ApplyCorrection never returns on its own; only the
	// per-call coherence deadline can unblock it. The cycle must end as
	// a failed cycle, not a hang.
	hw := &staticHardware{
		caps:        orchestrator.Capabilities{NumQubits: 3, DynamicCircuits: true},
		coherence:   schedule.Coherence{T1Min: 10 * time.Millisecond, T2Min: 10 * time.Millisecond}, // per-call deadline 1ms
		syn:         code.Syndrome{S0: 1, S1: 1},
		applyBlocks: true,
	}
	o, err := orchestrator.New(hw, cfg, nil)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}

	var result orchestrator.RunResult
	var runErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		result, runErr = o.Run(context.Background(), 1, 10)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run hung on a correction call that only its deadline can unblock")
	}

	if runErr != nil {
		t.Fatalf("run: %v", runErr)
	}
	if result.Status != orchestrator.StatusCompleted {
		t.Fatalf("status %s: exhausted correction retries must not abort the run", result.Status)
	}
	rec := result.Records[0]
	if rec.Success {
		t.Fatal("cycle succeeded though the correction never applied")
	}
	if rec.Correction != code.FlipQubit1 {
		t.Fatalf("record correction %s, want the decoded FlipQubit1", rec.Correction)
	}
}

func TestDoubleErrorMeasuredInLogicalReadout(t *testing.T) {
	bc := sim.DefaultBackendConfig()
	bc.InjectAt = map[int][]int{0: {0, 1}} // two flips in one cycle, past the code distance
	backend := sim.NewBackend(bc)
	o := newController(t, backend, testControllerConfig())

	result, err := o.Run(context.Background(), 4, 50)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// Two flips present as a single qubit-2 error; the miscorrection
	// leaves the frame fully inverted and every readout shot sees it.
	if result.Records[0].Correction != code.FlipQubit2 {
		t.Fatalf("cycle 0 correction %s, want FlipQubit2", result.Records[0].Correction)
	}
	if backend.LogicalValue() != 1 {
		t.Fatal("frame should hold an undetectable logical flip")
	}
	for i, rec := range result.Records {
		if rec.LogicalShots != 50 || rec.LogicalErrors != 50 {
			t.Fatalf("cycle %d readout %d/%d, want 50/50", i, rec.LogicalErrors, rec.LogicalShots)
		}
	}
	sum := metrics.Summarize(result.Records)
	if sum.LogicalErrorRate != 1 {
		t.Fatalf("logical error rate %v, want 1", sum.LogicalErrorRate)
	}
}

func TestCoherenceBudgetExceededIsFatal(t *testing.T) {
	cfg := testControllerConfig()
	cfg.Schedule.InitialDelay = 900 * time.Microsecond
	cfg.Schedule.MinCycleTime = 100 * time.Microsecond

	bc := sim.DefaultBackendConfig()
	bc.Coherence = schedule.Coherence{T1Min: 10 * time.Millisecond, T2Min: 10 * time.Millisecond} // ceiling 1ms
	backend := sim.NewBackend(bc)
	o := newController(t, backend, cfg)

	result, err := o.Run(context.Background(), 10, 10)
	if err == nil {
		t.Fatal("expected fatal coherence error")
	}
	var cohErr *schedule.CoherenceBudgetError
	if !errors.As(err, &cohErr) {
		t.Fatalf("error %v does not carry the scheduler condition", err)
	}
	if result.Status != orchestrator.StatusCoherenceExceeded {
		t.Fatalf("status %s, want coherence_exceeded", result.Status)
	}
	// Partial history and last valid scheduler state are still returned.
	if len(result.Records) == 0 {
		t.Fatal("no records surfaced with the fatal condition")
	}
	if result.Scheduler.Ceiling != time.Millisecond {
		t.Fatalf("scheduler state ceiling %v, want 1ms", result.Scheduler.Ceiling)
	}
}

func TestStopSignalBetweenCycles(t *testing.T) {
	backend := sim.NewBackend(sim.DefaultBackendConfig())
	o := newController(t, backend, testControllerConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := o.Run(ctx, 10, 10)
	if err != nil {
		t.Fatalf("stop is not an error: %v", err)
	}
	if result.Status != orchestrator.StatusStopped {
		t.Fatalf("status %s, want stopped", result.Status)
	}
	if len(result.Records) != 0 {
		t.Fatalf("pre-canceled context still ran %d cycles", len(result.Records))
	}
}

func TestRunIndicesContinueAcrossRuns(t *testing.T) {
	backend := sim.NewBackend(sim.DefaultBackendConfig())
	o := newController(t, backend, testControllerConfig())

	first, err := o.Run(context.Background(), 3, 10)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := o.Run(context.Background(), 3, 10)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first.RunID == second.RunID {
		t.Fatal("runs share an ID")
	}
	if second.Records[0].Index != 3 {
		t.Fatalf("second run restarted numbering at %d; cycles must never be re-emitted", second.Records[0].Index)
	}
}

func TestConstructionRejections(t *testing.T) {
	backend := sim.NewBackend(sim.DefaultBackendConfig())

	cfg := testControllerConfig()
	cfg.Schedule.LowWater = 0.9 // above high water
	if _, err := orchestrator.New(backend, cfg, nil); err == nil {
		t.Fatal("inverted water marks accepted")
	}

	cfg = testControllerConfig()
	cfg.RetryCap = -1
	if _, err := orchestrator.New(backend, cfg, nil); err == nil {
		t.Fatal("negative retry cap accepted")
	}

	o := newController(t, backend, testControllerConfig())
	if _, err := o.Run(context.Background(), 0, 10); err == nil {
		t.Fatal("zero cycles accepted")
	}
	if _, err := o.Run(context.Background(), 5, 0); err == nil {
		t.Fatal("zero shots accepted")
	}
}

func TestCapabilityValidationAtConstruction(t *testing.T) {
	backend := &staticHardware{caps: orchestrator.Capabilities{NumQubits: 3, DynamicCircuits: false}}
	if _, err := orchestrator.New(backend, testControllerConfig(), nil); err == nil {
		t.Fatal("backend without dynamic circuits accepted")
	}

	backend = &staticHardware{caps: orchestrator.Capabilities{NumQubits: 2, DynamicCircuits: true}}
	if _, err := orchestrator.New(backend, testControllerConfig(), nil); err == nil {
		t.Fatal("2-qubit backend accepted for a 3-qubit code")
	}
}

func TestAdaptiveKillSwitch(t *testing.T) {
	t.Setenv("QEC_ADAPTIVE", "false")

	backend := sim.NewBackend(sim.DefaultBackendConfig())
	o := newController(t, backend, testControllerConfig())

	result, err := o.Run(context.Background(), 5, 10)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for i, rec := range result.Records {
		if rec.WaitBefore != 100*time.Microsecond {
			t.Fatalf("cycle %d wait %v: kill switch should pin the initial delay", i, rec.WaitBefore)
		}
	}
}

// staticHardware is a scriptable Hardware stub for capability and
// fault-path tests.
type staticHardware struct {
	caps        orchestrator.Capabilities
	coherence   schedule.Coherence
	syn         code.Syndrome
	applyBlocks bool // ApplyCorrection hangs until its context expires
}

func (h *staticHardware) MeasureSyndrome(context.Context, []int) (code.Syndrome, error) {
	return h.syn, nil
}

func (h *staticHardware) ApplyCorrection(ctx context.Context, _ code.Correction, _ []int) error {
	if h.applyBlocks {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (h *staticHardware) MeasureLogical(context.Context, int) (int, error) {
	return 0, nil
}

func (h *staticHardware) CoherenceTimes() schedule.Coherence {
	if h.coherence == (schedule.Coherence{}) {
		return schedule.Coherence{T1Min: time.Second, T2Min: time.Second}
	}
	return h.coherence
}

func (h *staticHardware) Capabilities() orchestrator.Capabilities {
	return h.caps
}
