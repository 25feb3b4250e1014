package schedule

// #region imports
import (
	"fmt"
	"time"
)

// #endregion

// #region constants

// emaAlpha smooths the syndrome-weight moving average. Small enough
// that one noisy cycle does not swing the diagnostic.
const emaAlpha = 0.2

// coherenceFraction caps the inter-cycle delay at this fraction of the
// shortest coherence time. A cycle period beyond it means errors
// accumulate faster than the single-error decoder can track; treated as
// a hard ceiling, never advisory.
const coherenceFraction = 10

// #endregion constants

// #region coherence

// Coherence holds the minimum T1/T2 times across the physical qubits,
// queried from hardware once at controller start.
type Coherence struct {
	T1Min time.Duration
	T2Min time.Duration
}

// Ceiling derives the hard upper bound on the inter-cycle delay.
func (c Coherence) Ceiling() time.Duration {
	min := c.T1Min
	if c.T2Min < min {
		min = c.T2Min
	}
	return min / coherenceFraction
}

// #endregion coherence

// #region config

// Config holds the scheduler's tuning knobs.
type Config struct {
	InitialDelay   time.Duration // delay before the first adjustment kicks in
	MinCycleTime   time.Duration // hardware floor: halving never goes below this
	HighWater      float64       // risk above this halves the delay
	LowWater       float64       // risk below this (for QuietCycles in a row) grows the delay
	QuietCycles    int           // consecutive low-risk cycles required before growing
	GrowthFactor   float64       // multiplicative delay increase per quiet run
	DirectionDwell int           // min cycles between adjustment direction changes
}

// DefaultConfig returns sensible defaults for a simulated backend.
func DefaultConfig() Config {
	return Config{
		InitialDelay:   2 * time.Millisecond,
		MinCycleTime:   500 * time.Microsecond,
		HighWater:      0.25,
		LowWater:       0.08,
		QuietCycles:    3,
		GrowthFactor:   1.25,
		DirectionDwell: 2,
	}
}

// Validate rejects unusable parameters before any hardware interaction.
func (c Config) Validate() error {
	if c.InitialDelay <= 0 {
		return fmt.Errorf("initial delay %v not positive", c.InitialDelay)
	}
	if c.MinCycleTime <= 0 {
		return fmt.Errorf("min cycle time %v not positive", c.MinCycleTime)
	}
	if c.LowWater >= c.HighWater {
		return fmt.Errorf("low water mark %v must be below high water mark %v", c.LowWater, c.HighWater)
	}
	if c.HighWater > 1 || c.LowWater < 0 {
		return fmt.Errorf("water marks %v/%v outside [0,1]", c.LowWater, c.HighWater)
	}
	if c.QuietCycles < 1 {
		return fmt.Errorf("quiet cycles %d must be at least 1", c.QuietCycles)
	}
	if c.GrowthFactor <= 1 {
		return fmt.Errorf("growth factor %v must exceed 1", c.GrowthFactor)
	}
	if c.DirectionDwell < 1 {
		return fmt.Errorf("direction dwell %d must be at least 1", c.DirectionDwell)
	}
	return nil
}

// #endregion config

// #region state

// State is the scheduler's full mutable state, exposed for diagnosis
// when a run terminates.
type State struct {
	Delay           time.Duration // current inter-cycle delay
	WeightEMA       float64       // moving average of syndrome weight
	AdjustFactor    float64       // Delay / InitialDelay, bounded by floor and ceiling
	QuietStreak     int           // consecutive cycles below the low water mark
	LastDirection   int           // -1 shrink, +1 grow, 0 before first adjustment
	CyclesSinceFlip int           // cycles since the last direction change
	Ceiling         time.Duration // coherence-derived hard ceiling
}

// #endregion state

// #region error

// CoherenceBudgetError reports that the risk-driven delay computation
// would exceed the coherence ceiling. This is not clamped away: a delay
// demand beyond the budget means the code is no longer reliable at the
// current noise level, and the caller must terminate the run.
type CoherenceBudgetError struct {
	Computed time.Duration
	State    State
}

func (e *CoherenceBudgetError) Error() string {
	return fmt.Sprintf("coherence budget exceeded: computed delay %v over ceiling %v", e.Computed, e.State.Ceiling)
}

// #endregion error

// #region scheduler

// Scheduler adapts the inter-cycle delay to the observed error risk.
// One instance per controller lifetime; NextDelay is called once per
// completed cycle, strictly sequentially.
type Scheduler struct {
	config Config
	state  State
}

// New seeds a scheduler from config and the hardware's coherence times.
// Fails if the configuration cannot fit inside the coherence budget at
// all, before any cycle runs.
func New(cfg Config, coh Coherence) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scheduler config: %w", err)
	}
	ceiling := coh.Ceiling()
	if ceiling <= 0 {
		return nil, fmt.Errorf("coherence times %v/%v yield no cycle budget", coh.T1Min, coh.T2Min)
	}
	if cfg.MinCycleTime > ceiling {
		return nil, fmt.Errorf("min cycle time %v exceeds coherence ceiling %v", cfg.MinCycleTime, ceiling)
	}
	if cfg.InitialDelay > ceiling {
		return nil, fmt.Errorf("initial delay %v exceeds coherence ceiling %v", cfg.InitialDelay, ceiling)
	}
	return &Scheduler{
		config: cfg,
		state: State{
			Delay:        cfg.InitialDelay,
			AdjustFactor: 1,
			Ceiling:      ceiling,
		},
	}, nil
}

// State returns a copy of the current scheduler state.
func (s *Scheduler) State() State {
	return s.state
}

// #endregion scheduler

// #region next-delay

// NextDelay computes the delay before the next cycle from the current
// aggregate risk and the last syndrome's weight.
//
// Above the high water mark the delay halves (floored at the hardware
// minimum). After QuietCycles consecutive readings below the low water
// mark it grows by GrowthFactor. Direction changes are rate-limited to
// one per DirectionDwell cycles to avoid oscillation (hysteresis, not
// bang-bang control). A growth step that would push past the coherence
// ceiling returns a CoherenceBudgetError instead of a clamped value.
func (s *Scheduler) NextDelay(risk float64, syndromeWeight int) (time.Duration, error) {
	s.state.WeightEMA = emaAlpha*float64(syndromeWeight) + (1-emaAlpha)*s.state.WeightEMA
	s.state.CyclesSinceFlip++

	direction := 0
	switch {
	case risk > s.config.HighWater:
		s.state.QuietStreak = 0
		direction = -1
	case risk < s.config.LowWater:
		s.state.QuietStreak++
		if s.state.QuietStreak >= s.config.QuietCycles {
			direction = 1
			s.state.QuietStreak = 0
		}
	default:
		s.state.QuietStreak = 0
	}

	if direction == 0 {
		return s.state.Delay, nil
	}

	// Rate limit: reversing direction requires a full dwell first.
	if s.state.LastDirection != 0 && direction != s.state.LastDirection &&
		s.state.CyclesSinceFlip < s.config.DirectionDwell {
		return s.state.Delay, nil
	}

	var next time.Duration
	if direction < 0 {
		next = s.state.Delay / 2
		if next < s.config.MinCycleTime {
			next = s.config.MinCycleTime
		}
	} else {
		next = time.Duration(float64(s.state.Delay) * s.config.GrowthFactor)
		if next > s.state.Ceiling {
			return 0, &CoherenceBudgetError{Computed: next, State: s.state}
		}
	}

	if s.state.LastDirection != direction {
		s.state.CyclesSinceFlip = 0
	}
	s.state.LastDirection = direction
	s.state.Delay = next
	s.state.AdjustFactor = float64(next) / float64(s.config.InitialDelay)
	return next, nil
}

// #endregion next-delay
