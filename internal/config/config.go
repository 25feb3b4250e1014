// internal/config/config.go
//
// YAML configuration surface for the controller. The core consumes the
// resulting structs; it never reads files itself. Everything is
// validated here, before any hardware interaction.

package config

// #region imports
import (
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/qec-controller/internal/noise"
	"github.com/danielpatrickdp/qec-controller/internal/orchestrator"
	"github.com/danielpatrickdp/qec-controller/internal/schedule"
	"gopkg.in/yaml.v3"
)

// #endregion

// #region duration

// Duration wraps time.Duration so YAML values like "2ms" decode.
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration back as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// #endregion duration

// #region file

// File is the on-disk configuration document.
type File struct {
	Run      RunSection      `yaml:"run"`
	Noise    NoiseSection    `yaml:"noise"`
	Schedule ScheduleSection `yaml:"schedule"`
	Retry    RetrySection    `yaml:"retry"`
}

// RunSection sets the run shape.
type RunSection struct {
	Cycles int `yaml:"cycles"`
	Shots  int `yaml:"shots"`
}

// NoiseSection tunes the error model.
type NoiseSection struct {
	LearningRate      float64 `yaml:"learning_rate"`
	DecayRate         float64 `yaml:"decay_rate"`
	Floor             float64 `yaml:"floor"`
	CorrelationWeight float64 `yaml:"correlation_weight"`
}

// ScheduleSection tunes the adaptive cycle scheduler.
type ScheduleSection struct {
	InitialDelay   Duration `yaml:"initial_delay"`
	MinCycleTime   Duration `yaml:"min_cycle_time"`
	HighWater      float64  `yaml:"high_water"`
	LowWater       float64  `yaml:"low_water"`
	QuietCycles    int      `yaml:"quiet_cycles"`
	GrowthFactor   float64  `yaml:"growth_factor"`
	DirectionDwell int      `yaml:"direction_dwell"`
}

// RetrySection tunes the hardware retry policy.
type RetrySection struct {
	Cap         int      `yaml:"cap"`
	BackoffBase Duration `yaml:"backoff_base"`
}

// #endregion file

// #region default

// Default returns the built-in configuration, mirroring the stage
// defaults.
func Default() File {
	n := noise.DefaultConfig()
	s := schedule.DefaultConfig()
	o := orchestrator.DefaultConfig()
	return File{
		Run: RunSection{Cycles: 50, Shots: 100},
		Noise: NoiseSection{
			LearningRate:      n.LearningRate,
			DecayRate:         n.DecayRate,
			Floor:             n.Floor,
			CorrelationWeight: n.CorrelationWeight,
		},
		Schedule: ScheduleSection{
			InitialDelay:   Duration(s.InitialDelay),
			MinCycleTime:   Duration(s.MinCycleTime),
			HighWater:      s.HighWater,
			LowWater:       s.LowWater,
			QuietCycles:    s.QuietCycles,
			GrowthFactor:   s.GrowthFactor,
			DirectionDwell: s.DirectionDwell,
		},
		Retry: RetrySection{
			Cap:         o.RetryCap,
			BackoffBase: Duration(o.BackoffBase),
		},
	}
}

// #endregion default

// #region load

// Load reads a YAML config file over the defaults and validates the
// result. An empty path returns the validated defaults.
func Load(path string) (File, error) {
	f := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return File{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return File{}, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// Validate checks the full document, including the run shape the
// controller config does not carry.
func (f File) Validate() error {
	if f.Run.Cycles <= 0 {
		return fmt.Errorf("run.cycles must be positive, got %d", f.Run.Cycles)
	}
	if f.Run.Shots <= 0 {
		return fmt.Errorf("run.shots must be positive, got %d", f.Run.Shots)
	}
	return f.Controller().Validate()
}

// Controller maps the document onto the orchestrator's config.
func (f File) Controller() orchestrator.Config {
	return orchestrator.Config{
		Noise: noise.Config{
			LearningRate:      f.Noise.LearningRate,
			DecayRate:         f.Noise.DecayRate,
			Floor:             f.Noise.Floor,
			CorrelationWeight: f.Noise.CorrelationWeight,
		},
		Schedule: schedule.Config{
			InitialDelay:   time.Duration(f.Schedule.InitialDelay),
			MinCycleTime:   time.Duration(f.Schedule.MinCycleTime),
			HighWater:      f.Schedule.HighWater,
			LowWater:       f.Schedule.LowWater,
			QuietCycles:    f.Schedule.QuietCycles,
			GrowthFactor:   f.Schedule.GrowthFactor,
			DirectionDwell: f.Schedule.DirectionDwell,
		},
		RetryCap:    f.Retry.Cap,
		BackoffBase: time.Duration(f.Retry.BackoffBase),
		Qubits:      []int{0, 1, 2},
	}
}

// #endregion load
