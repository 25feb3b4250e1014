package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	f := Default()
	if err := f.Validate(); err != nil {
		t.Fatalf("default config rejected: %v", err)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	f, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if f.Run.Cycles != 50 || f.Run.Shots != 100 {
		t.Fatalf("unexpected defaults %+v", f.Run)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "controller.yaml")
	doc := `run:
  cycles: 7
  shots: 32
schedule:
  initial_delay: 5ms
  high_water: 0.4
  low_water: 0.1
noise:
  learning_rate: 0.2
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	f, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if f.Run.Cycles != 7 || f.Run.Shots != 32 {
		t.Fatalf("run section not applied: %+v", f.Run)
	}
	if time.Duration(f.Schedule.InitialDelay) != 5*time.Millisecond {
		t.Fatalf("initial delay %v, want 5ms", time.Duration(f.Schedule.InitialDelay))
	}
	if f.Noise.LearningRate != 0.2 {
		t.Fatalf("learning rate %v, want 0.2", f.Noise.LearningRate)
	}
	// Untouched fields keep their defaults.
	if f.Retry.Cap != Default().Retry.Cap {
		t.Fatalf("retry cap %d drifted from default", f.Retry.Cap)
	}
}

func TestLoadRejectsInvalidDocument(t *testing.T) {
	cases := []string{
		"run:\n  cycles: 0\n",                          // zero cycles
		"run:\n  shots: -5\n",                          // negative shots
		"schedule:\n  high_water: 0.1\n  low_water: 0.5\n", // inverted water marks
		"noise:\n  learning_rate: 2.0\n",               // learning rate above 1
		"schedule:\n  initial_delay: fast\n",           // unparseable duration
	}
	for i, doc := range cases {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("case %d: invalid document accepted:\n%s", i, doc)
		}
	}
}

func TestControllerMapping(t *testing.T) {
	f := Default()
	cfg := f.Controller()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("mapped controller config rejected: %v", err)
	}
	if len(cfg.Qubits) != 3 {
		t.Fatalf("qubits %v", cfg.Qubits)
	}
	if cfg.Schedule.InitialDelay != time.Duration(f.Schedule.InitialDelay) {
		t.Fatal("schedule durations not mapped")
	}
}
