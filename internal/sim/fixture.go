package sim

// #region imports
import (
	"fmt"
	"os"

	"github.com/danielpatrickdp/qec-controller/internal/code"
	"gopkg.in/yaml.v3"
)

// #endregion

// #region fixture-types

// Fixture is a recorded syndrome sequence for offline replay through
// the decoder, error model, and scheduler, with no hardware attached.
type Fixture struct {
	Description string       `yaml:"description"`
	Syndromes   [][2]uint8   `yaml:"syndromes"`
	Inject      []InjectSpec `yaml:"inject,omitempty"`
}

// InjectSpec flips a qubit before the given measurement when a fixture
// is turned into a live backend.
type InjectSpec struct {
	Cycle int `yaml:"cycle"`
	Qubit int `yaml:"qubit"`
}

// #endregion fixture-types

// #region load

// LoadFixture reads and validates a YAML fixture file.
func LoadFixture(path string) (Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("read fixture: %w", err)
	}
	var f Fixture
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Fixture{}, fmt.Errorf("parse fixture: %w", err)
	}
	if len(f.Syndromes) == 0 {
		return Fixture{}, fmt.Errorf("fixture %s has no syndromes", path)
	}
	for i, s := range f.Syndromes {
		if s[0] > 1 || s[1] > 1 {
			return Fixture{}, fmt.Errorf("fixture syndrome %d has bits outside {0,1}: %v", i, s)
		}
	}
	for i, in := range f.Inject {
		if in.Qubit < 0 || in.Qubit > 2 {
			return Fixture{}, fmt.Errorf("fixture injection %d targets qubit %d", i, in.Qubit)
		}
	}
	return f, nil
}

// Script converts the fixture's syndrome list into a backend script.
func (f Fixture) Script() []code.Syndrome {
	script := make([]code.Syndrome, len(f.Syndromes))
	for i, s := range f.Syndromes {
		script[i] = code.Syndrome{S0: s[0], S1: s[1]}
	}
	return script
}

// Injections converts the fixture's injection list into backend form.
func (f Fixture) Injections() map[int][]int {
	if len(f.Inject) == 0 {
		return nil
	}
	m := make(map[int][]int, len(f.Inject))
	for _, in := range f.Inject {
		m[in.Cycle] = append(m[in.Cycle], in.Qubit)
	}
	return m
}

// #endregion load
