package code

// #region imports
import (
	"errors"
	"fmt"
)

// #endregion

// #region syndrome

// Syndrome holds one cycle's stabilizer measurement outcomes for the
// 3-qubit bit-flip code: S0 from Z0Z1, S1 from Z1Z2. Each bit is 0 or 1.
type Syndrome struct {
	S0 uint8
	S1 uint8
}

// Trivial reports whether no stabilizer triggered.
func (s Syndrome) Trivial() bool {
	return s.S0 == 0 && s.S1 == 0
}

// Weight is the number of triggered stabilizers (0, 1, or 2).
func (s Syndrome) Weight() int {
	return int(s.S0) + int(s.S1)
}

// Valid reports whether both bits are in {0, 1}.
func (s Syndrome) Valid() bool {
	return s.S0 <= 1 && s.S1 <= 1
}

func (s Syndrome) String() string {
	return fmt.Sprintf("(%d,%d)", s.S0, s.S1)
}

// #endregion syndrome

// #region correction

// Correction identifies the recovery operator for one cycle.
type Correction string

const (
	Identity   Correction = "identity"
	FlipQubit0 Correction = "flip_q0"
	FlipQubit1 Correction = "flip_q1"
	FlipQubit2 Correction = "flip_q2"
)

// Target returns the data qubit the correction flips, or -1 for Identity.
func (c Correction) Target() int {
	switch c {
	case FlipQubit0:
		return 0
	case FlipQubit1:
		return 1
	case FlipQubit2:
		return 2
	}
	return -1
}

// #endregion correction

// #region decode

// ErrInvalidSyndrome is returned for syndrome bits outside {0, 1}. The
// 3-qubit table is total, so this can only fire on malformed hardware
// output; it exists so that extensions to larger codes (where the table
// is not total) fail loudly instead of defaulting to Identity.
var ErrInvalidSyndrome = errors.New("invalid syndrome")

// Decode maps a syndrome to its correction via the standard
// repetition-code lookup table:
//
//	(0,0) → Identity
//	(1,0) → FlipQubit0
//	(1,1) → FlipQubit1
//	(0,1) → FlipQubit2
//
// The table assumes at most one bit-flip per cycle. Under two or more
// simultaneous flips it returns a correction that makes things worse;
// that is a known limitation of the code distance, not a decoder bug.
// The scheduler's job is to keep cycles short enough that the
// single-error assumption holds.
func Decode(s Syndrome) (Correction, error) {
	if !s.Valid() {
		return Identity, fmt.Errorf("%w: bits %d,%d", ErrInvalidSyndrome, s.S0, s.S1)
	}
	switch {
	case s.S0 == 0 && s.S1 == 0:
		return Identity, nil
	case s.S0 == 1 && s.S1 == 0:
		return FlipQubit0, nil
	case s.S0 == 1 && s.S1 == 1:
		return FlipQubit1, nil
	default: // s.S0 == 0 && s.S1 == 1
		return FlipQubit2, nil
	}
}

// Implicated returns the data qubits a syndrome points at: the qubits
// whose estimated error probability should rise when it is observed.
func Implicated(s Syndrome) []int {
	c, err := Decode(s)
	if err != nil || c == Identity {
		return nil
	}
	return []int{c.Target()}
}

// #endregion decode

// #region data-state

// DataState is the classical bit-flip frame of the three data qubits.
// It is what the simulator tracks and what corrections act on; the
// encoded logical value is its majority vote.
type DataState [3]uint8

// Apply flips the correction's target bit and returns the new state.
// Corrections are self-inverse: Apply(c, Apply(c, st)) == st.
func Apply(c Correction, st DataState) DataState {
	t := c.Target()
	if t < 0 {
		return st
	}
	st[t] ^= 1
	return st
}

// Flip inverts one data qubit (an injected or channel error).
func Flip(qubit int, st DataState) DataState {
	if qubit < 0 || qubit > 2 {
		return st
	}
	st[qubit] ^= 1
	return st
}

// Measure computes the stabilizer parities Z0Z1 and Z1Z2 for the state.
func Measure(st DataState) Syndrome {
	return Syndrome{
		S0: st[0] ^ st[1],
		S1: st[1] ^ st[2],
	}
}

// MajorityVote returns the logical bit encoded in the state: the value
// held by at least two of the three data qubits.
func MajorityVote(st DataState) uint8 {
	if int(st[0])+int(st[1])+int(st[2]) >= 2 {
		return 1
	}
	return 0
}

// #endregion data-state
