package command

import (
	"errors"
	"fmt"
)

// ErrUnknownPhase is returned by Strategy.Set for a phase not in the list.
var ErrUnknownPhase = errors.New("unknown phase")

// Phase names one step of a multi-phase workflow.
type Phase string

// Strategy is an ordered list of phases with a cursor. A fresh strategy has
// not started; Next moves to the first phase.
type Strategy struct {
	name   string
	phases []Phase
	idx    int
}

// NewStrategy returns a strategy over phases in order.
func NewStrategy(name string, phases ...Phase) *Strategy {
	ps := make([]Phase, len(phases))
	copy(ps, phases)
	return &Strategy{name: name, phases: ps, idx: -1}
}

// Name returns the workflow name.
func (s *Strategy) Name() string { return s.name }

// Phases returns a copy of the phase list.
func (s *Strategy) Phases() []Phase {
	out := make([]Phase, len(s.phases))
	copy(out, s.phases)
	return out
}

// Current returns the active phase, or false before the first Next or after
// the last phase.
func (s *Strategy) Current() (Phase, bool) {
	if s.idx < 0 || s.idx >= len(s.phases) {
		return "", false
	}
	return s.phases[s.idx], true
}

// Next advances the cursor and returns the new phase. It returns false once
// every phase has been visited.
func (s *Strategy) Next() (Phase, bool) {
	if s.idx < len(s.phases) {
		s.idx++
	}
	return s.Current()
}

// Set jumps to p.
func (s *Strategy) Set(p Phase) error {
	for i, ph := range s.phases {
		if ph == p {
			s.idx = i
			return nil
		}
	}
	return fmt.Errorf("%w: %s/%s", ErrUnknownPhase, s.name, p)
}

// Done reports whether every phase has been visited.
func (s *Strategy) Done() bool { return s.idx >= len(s.phases) }

// Reset rewinds to the not-started state.
func (s *Strategy) Reset() { s.idx = -1 }
