package pipeline

import (
	"fmt"
	"sync/atomic"
)

// State is a step of the research state machine.
type State int32

const (
	StateIdle State = iota
	StateEvidenceGathering
	StateDrafting
	StateCritiquing
	StateSynthesizing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEvidenceGathering:
		return "evidence_gathering"
	case StateDrafting:
		return "drafting"
	case StateCritiquing:
		return "critiquing"
	case StateSynthesizing:
		return "synthesizing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

var forward = map[State]State{
	StateIdle:              StateEvidenceGathering,
	StateEvidenceGathering: StateDrafting,
	StateDrafting:          StateCritiquing,
	StateCritiquing:        StateSynthesizing,
	StateSynthesizing:      StateDone,
}

// canTransition allows the single forward step, or failure from any
// non-idle, non-terminal state.
func canTransition(from, to State) bool {
	if to == StateFailed {
		return from != StateIdle && !from.Terminal()
	}
	next, ok := forward[from]
	return ok && next == to
}

// machine holds the state of one run. It is read by the timeout path while
// the stage goroutine advances it.
type machine struct {
	state atomic.Int32
}

func (m *machine) current() State {
	return State(m.state.Load())
}

func (m *machine) advance(to State) error {
	from := m.current()
	if !canTransition(from, to) {
		return fmt.Errorf("illegal transition %s -> %s", from, to)
	}
	if !m.state.CompareAndSwap(int32(from), int32(to)) {
		return fmt.Errorf("concurrent transition from %s", from)
	}
	return nil
}
