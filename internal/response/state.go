package response

import "sync/atomic"

// State is the delivery state of one response.
type State int32

const (
	StateIdle State = iota
	StateSendingHeaders
	StateSendingBody
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSendingHeaders:
		return "sending_headers"
	case StateSendingBody:
		return "sending_body"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether s is Completed or Failed.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// stateMachine holds the state behind compare-and-swap so exactly one
// caller wins the move into a terminal state.
type stateMachine struct {
	v atomic.Int32
}

func (m *stateMachine) load() State {
	return State(m.v.Load())
}

// advance moves from one non-terminal state to the next.
func (m *stateMachine) advance(from, to State) bool {
	return m.v.CompareAndSwap(int32(from), int32(to))
}

// terminate moves any non-terminal state to final. It returns false when a
// terminal state was already reached.
func (m *stateMachine) terminate(final State) bool {
	for {
		cur := m.v.Load()
		if State(cur).IsTerminal() {
			return false
		}
		if m.v.CompareAndSwap(cur, int32(final)) {
			return true
		}
	}
}
