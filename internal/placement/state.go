package placement

import (
	"github.com/a3tai/mcp-pdf-stamper/internal/stamperr"
)

// State is the interaction state of a single field. It is never persisted.
type State int

const (
	Idle State = iota
	Dragging
	Resizing
	Editing
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case Resizing:
		return "resizing"
	case Editing:
		return "editing"
	default:
		return "unknown"
	}
}

// transitions lists the allowed state changes. Every gesture starts and ends
// in Idle, so Dragging, Resizing and Editing exclude each other.
var transitions = map[State][]State{
	Idle:     {Dragging, Resizing, Editing},
	Dragging: {Idle},
	Resizing: {Idle},
	Editing:  {Idle},
}

// canTransition reports whether from → to is allowed.
func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// machine tracks the state of every field in one set.
type machine struct {
	states map[string]State
}

func newMachine() *machine {
	return &machine{states: make(map[string]State)}
}

func (m *machine) get(id string) State {
	return m.states[id] // zero value is Idle
}

func (m *machine) transition(id string, to State) error {
	from := m.get(id)
	if !canTransition(from, to) {
		return stamperr.Newf(stamperr.KindInvalidState, "cannot go from %s to %s", from, to).
			WithField(id, "")
	}
	if to == Idle {
		delete(m.states, id)
		return nil
	}
	m.states[id] = to
	return nil
}

func (m *machine) forget(id string) {
	delete(m.states, id)
}
