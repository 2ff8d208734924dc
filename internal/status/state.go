package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/nyx-chat/nyx/internal/bus"
)

// State is the lifecycle state of one chat scope.
type State string

const (
	Uninitialized State = "UNINITIALIZED"
	Loading       State = "LOADING"
	Live          State = "LIVE"
	Detached      State = "DETACHED"
)

// validTransitions defines allowed state transitions. Detached is terminal:
// a new scope gets a fresh machine.
var validTransitions = map[State][]State{
	Uninitialized: {Loading, Detached},
	Loading:       {Live, Detached},
	Live:          {Detached},
	Detached:      {},
}

// Machine tracks and enforces scope lifecycle transitions.
type Machine struct {
	mu      sync.RWMutex
	scope   string
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine for scope starting in Uninitialized.
func NewMachine(scope string, b *bus.Bus) *Machine {
	return &Machine{
		scope:   scope,
		current: Uninitialized,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Is reports whether the machine is in state s.
func (m *Machine) Is(s State) bool {
	return m.Current() == s
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.bus.Publish(bus.Event{
		Kind:      bus.KindChatStatus,
		Timestamp: time.Now(),
		Payload: StatusChange{
			Scope: m.scope,
			From:  from,
			To:    to,
		},
	})
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	Scope string
	From  State
	To    State
}
