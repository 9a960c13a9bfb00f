package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/beingharisali/martchat/internal/bus"
)

// State is the client-local open-ness of the currently selected chat.
// It is never persisted; a fresh session always starts CLOSED.
type State string

const (
	Closed  State = "CLOSED"
	Joining State = "JOINING"
	Open    State = "OPEN"
)

// validTransitions defines allowed state transitions. Selecting another
// chat while one is open goes through CLOSED first. There is no error
// state: a failed message fetch leaves the chat OPEN with a stale or empty
// log, recoverable by reselecting.
var validTransitions = map[State][]State{
	Closed:  {Joining},
	Joining: {Open, Closed},
	Open:    {Closed},
}

// Machine tracks and enforces open-ness transitions for the selected chat.
type Machine struct {
	mu      sync.RWMutex
	current State
	chatID  string
	bus     *bus.Bus
}

// NewMachine creates a machine starting in Closed state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Closed,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// ChatID returns the chat the machine currently tracks, or empty when Closed.
func (m *Machine) ChatID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.chatID
}

// Transition attempts to move to a new state for the given chat. chatID is
// required when entering Joining and ignored when entering Closed. Returns
// an error if the transition is invalid.
func (m *Machine) Transition(to State, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	if to == Joining && chatID == "" {
		return fmt.Errorf("transition to %s requires a chat id", Joining)
	}
	if to == Open && chatID != m.chatID {
		return fmt.Errorf("cannot open chat %q while joining %q", chatID, m.chatID)
	}

	from := m.current
	m.current = to
	if to == Closed {
		m.chatID = ""
	} else {
		m.chatID = chatID
	}
	if m.bus != nil {
		m.bus.Emit(bus.ChatStatusChanged, StatusChange{
			From:   from,
			To:     to,
			ChatID: m.chatID,
		})
	}
	return nil
}

// StatusChange is the payload for open-ness change events.
type StatusChange struct {
	From   State
	To     State
	ChatID string
}
