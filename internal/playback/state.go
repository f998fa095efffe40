package playback

import (
	"github.com/dooshek/readaloud/internal/apperr"
)

// State of a playback session
type State int

const (
	Idle State = iota
	Preparing
	Speaking
	Paused
	Cancelling
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Preparing:
		return "preparing"
	case Speaking:
		return "speaking"
	case Paused:
		return "paused"
	case Cancelling:
		return "cancelling"
	}
	return "unknown"
}

// ParseState is the inverse of State.String
func ParseState(name string) (State, bool) {
	for s := Idle; s <= Cancelling; s++ {
		if s.String() == name {
			return s, true
		}
	}
	return Idle, false
}

type EventType int

const (
	StateChanged EventType = iota
	Error
)

func (t EventType) String() string {
	if t == Error {
		return "error"
	}
	return "state_changed"
}

// Event is emitted by the controller loop, in order, on one channel. Error
// events carry Kind and Err; advisory kinds do not end the session.
type Event struct {
	Type      EventType
	SessionID uint64
	State     State
	Kind      apperr.Kind
	Err       error
	// Runes is the length of the session's text, set on Preparing
	Runes int
}

// Status is a snapshot of the controller, safe to read from any goroutine
type Status struct {
	SessionID uint64  `json:"session_id"`
	State     State   `json:"-"`
	StateName string  `json:"state"`
	Chunk     int     `json:"chunk"`
	Chunks    int     `json:"chunks"`
	Voice     string  `json:"voice"`
	Rate      float64 `json:"rate"`
	Backend   string  `json:"backend"`
}
