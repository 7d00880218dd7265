package state

import "fmt"

// Keys of the room document.
const (
	KeyRules        = "rules"
	KeyParticipants = "participants"
	KeyState        = "state"
	KeyWinners      = "winners"

	KeyName  = "name"
	KeyIndex = "index"
	KeyData  = "data"
)

// Lifecycle is the state of a room.
type Lifecycle int

const (
	Stopped Lifecycle = iota
	// Starting is a legal value that no transition currently produces.
	Starting
	Started
)

func (l Lifecycle) String() string {
	switch l {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Started:
		return "started"
	default:
		return fmt.Sprintf("lifecycle(%d)", int(l))
	}
}

// ParticipantState is the per-seat state written under participants.<id>.state.
type ParticipantState string

const (
	Idle    ParticipantState = "idle"
	Ready   ParticipantState = "ready"
	Playing ParticipantState = "playing"
)

func ParseParticipantState(s string) (ParticipantState, error) {
	switch ParticipantState(s) {
	case Idle, Ready, Playing:
		return ParticipantState(s), nil
	}
	return "", fmt.Errorf("unknown participant state %q", s)
}

// Requestable reports whether a participant may ask for next while the room
// is in lifecycle l. Playing is only ever assigned by a round start.
func Requestable(l Lifecycle, next ParticipantState) bool {
	switch next {
	case Idle:
		return true
	case Ready:
		return l == Stopped
	default:
		return false
	}
}

// AsLifecycle reads a lifecycle value out of the document.
func AsLifecycle(v interface{}) Lifecycle {
	switch t := v.(type) {
	case Lifecycle:
		return t
	case int:
		return Lifecycle(t)
	case float64:
		return Lifecycle(int(t))
	}
	return Stopped
}

// AsParticipantState reads a participant state out of the document.
func AsParticipantState(v interface{}) ParticipantState {
	switch t := v.(type) {
	case ParticipantState:
		return t
	case string:
		return ParticipantState(t)
	}
	return ""
}

// AsIndex reads an index value, 0 when absent.
func AsIndex(v interface{}) int {
	switch t := v.(type) {
	case int:
		return t
	case float64:
		return int(t)
	}
	return 0
}
