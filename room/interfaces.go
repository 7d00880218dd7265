package room

import (
	"time"

	"github.com/wfunc/blockbattle/participant"
)

// Broadcaster delivers a message to every human in a room except one.
// This is defined here to break the import cycle between room and broadcast.
type Broadcaster interface {
	BroadcastToRoom(roomID, exceptID string, msgID uint16, data []byte) error
}

// Metrics receives room level counters.
type Metrics interface {
	RoomOpened()
	RoomClosed()
	ParticipantJoined(bot bool)
	ParticipantLeft(bot bool)
	RoundStarted()
	RoundEnded()
}

// RoundEvent describes a round boundary.
type RoundEvent struct {
	RoomID string
	// Seats maps participant id to the index it was given at round start.
	Seats     map[string]int
	Winners   []string
	StartedAt time.Time
	EndedAt   time.Time
}

// RoundObserver is told about round starts and ends. Calls happen on the
// room's writer goroutine and must not block.
type RoundObserver interface {
	RoundStarted(ev RoundEvent)
	RoundEnded(ev RoundEvent)
}

// BotFactory builds the driver of a new bot.
type BotFactory func(id string, events participant.BotEvents) participant.Driver

// Deps are the collaborators a room reports to. Every field is optional.
type Deps struct {
	Broadcaster Broadcaster
	Metrics     Metrics
	Observer    RoundObserver
	NewBot      BotFactory
	// Shuffle orders seats at round start; rand.Shuffle when nil.
	Shuffle func(n int, swap func(i, j int))
}
