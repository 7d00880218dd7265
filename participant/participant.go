package participant

import (
	"github.com/wfunc/blockbattle/logger"
	"github.com/wfunc/blockbattle/network"
	"github.com/wfunc/blockbattle/state"
	"github.com/wfunc/blockbattle/store"
)

// Transport is the connection of a human participant.
type Transport interface {
	GetID() string
	Send(msgID uint16, data []byte) error
}

// Driver runs an autonomous participant. Implementations must deliver their
// BotEvents asynchronously, never from inside Start or Stop.
type Driver interface {
	Start(entryDelay int, rules state.Rules)
	Stop()
	AddLines(lines []byte)
	UseSpecial(special []byte)
}

// BotEvents are the notifications a Driver emits.
type BotEvents struct {
	// Changed carries a new board snapshot.
	Changed func(board interface{})
	// GameOver reports that the bot topped out.
	GameOver func()
}

// Seat is either Connected or Autonomous.
type Seat interface {
	seat()
}

type Connected struct {
	Transport Transport
}

type Autonomous struct {
	Driver Driver
}

func (Connected) seat()  {}
func (Autonomous) seat() {}

// Room is what a participant needs from the room it sits in. Submit runs fn
// on the room's single writer and waits for it.
type Room interface {
	Namespace() string
	Lifecycle() state.Lifecycle
	Lookup(id string) (*Participant, bool)
	Participants() []*Participant
	Submit(fn func()) error
	Remove(id string) error
	Broadcast(exceptID string, msgID uint16, data []byte)
}

// Participant is one seat in a room, backed by participants.<id> in the
// room document.
type Participant struct {
	id     string
	name   string
	seat   Seat
	cursor *store.Cursor
	room   Room
}

func New(id, name string, seat Seat, cursor *store.Cursor, room Room) *Participant {
	return &Participant{
		id:     id,
		name:   name,
		seat:   seat,
		cursor: cursor,
		room:   room,
	}
}

func (p *Participant) ID() string            { return p.id }
func (p *Participant) Name() string          { return p.name }
func (p *Participant) Seat() Seat            { return p.seat }
func (p *Participant) Cursor() *store.Cursor { return p.cursor }

func (p *Participant) IsBot() bool {
	_, ok := p.seat.(Autonomous)
	return ok
}

func (p *Participant) State() state.ParticipantState {
	return state.AsParticipantState(p.cursor.Get(state.KeyState))
}

func (p *Participant) Index() int {
	return state.AsIndex(p.cursor.Get(state.KeyIndex))
}

func (p *Participant) Data() interface{} {
	return p.cursor.Get(state.KeyData)
}

// SetState writes the participant's state as is. Callers own the legality of
// the transition; see RequestState.
func (p *Participant) SetState(s state.ParticipantState) error {
	return p.room.Submit(func() {
		if p.live() {
			p.cursor.Select(state.KeyState).Set(s)
		}
	})
}

// RequestState applies a state change asked for by the participant itself,
// refusing anything state.Requestable rejects at the moment it is applied.
func (p *Participant) RequestState(s state.ParticipantState) (bool, error) {
	accepted := false
	err := p.room.Submit(func() {
		if !p.live() {
			return
		}
		if !state.Requestable(p.room.Lifecycle(), s) {
			logger.Log.Debugf("room %s: %s may not become %s now", p.room.Namespace(), p.id, s)
			return
		}
		p.cursor.Select(state.KeyState).Set(s)
		accepted = true
	})
	return accepted, err
}

// SetData stores the participant's board snapshot.
func (p *Participant) SetData(data interface{}) error {
	return p.room.Submit(func() {
		if p.live() {
			p.cursor.Select(state.KeyData).Set(data)
		}
	})
}

// Remove takes the participant out of the room.
func (p *Participant) Remove() error {
	return p.room.Remove(p.id)
}

// UseSpecial forwards a special item to targetID. An unknown target drops it.
func (p *Participant) UseSpecial(targetID string, payload []byte) error {
	return p.room.Submit(func() {
		target, ok := p.room.Lookup(targetID)
		if !ok {
			logger.Log.Debugf("room %s: special from %s to unknown %s dropped", p.room.Namespace(), p.id, targetID)
			return
		}
		switch seat := target.seat.(type) {
		case Connected:
			if err := seat.Transport.Send(network.MsgTypeSpecial, payload); err != nil {
				logger.Log.Warnf("room %s: special to %s failed: %v", p.room.Namespace(), targetID, err)
			}
		case Autonomous:
			seat.Driver.UseSpecial(payload)
		}
	})
}

// SendLines relays cleared lines to every other participant: humans through
// their transport, bots through their driver's incoming lines queue.
func (p *Participant) SendLines(payload []byte) error {
	return p.room.Submit(func() {
		p.room.Broadcast(p.id, network.MsgTypeLines, payload)
		for _, other := range p.room.Participants() {
			if other.id == p.id {
				continue
			}
			if seat, ok := other.seat.(Autonomous); ok {
				seat.Driver.AddLines(payload)
			}
		}
	})
}

func (p *Participant) live() bool {
	cur, ok := p.room.Lookup(p.id)
	if !ok || cur != p {
		logger.Log.Warnf("room %s: write for departed participant %s ignored", p.room.Namespace(), p.id)
		return false
	}
	return true
}
