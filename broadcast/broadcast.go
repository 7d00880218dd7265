// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/wfunc/blockbattle/logger"
	"github.com/wfunc/blockbattle/network"
	"github.com/wfunc/blockbattle/participant"
	"github.com/wfunc/blockbattle/room"
	"github.com/wfunc/blockbattle/session"
)

var (
	ErrRoomNotFound = errors.New("room not found")
)

// 基于房间的广播器
type RoomBroadcaster struct {
	roomManager    *room.Manager
	sessionManager *session.Manager
}

func NewRoomBroadcaster(roomManager *room.Manager, sessionManager *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		roomManager:    roomManager,
		sessionManager: sessionManager,
	}
}

// BroadcastToRoom sends to every connected seat of the room except exceptID.
// A failed send is logged and skipped.
func (b *RoomBroadcaster) BroadcastToRoom(roomID, exceptID string, msgID uint16, data []byte) error {
	r, exists := b.roomManager.GetRoom(roomID)
	if !exists {
		return ErrRoomNotFound
	}

	for _, p := range r.Participants() {
		if p.ID() == exceptID {
			continue
		}
		c, ok := p.Seat().(participant.Connected)
		if !ok {
			continue
		}
		if err := c.Transport.Send(msgID, data); err != nil {
			if errors.Is(err, network.ErrPacketTooLarge) {
				logger.Log.Warnf("broadcast %d to %s in %s: %v", msgID, p.ID(), roomID, err)
			} else {
				logger.Log.Debugf("broadcast to %s in %s failed: %v", p.ID(), roomID, err)
			}
			continue
		}
	}

	return nil
}

// BroadcastToAll sends to every live session, seated or not.
func (b *RoomBroadcaster) BroadcastToAll(msgID uint16, data []byte) error {
	if b.sessionManager == nil {
		return nil
	}
	for _, s := range b.sessionManager.All() {
		if err := s.Send(msgID, data); err != nil {
			logger.Log.Debugf("broadcast to session %s failed: %v", s.ID, err)
		}
	}
	return nil
}
