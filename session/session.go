// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/wfunc/blockbattle/network"
	"github.com/wfunc/blockbattle/participant"
)

// Session is one client connection. It is the transport of the participant
// it is seated as, if any.
type Session struct {
	ID        string
	Conn      network.Connection
	CreatedAt time.Time

	mutex       sync.RWMutex
	lastActive  time.Time
	participant *participant.Participant
	roomID      string
}

func NewSession(id string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		lastActive: now,
	}
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Send(msgID uint16, data []byte) error {
	return s.Conn.Send(msgID, data)
}

func (s *Session) Touch() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.lastActive = time.Now()
}

func (s *Session) LastActive() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastActive
}

// Seat records the participant this session plays as.
func (s *Session) Seat(roomID string, p *participant.Participant) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.roomID = roomID
	s.participant = p
}

// Unseat clears the seat and returns what it was.
func (s *Session) Unseat() (string, *participant.Participant) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	roomID, p := s.roomID, s.participant
	s.roomID, s.participant = "", nil
	return roomID, p
}

func (s *Session) Participant() (*participant.Participant, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.participant, s.participant != nil
}

func (s *Session) RoomID() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.roomID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Session管理器
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// All returns every live session.
func (m *Manager) All() []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	result := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}

// InRoom returns the sessions seated in roomID.
func (m *Manager) InRoom(roomID string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.RoomID() == roomID {
			result = append(result, session)
		}
	}
	return result
}
