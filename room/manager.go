package room

import (
	"sort"
	"sync"

	"github.com/wfunc/blockbattle/logger"
)

// Manager 管理所有房间，按命名空间索引
type Manager struct {
	rooms map[string]*Room
	mutex sync.RWMutex
	deps  Deps
	// rules are server-wide overrides applied before each room's own.
	rules map[string]interface{}
}

func NewRoomManager(deps Deps, rules map[string]interface{}) *Manager {
	return &Manager{
		rooms: make(map[string]*Room),
		deps:  deps,
		rules: rules,
	}
}

// SetBroadcaster sets the broadcaster handed to rooms created from now on.
func (m *Manager) SetBroadcaster(b Broadcaster) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.deps.Broadcaster = b
}

// GetOrCreateRoom returns the room at path, creating it with options and
// rules if it does not exist yet. options and rules are ignored for an
// existing room; its rules never change.
func (m *Manager) GetOrCreateRoom(path []string, options, rules map[string]interface{}) (*Room, bool, error) {
	namespace := Namespace(path)

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if room, exists := m.rooms[namespace]; exists {
		return room, false, nil
	}

	merged := make(map[string]interface{}, len(m.rules)+len(rules))
	for k, v := range m.rules {
		merged[k] = v
	}
	for k, v := range rules {
		merged[k] = v
	}

	room, err := NewRoom(path, options, merged, m.deps)
	if err != nil {
		return nil, false, err
	}
	m.rooms[namespace] = room
	logger.Log.Infof("room %s created", namespace)
	return room, true, nil
}

// RemoveRoom 从管理器中移除并关闭一个房间
func (m *Manager) RemoveRoom(namespace string) {
	m.mutex.Lock()
	room, exists := m.rooms[namespace]
	delete(m.rooms, namespace)
	m.mutex.Unlock()

	if exists {
		room.Close()
	}
}

func (m *Manager) GetRoom(namespace string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.rooms[namespace]
	return room, exists
}

// Rooms returns every room ordered by namespace.
func (m *Manager) Rooms() []*Room {
	m.mutex.RLock()
	out := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	m.mutex.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].namespace < out[j].namespace })
	return out
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

// Close closes every room.
func (m *Manager) Close() {
	m.mutex.Lock()
	rooms := m.rooms
	m.rooms = make(map[string]*Room)
	m.mutex.Unlock()

	for _, r := range rooms {
		r.Close()
	}
}
