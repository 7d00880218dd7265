package room

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wfunc/blockbattle/participant"
	"github.com/wfunc/blockbattle/state"
)

type message struct {
	msgID uint16
	data  string
}

// MockTransport is a test double for a human connection.
type MockTransport struct {
	id   string
	mu   sync.Mutex
	sent []message
}

func newTransport(id string) *MockTransport { return &MockTransport{id: id} }

func (m *MockTransport) GetID() string { return m.id }
func (m *MockTransport) Send(msgID uint16, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, message{msgID, string(data)})
	return nil
}

func (m *MockTransport) received(msgID uint16) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, s := range m.sent {
		if s.msgID == msgID {
			out = append(out, s.data)
		}
	}
	return out
}

// MockDriver is a test double for a bot driver. It records lifecycle calls
// and lets the test fire the bot's events.
type MockDriver struct {
	id     string
	events participant.BotEvents

	mu    sync.Mutex
	calls []string
	lines []string
	rules state.Rules
}

func (m *MockDriver) Start(entryDelay int, rules state.Rules) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "start")
	m.rules = rules
}

func (m *MockDriver) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "stop")
}

func (m *MockDriver) AddLines(lines []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append(m.lines, string(lines))
}

func (m *MockDriver) UseSpecial([]byte) {}

func (m *MockDriver) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

type MockMetrics struct {
	mu                 sync.Mutex
	opened, closed     int
	humans, bots, left int
	started, ended     int
}

func (m *MockMetrics) RoomOpened()   { m.mu.Lock(); m.opened++; m.mu.Unlock() }
func (m *MockMetrics) RoomClosed()   { m.mu.Lock(); m.closed++; m.mu.Unlock() }
func (m *MockMetrics) RoundStarted() { m.mu.Lock(); m.started++; m.mu.Unlock() }
func (m *MockMetrics) RoundEnded()   { m.mu.Lock(); m.ended++; m.mu.Unlock() }
func (m *MockMetrics) ParticipantJoined(bot bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bot {
		m.bots++
	} else {
		m.humans++
	}
}
func (m *MockMetrics) ParticipantLeft(bool) { m.mu.Lock(); m.left++; m.mu.Unlock() }

type MockObserver struct {
	mu      sync.Mutex
	started []RoundEvent
	ended   []RoundEvent
}

func (m *MockObserver) RoundStarted(ev RoundEvent) {
	m.mu.Lock()
	m.started = append(m.started, ev)
	m.mu.Unlock()
}
func (m *MockObserver) RoundEnded(ev RoundEvent) {
	m.mu.Lock()
	m.ended = append(m.ended, ev)
	m.mu.Unlock()
}

type fixture struct {
	room     *Room
	metrics  *MockMetrics
	observer *MockObserver
	drivers  map[string]*MockDriver
	mu       sync.Mutex
}

func newFixture(t *testing.T, rules map[string]interface{}) *fixture {
	t.Helper()
	f := &fixture{
		metrics:  &MockMetrics{},
		observer: &MockObserver{},
		drivers:  make(map[string]*MockDriver),
	}
	r, err := NewRoom([]string{"rooms", "test"}, map[string]interface{}{"title": "test"}, rules, Deps{
		Metrics:  f.metrics,
		Observer: f.observer,
		NewBot: func(id string, events participant.BotEvents) participant.Driver {
			d := &MockDriver{id: id, events: events}
			f.mu.Lock()
			f.drivers[id] = d
			f.mu.Unlock()
			return d
		},
	})
	require.NoError(t, err)
	t.Cleanup(r.Close)
	f.room = r
	return f
}

func (f *fixture) driver(id string) *MockDriver {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.drivers[id]
}

func (f *fixture) join(t *testing.T, id string) (*participant.Participant, *MockTransport) {
	t.Helper()
	tr := newTransport(id)
	p, err := f.room.Join(tr, map[string]interface{}{"name": id})
	require.NoError(t, err)
	return p, tr
}

func (f *fixture) ready(t *testing.T, ps ...*participant.Participant) {
	t.Helper()
	for _, p := range ps {
		ok, err := p.RequestState(state.Ready)
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func indices(ps ...*participant.Participant) []int {
	out := make([]int, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Index())
	}
	return out
}
