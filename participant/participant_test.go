package participant

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/blockbattle/network"
	"github.com/wfunc/blockbattle/state"
	"github.com/wfunc/blockbattle/store"
)

type sent struct {
	msgID uint16
	data  string
}

type fakeTransport struct {
	id   string
	sent []sent
	err  error
}

func (f *fakeTransport) GetID() string { return f.id }
func (f *fakeTransport) Send(msgID uint16, data []byte) error {
	f.sent = append(f.sent, sent{msgID, string(data)})
	return f.err
}

type fakeDriver struct {
	lines    []string
	specials []string
}

func (f *fakeDriver) Start(int, state.Rules)    {}
func (f *fakeDriver) Stop()                     {}
func (f *fakeDriver) AddLines(lines []byte)     { f.lines = append(f.lines, string(lines)) }
func (f *fakeDriver) UseSpecial(special []byte) { f.specials = append(f.specials, string(special)) }

type fakeRoom struct {
	store     *store.Store
	lifecycle state.Lifecycle
	members   map[string]*Participant
	order     []string
}

func newFakeRoom() *fakeRoom {
	return &fakeRoom{store: store.New(), members: make(map[string]*Participant)}
}

func (r *fakeRoom) add(id string, seat Seat) *Participant {
	p := New(id, id, seat, r.store.Select("participants", id), r)
	r.members[id] = p
	r.order = append(r.order, id)
	return p
}

func (r *fakeRoom) Namespace() string          { return "test" }
func (r *fakeRoom) Lifecycle() state.Lifecycle { return r.lifecycle }
func (r *fakeRoom) Submit(fn func()) error     { fn(); return nil }
func (r *fakeRoom) Lookup(id string) (*Participant, bool) {
	p, ok := r.members[id]
	return p, ok
}
func (r *fakeRoom) Participants() []*Participant {
	var out []*Participant
	for _, id := range r.order {
		if p, ok := r.members[id]; ok {
			out = append(out, p)
		}
	}
	return out
}
func (r *fakeRoom) Remove(id string) error {
	delete(r.members, id)
	r.store.Select("participants", id).Unset()
	return nil
}
func (r *fakeRoom) Broadcast(exceptID string, msgID uint16, data []byte) {
	for _, p := range r.Participants() {
		if c, ok := p.seat.(Connected); ok && p.id != exceptID {
			c.Transport.Send(msgID, data)
		}
	}
}

func TestParticipant_Accessors(t *testing.T) {
	r := newFakeRoom()
	human := r.add("h1", Connected{Transport: &fakeTransport{id: "h1"}})
	bot := r.add("Bot 1", Autonomous{Driver: &fakeDriver{}})

	assert.False(t, human.IsBot())
	assert.True(t, bot.IsBot())
	assert.Equal(t, "h1", human.ID())
	assert.Equal(t, []string{"participants", "h1"}, human.Cursor().Path())

	require.NoError(t, human.SetState(state.Ready))
	require.NoError(t, human.SetData(map[string]interface{}{"rows": 3}))
	r.store.Select("participants", "h1", "index").Set(2)

	assert.Equal(t, state.Ready, human.State())
	assert.Equal(t, 2, human.Index())
	assert.Equal(t, map[string]interface{}{"rows": 3}, human.Data())
}

func TestParticipant_RequestState(t *testing.T) {
	r := newFakeRoom()
	p := r.add("h1", Connected{Transport: &fakeTransport{id: "h1"}})

	ok, err := p.RequestState(state.Ready)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, state.Ready, p.State())

	r.lifecycle = state.Started
	ok, _ = p.RequestState(state.Ready)
	assert.False(t, ok)
	ok, _ = p.RequestState(state.Playing)
	assert.False(t, ok)
	ok, _ = p.RequestState(state.Idle)
	assert.True(t, ok)
	assert.Equal(t, state.Idle, p.State())
}

func TestParticipant_WritesAfterRemovalAreDropped(t *testing.T) {
	r := newFakeRoom()
	p := r.add("h1", Connected{Transport: &fakeTransport{id: "h1"}})
	require.NoError(t, p.SetState(state.Ready))

	require.NoError(t, p.Remove())
	require.NoError(t, p.SetState(state.Ready))
	require.NoError(t, p.SetData("board"))

	assert.False(t, r.store.Exists("participants", "h1"))
}

func TestUseSpecial_RoutesBySeat(t *testing.T) {
	r := newFakeRoom()
	from := r.add("h1", Connected{Transport: &fakeTransport{id: "h1"}})
	target := &fakeTransport{id: "h2"}
	r.add("h2", Connected{Transport: target})
	driver := &fakeDriver{}
	r.add("Bot 7", Autonomous{Driver: driver})

	require.NoError(t, from.UseSpecial("h2", []byte(`{"id":"h2","special":"a"}`)))
	require.NoError(t, from.UseSpecial("Bot 7", []byte(`{"id":"Bot 7","special":"n"}`)))

	assert.Equal(t, []sent{{network.MsgTypeSpecial, `{"id":"h2","special":"a"}`}}, target.sent)
	assert.Equal(t, []string{`{"id":"Bot 7","special":"n"}`}, driver.specials)
}

func TestUseSpecial_UnknownTargetIsDropped(t *testing.T) {
	r := newFakeRoom()
	senderTransport := &fakeTransport{id: "h1"}
	from := r.add("h1", Connected{Transport: senderTransport})
	other := &fakeTransport{id: "h2"}
	r.add("h2", Connected{Transport: other})

	assert.NotPanics(t, func() {
		assert.NoError(t, from.UseSpecial("ghost", []byte(`{"id":"ghost"}`)))
	})
	assert.Empty(t, senderTransport.sent)
	assert.Empty(t, other.sent)
}

func TestUseSpecial_SendFailureIsSwallowed(t *testing.T) {
	r := newFakeRoom()
	from := r.add("h1", Connected{Transport: &fakeTransport{id: "h1"}})
	r.add("h2", Connected{Transport: &fakeTransport{id: "h2", err: errors.New("closed")}})

	assert.NoError(t, from.UseSpecial("h2", []byte(`{}`)))
}

func TestSendLines_FansOutToOthers(t *testing.T) {
	r := newFakeRoom()
	self := &fakeTransport{id: "h1"}
	from := r.add("h1", Connected{Transport: self})
	other := &fakeTransport{id: "h2"}
	r.add("h2", Connected{Transport: other})
	bot1, bot2 := &fakeDriver{}, &fakeDriver{}
	r.add("Bot 1", Autonomous{Driver: bot1})
	r.add("Bot 2", Autonomous{Driver: bot2})

	require.NoError(t, from.SendLines([]byte(`{"lines":2}`)))

	assert.Empty(t, self.sent)
	assert.Equal(t, []sent{{network.MsgTypeLines, `{"lines":2}`}}, other.sent)
	assert.Equal(t, []string{`{"lines":2}`}, bot1.lines)
	assert.Equal(t, []string{`{"lines":2}`}, bot2.lines)
}
