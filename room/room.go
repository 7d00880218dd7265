// room/room.go
package room

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wfunc/blockbattle/bot"
	"github.com/wfunc/blockbattle/logger"
	"github.com/wfunc/blockbattle/network"
	"github.com/wfunc/blockbattle/participant"
	"github.com/wfunc/blockbattle/state"
	"github.com/wfunc/blockbattle/store"
	"github.com/wfunc/blockbattle/timer"
)

// ErrRoomClosed is returned by operations submitted after Close.
var ErrRoomClosed = errors.New("room closed")

// Bot ids are "Bot <n>" with n drawn from [0, botIDRange). Collisions with a
// live id are possible but improbable and are not avoided.
const botIDRange = 1000000

const inboxSize = 256

// Namespace joins a room path into its broadcast channel name.
func Namespace(path []string) string {
	return strings.Join(path, "-")
}

// Room owns the document of one game room and applies the lifecycle rules to
// it. Every mutation of the document happens on the room's writer goroutine.
type Room struct {
	path      []string
	namespace string
	store     *store.Store
	cursor    *store.Cursor
	deps      Deps
	planner   state.Planner

	playerMutex sync.RWMutex
	players     map[string]*participant.Participant

	// Touched only on the writer goroutine.
	botListeners map[string]func()
	requeue      map[string]bool
	seats        map[string]int
	startedAt    time.Time

	timerMutex sync.Mutex
	timers     *timer.TimerManager

	inbox     chan func()
	closeChan chan struct{}
	closeOnce sync.Once
	stopSync  func()
}

// NewRoom builds the room document under path from the options bag and the
// rules overrides, and starts the room's writer goroutine.
func NewRoom(path []string, options, rules map[string]interface{}, deps Deps) (*Room, error) {
	rulesDoc, err := state.MergeRules(rules)
	if err != nil {
		return nil, err
	}

	doc := store.Clone(options).(map[string]interface{})
	doc[state.KeyRules] = rulesDoc
	doc[state.KeyParticipants] = map[string]interface{}{}
	doc[state.KeyState] = state.Stopped
	doc[state.KeyWinners] = []string{}

	s := store.New()
	r := &Room{
		path:         append([]string(nil), path...),
		namespace:    Namespace(path),
		store:        s,
		cursor:       s.Select(path...),
		deps:         deps,
		players:      make(map[string]*participant.Participant),
		botListeners: make(map[string]func()),
		requeue:      make(map[string]bool),
		inbox:        make(chan func(), inboxSize),
		closeChan:    make(chan struct{}),
	}
	r.planner = state.Planner{IsBot: r.isBot, Shuffle: deps.Shuffle}

	r.cursor.Set(doc)
	r.stopSync = r.cursor.On(r.onChange)

	if r.deps.Metrics != nil {
		r.deps.Metrics.RoomOpened()
	}
	go r.loop()
	return r, nil
}

func (r *Room) GetID() string              { return r.namespace }
func (r *Room) Namespace() string          { return r.namespace }
func (r *Room) Path() []string             { return append([]string(nil), r.path...) }
func (r *Room) Cursor() *store.Cursor      { return r.cursor }
func (r *Room) Lifecycle() state.Lifecycle { return state.AsLifecycle(r.cursor.Get(state.KeyState)) }

// Snapshot returns a copy of the room document.
func (r *Room) Snapshot() map[string]interface{} {
	doc, _ := r.cursor.Get().(map[string]interface{})
	return doc
}

func (r *Room) Winners() []string {
	w, _ := r.cursor.Get(state.KeyWinners).([]string)
	return w
}

// Rules decodes the room's rules. They never change after construction.
func (r *Room) Rules() state.Rules {
	doc, _ := r.cursor.Get(state.KeyRules).(map[string]interface{})
	rules, err := state.DecodeRules(doc)
	if err != nil {
		logger.Log.Errorf("room %s: stored rules unreadable: %v", r.namespace, err)
		return state.DefaultRules()
	}
	return rules
}

func (r *Room) Lookup(id string) (*participant.Participant, bool) {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()
	p, ok := r.players[id]
	return p, ok
}

// Participants returns every participant ordered by id.
func (r *Room) Participants() []*participant.Participant {
	r.playerMutex.RLock()
	out := make([]*participant.Participant, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p)
	}
	r.playerMutex.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (r *Room) Count() int {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()
	return len(r.players)
}

// Submit runs fn on the room's writer goroutine and waits for it to finish.
// It must not be called from that goroutine.
func (r *Room) Submit(fn func()) error {
	done := make(chan struct{})
	task := func() {
		defer close(done)
		defer func() {
			if rec := recover(); rec != nil {
				logger.Log.Errorf("room %s: task panicked: %v", r.namespace, rec)
			}
		}()
		fn()
	}

	select {
	case r.inbox <- task:
	case <-r.closeChan:
		return ErrRoomClosed
	}
	select {
	case <-done:
		return nil
	case <-r.closeChan:
		return ErrRoomClosed
	}
}

func (r *Room) loop() {
	for {
		select {
		case task := <-r.inbox:
			task()
		case <-r.closeChan:
			return
		}
	}
}

// Join seats a human behind transport t. Joining twice with the same
// transport id returns the existing participant.
func (r *Room) Join(t participant.Transport, options map[string]interface{}) (*participant.Participant, error) {
	var p *participant.Participant
	err := r.Submit(func() {
		id := t.GetID()
		if existing, ok := r.Lookup(id); ok {
			logger.Log.Warnf("room %s: %s joined twice", r.namespace, id)
			p = existing
			return
		}

		name, _ := options[state.KeyName].(string)
		if name == "" {
			name = id
		}
		cursor := r.cursor.Select(state.KeyParticipants, id)
		p = participant.New(id, name, participant.Connected{Transport: t}, cursor, r)
		r.register(p)

		record := store.Clone(options).(map[string]interface{})
		record[state.KeyName] = name
		record[state.KeyState] = state.Idle
		cursor.Set(record)

		logger.Log.Infof("room %s: %s joined as %q", r.namespace, id, name)
	})
	return p, err
}

// AddBot seats an autonomous participant. A bot is ready as soon as it is
// added and requeues itself whenever it drops back to idle, except while a
// round is running: then it waits idle and turns ready when the round ends.
func (r *Room) AddBot(options map[string]interface{}) (*participant.Participant, error) {
	var p *participant.Participant
	err := r.Submit(func() {
		id := fmt.Sprintf("Bot %d", rand.IntN(botIDRange))
		if _, taken := r.Lookup(id); taken {
			logger.Log.Warnf("room %s: bot id %s collides with a live participant, replacing it", r.namespace, id)
			r.teardown(id)
		}

		cursor := r.cursor.Select(state.KeyParticipants, id)
		stateCursor := cursor.Select(state.KeyState)

		events := participant.BotEvents{
			Changed: func(board interface{}) {
				r.fromBot(p, func() { cursor.Select(state.KeyData).Set(board) })
			},
			GameOver: func() {
				r.fromBot(p, func() {
					logger.Log.Infof("room %s: %s topped out", r.namespace, id)
					stateCursor.Set(state.Idle)
				})
			},
		}
		driver := r.newBot(id, events)
		p = participant.New(id, id, participant.Autonomous{Driver: driver}, cursor, r)
		r.register(p)

		r.botListeners[id] = stateCursor.On(func(_, curr interface{}) {
			switch state.AsParticipantState(curr) {
			case state.Idle:
				driver.Stop()
				r.requeueBot(id)
			case state.Playing:
				driver.Start(0, r.Rules())
			}
		})

		record := store.Clone(options).(map[string]interface{})
		record[state.KeyName] = id
		record[state.KeyState] = state.Ready
		if r.Lifecycle() != state.Stopped {
			// the listener sees idle and queues the bot for the round end
			record[state.KeyState] = state.Idle
		}
		cursor.Set(record)

		logger.Log.Infof("room %s: added %s", r.namespace, id)
	})
	return p, err
}

// Remove takes a participant out of the registry and the document together.
// Removing an unknown id does nothing.
func (r *Room) Remove(id string) error {
	return r.Submit(func() { r.teardown(id) })
}

// Broadcast sends a message to every human except exceptID.
func (r *Room) Broadcast(exceptID string, msgID uint16, data []byte) {
	if r.deps.Broadcaster != nil {
		if err := r.deps.Broadcaster.BroadcastToRoom(r.namespace, exceptID, msgID, data); err != nil {
			logger.Log.Warnf("room %s: broadcast %d failed: %v", r.namespace, msgID, err)
		}
		return
	}
	for _, p := range r.Participants() {
		c, ok := p.Seat().(participant.Connected)
		if !ok || p.ID() == exceptID {
			continue
		}
		if err := c.Transport.Send(msgID, data); err != nil {
			if errors.Is(err, network.ErrPacketTooLarge) {
				logger.Log.Warnf("room %s: message %d to %s: %v", r.namespace, msgID, p.ID(), err)
			} else {
				logger.Log.Debugf("room %s: send to %s failed: %v", r.namespace, p.ID(), err)
			}
		}
	}
}

// Close stops the writer goroutine and every bot.
func (r *Room) Close() {
	r.closeOnce.Do(func() {
		close(r.closeChan)
		r.stopSync()
		for _, p := range r.Participants() {
			if a, ok := p.Seat().(participant.Autonomous); ok {
				a.Driver.Stop()
			}
			if r.deps.Metrics != nil {
				r.deps.Metrics.ParticipantLeft(p.IsBot())
			}
		}

		r.timerMutex.Lock()
		if r.timers != nil {
			r.timers.Close()
		}
		r.timerMutex.Unlock()

		if r.deps.Metrics != nil {
			r.deps.Metrics.RoomClosed()
		}
		logger.Log.Infof("room %s closed", r.namespace)
	})
}

func (r *Room) register(p *participant.Participant) {
	r.playerMutex.Lock()
	r.players[p.ID()] = p
	r.playerMutex.Unlock()

	if r.deps.Metrics != nil {
		r.deps.Metrics.ParticipantJoined(p.IsBot())
	}
}

func (r *Room) teardown(id string) {
	p, ok := r.Lookup(id)
	if !ok {
		logger.Log.Debugf("room %s: %s already gone", r.namespace, id)
		return
	}

	r.playerMutex.Lock()
	delete(r.players, id)
	r.playerMutex.Unlock()

	if off, ok := r.botListeners[id]; ok {
		off()
		delete(r.botListeners, id)
	}
	delete(r.requeue, id)
	if a, ok := p.Seat().(participant.Autonomous); ok {
		a.Driver.Stop()
	}
	p.Cursor().Unset()

	if r.deps.Metrics != nil {
		r.deps.Metrics.ParticipantLeft(p.IsBot())
	}
	logger.Log.Infof("room %s: %s left", r.namespace, id)
}

func (r *Room) isBot(id string) (bool, bool) {
	p, ok := r.Lookup(id)
	if !ok {
		return false, false
	}
	return p.IsBot(), true
}

func (r *Room) newBot(id string, events participant.BotEvents) participant.Driver {
	if r.deps.NewBot != nil {
		return r.deps.NewBot(id, events)
	}

	r.timerMutex.Lock()
	defer r.timerMutex.Unlock()
	if r.timers == nil {
		r.timers = timer.NewTimerManager(50 * time.Millisecond)
	}
	return bot.New(id, r.timers, bot.DefaultTick, events)
}

// requeueBot puts an idle bot back to ready. A bot knocked out mid-round
// waits for the round to end so ready never appears while started.
func (r *Room) requeueBot(id string) {
	if r.Lifecycle() != state.Stopped {
		r.requeue[id] = true
		return
	}
	delete(r.requeue, id)
	r.cursor.Select(state.KeyParticipants, id, state.KeyState).Set(state.Ready)
}

func (r *Room) flushRequeue() {
	for id := range r.requeue {
		if _, ok := r.Lookup(id); ok {
			r.requeueBot(id)
		} else {
			delete(r.requeue, id)
		}
	}
}

// fromBot applies a driver event if the bot is still seated.
func (r *Room) fromBot(p *participant.Participant, fn func()) {
	err := r.Submit(func() {
		if cur, ok := r.Lookup(p.ID()); ok && cur == p {
			fn()
		}
	})
	if err != nil {
		logger.Log.Debugf("room %s: bot event dropped: %v", r.namespace, err)
	}
}
