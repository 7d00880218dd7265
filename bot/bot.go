// Package bot drives autonomous participants. Its play is deliberately
// simple: every tick it drops a piece that may fill a row and occasionally
// clears one, absorbs incoming garbage, and tops out at the board height.
package bot

import (
	"encoding/json"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/wfunc/blockbattle/participant"
	"github.com/wfunc/blockbattle/state"
	"github.com/wfunc/blockbattle/timer"
)

// Special item codes understood by the bot.
const (
	SpecialAddLine   = "a"
	SpecialClearLine = "c"
	SpecialNuke      = "n"
	SpecialGravity   = "g"
)

const DefaultTick = 500 * time.Millisecond

// Board is the snapshot published on every change.
type Board struct {
	Rows    int `json:"rows"`
	Pieces  int `json:"pieces"`
	Cleared int `json:"cleared"`
	Pending int `json:"pending"`
}

type Bot struct {
	id     string
	timers *timer.TimerManager
	tick   time.Duration
	events participant.BotEvents

	// emitMu is held across a whole step so events leave in board order.
	// Start, Stop and the input methods never take it.
	emitMu sync.Mutex

	mu         sync.Mutex
	running    bool
	generation int
	timerID    int64
	rules      state.Rules
	board      Board
}

func New(id string, timers *timer.TimerManager, tick time.Duration, events participant.BotEvents) *Bot {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Bot{id: id, timers: timers, tick: tick, events: events}
}

// Start begins a round on an empty board. entryDelay is in milliseconds.
func (b *Bot) Start(entryDelay int, rules state.Rules) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		b.timers.RemoveTimer(b.timerID)
	}
	b.running = true
	b.generation++
	b.rules = rules
	b.board = Board{}

	gen := b.generation
	delay := time.Duration(entryDelay)*time.Millisecond + b.tick
	b.timerID = b.timers.AddTimer(delay, b.tick, func() { b.step(gen) })
}

func (b *Bot) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return
	}
	b.running = false
	b.timers.RemoveTimer(b.timerID)
}

func (b *Bot) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

func (b *Bot) Board() Board {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.board
}

// AddLines queues incoming garbage; it lands on the next tick.
func (b *Bot) AddLines(payload []byte) {
	n := countLines(payload)
	if n <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		b.board.Pending += n
	}
}

func (b *Bot) UseSpecial(payload []byte) {
	var msg struct {
		Special string `json:"special"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return
	}
	switch msg.Special {
	case SpecialAddLine:
		b.board.Pending++
	case SpecialClearLine:
		if b.board.Rows > 0 {
			b.board.Rows--
		}
	case SpecialNuke:
		b.board.Rows = 0
	case SpecialGravity:
		b.board.Rows -= b.board.Rows / 4
	}
}

func (b *Bot) step(gen int) {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	b.mu.Lock()
	if !b.running || gen != b.generation {
		b.mu.Unlock()
		return
	}

	b.board.Pieces++
	b.board.Rows += b.board.Pending
	b.board.Pending = 0
	if b.board.Pieces%2 == 0 {
		b.board.Rows++
	}
	if b.board.Rows > 0 && rand.IntN(3) == 0 {
		b.board.Rows--
		b.board.Cleared++
	}

	snapshot := b.board
	over := b.board.Rows >= b.rules.Height
	if over {
		b.running = false
		b.timers.RemoveTimer(b.timerID)
	}
	b.mu.Unlock()

	if b.events.Changed != nil {
		b.events.Changed(snapshot)
	}
	if over && b.events.GameOver != nil {
		b.events.GameOver()
	}
}

// countLines accepts a bare number, {"lines": n} or an array of rows.
func countLines(payload []byte) int {
	var n int
	if err := json.Unmarshal(payload, &n); err == nil {
		return n
	}
	var obj struct {
		Lines int `json:"lines"`
	}
	if err := json.Unmarshal(payload, &obj); err == nil && obj.Lines > 0 {
		return obj.Lines
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(payload, &rows); err == nil {
		return len(rows)
	}
	return 0
}

// Factory builds bots that share one timer manager.
type Factory struct {
	Timers *timer.TimerManager
	Tick   time.Duration
}

func (f Factory) New(id string, events participant.BotEvents) participant.Driver {
	return New(id, f.Timers, f.Tick, events)
}
