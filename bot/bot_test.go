package bot

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/blockbattle/participant"
	"github.com/wfunc/blockbattle/state"
	"github.com/wfunc/blockbattle/timer"
)

type recorder struct {
	mu       sync.Mutex
	boards   []Board
	gameOver int
}

func (r *recorder) events() participant.BotEvents {
	return participant.BotEvents{
		Changed: func(board interface{}) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.boards = append(r.boards, board.(Board))
		},
		GameOver: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.gameOver++
		},
	}
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.boards), r.gameOver
}

func newTestBot(t *testing.T, rec *recorder) *Bot {
	t.Helper()
	timers := timer.NewTimerManager(time.Hour)
	t.Cleanup(timers.Close)
	return New("Bot 1", timers, time.Millisecond, rec.events())
}

func TestCountLines(t *testing.T) {
	assert.Equal(t, 3, countLines([]byte(`3`)))
	assert.Equal(t, 2, countLines([]byte(`{"lines":2}`)))
	assert.Equal(t, 4, countLines([]byte(`[[1],[2],[3],[4]]`)))
	assert.Equal(t, 0, countLines([]byte(`"nope"`)))
}

func TestBot_StartStop(t *testing.T) {
	rec := &recorder{}
	b := newTestBot(t, rec)

	b.Start(0, state.DefaultRules())
	assert.True(t, b.Running())
	assert.Equal(t, 1, b.timers.Pending())

	b.Stop()
	assert.False(t, b.Running())
	assert.Equal(t, 0, b.timers.Pending())
	b.Stop()
}

func TestBot_StepEmitsBoardAndTopsOut(t *testing.T) {
	rec := &recorder{}
	b := newTestBot(t, rec)
	rules := state.DefaultRules()
	rules.Height = 5
	b.Start(0, rules)

	b.AddLines([]byte(`{"lines":10}`))
	b.step(b.generation)

	boards, over := rec.counts()
	require.Equal(t, 1, boards)
	assert.Equal(t, 1, over)
	assert.False(t, b.Running())
	assert.GreaterOrEqual(t, rec.boards[0].Rows, 5)
	assert.Equal(t, 0, rec.boards[0].Pending)
}

func TestBot_StaleStepIgnored(t *testing.T) {
	rec := &recorder{}
	b := newTestBot(t, rec)
	b.Start(0, state.DefaultRules())
	gen := b.generation
	b.Start(0, state.DefaultRules())

	b.step(gen)
	boards, _ := rec.counts()
	assert.Equal(t, 0, boards)

	b.Stop()
	b.step(b.generation)
	boards, _ = rec.counts()
	assert.Equal(t, 0, boards)
}

func TestBot_Specials(t *testing.T) {
	rec := &recorder{}
	b := newTestBot(t, rec)
	b.Start(0, state.DefaultRules())
	b.board.Rows = 8

	b.UseSpecial([]byte(`{"special":"c"}`))
	assert.Equal(t, 7, b.Board().Rows)
	b.UseSpecial([]byte(`{"special":"a"}`))
	assert.Equal(t, 1, b.Board().Pending)
	b.UseSpecial([]byte(`{"special":"g"}`))
	assert.Equal(t, 6, b.Board().Rows)
	b.UseSpecial([]byte(`{"special":"n"}`))
	assert.Equal(t, 0, b.Board().Rows)
	b.UseSpecial([]byte(`garbage`))
}

func TestBot_IgnoresInputWhileStopped(t *testing.T) {
	rec := &recorder{}
	b := newTestBot(t, rec)

	b.AddLines([]byte(`5`))
	b.UseSpecial([]byte(`{"special":"a"}`))
	assert.Equal(t, Board{}, b.Board())
}

func TestBot_RunsOnTimers(t *testing.T) {
	rec := &recorder{}
	timers := timer.NewTimerManager(2 * time.Millisecond)
	defer timers.Close()
	b := Factory{Timers: timers, Tick: 2 * time.Millisecond}.New("Bot 2", rec.events())

	rules := state.DefaultRules()
	rules.Height = 3
	b.Start(0, rules)

	assert.Eventually(t, func() bool {
		_, over := rec.counts()
		return over == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestBot_EventsKeepBoardOrder(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var (
		mu     sync.Mutex
		pieces []int
	)
	events := participant.BotEvents{
		Changed: func(board interface{}) {
			mu.Lock()
			first := len(pieces) == 0
			mu.Unlock()
			if first {
				close(entered)
				<-release
			}
			mu.Lock()
			pieces = append(pieces, board.(Board).Pieces)
			mu.Unlock()
		},
	}
	timers := timer.NewTimerManager(time.Hour)
	defer timers.Close()
	b := New("Bot 3", timers, time.Millisecond, events)
	b.Start(0, state.DefaultRules())
	gen := b.generation

	go b.step(gen)
	<-entered
	done := make(chan struct{})
	go func() {
		b.step(gen)
		close(done)
	}()
	// the second step may not overtake the first delivery
	time.Sleep(20 * time.Millisecond)
	close(release)
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2}, pieces)
}
