package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/blockbattle/persistence"
	"github.com/wfunc/blockbattle/room"
	"github.com/wfunc/blockbattle/state"
)

func TestRoundService_RecordsEndedRounds(t *testing.T) {
	ctx := context.Background()
	svc := NewRoundService(persistence.NewMemory())

	start := time.Now()
	svc.RoundStarted(room.RoundEvent{RoomID: "r", Seats: map[string]int{"a": 1, "b": 2}, StartedAt: start})
	since, running := svc.InProgress("r")
	require.True(t, running)
	assert.Equal(t, start, since)

	svc.RoundEnded(room.RoundEvent{
		RoomID:    "r",
		Seats:     map[string]int{"a": 1, "b": 2},
		Winners:   []string{"b"},
		StartedAt: start,
		EndedAt:   start.Add(time.Second),
	})
	svc.Wait()

	_, running = svc.InProgress("r")
	assert.False(t, running)

	rounds, err := svc.RecentRounds(ctx, "r", 10)
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	assert.Equal(t, []string{"b"}, rounds[0].Winners)
	assert.Equal(t, 2, rounds[0].Seats["b"])

	wins, err := svc.Wins(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(1), wins)
}

func TestRoundService_ObservesRoom(t *testing.T) {
	svc := NewRoundService(persistence.NewMemory())
	r, err := room.NewRoom([]string{"svc"}, nil, nil, room.Deps{Observer: svc})
	require.NoError(t, err)
	defer r.Close()

	// a lone ready player starts and immediately ends a round
	a := &transport{id: "a"}
	p, err := r.Join(a, nil)
	require.NoError(t, err)
	_, err = p.RequestState(state.Ready)
	require.NoError(t, err)
	svc.Wait()

	rounds, err := svc.RecentRounds(context.Background(), "svc", 0)
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	assert.Equal(t, []string{"a"}, rounds[0].Winners)
}

type transport struct{ id string }

func (t *transport) GetID() string             { return t.id }
func (t *transport) Send(uint16, []byte) error { return nil }
