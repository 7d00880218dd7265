package rpc

import (
	"encoding/json"
	"net/rpc"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/blockbattle/participant"
	"github.com/wfunc/blockbattle/persistence"
	"github.com/wfunc/blockbattle/room"
	"github.com/wfunc/blockbattle/services"
	"github.com/wfunc/blockbattle/state"
)

type quietDriver struct{}

func (quietDriver) Start(int, state.Rules) {}
func (quietDriver) Stop()                  {}
func (quietDriver) AddLines([]byte)        {}
func (quietDriver) UseSpecial([]byte)      {}

type transport struct{ id string }

func (t *transport) GetID() string             { return t.id }
func (t *transport) Send(uint16, []byte) error { return nil }

func setup(t *testing.T) (*rpc.Client, *room.Manager, *services.RoundService) {
	t.Helper()
	rounds := services.NewRoundService(persistence.NewMemory())
	manager := room.NewRoomManager(room.Deps{
		Observer: rounds,
		NewBot:   func(string, participant.BotEvents) participant.Driver { return quietDriver{} },
	}, nil)
	t.Cleanup(manager.Close)

	srv, err := NewServer("127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, srv.Register(NewRoomService(manager, rounds)))
	go srv.Start()
	t.Cleanup(srv.Stop)

	client, err := rpc.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, manager, rounds
}

func TestRoomService_GetRoomAndAddBot(t *testing.T) {
	client, manager, _ := setup(t)
	_, _, err := manager.GetOrCreateRoom([]string{"admin", "1"}, map[string]interface{}{"title": "t"}, nil)
	require.NoError(t, err)

	var list ListRoomsReply
	require.NoError(t, client.Call("RoomService.ListRooms", &ListRoomsArgs{}, &list))
	assert.Equal(t, []string{"admin-1"}, list.Rooms)

	var bot AddBotReply
	require.NoError(t, client.Call("RoomService.AddBot", &AddBotArgs{RoomID: "admin-1"}, &bot))
	assert.Contains(t, bot.ID, "Bot ")

	var got GetRoomReply
	require.NoError(t, client.Call("RoomService.GetRoom", &GetRoomArgs{RoomID: "admin-1"}, &got))
	assert.Equal(t, state.Stopped.String(), got.Lifecycle)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(got.Document, &doc))
	assert.Equal(t, "t", doc["title"])
	players := doc[state.KeyParticipants].(map[string]interface{})
	assert.Contains(t, players, bot.ID)

	var removed RemoveParticipantReply
	require.NoError(t, client.Call("RoomService.RemoveParticipant",
		&RemoveParticipantArgs{RoomID: "admin-1", ParticipantID: bot.ID}, &removed))
	assert.Equal(t, 0, removed.Remaining)

	list = ListRoomsReply{}
	require.NoError(t, client.Call("RoomService.ListRooms", &ListRoomsArgs{Prefix: "other"}, &list))
	assert.Empty(t, list.Rooms)
}

func TestRoomService_UnknownRoom(t *testing.T) {
	client, _, _ := setup(t)
	var got GetRoomReply
	err := client.Call("RoomService.GetRoom", &GetRoomArgs{RoomID: "missing"}, &got)
	require.Error(t, err)
	assert.Equal(t, ErrRoomNotFound.Error(), err.Error())
}

func TestRoomService_RecentRoundsAndWins(t *testing.T) {
	client, manager, rounds := setup(t)
	r, _, err := manager.GetOrCreateRoom([]string{"solo"}, nil, nil)
	require.NoError(t, err)

	p, err := r.Join(&transport{id: "a"}, nil)
	require.NoError(t, err)
	ok, err := p.RequestState(state.Ready)
	require.NoError(t, err)
	require.True(t, ok)
	rounds.Wait()

	var reply RecentRoundsReply
	require.NoError(t, client.Call("RoomService.RecentRounds", &RecentRoundsArgs{RoomID: "solo", Limit: 5}, &reply))
	require.Len(t, reply.Rounds, 1)
	assert.Equal(t, []string{"a"}, reply.Rounds[0].Winners)

	var wins WinsReply
	require.NoError(t, client.Call("RoomService.Wins", &WinsArgs{ParticipantID: "a"}, &wins))
	assert.Equal(t, int64(1), wins.Wins)
}
