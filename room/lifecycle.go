package room

import (
	"encoding/json"
	"reflect"
	"sort"
	"time"

	"github.com/wfunc/blockbattle/logger"
	"github.com/wfunc/blockbattle/models"
	"github.com/wfunc/blockbattle/network"
	"github.com/wfunc/blockbattle/state"
	"github.com/wfunc/blockbattle/store"
)

// onChange runs after every committed change to the room document.
func (r *Room) onChange(prev, curr interface{}) {
	before := state.SnapshotOf(prev).Lifecycle
	after := state.SnapshotOf(curr).Lifecycle
	if before != after {
		r.lifecycleChanged(before, after, curr)
	}

	r.publish(prev, curr)
	r.cursor.Apply(r.reconcile)
}

// reconcile is the single lifecycle rule. It runs against the document as it
// stands when the pass is applied and returns it unchanged at a fixed point.
func (r *Room) reconcile(current interface{}) interface{} {
	tr := r.planner.Plan(state.SnapshotOf(current))
	if len(tr.Unknown) > 0 {
		logger.Log.Warnf("room %s: participants %v have no session, skipping reconciliation", r.namespace, tr.Unknown)
		return current
	}

	switch tr.Kind {
	case state.RoundStart:
		logger.Log.Infof("room %s: starting round, seats %v", r.namespace, tr.Order)
	case state.RoundEnd:
		logger.Log.Infof("room %s: round won by %s", r.namespace, tr.Winner)
	default:
		return current
	}
	return store.Merge(current, tr.Patch())
}

func (r *Room) lifecycleChanged(from, to state.Lifecycle, doc interface{}) {
	room, _ := doc.(map[string]interface{})
	now := time.Now()

	switch {
	case from == state.Stopped && to != state.Stopped:
		r.startedAt = now
		r.seats = seatsOf(room)
		if r.deps.Metrics != nil {
			r.deps.Metrics.RoundStarted()
		}
		if r.deps.Observer != nil {
			r.deps.Observer.RoundStarted(RoundEvent{
				RoomID:    r.namespace,
				Seats:     copySeats(r.seats),
				StartedAt: r.startedAt,
			})
		}

	case from != state.Stopped && to == state.Stopped:
		winners, _ := room[state.KeyWinners].([]string)
		if r.deps.Metrics != nil {
			r.deps.Metrics.RoundEnded()
		}
		if r.deps.Observer != nil {
			r.deps.Observer.RoundEnded(RoundEvent{
				RoomID:    r.namespace,
				Seats:     copySeats(r.seats),
				Winners:   append([]string(nil), winners...),
				StartedAt: r.startedAt,
				EndedAt:   now,
			})
		}
		r.flushRequeue()
	}
}

// publish sends the new document to every human. A document too large for
// one frame goes out without boards, followed by a frame for each board that
// changed, or for every board when the set of participants changed.
func (r *Room) publish(prev, curr interface{}) {
	data, err := json.Marshal(curr)
	if err != nil {
		logger.Log.Errorf("room %s: snapshot not encodable: %v", r.namespace, err)
		return
	}
	if len(data) <= network.MaxPayloadSize {
		r.Broadcast("", network.MsgTypeRoomState, data)
		return
	}

	doc, _ := curr.(map[string]interface{})
	data, err = json.Marshal(withoutBoards(doc))
	if err != nil {
		logger.Log.Errorf("room %s: snapshot not encodable: %v", r.namespace, err)
		return
	}
	r.Broadcast("", network.MsgTypeRoomState, data)

	before := boardsOf(prev)
	after := boardsOf(curr)
	all := len(before) != len(after)
	for id := range after {
		if _, ok := before[id]; !ok {
			all = true
		}
	}

	ids := make([]string, 0, len(after))
	for id := range after {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		board, old := after[id], before[id]
		if board == nil && old == nil {
			continue
		}
		if !all && reflect.DeepEqual(old, board) {
			continue
		}
		frame, err := json.Marshal(models.BoardState{ID: id, Data: board})
		if err != nil {
			logger.Log.Errorf("room %s: board of %s not encodable: %v", r.namespace, id, err)
			continue
		}
		if len(frame) > network.MaxPayloadSize {
			logger.Log.Warnf("room %s: board of %s is %d bytes, not published", r.namespace, id, len(frame))
			continue
		}
		r.Broadcast("", network.MsgTypeBoardState, frame)
	}
}

// boardsOf maps every participant id to its board, nil when it has none.
func boardsOf(doc interface{}) map[string]interface{} {
	room, _ := doc.(map[string]interface{})
	players, _ := room[state.KeyParticipants].(map[string]interface{})
	out := make(map[string]interface{}, len(players))
	for id, v := range players {
		rec, _ := v.(map[string]interface{})
		out[id] = rec[state.KeyData]
	}
	return out
}

// withoutBoards copies the document down to the participant records and
// drops their boards.
func withoutBoards(doc map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	players, _ := doc[state.KeyParticipants].(map[string]interface{})
	stripped := make(map[string]interface{}, len(players))
	for id, v := range players {
		rec, _ := v.(map[string]interface{})
		c := make(map[string]interface{}, len(rec))
		for k, field := range rec {
			if k != state.KeyData {
				c[k] = field
			}
		}
		stripped[id] = c
	}
	out[state.KeyParticipants] = stripped
	return out
}

func seatsOf(room map[string]interface{}) map[string]int {
	seats := make(map[string]int)
	players, _ := room[state.KeyParticipants].(map[string]interface{})
	for id, v := range players {
		rec, _ := v.(map[string]interface{})
		if idx := state.AsIndex(rec[state.KeyIndex]); idx > 0 {
			seats[id] = idx
		}
	}
	return seats
}

func copySeats(seats map[string]int) map[string]int {
	out := make(map[string]int, len(seats))
	for k, v := range seats {
		out[k] = v
	}
	return out
}
