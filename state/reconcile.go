package state

import (
	"math/rand/v2"
	"sort"
)

// Snapshot is the part of a room document the lifecycle rules read.
type Snapshot struct {
	Lifecycle    Lifecycle
	Participants map[string]ParticipantState
}

// SnapshotOf extracts a Snapshot from a room document.
func SnapshotOf(doc interface{}) Snapshot {
	snap := Snapshot{Participants: make(map[string]ParticipantState)}
	room, ok := doc.(map[string]interface{})
	if !ok {
		return snap
	}
	snap.Lifecycle = AsLifecycle(room[KeyState])
	players, _ := room[KeyParticipants].(map[string]interface{})
	for id, v := range players {
		rec, _ := v.(map[string]interface{})
		snap.Participants[id] = AsParticipantState(rec[KeyState])
	}
	return snap
}

type TransitionKind int

const (
	NoTransition TransitionKind = iota
	RoundStart
	RoundEnd
)

// Transition is the outcome of one reconciliation pass.
type Transition struct {
	Kind TransitionKind
	// Order lists participant ids by seat; Order[i] gets index i+1.
	Order []string
	// Winner is set for RoundEnd.
	Winner string
	// Unknown lists ids present in the document but unknown to the caller.
	// A pass that sees any of them makes no transition.
	Unknown []string
}

// Shuffler permutes n elements through swap. rand.Shuffle satisfies it.
type Shuffler func(n int, swap func(i, j int))

// Planner applies the start and end rules to snapshots.
type Planner struct {
	// IsBot reports whether id is an autonomous participant and whether id is
	// known at all.
	IsBot   func(id string) (bot bool, known bool)
	Shuffle Shuffler
}

// Plan returns the transition the snapshot calls for, if any.
func (p Planner) Plan(snap Snapshot) Transition {
	if snap.Lifecycle == Stopped {
		return p.planStart(snap)
	}
	return planEnd(snap)
}

func (p Planner) planStart(snap Snapshot) Transition {
	humans := 0
	var unknown []string
	for id, st := range snap.Participants {
		if st != Ready {
			return Transition{}
		}
		bot, known := p.IsBot(id)
		if !known {
			unknown = append(unknown, id)
			continue
		}
		if !bot {
			humans++
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Transition{Unknown: unknown}
	}
	if humans < 1 {
		return Transition{}
	}

	order := make([]string, 0, len(snap.Participants))
	for id := range snap.Participants {
		order = append(order, id)
	}
	sort.Strings(order)
	shuffle := p.Shuffle
	if shuffle == nil {
		shuffle = rand.Shuffle
	}
	shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	return Transition{Kind: RoundStart, Order: order}
}

func planEnd(snap Snapshot) Transition {
	if len(snap.Participants) < 1 {
		return Transition{}
	}
	var active []string
	for id, st := range snap.Participants {
		if st == Playing {
			active = append(active, id)
		}
	}
	if len(active) != 1 {
		return Transition{}
	}
	return Transition{Kind: RoundEnd, Winner: active[0]}
}

// Patch renders the transition as a deep-merge over the room document.
func (t Transition) Patch() map[string]interface{} {
	switch t.Kind {
	case RoundStart:
		players := make(map[string]interface{}, len(t.Order))
		for i, id := range t.Order {
			players[id] = map[string]interface{}{
				KeyIndex: i + 1,
				KeyState: Playing,
			}
		}
		return map[string]interface{}{
			KeyState:        Started,
			KeyParticipants: players,
		}
	case RoundEnd:
		return map[string]interface{}{
			KeyState:   Stopped,
			KeyWinners: []string{t.Winner},
			KeyParticipants: map[string]interface{}{
				t.Winner: map[string]interface{}{KeyState: Idle},
			},
		}
	}
	return nil
}
