// services/round_service.go
package services

import (
	"context"
	"sync"
	"time"

	"github.com/wfunc/blockbattle/logger"
	"github.com/wfunc/blockbattle/models"
	"github.com/wfunc/blockbattle/persistence"
	"github.com/wfunc/blockbattle/room"
)

const saveTimeout = 5 * time.Second

// RoundService records finished rounds. It is a room.RoundObserver; saves run
// off the room's writer goroutine.
type RoundService struct {
	db      persistence.Database
	pending sync.WaitGroup
	mutex   sync.Mutex
	started map[string]time.Time
}

func NewRoundService(db persistence.Database) *RoundService {
	return &RoundService{
		db:      db,
		started: make(map[string]time.Time),
	}
}

func (s *RoundService) RoundStarted(ev room.RoundEvent) {
	s.mutex.Lock()
	s.started[ev.RoomID] = ev.StartedAt
	s.mutex.Unlock()
	logger.Log.Infof("round started in %s with %d seats", ev.RoomID, len(ev.Seats))
}

func (s *RoundService) RoundEnded(ev room.RoundEvent) {
	s.mutex.Lock()
	delete(s.started, ev.RoomID)
	s.mutex.Unlock()

	record := &models.RoundRecord{
		RoomID:    ev.RoomID,
		Seats:     ev.Seats,
		Winners:   ev.Winners,
		StartedAt: ev.StartedAt,
		EndedAt:   ev.EndedAt,
	}
	logger.Log.Infof("round ended in %s, winners %v", ev.RoomID, ev.Winners)

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if err := s.db.SaveRound(ctx, record); err != nil {
			logger.Log.Errorf("save round of %s: %v", record.RoomID, err)
		}
	}()
}

// InProgress reports whether a round is running in roomID and since when.
func (s *RoundService) InProgress(roomID string) (time.Time, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	t, ok := s.started[roomID]
	return t, ok
}

func (s *RoundService) RecentRounds(ctx context.Context, roomID string, limit int) ([]*models.RoundRecord, error) {
	return s.db.RecentRounds(ctx, roomID, limit)
}

func (s *RoundService) Wins(ctx context.Context, participantID string) (int64, error) {
	return s.db.CountWins(ctx, participantID)
}

// Wait blocks until every pending save has finished.
func (s *RoundService) Wait() {
	s.pending.Wait()
}
