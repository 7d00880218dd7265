package persistence

import (
	"context"
	"sync"

	"github.com/wfunc/blockbattle/models"
)

// Memory keeps round history in process. Records are copied in and out.
type Memory struct {
	mutex  sync.RWMutex
	rounds []*models.RoundRecord
	nextID uint
	// max bounds the history; 0 keeps everything.
	max int
}

func NewMemory() *Memory {
	return &Memory{nextID: 1}
}

// NewMemoryLimited keeps only the newest max rounds.
func NewMemoryLimited(max int) *Memory {
	return &Memory{nextID: 1, max: max}
}

func (m *Memory) SaveRound(ctx context.Context, record *models.RoundRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()

	record.ID = m.nextID
	m.nextID++
	m.rounds = append(m.rounds, copyRecord(record))
	if m.max > 0 && len(m.rounds) > m.max {
		m.rounds = m.rounds[len(m.rounds)-m.max:]
	}
	return nil
}

func (m *Memory) RecentRounds(ctx context.Context, roomID string, limit int) ([]*models.RoundRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var out []*models.RoundRecord
	for i := len(m.rounds) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		if roomID == "" || m.rounds[i].RoomID == roomID {
			out = append(out, copyRecord(m.rounds[i]))
		}
	}
	return out, nil
}

func (m *Memory) LoadRound(ctx context.Context, id uint) (*models.RoundRecord, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	for _, r := range m.rounds {
		if r.ID == id {
			return copyRecord(r), nil
		}
	}
	return nil, ErrRecordNotFound
}

func (m *Memory) CountWins(ctx context.Context, participantID string) (int64, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	var n int64
	for _, r := range m.rounds {
		for _, w := range r.Winners {
			if w == participantID {
				n++
				break
			}
		}
	}
	return n, nil
}

func (m *Memory) Close() error { return nil }

func copyRecord(r *models.RoundRecord) *models.RoundRecord {
	c := *r
	c.Winners = append([]string(nil), r.Winners...)
	c.Seats = make(map[string]int, len(r.Seats))
	for k, v := range r.Seats {
		c.Seats[k] = v
	}
	return &c
}
