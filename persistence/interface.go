// persistence/interface.go
package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/wfunc/blockbattle/config"
	"github.com/wfunc/blockbattle/models"
)

// Database 对局历史存储接口
type Database interface {
	SaveRound(ctx context.Context, record *models.RoundRecord) error
	// RecentRounds returns up to limit rounds of roomID, newest first. An
	// empty roomID matches every room.
	RecentRounds(ctx context.Context, roomID string, limit int) ([]*models.RoundRecord, error)
	// LoadRound returns ErrRecordNotFound for an unknown id.
	LoadRound(ctx context.Context, id uint) (*models.RoundRecord, error)
	// CountWins counts the rounds participantID won.
	CountWins(ctx context.Context, participantID string) (int64, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrUnknownDriver  = errors.New("unknown database driver")
)

// Open builds the backend named by cfg.Driver.
func Open(cfg config.DatabaseConfig) (Database, error) {
	pg := cfg.Postgres
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(), nil
	case "gorm":
		return NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	case "postgres":
		return NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
