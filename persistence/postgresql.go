// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL 驱动

	"github.com/wfunc/blockbattle/models"
)

const queryTimeout = 5 * time.Second

// PostgreSQL 数据库实现
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS round_records (
            id SERIAL PRIMARY KEY,
            room_id VARCHAR(255) NOT NULL,
            seats JSONB NOT NULL,
            winners JSONB NOT NULL,
            started_at TIMESTAMPTZ NOT NULL,
            ended_at TIMESTAMPTZ NOT NULL,
            duration BIGINT DEFAULT 0
        )
    `)
	if err != nil {
		return err
	}

	// 创建索引以提高查询性能
	_, err = db.ExecContext(ctx, `
        CREATE INDEX IF NOT EXISTS idx_round_records_room_id ON round_records(room_id);
        CREATE INDEX IF NOT EXISTS idx_round_records_ended_at ON round_records(ended_at);
    `)
	return err
}

func (p *PostgreSQL) SaveRound(ctx context.Context, record *models.RoundRecord) error {
	seats, err := json.Marshal(record.Seats)
	if err != nil {
		return err
	}
	winners, err := json.Marshal(record.Winners)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
        INSERT INTO round_records (room_id, seats, winners, started_at, ended_at, duration)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id
    `
	var id int64
	err = p.db.QueryRowContext(ctx, query,
		record.RoomID, seats, winners,
		record.StartedAt, record.EndedAt, record.Duration().Milliseconds(),
	).Scan(&id)
	if err != nil {
		return err
	}
	record.ID = uint(id)
	return nil
}

func (p *PostgreSQL) RecentRounds(ctx context.Context, roomID string, limit int) ([]*models.RoundRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = -1
	}
	query := `
        SELECT id, room_id, seats, winners, started_at, ended_at
        FROM round_records
        WHERE ($1 = '' OR room_id = $1)
        ORDER BY ended_at DESC, id DESC
        LIMIT NULLIF($2, -1)
    `
	rows, err := p.db.QueryContext(ctx, query, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.RoundRecord
	for rows.Next() {
		rec, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *PostgreSQL) LoadRound(ctx context.Context, id uint) (*models.RoundRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := p.db.QueryRowContext(ctx, `
        SELECT id, room_id, seats, winners, started_at, ended_at
        FROM round_records WHERE id = $1
    `, id)
	rec, err := scanRound(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	return rec, err
}

func (p *PostgreSQL) CountWins(ctx context.Context, participantID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	needle, err := winnersContaining(participantID)
	if err != nil {
		return 0, err
	}
	var n int64
	err = p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM round_records WHERE winners @> $1::jsonb`, needle,
	).Scan(&n)
	return n, err
}

// winnersContaining renders the JSONB containment operand matching rounds
// participantID won. It is text, not []byte: lib/pq sends []byte as bytea.
func winnersContaining(participantID string) (string, error) {
	needle, err := json.Marshal([]string{participantID})
	if err != nil {
		return "", err
	}
	return string(needle), nil
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRound(s scanner) (*models.RoundRecord, error) {
	var (
		rec            models.RoundRecord
		id             int64
		seats, winners []byte
	)
	if err := s.Scan(&id, &rec.RoomID, &seats, &winners, &rec.StartedAt, &rec.EndedAt); err != nil {
		return nil, err
	}
	rec.ID = uint(id)
	if err := json.Unmarshal(seats, &rec.Seats); err != nil {
		return nil, fmt.Errorf("decode seats of round %d: %w", id, err)
	}
	if err := json.Unmarshal(winners, &rec.Winners); err != nil {
		return nil, fmt.Errorf("decode winners of round %d: %w", id, err)
	}
	return &rec, nil
}
