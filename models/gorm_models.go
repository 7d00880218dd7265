// models/gorm_models.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// GormRoundRecord 对局记录模型
type GormRoundRecord struct {
	gorm.Model
	RoomID    string         `gorm:"index;not null"`
	Seats     map[string]int `gorm:"type:jsonb;serializer:json;not null"`
	Winners   []string       `gorm:"type:jsonb;serializer:json;not null"`
	StartedAt time.Time      `gorm:"not null"`
	EndedAt   time.Time      `gorm:"index;not null"`
	Duration  int64          `gorm:"default:0"` // 对局时长(毫秒)
}

func (GormRoundRecord) TableName() string {
	return "round_records"
}

func NewGormRoundRecord(r *RoundRecord) *GormRoundRecord {
	return &GormRoundRecord{
		RoomID:    r.RoomID,
		Seats:     r.Seats,
		Winners:   r.Winners,
		StartedAt: r.StartedAt,
		EndedAt:   r.EndedAt,
		Duration:  r.Duration().Milliseconds(),
	}
}

func (g *GormRoundRecord) Record() *RoundRecord {
	return &RoundRecord{
		ID:        g.ID,
		RoomID:    g.RoomID,
		Seats:     g.Seats,
		Winners:   g.Winners,
		StartedAt: g.StartedAt,
		EndedAt:   g.EndedAt,
	}
}
