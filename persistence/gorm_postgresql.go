// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wfunc/blockbattle/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return newGormWithDB(db)
}

func newGormWithDB(db *gorm.DB) (*GormPostgreSQL, error) {
	// 设置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := db.AutoMigrate(&models.GormRoundRecord{}); err != nil {
		return nil, fmt.Errorf("migrate round records: %w", err)
	}
	return &GormPostgreSQL{db: db}, nil
}

func (p *GormPostgreSQL) SaveRound(ctx context.Context, record *models.RoundRecord) error {
	row := models.NewGormRoundRecord(record)
	if err := p.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	record.ID = row.ID
	return nil
}

func (p *GormPostgreSQL) RecentRounds(ctx context.Context, roomID string, limit int) ([]*models.RoundRecord, error) {
	q := p.db.WithContext(ctx).Order("ended_at DESC, id DESC")
	if roomID != "" {
		q = q.Where("room_id = ?", roomID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []models.GormRoundRecord
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*models.RoundRecord, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].Record())
	}
	return out, nil
}

func (p *GormPostgreSQL) LoadRound(ctx context.Context, id uint) (*models.RoundRecord, error) {
	var row models.GormRoundRecord
	if err := p.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return row.Record(), nil
}

// CountWins 使用JSONB包含查询统计胜场
func (p *GormPostgreSQL) CountWins(ctx context.Context, participantID string) (int64, error) {
	needle, err := winnersContaining(participantID)
	if err != nil {
		return 0, err
	}
	var count int64
	err = p.db.WithContext(ctx).
		Model(&models.GormRoundRecord{}).
		Where("winners @> ?::jsonb", needle).
		Count(&count).Error
	return count, err
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
