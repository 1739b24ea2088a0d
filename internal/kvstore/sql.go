package kvstore

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nuvora/concierge/internal/logger"
)

// Record is one stored key/value pair.
type Record struct {
	K string `gorm:"primaryKey;size:191"`
	V string `gorm:"type:text;not null"`
}

func (Record) TableName() string { return "kv_records" }

// SQL persists pairs in a relational table. It works against sqlite for
// development and mysql in deployment, whichever dialector the caller
// connected with.
type SQL struct {
	db *gorm.DB
}

func NewSQL(db *gorm.DB) (*SQL, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, err
	}
	return &SQL{db: db}, nil
}

func (s *SQL) Get(ctx context.Context, key string) (string, bool) {
	var rec Record
	err := s.db.WithContext(ctx).First(&rec, "k = ?", key).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.L.Warn("kv get failed", "key", key, "error", err)
		}
		return "", false
	}
	return rec.V, true
}

func (s *SQL) Set(ctx context.Context, key, value string) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "k"}},
			DoUpdates: clause.AssignmentColumns([]string{"v"}),
		}).
		Create(&Record{K: key, V: value}).Error
}

func (s *SQL) Remove(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Delete(&Record{}, "k = ?", key).Error
}

func (s *SQL) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("1 = 1").Delete(&Record{}).Error
}

func (s *SQL) SizeBytes(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&Record{}).
		Select("COALESCE(SUM(LENGTH(k) + LENGTH(v)), 0)").
		Scan(&total).Error
	return total, err
}
