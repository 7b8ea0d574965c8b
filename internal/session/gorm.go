package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Entry struct {
	ID        uint      `gorm:"primaryKey"`
	DeviceID  string    `gorm:"size:64;not null;uniqueIndex:idx_entry_device_key"`
	Key       string    `gorm:"column:entry_key;size:64;not null;uniqueIndex:idx_entry_device_key;index"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Entry) TableName() string { return "local_entries" }

type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("migrate session entries: %w", err)
	}
	return &GormStore{DB: db}, nil
}

func (s *GormStore) Get(ctx context.Context, deviceID, key string) (string, bool, error) {
	var e Entry
	err := s.DB.WithContext(ctx).
		Where("device_id = ? AND entry_key = ?", deviceID, key).
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return e.Value, true, nil
}

func (s *GormStore) Set(ctx context.Context, deviceID, key, value string) error {
	e := Entry{DeviceID: deviceID, Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_id"}, {Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&e).Error
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, deviceID string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	err := s.DB.WithContext(ctx).
		Where("device_id = ? AND entry_key IN ?", deviceID, keys).
		Delete(&Entry{}).Error
	if err != nil {
		return fmt.Errorf("delete keys: %w", err)
	}
	return nil
}

func (s *GormStore) Devices(ctx context.Context, key string) ([]string, error) {
	var ids []string
	err := s.DB.WithContext(ctx).Model(&Entry{}).
		Where("entry_key = ?", key).
		Order("device_id").
		Pluck("device_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return ids, nil
}
