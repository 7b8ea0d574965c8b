package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid state transition")
)

// allowed lists the states each state may move to.
var allowed = map[State][]State{
	StateCreated:             {StateInitiated, StateConfirmed, StateFailed},
	StateInitiated:           {StatePendingVerification, StateFailed},
	StatePendingVerification: {StateConfirmed, StateFailed},
	StateFailed:              {StatePendingVerification},
}

func CanTransition(from, to State) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

type GormRepo struct {
	DB *gorm.DB
}

func NewGormRepo(db *gorm.DB) (*GormRepo, error) {
	if err := db.AutoMigrate(&Attempt{}); err != nil {
		return nil, fmt.Errorf("migrate checkout attempts: %w", err)
	}
	return &GormRepo{DB: db}, nil
}

func (r *GormRepo) Create(ctx context.Context, a *Attempt) error {
	return r.DB.WithContext(ctx).Create(a).Error
}

func (r *GormRepo) first(ctx context.Context, deviceID, column, value string) (*Attempt, error) {
	var a Attempt
	err := r.DB.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Where(column+" = ?", value).
		Order("created_at DESC").
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ByKey and ByOrderID only see attempts made by deviceID.
func (r *GormRepo) ByKey(ctx context.Context, deviceID, key string) (*Attempt, error) {
	return r.first(ctx, deviceID, "idempotency_key", key)
}

func (r *GormRepo) ByOrderID(ctx context.Context, deviceID, orderID string) (*Attempt, error) {
	return r.first(ctx, deviceID, "order_id", orderID)
}

func (r *GormRepo) ListByDevice(ctx context.Context, deviceID string, limit int) ([]Attempt, error) {
	var out []Attempt
	err := r.DB.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// Transition moves the attempt from one state to the next only if it is
// still in from; a concurrent mover makes it fail with ErrInvalidTransition.
func (r *GormRepo) Transition(ctx context.Context, id string, from, to State, fields map[string]any) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%s -> %s: %w", from, to, ErrInvalidTransition)
	}
	updates := map[string]any{"state": to, "updated_at": time.Now().UTC()}
	for k, v := range fields {
		updates[k] = v
	}
	res := r.DB.WithContext(ctx).Model(&Attempt{}).
		Where("id = ? AND state = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s -> %s: %w", from, to, ErrInvalidTransition)
	}
	return nil
}

// Reclaim takes over a verification left in pending-verification since
// before staleBefore. Of several concurrent callers only one wins; the rest
// get ErrInvalidTransition.
func (r *GormRepo) Reclaim(ctx context.Context, id string, staleBefore time.Time, fields map[string]any) error {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	for k, v := range fields {
		updates[k] = v
	}
	res := r.DB.WithContext(ctx).Model(&Attempt{}).
		Where("id = ? AND state = ? AND updated_at < ?", id, StatePendingVerification, staleBefore.UTC()).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("reclaim %s: %w", id, ErrInvalidTransition)
	}
	return nil
}

func (r *GormRepo) SetOrderID(ctx context.Context, id, orderID string) error {
	return r.DB.WithContext(ctx).Model(&Attempt{}).
		Where("id = ?", id).
		Updates(map[string]any{"order_id": orderID, "updated_at": time.Now().UTC()}).Error
}
