package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SlotRepository defines decoupled operations for token slot persistence.
type SlotRepository interface {
	Get(ctx context.Context, name string) (*Slot, error)
	Upsert(ctx context.Context, slot *Slot) error
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]Slot, error)
}

// gormSlotRepo is a GORM-backed implementation of SlotRepository.
// Use constructor NewSlotRepository to obtain an instance.
type gormSlotRepo struct{ db *gorm.DB }

// NewSlotRepository creates a SlotRepository. Accepts *gorm.DB to avoid global access.
func NewSlotRepository(db *gorm.DB) SlotRepository { return &gormSlotRepo{db: db} }

func (r *gormSlotRepo) Get(ctx context.Context, name string) (*Slot, error) {
	if r.db == nil {
		return nil, fmt.Errorf("repository not initialized")
	}
	var slot Slot
	err := r.db.WithContext(ctx).First(&slot, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

func (r *gormSlotRepo) Upsert(ctx context.Context, slot *Slot) error {
	if r.db == nil {
		return fmt.Errorf("repository not initialized")
	}
	if slot.Name == "" {
		return fmt.Errorf("slot name cannot be empty")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(slot).Error
}

func (r *gormSlotRepo) Delete(ctx context.Context, name string) error {
	if r.db == nil {
		return fmt.Errorf("repository not initialized")
	}
	return r.db.WithContext(ctx).Delete(&Slot{}, "name = ?", name).Error
}

func (r *gormSlotRepo) List(ctx context.Context) ([]Slot, error) {
	if r.db == nil {
		return nil, fmt.Errorf("repository not initialized")
	}
	var slots []Slot
	if err := r.db.WithContext(ctx).Order("name").Find(&slots).Error; err != nil {
		return nil, err
	}
	return slots, nil
}
