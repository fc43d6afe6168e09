package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/habedi/reauth/db"
)

// Store keeps the value in a named row of the SQLite slot table.
type Store struct {
	repo db.SlotRepository
	name string
}

// NewStore creates a Store for the slot called name.
func NewStore(repo db.SlotRepository, name string) *Store {
	return &Store{repo: repo, name: name}
}

func (s *Store) Read(ctx context.Context) (string, bool, error) {
	slot, err := s.repo.Get(ctx, s.name)
	if err != nil {
		return "", false, fmt.Errorf("failed to read slot %q: %w", s.name, err)
	}
	if slot == nil || slot.Expired(time.Now()) {
		return "", false, nil
	}
	return slot.Value, true, nil
}

func (s *Store) Write(ctx context.Context, value string, expiry time.Duration) error {
	slot := &db.Slot{
		Name:      s.name,
		Value:     value,
		ExpiresAt: expiresAt(time.Now(), expiry),
	}
	if err := s.repo.Upsert(ctx, slot); err != nil {
		return fmt.Errorf("failed to write slot %q: %w", s.name, err)
	}
	return nil
}

func (s *Store) Drop(ctx context.Context) error {
	if err := s.repo.Delete(ctx, s.name); err != nil {
		return fmt.Errorf("failed to drop slot %q: %w", s.name, err)
	}
	return nil
}
