package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Mirror wraps a Cache with an in-process copy of its value. Reads are served
// from the copy only; writes and drops update the copy first and then go to
// the backing cache. A failed backend write is logged and otherwise ignored:
// the copy has already moved on.
type Mirror struct {
	name    string
	backing Cache

	mu    sync.RWMutex
	value string
	ok    bool

	// forward serialises backend calls so they land in issue order.
	forward sync.Mutex
}

// NewMirror hydrates a Mirror from the backing cache.
func NewMirror(ctx context.Context, name string, backing Cache) (*Mirror, error) {
	if backing == nil {
		return nil, fmt.Errorf("mirror %q: backing cache is nil", name)
	}
	value, ok, err := backing.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to hydrate %s slot: %w", name, err)
	}
	log.Debug().Str("slot", name).Bool("present", ok).Msg("Slot hydrated")
	return &Mirror{name: name, backing: backing, value: value, ok: ok}, nil
}

// Name returns the slot name the mirror was created with.
func (m *Mirror) Name() string { return m.name }

// Read returns the mirrored value.
func (m *Mirror) Read() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.value, m.ok
}

// Write stores value in the mirror and forwards it to the backing cache.
func (m *Mirror) Write(ctx context.Context, value string, expiry time.Duration) {
	m.forward.Lock()
	defer m.forward.Unlock()

	m.mu.Lock()
	m.value, m.ok = value, true
	m.mu.Unlock()

	if err := m.backing.Write(ctx, value, expiry); err != nil {
		log.Warn().Err(err).Str("slot", m.name).Msg("Backing cache write failed")
	}
}

// Drop clears the mirror and forwards the drop to the backing cache.
func (m *Mirror) Drop(ctx context.Context) {
	m.forward.Lock()
	defer m.forward.Unlock()

	m.mu.Lock()
	m.value, m.ok = "", false
	m.mu.Unlock()

	if err := m.backing.Drop(ctx); err != nil {
		log.Warn().Err(err).Str("slot", m.name).Msg("Backing cache drop failed")
	}
}
