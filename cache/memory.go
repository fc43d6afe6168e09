package cache

import (
	"context"
	"sync"
	"time"
)

// Memory keeps the value for the lifetime of the process.
type Memory struct {
	mu        sync.RWMutex
	value     string
	ok        bool
	expiresAt *time.Time
	now       func() time.Time
}

// NewMemory creates a Memory cache. An empty initial value means absent.
func NewMemory(initial string) *Memory {
	return &Memory{value: initial, ok: initial != "", now: time.Now}
}

func (m *Memory) Read(_ context.Context) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.ok {
		return "", false, nil
	}
	if m.expiresAt != nil && !m.now().Before(*m.expiresAt) {
		return "", false, nil
	}
	return m.value, true, nil
}

func (m *Memory) Write(_ context.Context, value string, expiry time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.value = value
	m.ok = true
	m.expiresAt = expiresAt(m.now(), expiry)
	return nil
}

func (m *Memory) Drop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.value = ""
	m.ok = false
	m.expiresAt = nil
	return nil
}
