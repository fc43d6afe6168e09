package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_ReadWriteDrop(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("")

	_, ok, err := m.Read(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Write(ctx, "a-1", 0))
	v, ok, err := m.Read(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a-1", v)

	require.NoError(t, m.Drop(ctx))
	_, ok, _ = m.Read(ctx)
	assert.False(t, ok)
}

func TestMemory_InitialValue(t *testing.T) {
	v, ok, err := NewMemory("r-0").Read(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "r-0", v)
}

func TestMemory_HonoursExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory("")
	m.now = func() time.Time { return now }

	require.NoError(t, m.Write(ctx, "a-1", 10*time.Second))
	_, ok, _ := m.Read(ctx)
	assert.True(t, ok)

	now = now.Add(10 * time.Second)
	_, ok, _ = m.Read(ctx)
	assert.False(t, ok, "value should be absent once the expiry has passed")
}
