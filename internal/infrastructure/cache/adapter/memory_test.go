package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatwire/internal/infrastructure/cache/port"
)

func TestMemoryCacheSetGetDel(t *testing.T) {
	m := NewMemoryCache()
	ctx := context.Background()

	_, err := m.Get(ctx, "missing")
	assert.ErrorIs(t, err, port.ErrMiss)

	require.NoError(t, m.Set(ctx, "k", "v", 0))
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	n, err := m.Del(ctx, "k", "missing")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, port.ErrMiss)
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	m := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "short", "v", 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	_, err := m.Get(ctx, "short")
	assert.ErrorIs(t, err, port.ErrMiss)
}

func TestMemoryCacheZeroTTLNeverExpires(t *testing.T) {
	m := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "forever", "v", 0))
	time.Sleep(15 * time.Millisecond)

	got, err := m.Get(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}
