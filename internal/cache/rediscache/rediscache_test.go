package rediscache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-items/internal/cache/cachetest"
	"github.com/nerrad567/gray-logic-items/internal/item"
)

func newStore(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Test cleanup
	return NewFromClient(client, opts...), mr
}

func TestStoreContract(t *testing.T) {
	s, _ := newStore(t)
	cachetest.Run(t, s)
}

func TestKeyPrefix(t *testing.T) {
	s, mr := newStore(t, WithPrefix("test:"))
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "living.light", true))
	assert.True(t, mr.Exists("test:living.light"))

	require.NoError(t, s.Delete(ctx, "living.light"))
	assert.False(t, mr.Exists("test:living.light"))
}

func TestEmptyKey(t *testing.T) {
	s, mr := newStore(t)
	require.NoError(t, mr.Set(DefaultPrefix+"blank", ""))

	_, _, err := s.Read(context.Background(), "blank")
	assert.ErrorIs(t, err, item.ErrCacheEmpty)
}

func TestCorruptRecord(t *testing.T) {
	s, mr := newStore(t)
	require.NoError(t, mr.Set(DefaultPrefix+"bad", "\xff\xff"))

	_, _, err := s.Read(context.Background(), "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, item.ErrCacheMiss)
}

func TestPing(t *testing.T) {
	s, mr := newStore(t)
	require.NoError(t, s.Ping(context.Background()))

	mr.Close()
	assert.Error(t, s.Ping(context.Background()))
}
