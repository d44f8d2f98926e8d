package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisBlacklist(t *testing.T) (*RedisTokenBlacklist, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisTokenBlacklist(client), mr
}

func TestRedisTokenBlacklist(t *testing.T) {
	ctx := context.Background()

	t.Run("revoked jti is blacklisted until ttl passes", func(t *testing.T) {
		bl, mr := newMiniredisBlacklist(t)

		require.NoError(t, bl.AddToBlacklist(ctx, "jti-1", time.Minute))
		assert.True(t, mr.Exists(blacklistKeyPrefix+"jti:jti-1"))

		revoked, err := bl.IsBlacklisted(ctx, "jti-1")
		require.NoError(t, err)
		assert.True(t, revoked)

		mr.FastForward(2 * time.Minute)
		revoked, err = bl.IsBlacklisted(ctx, "jti-1")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("unknown jti is not blacklisted", func(t *testing.T) {
		bl, _ := newMiniredisBlacklist(t)

		revoked, err := bl.IsBlacklisted(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("non-positive ttl is a no-op", func(t *testing.T) {
		bl, mr := newMiniredisBlacklist(t)

		require.NoError(t, bl.AddToBlacklist(ctx, "jti-2", 0))
		assert.False(t, mr.Exists(blacklistKeyPrefix+"jti:jti-2"))
	})

	t.Run("redis failure surfaces as error", func(t *testing.T) {
		bl, mr := newMiniredisBlacklist(t)
		mr.Close()

		_, err := bl.IsBlacklisted(ctx, "jti-1")
		assert.Error(t, err)
	})
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	defer client.Close()

	mr.Close()
	_, err = NewRedisClient(context.Background(), mr.Addr(), "", 0)
	assert.Error(t, err)
}

func TestInMemoryTokenBlacklist(t *testing.T) {
	ctx := context.Background()
	bl := NewInMemoryTokenBlacklist()
	now := time.Now()
	bl.now = func() time.Time { return now }

	require.NoError(t, bl.AddToBlacklist(ctx, "jti-1", time.Minute))
	require.NoError(t, bl.AddToBlacklist(ctx, "jti-2", -time.Second))
	assert.Equal(t, 1, bl.Len())

	revoked, err := bl.IsBlacklisted(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, err = bl.IsBlacklisted(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
	assert.Zero(t, bl.Len(), "expired entry is dropped on lookup")
}
