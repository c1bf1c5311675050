package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/journal-accounts/internal/config"
	"github.com/magabrotheeeer/journal-accounts/internal/models"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cache, err := InitServer(context.Background(), config.RedisConnection{AddressRedis: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

func TestSetAndGet_UserRecord(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	end := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	expected := models.UserRecord{
		UID:                "uid-1",
		SubscriptionStatus: models.StatusTrialing,
		TrialEndAt:         &end,
		Stickers:           []string{"https://cdn.example.com/stickers/uid-1/a.png"},
	}
	require.NoError(t, cache.Set(ctx, UserKey("uid-1"), expected, time.Minute))

	var actual models.UserRecord
	found, err := cache.Get(ctx, UserKey("uid-1"), &actual)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, expected.UID, actual.UID)
	assert.Equal(t, expected.SubscriptionStatus, actual.SubscriptionStatus)
	assert.True(t, end.Equal(*actual.TrialEndAt))
	assert.Equal(t, expected.Stickers, actual.Stickers)
}

func TestGet_Miss(t *testing.T) {
	cache, _ := setupTestCache(t)

	var out models.UserRecord
	found, err := cache.Get(context.Background(), "no_such_key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSet_Expires(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "short", "value", 5*time.Second))
	mr.FastForward(6 * time.Second)

	var out string
	found, err := cache.Get(ctx, "short", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInvalidate(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key", "value", time.Minute))
	require.NoError(t, cache.Invalidate(ctx, "key"))

	var out string
	found, err := cache.Get(ctx, "key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGet_InvalidJSON(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Db.Set(ctx, "bad", []byte("not-json"), time.Minute).Err())

	var out models.UserRecord
	found, err := cache.Get(ctx, "bad", &out)
	assert.False(t, found)
	assert.Error(t, err)
}

func TestInitServer_InvalidAddr(t *testing.T) {
	cache, err := InitServer(context.Background(), config.RedisConnection{
		AddressRedis: "127.0.0.1:1",
		DialTimeout:  100 * time.Millisecond,
	})

	assert.Nil(t, cache)
	assert.Error(t, err)
}

func TestUserKey(t *testing.T) {
	assert.Equal(t, "user:abc", UserKey("abc"))
}
