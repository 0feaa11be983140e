package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/travelsearch/internal/model"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedis_SetGet(t *testing.T) {
	ctx := context.Background()
	mr, client := setupRedis(t)
	r := NewRedis(client, "")

	offers := sampleOffers()
	offers[0].Refundable = model.BoolPtr(true)
	r.Set(ctx, "offers:abc", offers, time.Minute)

	assert.True(t, mr.Exists("travelsearch:offers:abc"))
	assert.Equal(t, time.Minute, mr.TTL("travelsearch:offers:abc"))

	got, ok := r.Get(ctx, "offers:abc")
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	require.NotNil(t, got[0].Refundable)
	assert.True(t, *got[0].Refundable)
}

func TestRedis_Miss(t *testing.T) {
	_, client := setupRedis(t)
	_, ok := NewRedis(client, "ts:").Get(context.Background(), "nope")
	assert.False(t, ok)
}

func TestRedis_ServerSideExpiry(t *testing.T) {
	ctx := context.Background()
	mr, client := setupRedis(t)
	r := NewRedis(client, "ts:")

	r.Set(ctx, "k", sampleOffers(), 30*time.Second)
	mr.FastForward(31 * time.Second)

	_, ok := r.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedis_LazyExpiryCheck(t *testing.T) {
	ctx := context.Background()
	mr, client := setupRedis(t)
	r := NewRedis(client, "ts:")

	clock := &fakeClock{now: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)}
	r.now = clock.Now

	r.Set(ctx, "k", sampleOffers(), time.Minute)
	clock.Advance(2 * time.Minute)

	_, ok := r.Get(ctx, "k")
	assert.False(t, ok)
	assert.False(t, mr.Exists("ts:k"), "stale entry deleted on read")
}

func TestRedis_CorruptEntry(t *testing.T) {
	ctx := context.Background()
	mr, client := setupRedis(t)
	require.NoError(t, mr.Set("ts:k", "{not json"))

	_, ok := NewRedis(client, "ts:").Get(ctx, "k")
	assert.False(t, ok)
	assert.False(t, mr.Exists("ts:k"))
}

func TestRedis_ClearAndSize_OnlyOwnPrefix(t *testing.T) {
	ctx := context.Background()
	mr, client := setupRedis(t)
	r := NewRedis(client, "ts:")

	r.Set(ctx, "a", sampleOffers(), time.Minute)
	r.Set(ctx, "b", sampleOffers(), time.Minute)
	require.NoError(t, mr.Set("other:key", "keep"))

	assert.Equal(t, 2, r.Size(ctx))

	r.Clear(ctx)
	assert.Zero(t, r.Size(ctx))
	assert.True(t, mr.Exists("other:key"))
}

func TestRedis_BackendErrorIsMiss(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	r := NewRedis(client, "ts:")

	mock.ExpectGet("ts:k").SetErr(errors.New("connection reset"))
	_, ok := r.Get(ctx, "k")
	assert.False(t, ok)

	mock.ExpectScan(0, "ts:*", scanBatch).SetErr(errors.New("connection reset"))
	assert.Zero(t, r.Size(ctx))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewRedisClient(ctx, RedisConfig{Address: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestNewRedisClient_OK(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := NewRedisClient(context.Background(), RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	assert.NoError(t, client.Close())
}
