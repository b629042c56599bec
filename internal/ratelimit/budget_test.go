package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestBudget(t *testing.T, budget int) (*RequestBudget, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	b, err := NewRequestBudget(&BudgetConfig{
		Redis:  client,
		Name:   "debank",
		Budget: budget,
		Window: time.Minute,
	})
	require.NoError(t, err)

	now := time.Date(2022, 1, 1, 1, 0, 10, 0, time.UTC)
	b.now = func() time.Time { return now }
	return b, mr
}

func TestNewRequestBudget_Validation(t *testing.T) {
	_, err := NewRequestBudget(nil)
	assert.Error(t, err)

	_, err = NewRequestBudget(&BudgetConfig{Name: "x", Budget: 1})
	assert.ErrorContains(t, err, "redis client is required")

	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	_, err = NewRequestBudget(&BudgetConfig{Redis: client, Name: "x"})
	assert.ErrorContains(t, err, "budget must be positive")

	_, err = NewRequestBudget(&BudgetConfig{Redis: client, Budget: 1})
	assert.ErrorContains(t, err, "name is required")
}

func TestRequestBudget_DeniesBeyondBudget(t *testing.T) {
	b, _ := setupTestBudget(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _, err := b.TryConsume(ctx, 1)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d", i)
	}

	allowed, wait, err := b.TryConsume(ctx, 1)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 50*time.Second+time.Millisecond, wait)

	used, err := b.Used(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, used)
}

func TestRequestBudget_NewWindowResets(t *testing.T) {
	b, _ := setupTestBudget(t, 1)
	ctx := context.Background()

	allowed, _, err := b.TryConsume(ctx, 1)
	require.NoError(t, err)
	require.True(t, allowed)

	next := b.now().Add(time.Minute)
	b.now = func() time.Time { return next }

	allowed, _, err = b.TryConsume(ctx, 1)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRequestBudget_SharedAcrossInstances(t *testing.T) {
	b1, mr := setupTestBudget(t, 2)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	b2, err := NewRequestBudget(&BudgetConfig{Redis: client, Name: "debank", Budget: 2, Window: time.Minute})
	require.NoError(t, err)
	b2.now = b1.now

	ctx := context.Background()
	allowed, _, _ := b1.TryConsume(ctx, 1)
	assert.True(t, allowed)
	allowed, _, _ = b2.TryConsume(ctx, 1)
	assert.True(t, allowed)
	allowed, _, _ = b1.TryConsume(ctx, 1)
	assert.False(t, allowed)
}

func TestRequestBudget_KeyExpires(t *testing.T) {
	b, mr := setupTestBudget(t, 5)
	ctx := context.Background()

	_, _, err := b.TryConsume(ctx, 2)
	require.NoError(t, err)

	key := b.key(b.windowStart())
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 2*time.Minute, mr.TTL(key))
}

func TestRequestBudget_WaitRespectsContext(t *testing.T) {
	b, _ := setupTestBudget(t, 1)
	ctx := context.Background()

	require.NoError(t, b.Wait(ctx))

	cancelled, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, b.Wait(cancelled), context.DeadlineExceeded)
}

func TestRequestBudget_RedisDown(t *testing.T) {
	b, mr := setupTestBudget(t, 1)
	mr.Close()

	allowed, _, err := b.TryConsume(context.Background(), 1)
	assert.False(t, allowed)
	assert.Error(t, err)
}
