package push

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestMemoryThrottle(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	th := NewMemoryThrottle(time.Second, clock.Now)
	ctx := context.Background()

	ok, err := th.Allow(ctx, "push:1:10")
	require.NoError(t, err)
	assert.True(t, ok, "first push allowed")

	ok, _ = th.Allow(ctx, "push:1:10")
	assert.False(t, ok, "second push within window suppressed")

	ok, _ = th.Allow(ctx, "push:2:10")
	assert.True(t, ok, "other user unaffected")

	ok, _ = th.Allow(ctx, "push:1:11")
	assert.True(t, ok, "other task unaffected")

	clock.Advance(999 * time.Millisecond)
	ok, _ = th.Allow(ctx, "push:1:10")
	assert.False(t, ok, "still inside window")

	clock.Advance(time.Millisecond)
	ok, _ = th.Allow(ctx, "push:1:10")
	assert.True(t, ok, "window elapsed")
}

func TestMemoryThrottleEviction(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	th := NewMemoryThrottle(time.Second, clock.Now)
	ctx := context.Background()

	_, _ = th.Allow(ctx, "a")
	clock.Advance(500 * time.Millisecond)
	_, _ = th.Allow(ctx, "b")
	require.Equal(t, 2, th.Len())

	clock.Advance(600 * time.Millisecond)
	th.evictExpired()
	assert.Equal(t, 1, th.Len(), "only the expired key is evicted")
}

func TestRedisThrottle(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	th := NewRedisThrottle(client, time.Second)
	ctx := context.Background()

	ok, err := th.Allow(ctx, "push:1:10")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = th.Allow(ctx, "push:1:10")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, s.Exists("taskhub:throttle:push:1:10"))

	s.FastForward(time.Second)
	ok, err = th.Allow(ctx, "push:1:10")
	require.NoError(t, err)
	assert.True(t, ok, "key expired")
}

func TestRedisThrottleUnavailable(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()
	s.Close()

	_, err := NewRedisThrottle(client, time.Second).Allow(context.Background(), "k")
	assert.Error(t, err)
}

func TestNewRedisClient(t *testing.T) {
	s := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), "redis://"+s.Addr())
	require.NoError(t, err)
	defer client.Close()

	_, err = NewRedisClient(context.Background(), "::not a url")
	assert.Error(t, err)
}
