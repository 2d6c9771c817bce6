package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trunov/convo/internal/artifact"
	"github.com/trunov/convo/internal/entities"
	"github.com/trunov/convo/internal/redisholder"
)

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	cl := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	holder := redisholder.NewHolder(cl)
	t.Cleanup(func() { _ = holder.Close() })

	return NewCache("test:artifacts", holder, ttl), mr
}

func TestCache_PutGetRemove(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t, time.Minute)

	blob := entities.Blob{Filename: "a.png", MIMEType: "image/png", Data: []byte{0x89, 0x50, 0x00, 0xff}}
	require.NoError(t, c.Put(ctx, "id1", blob))

	assert.True(t, mr.Exists("test:artifacts:id1"))
	assert.Equal(t, time.Minute, mr.TTL("test:artifacts:id1"))

	got, err := c.Get(ctx, "id1")
	require.NoError(t, err)
	assert.Equal(t, blob, got)

	ok, err := c.Remove(ctx, "id1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Remove(ctx, "id1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.Get(ctx, "id1")
	assert.ErrorIs(t, err, artifact.ErrNotFound)
}

func TestCache_Expires(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t, time.Minute)

	require.NoError(t, c.Put(ctx, "id", entities.Blob{Filename: "a"}))
	mr.FastForward(time.Minute + time.Second)

	_, err := c.Get(ctx, "id")
	assert.ErrorIs(t, err, artifact.ErrNotFound)
}

func TestCache_ZeroTTLUsesDefault(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t, 0)

	require.NoError(t, c.Put(ctx, "id", entities.Blob{Filename: "a"}))
	assert.True(t, mr.Exists("test:artifacts:id"))
	assert.Equal(t, artifact.DefaultTTL, mr.TTL("test:artifacts:id"))
}

func TestCache_Take(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t, time.Minute)

	require.NoError(t, c.Put(ctx, "id", entities.Blob{Filename: "a.jpg", MIMEType: "image/jpeg", Data: []byte{1, 2, 3}}))

	got, err := c.Take(ctx, "id")
	require.NoError(t, err)
	assert.Equal(t, "a.jpg", got.Filename)
	assert.Equal(t, []byte{1, 2, 3}, got.Data)
	assert.False(t, mr.Exists("test:artifacts:id"))

	_, err = c.Take(ctx, "id")
	assert.ErrorIs(t, err, artifact.ErrNotFound)
}

func TestCache_TakeOnceUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, time.Minute)
	m := artifact.NewManager(c, time.Minute, "/api/artifacts")

	h, err := m.Acquire(ctx, entities.Blob{Filename: "a.png", Data: []byte{1}})
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Consume(ctx, h.ID); err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
}

func TestCache_FollowsHolderSwap(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	first := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	holder := redisholder.NewHolder(first)
	c := NewCache("test:artifacts", holder, time.Minute)

	require.NoError(t, c.Put(ctx, "id", entities.Blob{Filename: "a"}))

	// A reconnect installs a new client and closes the old one.
	second := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, holder.Swap(second).Close())
	t.Cleanup(func() { _ = holder.Close() })

	got, err := c.Get(ctx, "id")
	require.NoError(t, err)
	assert.Equal(t, "a", got.Filename)
}
