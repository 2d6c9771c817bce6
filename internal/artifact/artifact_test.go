package artifact

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trunov/convo/internal/entities"
)

func TestManager_AcquireConsume(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(8, time.Minute)
	m := NewManager(store, time.Minute, "/api/artifacts/")

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	blob := entities.Blob{Filename: "a.png", MIMEType: "image/png", Data: []byte{1, 2}}
	h, err := m.Acquire(ctx, blob)
	require.NoError(t, err)

	assert.NotEmpty(t, h.ID)
	assert.Equal(t, "/api/artifacts/"+h.ID, h.URL)
	assert.Equal(t, fixed.Add(time.Minute), h.ExpiresAt)

	opened, err := m.Open(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, blob, opened)

	got, err := m.Consume(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, blob, got)
	assert.Equal(t, 0, store.Len())

	_, err = m.Consume(ctx, h.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_Release(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(8, time.Minute), time.Minute, "/x")

	h, err := m.Acquire(ctx, entities.Blob{Filename: "b.jpg"})
	require.NoError(t, err)

	require.NoError(t, m.Release(ctx, h.ID))
	assert.ErrorIs(t, m.Release(ctx, h.ID), ErrNotFound)

	_, err = m.Open(ctx, h.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_UniqueHandles(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(8, time.Minute), time.Minute, "")

	a, err := m.Acquire(ctx, entities.Blob{})
	require.NoError(t, err)
	b, err := m.Acquire(ctx, entities.Blob{})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(8, 20*time.Millisecond)

	require.NoError(t, s.Put(ctx, "k", entities.Blob{Filename: "k"}))

	assert.Eventually(t, func() bool {
		_, err := s.Get(ctx, "k")
		return errors.Is(err, ErrNotFound)
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryStore_EvictsOldest(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2, time.Minute)

	require.NoError(t, s.Put(ctx, "a", entities.Blob{}))
	require.NoError(t, s.Put(ctx, "b", entities.Blob{}))
	require.NoError(t, s.Put(ctx, "c", entities.Blob{}))

	_, err := s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 2, s.Len())
}

type failingStore struct{ MemoryStore }

func (*failingStore) Put(context.Context, string, entities.Blob) error { return errors.New("boom") }

func TestManager_AcquireStoreError(t *testing.T) {
	m := NewManager(&failingStore{}, time.Minute, "")
	_, err := m.Acquire(context.Background(), entities.Blob{})
	assert.Error(t, err)
}

// slowStore widens the window between reading a payload and dropping it, the
// way a network round trip to Redis would.
type slowStore struct {
	*MemoryStore
}

func (s slowStore) Get(ctx context.Context, id string) (entities.Blob, error) {
	time.Sleep(5 * time.Millisecond)
	return s.MemoryStore.Get(ctx, id)
}

func (s slowStore) Take(ctx context.Context, id string) (entities.Blob, error) {
	time.Sleep(5 * time.Millisecond)
	return s.MemoryStore.Take(ctx, id)
}

func TestManager_ConsumeOnceUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	m := NewManager(slowStore{NewMemoryStore(8, time.Minute)}, time.Minute, "")

	h, err := m.Acquire(ctx, entities.Blob{Filename: "a.png", Data: []byte{1}})
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		notFound  atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Consume(ctx, h.ID)
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, ErrNotFound):
				notFound.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(7), notFound.Load())
}

func TestMemoryStore_Take(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(8, time.Minute)
	require.NoError(t, s.Put(ctx, "k", entities.Blob{Filename: "k"}))

	got, err := s.Take(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "k", got.Filename)
	assert.Equal(t, 0, s.Len())

	_, err = s.Take(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEffectiveTTL(t *testing.T) {
	assert.Equal(t, DefaultTTL, EffectiveTTL(0))
	assert.Equal(t, DefaultTTL, EffectiveTTL(-time.Second))
	assert.Equal(t, time.Second, EffectiveTTL(time.Second))
}

func TestManager_ZeroTTLReportsDefault(t *testing.T) {
	m := NewManager(NewMemoryStore(8, 0), 0, "")
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	h, err := m.Acquire(context.Background(), entities.Blob{})
	require.NoError(t, err)
	assert.Equal(t, fixed.Add(DefaultTTL), h.ExpiresAt)
}
