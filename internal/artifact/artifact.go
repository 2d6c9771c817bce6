// Package artifact hands out short-lived handles to converted payloads.
//
// A handle lives until it is downloaded once, released explicitly or its TTL
// lapses, whichever comes first.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog/log"
	"github.com/trunov/convo/internal/entities"
)

var ErrNotFound = errors.New("artifact not found")

// DefaultTTL applies when no positive TTL is configured.
const DefaultTTL = 10 * time.Minute

// EffectiveTTL returns ttl, or DefaultTTL when ttl is not positive. Every
// backend and the Manager must agree on it so ExpiresAt stays truthful.
func EffectiveTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}

type Handle struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store keeps payloads by handle id. Implementations expire entries on their
// own after the TTL they were built with.
type Store interface {
	Put(ctx context.Context, id string, blob entities.Blob) error
	Get(ctx context.Context, id string) (entities.Blob, error)
	Remove(ctx context.Context, id string) (bool, error)
	// Take returns the payload and removes it in one step. Of several
	// concurrent callers for the same id at most one gets the payload; the
	// rest see ErrNotFound.
	Take(ctx context.Context, id string) (entities.Blob, error)
}

type Manager struct {
	store     Store
	ttl       time.Duration
	urlPrefix string

	now func() time.Time
}

func NewManager(store Store, ttl time.Duration, urlPrefix string) *Manager {
	return &Manager{
		store:     store,
		ttl:       EffectiveTTL(ttl),
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
		now:       time.Now,
	}
}

// Acquire stores blob and returns a fresh handle for it.
func (m *Manager) Acquire(ctx context.Context, blob entities.Blob) (Handle, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return Handle{}, fmt.Errorf("failed to generate handle id: %w", err)
	}

	if err := m.store.Put(ctx, id.String(), blob); err != nil {
		return Handle{}, fmt.Errorf("failed to store artifact: %w", err)
	}

	log.Debug().
		Str("component", "artifact").
		Str("id", id.String()).
		Str("filename", blob.Filename).
		Int("bytes", blob.Size()).
		Msg("handle acquired")

	return Handle{
		ID:        id.String(),
		URL:       m.urlPrefix + "/" + id.String(),
		ExpiresAt: m.now().Add(m.ttl),
	}, nil
}

// Open returns the payload behind id without releasing it.
func (m *Manager) Open(ctx context.Context, id string) (entities.Blob, error) {
	return m.store.Get(ctx, id)
}

// Release drops the payload behind id.
func (m *Manager) Release(ctx context.Context, id string) error {
	ok, err := m.store.Remove(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to release artifact %s: %w", id, err)
	}
	if !ok {
		return ErrNotFound
	}

	log.Debug().Str("component", "artifact").Str("id", id).Msg("handle released")
	return nil
}

// Consume returns the payload behind id and releases the handle. Only one
// caller per handle ever succeeds.
func (m *Manager) Consume(ctx context.Context, id string) (entities.Blob, error) {
	blob, err := m.store.Take(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return entities.Blob{}, err
		}
		return entities.Blob{}, fmt.Errorf("failed to consume artifact %s: %w", id, err)
	}

	log.Debug().Str("component", "artifact").Str("id", id).Msg("handle consumed")
	return blob, nil
}
