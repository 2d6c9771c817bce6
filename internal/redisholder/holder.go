package redisholder

import (
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

// Holder gives every consumer the current client while the health loop is
// free to replace it after a reconnect. The client is boxed because a
// reconnect may switch between cluster and single-node clients.
type Holder struct {
	v atomic.Pointer[box]
}

type box struct {
	client redis.UniversalClient
}

func NewHolder(initial redis.UniversalClient) *Holder {
	h := &Holder{}
	h.v.Store(&box{client: initial})
	return h
}

func (h *Holder) Get() redis.UniversalClient {
	if b := h.v.Load(); b != nil {
		return b.client
	}
	return nil
}

// Swap installs next and returns the client it replaced.
func (h *Holder) Swap(next redis.UniversalClient) redis.UniversalClient {
	prev := h.v.Swap(&box{client: next})
	if prev == nil {
		return nil
	}
	return prev.client
}

func (h *Holder) Close() error {
	if c := h.Get(); c != nil {
		return c.Close()
	}
	return nil
}
