package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/trunov/convo/internal/artifact"
	"github.com/trunov/convo/internal/entities"
	"github.com/trunov/convo/internal/redisholder"
)

const (
	fieldFilename = "filename"
	fieldMimeType = "mime_type"
	fieldData     = "data"
)

var _ artifact.Store = (*Cache)(nil)

// Cache keeps artifact payloads in Redis hashes that expire after TTL. The
// client is resolved from the holder on every call so a reconnect is picked
// up without rebuilding the cache.
type Cache struct {
	Redis     *redisholder.Holder
	Namespace string
	TTL       time.Duration
}

func (c *Cache) key(id string) string {
	return c.Namespace + ":" + id
}

// Put stores blob under id
func (c *Cache) Put(ctx context.Context, id string, blob entities.Blob) error {
	key := c.key(id)
	_, err := c.Redis.Get().TxPipelined(ctx, func(pl redis.Pipeliner) error {
		pl.HSet(ctx, key,
			fieldFilename, blob.Filename,
			fieldMimeType, blob.MIMEType,
			fieldData, blob.Data,
		)
		pl.Expire(ctx, key, c.TTL)
		return nil
	})
	return err
}

// Get blob from Redis
func (c *Cache) Get(ctx context.Context, id string) (entities.Blob, error) {
	vals, err := c.Redis.Get().HGetAll(ctx, c.key(id)).Result()
	if err != nil {
		return entities.Blob{}, err
	}
	return toBlob(vals)
}

// Remove deletes id and reports whether it existed
func (c *Cache) Remove(ctx context.Context, id string) (bool, error) {
	n, err := c.Redis.Get().Del(ctx, c.key(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Take reads and deletes id inside one MULTI/EXEC block. Only the caller
// whose DEL removed the key gets the payload.
func (c *Cache) Take(ctx context.Context, id string) (entities.Blob, error) {
	key := c.key(id)

	var (
		get *redis.MapStringStringCmd
		del *redis.IntCmd
	)
	_, err := c.Redis.Get().TxPipelined(ctx, func(pl redis.Pipeliner) error {
		get = pl.HGetAll(ctx, key)
		del = pl.Del(ctx, key)
		return nil
	})
	if err != nil {
		return entities.Blob{}, err
	}

	if del.Val() == 0 {
		return entities.Blob{}, artifact.ErrNotFound
	}
	return toBlob(get.Val())
}

func toBlob(vals map[string]string) (entities.Blob, error) {
	if len(vals) == 0 {
		return entities.Blob{}, artifact.ErrNotFound
	}
	return entities.Blob{
		Filename: vals[fieldFilename],
		MIMEType: vals[fieldMimeType],
		Data:     []byte(vals[fieldData]),
	}, nil
}

func NewCache(namespace string, holder *redisholder.Holder, ttl time.Duration) *Cache {
	return &Cache{
		Namespace: namespace,
		Redis:     holder,
		TTL:       artifact.EffectiveTTL(ttl),
	}
}
