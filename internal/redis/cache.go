package redis

import (
	"context"
	"encoding/json"
	"log"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ViewCache stores JSON-encoded read model projections in Redis, one view
// per key. A zero ttl keeps entries until they are overwritten, which is how
// balance views are kept (they are rewritten on every mutation); user
// lookups use a short ttl instead.
type ViewCache[T any] struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewViewCache[T any](client *goredis.Client, ttl time.Duration) *ViewCache[T] {
	return &ViewCache[T]{client: client, ttl: ttl}
}

// Get returns the cached view for key, or (nil, false) on a miss. An entry
// that no longer decodes is treated as a miss; the caller's fallback path
// will overwrite it.
func (c *ViewCache[T]) Get(ctx context.Context, key string) (*T, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var view T
	if err := json.Unmarshal(data, &view); err != nil {
		log.Printf("view cache: undecodable entry %s: %v", key, err)
		return nil, false
	}
	return &view, true
}

// Set stores view under key. Cache writes are best-effort: failures are
// logged, never returned, because the source of truth has already committed.
func (c *ViewCache[T]) Set(ctx context.Context, key string, view *T) {
	data, err := json.Marshal(view)
	if err != nil {
		log.Printf("view cache: failed to marshal %s: %v", key, err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Printf("view cache: failed to store %s: %v", key, err)
	}
}
