package tenant

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/THuebbe/yardsign/internal/domain"
)

const (
	keySlug   = "tenant:slug:%s"
	keyDomain = "tenant:domain:%s"
)

// cacheTTL is deliberately short. Tenant updates invalidate their keys
// explicitly; the TTL is the backstop when that write never happens.
const cacheTTL = 30 * time.Second

// CachedDirectory wraps a Directory with a redis lookaside cache on the
// routing keys. Misses and redis failures fall through to the inner
// directory; only successful lookups are cached.
type CachedDirectory struct {
	inner Directory
	rdb   *redis.Client
}

func NewCachedDirectory(inner Directory, rdb *redis.Client) *CachedDirectory {
	return &CachedDirectory{inner: inner, rdb: rdb}
}

func (c *CachedDirectory) ByRoutingKey(ctx context.Context, key string) (domain.Tenant, error) {
	return c.lookup(ctx, fmt.Sprintf(keySlug, key), func() (domain.Tenant, error) {
		return c.inner.ByRoutingKey(ctx, key)
	})
}

func (c *CachedDirectory) ByDomain(ctx context.Context, host string) (domain.Tenant, error) {
	return c.lookup(ctx, fmt.Sprintf(keyDomain, host), func() (domain.Tenant, error) {
		return c.inner.ByDomain(ctx, host)
	})
}

// Invalidate drops the tenant's routing keys so deactivation and domain
// changes take effect on the next request instead of after the TTL.
func (c *CachedDirectory) Invalidate(ctx context.Context, t domain.Tenant) {
	keys := []string{fmt.Sprintf(keySlug, t.Slug)}
	if t.CustomDomain != "" {
		keys = append(keys, fmt.Sprintf(keyDomain, t.CustomDomain))
	}
	_ = c.rdb.Del(ctx, keys...).Err()
}

func (c *CachedDirectory) lookup(ctx context.Context, cacheKey string, load func() (domain.Tenant, error)) (domain.Tenant, error) {
	if raw, err := c.rdb.Get(ctx, cacheKey).Bytes(); err == nil {
		var t domain.Tenant
		if json.Unmarshal(raw, &t) == nil {
			return t, nil
		}
	}

	t, err := load()
	if err != nil {
		return domain.Tenant{}, err
	}
	if raw, err := json.Marshal(t); err == nil {
		_ = c.rdb.Set(ctx, cacheKey, raw, cacheTTL).Err()
	}
	return t, nil
}
