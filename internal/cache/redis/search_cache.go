package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/bestdeal/internal/domain/product"
	"github.com/xenking/bestdeal/internal/wire"
)

// DefaultSearchTTL is how long scraped results stay cached.
const DefaultSearchTTL = 15 * time.Minute

// SearchCache stores scraped groups per normalized query at "search:<query>".
type SearchCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSearchCache creates a SearchCache. A non-positive ttl uses
// DefaultSearchTTL.
func NewSearchCache(c *Client, ttl time.Duration) *SearchCache {
	if ttl <= 0 {
		ttl = DefaultSearchTTL
	}
	return &SearchCache{rdb: c.Underlying(), ttl: ttl}
}

func searchKey(query string) string {
	return "search:" + product.Normalize(query)
}

// Get returns the cached groups for query. ok is false on a cache miss.
func (sc *SearchCache) Get(ctx context.Context, query string) (_ []wire.IdentifiedGroup, ok bool, _ error) {
	data, err := sc.rdb.Get(ctx, searchKey(query)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "get cached search %q", query)
	}
	groups, err := wire.DecodeGroups(data)
	if err != nil {
		return nil, false, errors.Wrapf(err, "decode cached search %q", query)
	}
	return groups, true, nil
}

// Set caches groups for query.
func (sc *SearchCache) Set(ctx context.Context, query string, groups []wire.IdentifiedGroup) error {
	if err := sc.rdb.Set(ctx, searchKey(query), wire.EncodeGroups(groups), sc.ttl).Err(); err != nil {
		return errors.Wrapf(err, "cache search %q", query)
	}
	return nil
}
