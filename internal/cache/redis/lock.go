package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/bestdeal/internal/domain/product"
	"github.com/xenking/bestdeal/internal/domain/search"
)

// ErrLockHeld is returned when another caller holds the lock.
var ErrLockHeld = search.ErrLockHeld

// unlockLua deletes the key only when it still holds the caller's token.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// LockManager hands out short SETNX locks keyed by normalized search query.
type LockManager struct {
	rdb      *redis.Client
	unlockSc *redis.Script
}

func NewLockManager(c *Client) *LockManager {
	return &LockManager{
		rdb:      c.Underlying(),
		unlockSc: redis.NewScript(unlockLua),
	}
}

func lockKey(query string) string {
	return "lock:search:" + product.Normalize(query)
}

// Acquire takes the scrape lock for query. The returned unlock function may
// be called more than once.
func (lm *LockManager) Acquire(ctx context.Context, query string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	key := lockKey(query)

	ok, err := lm.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "acquire lock %q", key)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	released := false
	unlock := func() {
		if released {
			return
		}
		released = true

		// The caller's context may already be cancelled.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = lm.unlockSc.Run(unlockCtx, lm.rdb, []string{key}, token).Err()
	}
	return unlock, nil
}
