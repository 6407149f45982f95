package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/alanyoungcy/polysift/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// lockPrefix namespaces lock keys away from other keys in the database.
const lockPrefix = "lock:"

// releaseScript deletes the lock key only while it still holds the caller's
// token, so an expired holder cannot release a successor's lock.
const releaseScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// RunLock is the distributed mutex watch-mode instances take before a pass,
// so concurrent deployments do not process the same snapshots twice. Built
// on SET NX with a TTL and a token-checked release.
type RunLock struct {
	rdb     *redis.Client
	release *redis.Script
}

// NewRunLock returns a RunLock on the client's connection.
func NewRunLock(c *Client) *RunLock {
	return &RunLock{
		rdb:     c.Raw(),
		release: redis.NewScript(releaseScript),
	}
}

// Acquire takes the lock for key with the given TTL and returns the unlock
// function, which may be called more than once. A lock held elsewhere
// reports domain.ErrLockHeld.
func (l *RunLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.New().String()
	rkey := lockPrefix + key

	ok, err := l.rdb.SetNX(ctx, rkey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	released := false
	unlock := func() {
		if released {
			return
		}
		released = true

		// The caller's context is usually cancelled by the time unlock
		// runs; give the release its own deadline.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = l.release.Run(rctx, l.rdb, []string{rkey}, token).Err()
	}
	return unlock, nil
}

var _ domain.RunLock = (*RunLock)(nil)
