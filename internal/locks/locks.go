// Package locks provides the distributed lock that keeps two processes from
// refreshing the same credential at once. It wraps the Redlock implementation
// from go-redsync/redsync/v4 over the shared Redis connection pool.
package locks

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"

	"credential-manager/internal/common/errors"
	"credential-manager/internal/redis"
)

// ErrLockHeld is returned by AcquireLock when another owner has the lock.
var ErrLockHeld = stderrors.New("lock is held by another owner")

// RedsyncManager hands out non-blocking Redlock leases. The token returned by
// AcquireLock identifies the lease for ReleaseLock.
type RedsyncManager struct {
	redsync *redsync.Redsync

	mu     sync.Mutex
	leases map[string]*redsync.Mutex
}

// NewRedsyncManager creates a lock manager backed by redisClient.
func NewRedsyncManager(redisClient *redis.Client) (*RedsyncManager, error) {
	if redisClient == nil {
		return nil, errors.ConfigError("redis client is required")
	}

	pool := goredis.NewPool(redisClient.GetGoRedisClient())
	return &RedsyncManager{
		redsync: redsync.New(pool),
		leases:  make(map[string]*redsync.Mutex),
	}, nil
}

// AcquireLock tries once to take the named lock for at most expiration.
func (m *RedsyncManager) AcquireLock(ctx context.Context, key string, expiration time.Duration) (string, error) {
	mutex := m.redsync.NewMutex(lockKey(key), redsync.WithExpiry(expiration))

	if err := mutex.TryLockContext(ctx); err != nil {
		if stderrors.Is(err, redsync.ErrFailed) || isTaken(err) {
			return "", ErrLockHeld
		}
		return "", fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}

	token := mutex.Value()
	m.mu.Lock()
	m.leases[token] = mutex
	m.mu.Unlock()
	return token, nil
}

// ReleaseLock frees the lease identified by token. Unknown tokens and leases
// that already expired are a no-op.
func (m *RedsyncManager) ReleaseLock(ctx context.Context, key, token string) error {
	m.mu.Lock()
	mutex, ok := m.leases[token]
	delete(m.leases, token)
	m.mu.Unlock()

	if !ok || mutex.Name() != lockKey(key) {
		return nil
	}

	_, err := mutex.UnlockContext(ctx)
	if err == nil || stderrors.Is(err, redsync.ErrLockAlreadyExpired) || isTaken(err) {
		return nil
	}
	return fmt.Errorf("failed to release lock %s: %w", key, err)
}

// isTaken reports whether redsync found the key owned by another lease.
func isTaken(err error) bool {
	var taken *redsync.ErrTaken
	return stderrors.As(err, &taken)
}

func lockKey(key string) string {
	return "lock:" + key
}
