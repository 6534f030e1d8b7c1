package service

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/merch-batch-api/pkg/errors"
)

// Locker obtains short lived distributed locks. *redislock.Client satisfies it.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error)
}

var lockRetry = &redislock.Options{
	RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 20),
}

func barcodeLockKey(requestType, barcode string) string {
	return cacheNamespace + ":lock:barcode:" + requestType + ":" + barcode
}

func batchLockKey(batchNumber string) string {
	return cacheNamespace + ":lock:batch:" + batchNumber
}

// withLock runs fn while holding key. Without a locker, or when Redis is
// unreachable, fn runs unlocked and the database constraints remain the
// last line of defence. A lock held by someone else fails with ErrLocked.
func withLock(ctx context.Context, locker Locker, logger *zap.Logger, key string, ttl time.Duration, fn func() error) error {
	if locker == nil {
		return fn()
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	lock, err := locker.Obtain(ctx, key, ttl, lockRetry)
	switch {
	case errors.Is(err, redislock.ErrNotObtained):
		return appErrors.Clone(appErrors.ErrLocked, "another request is working on this item, try again")
	case err != nil:
		logger.Warn("lock unavailable, continuing without it", zap.String("key", key), zap.Error(err))
		return fn()
	}
	defer func() {
		if releaseErr := lock.Release(context.Background()); releaseErr != nil && !errors.Is(releaseErr, redislock.ErrLockNotHeld) {
			logger.Warn("failed to release lock", zap.String("key", key), zap.Error(releaseErr))
		}
	}()
	return fn()
}
