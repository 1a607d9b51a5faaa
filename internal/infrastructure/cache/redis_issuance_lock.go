// Package cache provides the issuance lock that serializes number
// allocation across runs.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dandroos/node-invoicer/internal/domain/invoicing"
	"github.com/dandroos/node-invoicer/internal/infrastructure/config"
)

// ErrLockLost is returned by a release when the lock expired or was taken
// over before it was released
var ErrLockLost = errors.New("issuance lock expired before release")

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisIssuanceLock implements invoicing.IssuanceLock with SET NX PX.
// It is suitable when several machines share one ledger.
type RedisIssuanceLock struct {
	client        *redis.Client
	waitTimeout   time.Duration
	retryInterval time.Duration
	logger        *zap.Logger
}

// NewRedisIssuanceLock connects to Redis and returns a lock
func NewRedisIssuanceLock(redisCfg config.RedisConfig, lockCfg config.LockConfig, logger *zap.Logger) (*RedisIssuanceLock, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr(),
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisIssuanceLockWithClient(client, lockCfg, logger), nil
}

// NewRedisIssuanceLockWithClient creates a lock on an existing Redis client
func NewRedisIssuanceLockWithClient(client *redis.Client, lockCfg config.LockConfig, logger *zap.Logger) *RedisIssuanceLock {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisIssuanceLock{
		client:        client,
		waitTimeout:   lockCfg.WaitTimeout,
		retryInterval: retryIntervalOrDefault(lockCfg.RetryInterval),
		logger:        logger,
	}
}

// Acquire sets key to a fresh token if it does not exist, polling until
// the wait timeout or ctx ends
func (l *RedisIssuanceLock) Acquire(ctx context.Context, key string, ttl time.Duration) (invoicing.ReleaseFunc, error) {
	token := uuid.NewString()

	err := poll(ctx, l.waitTimeout, l.retryInterval, func() (bool, error) {
		ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return false, fmt.Errorf("failed to acquire issuance lock: %w", err)
		}
		return ok, nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Debug("Issuance lock acquired", zap.String("key", key), zap.Duration("ttl", ttl))

	return func(ctx context.Context) error {
		n, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int()
		if err != nil {
			return fmt.Errorf("failed to release issuance lock: %w", err)
		}
		if n == 0 {
			return ErrLockLost
		}
		l.logger.Debug("Issuance lock released", zap.String("key", key))
		return nil
	}, nil
}

// Close closes the Redis client
func (l *RedisIssuanceLock) Close() error {
	return l.client.Close()
}

// Client returns the underlying Redis client
func (l *RedisIssuanceLock) Client() *redis.Client {
	return l.client
}

// poll calls try every interval until it reports success, fails, or the
// wait budget runs out
func poll(ctx context.Context, wait, interval time.Duration, try func() (bool, error)) error {
	deadline := time.Now().Add(wait)
	for {
		ok, err := try()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if !time.Now().Add(interval).Before(deadline) {
			return invoicing.ErrLockNotAcquired
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", invoicing.ErrLockNotAcquired, ctx.Err())
		case <-timer.C:
		}
	}
}

func retryIntervalOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 200 * time.Millisecond
	}
	return d
}

// Ensure RedisIssuanceLock implements IssuanceLock
var _ invoicing.IssuanceLock = (*RedisIssuanceLock)(nil)
