package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/dandroos/node-invoicer/internal/domain/invoicing"
	"github.com/dandroos/node-invoicer/internal/infrastructure/config"
)

// Backend names accepted in lock.backend
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// NewIssuanceLock creates the configured lock. The returned close function
// releases the backend's connection and is never nil.
func NewIssuanceLock(lockCfg config.LockConfig, redisCfg config.RedisConfig, logger *zap.Logger) (invoicing.IssuanceLock, func() error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch lockCfg.Backend {
	case "", BackendMemory:
		logger.Debug("using in-memory issuance lock")
		return NewInMemoryIssuanceLock(lockCfg), func() error { return nil }, nil
	case BackendRedis:
		lock, err := NewRedisIssuanceLock(redisCfg, lockCfg, logger.Named("lock"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Redis issuance lock: %w", err)
		}
		logger.Info("using Redis issuance lock", zap.String("addr", redisCfg.Addr()))
		return lock, lock.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown lock backend %q", lockCfg.Backend)
	}
}
