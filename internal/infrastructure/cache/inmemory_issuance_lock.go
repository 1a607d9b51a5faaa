package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dandroos/node-invoicer/internal/domain/invoicing"
	"github.com/dandroos/node-invoicer/internal/infrastructure/config"
)

// entry represents a held lock with its expiration
type entry struct {
	token     string
	expiresAt time.Time
}

// InMemoryIssuanceLock implements IssuanceLock inside one process.
// This is suitable for a single machine and for testing.
type InMemoryIssuanceLock struct {
	mu            sync.Mutex
	entries       map[string]entry
	waitTimeout   time.Duration
	retryInterval time.Duration
}

// NewInMemoryIssuanceLock creates a new in-memory lock
func NewInMemoryIssuanceLock(lockCfg config.LockConfig) *InMemoryIssuanceLock {
	return &InMemoryIssuanceLock{
		entries:       make(map[string]entry),
		waitTimeout:   lockCfg.WaitTimeout,
		retryInterval: retryIntervalOrDefault(lockCfg.RetryInterval),
	}
}

// Acquire takes key for ttl, waiting for an existing holder to release it
// or expire
func (l *InMemoryIssuanceLock) Acquire(ctx context.Context, key string, ttl time.Duration) (invoicing.ReleaseFunc, error) {
	token := uuid.NewString()

	err := poll(ctx, l.waitTimeout, l.retryInterval, func() (bool, error) {
		return l.tryAcquire(key, token, ttl), nil
	})
	if err != nil {
		return nil, err
	}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()

		e, ok := l.entries[key]
		if !ok || e.token != token {
			return ErrLockLost
		}
		delete(l.entries, key)
		if time.Now().After(e.expiresAt) {
			return ErrLockLost
		}
		return nil
	}, nil
}

func (l *InMemoryIssuanceLock) tryAcquire(key, token string, ttl time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if e, exists := l.entries[key]; exists && now.Before(e.expiresAt) {
		return false
	}
	l.entries[key] = entry{token: token, expiresAt: now.Add(ttl)}
	return true
}

// Held reports whether key is currently locked (for testing)
func (l *InMemoryIssuanceLock) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	return ok && time.Now().Before(e.expiresAt)
}

// Ensure InMemoryIssuanceLock implements IssuanceLock
var _ invoicing.IssuanceLock = (*InMemoryIssuanceLock)(nil)
