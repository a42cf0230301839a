package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/goalstake/engine/internal/domain"
)

// unlockLua deletes the key only if it still carries the caller's token, so a
// holder whose TTL lapsed cannot release someone else's lock.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
}

// NewRedisClient connects and pings.
func NewRedisClient(ctx context.Context, cfg ClientConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return rdb, nil
}

// RedisLocker is a Locker shared by every instance pointing at the same Redis.
// Acquisition polls SETNX up to Attempts times, Delay apart; after that the
// caller gets domain.ErrUnavailable.
type RedisLocker struct {
	rdb      *redis.Client
	unlockSc *redis.Script
	prefix   string
	ttl      time.Duration
	attempts int
	delay    time.Duration
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration, attempts int, delay time.Duration) *RedisLocker {
	if attempts < 1 {
		attempts = 1
	}
	return &RedisLocker{
		rdb:      rdb,
		unlockSc: redis.NewScript(unlockLua),
		prefix:   "goalstake:lock:",
		ttl:      ttl,
		attempts: attempts,
		delay:    delay,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lk := l.prefix + key
	token := uuid.New().String()

	for attempt := 1; ; attempt++ {
		err := l.tryAcquire(ctx, lk, token)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrLockHeld) {
			return nil, err
		}
		if attempt >= l.attempts {
			return nil, fmt.Errorf("redis lock %s: %w: %w", key, domain.ErrUnavailable, ErrLockHeld)
		}
		select {
		case <-time.After(l.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true

		// Background context so the unlock still runs when the caller's
		// context is already cancelled.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.unlockSc.Run(unlockCtx, l.rdb, []string{lk}, token).Err()
	}, nil
}

func (l *RedisLocker) tryAcquire(ctx context.Context, lk, token string) error {
	ok, err := l.rdb.SetNX(ctx, lk, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis: acquire lock %s: %w: %w", lk, domain.ErrUnavailable, err)
	}
	if !ok {
		return ErrLockHeld
	}
	return nil
}

var _ Locker = (*RedisLocker)(nil)
