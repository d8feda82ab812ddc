package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/amurex/inboxtagger/internal/logging"
)

// ErrLocked is returned when another run holds the account's lock.
var ErrLocked = errors.New("a run for this account is already in progress")

// DefaultTTL bounds how long a crashed run can block an account.
const DefaultTTL = 10 * time.Minute

// Release frees a held lock.
type Release func(ctx context.Context) error

// Key returns the Redis key guarding runs for userID.
func Key(userID string) string {
	return fmt.Sprintf("inboxtagger:account:lock:%s", userID)
}

// RedisConfig configures the Redis connection used for locks.
type RedisConfig struct {
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	LockTTL  time.Duration `koanf:"lock_ttl"`
}

// Redis serializes runs per account with a Redis lock.
type Redis struct {
	client *redislock.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisClient opens a client for cfg and pings it.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// NewRedis creates a locker on rdb. A ttl of zero uses DefaultTTL.
func NewRedis(rdb redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{
		client: redislock.New(rdb),
		ttl:    ttl,
		logger: logging.WithService(logger, "lock"),
	}
}

// Acquire takes the lock for userID without waiting. It returns ErrLocked
// when the lock is held elsewhere.
func (r *Redis) Acquire(ctx context.Context, userID string) (Release, error) {
	l, err := r.client.Obtain(ctx, Key(userID), r.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLocked
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain account lock: %w", err)
	}

	r.logger.Debug("account lock obtained", logging.User(userID))
	return func(ctx context.Context) error {
		err := l.Release(ctx)
		if errors.Is(err, redislock.ErrLockNotHeld) {
			r.logger.Warn("account lock expired before release", logging.User(userID))
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to release account lock: %w", err)
		}
		return nil
	}, nil
}

// Noop never blocks. It is used when Redis is not configured.
type Noop struct{}

// Acquire always succeeds.
func (Noop) Acquire(context.Context, string) (Release, error) {
	return func(context.Context) error { return nil }, nil
}
