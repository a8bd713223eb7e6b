package locking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kevin07696/payment-transactions/internal/domain/ports"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// unlockScript deletes the key only when it still holds our token
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLockerConfig configures the cross-instance locker
type RedisLockerConfig struct {
	// KeyPrefix namespaces lock keys
	KeyPrefix string
	// TTL bounds how long a crashed holder keeps the lock
	TTL time.Duration
	// RetryInterval is the pause between acquisition attempts
	RetryInterval time.Duration
}

// DefaultRedisLockerConfig returns production settings
func DefaultRedisLockerConfig() RedisLockerConfig {
	return RedisLockerConfig{
		KeyPrefix:     "payment:lock:",
		TTL:           30 * time.Second,
		RetryInterval: 50 * time.Millisecond,
	}
}

// RedisLocker serializes work per key across service instances using SET NX PX
type RedisLocker struct {
	client redis.Cmdable
	cfg    RedisLockerConfig
	logger *zap.Logger
}

var _ ports.ReferenceLocker = (*RedisLocker)(nil)

// NewRedisLocker creates a locker backed by client
func NewRedisLocker(client redis.Cmdable, cfg RedisLockerConfig, logger *zap.Logger) *RedisLocker {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultRedisLockerConfig().TTL
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRedisLockerConfig().RetryInterval
	}
	return &RedisLocker{client: client, cfg: cfg, logger: logger}
}

// Connect connects to redis and checks the connection
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return client, nil
}

// Ping checks the lock backend for the health endpoint
func (l *RedisLocker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Lock polls until the key is acquired or ctx is done
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.cfg.KeyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.cfg.RetryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.cfg.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	return func() {
		// ctx may already be canceled when the holder releases
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := unlockScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			l.logger.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}
