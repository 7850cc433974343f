package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JaimeStill/steward/pkg/lifecycle"
)

type redisBackend struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedis returns a Backend storing each slot under
// <key_prefix><namespace>:<slot>.
func NewRedis(cfg *RedisConfig, namespace string, logger *slog.Logger) Backend {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return newRedis(client, cfg.KeyPrefix, namespace, logger)
}

// NewRedisClient returns a Backend over an existing client.
func NewRedisClient(client *redis.Client, keyPrefix, namespace string, logger *slog.Logger) Backend {
	return newRedis(client, keyPrefix, namespace, logger)
}

func newRedis(client *redis.Client, keyPrefix, namespace string, logger *slog.Logger) *redisBackend {
	return &redisBackend{
		client: client,
		prefix: keyPrefix + namespace + ":",
		logger: logger.With("system", "session-redis", "namespace", namespace),
	}
}

func (b *redisBackend) key(slot Slot) string {
	return b.prefix + string(slot)
}

func (b *redisBackend) Get(ctx context.Context, slot Slot) ([]byte, error) {
	value, err := b.client.Get(ctx, b.key(slot)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return value, nil
}

func (b *redisBackend) Put(ctx context.Context, slot Slot, value []byte) error {
	return b.client.Set(ctx, b.key(slot), value, 0).Err()
}

func (b *redisBackend) Delete(ctx context.Context, slot Slot) error {
	return b.client.Del(ctx, b.key(slot)).Err()
}

func (b *redisBackend) Start(lc *lifecycle.Coordinator) error {
	b.logger.Info("starting redis session backend", "addr", b.client.Options().Addr)

	lc.OnStartup(func() error {
		pingCtx, cancel := context.WithTimeout(lc.Context(), 5*time.Second)
		defer cancel()

		if err := b.client.Ping(pingCtx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}

		b.logger.Info("redis connection established")
		return nil
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()

		if err := b.client.Close(); err != nil {
			b.logger.Error("redis close failed", "error", err)
			return
		}
		b.logger.Info("redis connection closed")
	})

	return nil
}
