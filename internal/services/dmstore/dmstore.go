// Package dmstore persists the set of direct-message ids the bot has
// already answered, so a restart never double-replies.
package dmstore

import (
	"context"
	"fmt"
	"time"

	"github.com/gemini-mastobot-go/internal/config"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// Store defines replied-DM set operations
type Store interface {
	Has(ctx context.Context, id string) (bool, error)
	Record(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// Manager manages different store backends
type Manager struct {
	store  Store
	logger *logrus.Logger
}

// NewManager creates a new store manager
func NewManager(cfg *config.Config, logger *logrus.Logger) (*Manager, error) {
	var store Store

	switch cfg.DMStore.Type {
	case "file":
		fileStore, err := NewFileStore(cfg.DMStore.Path, logger)
		if err != nil {
			return nil, err
		}
		store = fileStore
	case "redis":
		redisStore, err := NewRedisStore(cfg, logger)
		if err != nil {
			return nil, err
		}
		store = redisStore
	default:
		return nil, fmt.Errorf("unsupported dm store type: %s", cfg.DMStore.Type)
	}

	return &Manager{
		store:  store,
		logger: logger,
	}, nil
}

// Has reports whether the id has already been replied to
func (m *Manager) Has(ctx context.Context, id string) (bool, error) {
	return m.store.Has(ctx, id)
}

// Record marks the id as replied to, idempotently
func (m *Manager) Record(ctx context.Context, id string) error {
	return m.store.Record(ctx, id)
}

// Count returns the number of recorded ids
func (m *Manager) Count(ctx context.Context) (int, error) {
	return m.store.Count(ctx)
}

// RedisStore implements the store using a Redis set
type RedisStore struct {
	client *redis.Client
	key    string
	logger *logrus.Logger
}

// NewRedisStore creates a redis-backed store
func NewRedisStore(cfg *config.Config, logger *logrus.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.DMStore.Redis.Addr,
		Password: cfg.DMStore.Redis.Password,
		DB:       cfg.DMStore.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{
		client: client,
		key:    "mastobot:replied_dms",
		logger: logger,
	}, nil
}

func (r *RedisStore) Has(ctx context.Context, id string) (bool, error) {
	return r.client.SIsMember(ctx, r.key, id).Result()
}

func (r *RedisStore) Record(ctx context.Context, id string) error {
	return r.client.SAdd(ctx, r.key, id).Err()
}

func (r *RedisStore) Count(ctx context.Context) (int, error) {
	n, err := r.client.SCard(ctx, r.key).Result()
	return int(n), err
}
