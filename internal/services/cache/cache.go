package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/gemini-mastobot-go/internal/config"
	"github.com/gemini-mastobot-go/internal/models"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// Service defines cache operations
type Service interface {
	GetReply(ctx context.Context, source, style string) (string, bool)
	SetReply(ctx context.Context, source, style, reply string) error
	WasHandled(statusID string) bool
	MarkHandled(statusID string)
}

// Cache caches generated replies and tracks statuses the bot has
// recently replied to so the hashtag monitor does not answer the same
// status twice.
type Cache struct {
	enabled bool
	replies *cache.Cache
	handled *cache.Cache
	logger  *logrus.Logger
	maxSize int
}

// NewCache creates a new cache service. The handled-status cooldown is
// always active; the reply cache honors the enabled flag.
func NewCache(cfg *config.Config, logger *logrus.Logger) Service {
	return &Cache{
		enabled: cfg.Cache.Enabled,
		replies: cache.New(cfg.Cache.TTL, cfg.Cache.TTL*2),
		handled: cache.New(cfg.Cache.CooldownTTL, cfg.Cache.CooldownTTL*2),
		logger:  logger,
		maxSize: cfg.Cache.MaxSize,
	}
}

// GetReply retrieves a cached generated reply
func (c *Cache) GetReply(ctx context.Context, source, style string) (string, bool) {
	if !c.enabled {
		return "", false
	}

	key := c.generateKey(source, style)
	if val, found := c.replies.Get(key); found {
		entry := val.(*models.CacheEntry)
		c.logger.WithFields(logrus.Fields{
			"style": style,
			"age":   time.Since(entry.CreatedAt),
		}).Debug("Reply cache hit")
		return entry.Reply, true
	}

	return "", false
}

// SetReply stores a generated reply in cache
func (c *Cache) SetReply(ctx context.Context, source, style, reply string) error {
	if !c.enabled {
		return nil
	}

	// Check cache size
	if c.replies.ItemCount() >= c.maxSize {
		c.logger.Warn("Reply cache size limit reached, clearing expired entries")
		c.replies.DeleteExpired()
	}

	key := c.generateKey(source, style)
	entry := &models.CacheEntry{
		Source:    source,
		Style:     style,
		Reply:     reply,
		CreatedAt: time.Now(),
	}

	c.replies.SetDefault(key, entry)
	return nil
}

// WasHandled reports whether the bot replied to this status recently
func (c *Cache) WasHandled(statusID string) bool {
	_, found := c.handled.Get(statusID)
	return found
}

// MarkHandled records that the bot replied to this status
func (c *Cache) MarkHandled(statusID string) {
	c.handled.SetDefault(statusID, struct{}{})
}

// generateKey creates a unique cache key
func (c *Cache) generateKey(source, style string) string {
	data := fmt.Sprintf("%s:%s", style, source)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
