// Package social wraps the Mastodon REST client behind the narrow
// surface the bot actually touches.
package social

import (
	"context"
	"fmt"

	"github.com/gemini-mastobot-go/internal/config"
	"github.com/mattn/go-mastodon"
	"github.com/sirupsen/logrus"
)

// Client is the social network surface consumed by the scheduler.
type Client interface {
	PostStatus(ctx context.Context, text string, inReplyTo mastodon.ID, visibility string) (*mastodon.Status, error)
	HashtagTimeline(ctx context.Context, tag string, limit int64) ([]*mastodon.Status, error)
	Conversations(ctx context.Context, limit int64) ([]*mastodon.Conversation, error)
	Favourite(ctx context.Context, id mastodon.ID) error
	PublicTimeline(ctx context.Context, local bool, limit int64) ([]*mastodon.Status, error)
}

// MastodonClient implements Client against a Mastodon instance
type MastodonClient struct {
	client *mastodon.Client
	logger *logrus.Logger
}

// NewMastodonClient creates the client and verifies the credentials by
// resolving the bot's own account.
func NewMastodonClient(ctx context.Context, cfg *config.MastodonConfig, logger *logrus.Logger) (*MastodonClient, error) {
	client := mastodon.NewClient(&mastodon.Config{
		Server:       cfg.InstanceURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		AccessToken:  cfg.AccessToken,
	})

	account, err := client.GetAccountCurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to verify mastodon credentials: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"account":  account.Acct,
		"instance": cfg.InstanceURL,
	}).Info("Mastodon client authorized")

	return &MastodonClient{
		client: client,
		logger: logger,
	}, nil
}

// PostStatus publishes a status, optionally as a reply
func (c *MastodonClient) PostStatus(ctx context.Context, text string, inReplyTo mastodon.ID, visibility string) (*mastodon.Status, error) {
	toot := &mastodon.Toot{
		Status:      text,
		InReplyToID: inReplyTo,
		Visibility:  visibility,
	}

	status, err := c.client.PostStatus(ctx, toot)
	if err != nil {
		return nil, fmt.Errorf("failed to post status: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"status_id":   status.ID,
		"in_reply_to": inReplyTo,
		"length":      len(text),
	}).Debug("Status posted")

	return status, nil
}

// HashtagTimeline fetches recent statuses for a hashtag
func (c *MastodonClient) HashtagTimeline(ctx context.Context, tag string, limit int64) ([]*mastodon.Status, error) {
	statuses, err := c.client.GetTimelineHashtag(ctx, tag, false, &mastodon.Pagination{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch #%s timeline: %w", tag, err)
	}
	return statuses, nil
}

// Conversations fetches the bot's direct-message threads
func (c *MastodonClient) Conversations(ctx context.Context, limit int64) ([]*mastodon.Conversation, error) {
	conversations, err := c.client.GetConversations(ctx, &mastodon.Pagination{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch conversations: %w", err)
	}
	return conversations, nil
}

// Favourite likes a status
func (c *MastodonClient) Favourite(ctx context.Context, id mastodon.ID) error {
	if _, err := c.client.Favourite(ctx, id); err != nil {
		return fmt.Errorf("failed to favourite status %s: %w", id, err)
	}
	return nil
}

// PublicTimeline fetches a sample of the public timeline. Small
// instances surface this as their trending feed.
func (c *MastodonClient) PublicTimeline(ctx context.Context, local bool, limit int64) ([]*mastodon.Status, error) {
	statuses, err := c.client.GetTimelinePublic(ctx, local, &mastodon.Pagination{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch public timeline: %w", err)
	}
	return statuses, nil
}
