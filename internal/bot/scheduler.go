// Package bot runs the scheduling loop that interleaves the bot's four
// periodic tasks: scheduled posting, hashtag monitoring, DM auto-reply
// and auto-liking.
package bot

import (
	"context"
	"math/rand"
	"time"

	"github.com/gemini-mastobot-go/internal/config"
	"github.com/gemini-mastobot-go/internal/middleware"
	"github.com/gemini-mastobot-go/internal/models"
	"github.com/gemini-mastobot-go/internal/services/ai"
	"github.com/gemini-mastobot-go/internal/services/cache"
	"github.com/gemini-mastobot-go/internal/services/dmstore"
	"github.com/gemini-mastobot-go/internal/services/social"
	"github.com/sirupsen/logrus"
)

// Scheduler owns all mutable bot state and runs one iteration per
// minute. Tasks run to completion in a fixed order inside a single
// goroutine; there is no cross-task parallelism.
type Scheduler struct {
	cfg     *config.Config
	social  social.Client
	ai      ai.Service
	pacer   middleware.Pacer
	dmStore *dmstore.Manager
	cache   cache.Service
	metrics *middleware.Metrics
	logger  *logrus.Logger

	style models.PostStyle

	lastPostTime time.Time
	postCount    int
	lastReset    time.Time
	nextDMRun    time.Time
	nextLikeRun  time.Time

	tick          time.Duration
	errorCooldown time.Duration

	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	randFloat func() float64
}

// New creates a scheduler with all collaborators injected
func New(cfg *config.Config, socialClient social.Client, aiService ai.Service, pacer middleware.Pacer, dmStore *dmstore.Manager, cacheService cache.Service, metrics *middleware.Metrics, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cfg:           cfg,
		social:        socialClient,
		ai:            aiService,
		pacer:         pacer,
		dmStore:       dmStore,
		cache:         cacheService,
		metrics:       metrics,
		logger:        logger,
		style:         models.PostStyle(cfg.Posting.Style),
		lastReset:     time.Now(),
		tick:          time.Minute,
		errorCooldown: 5 * time.Minute,
		now:           time.Now,
		sleep:         sleepContext,
		randFloat:     rand.Float64,
	}
}

// Run executes the loop until the context is cancelled. A failed
// iteration is logged and followed by a cooldown; it never terminates
// the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.WithFields(logrus.Fields{
		"post_interval":   s.cfg.Posting.Interval,
		"max_daily_posts": s.cfg.Posting.MaxDailyPosts,
		"hashtags":        s.cfg.Monitor.Hashtags,
		"style":           s.style,
	}).Info("Starting scheduler loop")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.runIteration(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			s.logger.WithError(err).Error("Error in scheduler iteration")
			s.metrics.RecordSchedulerIteration("error")

			if err := s.sleep(ctx, s.errorCooldown); err != nil {
				return err
			}
			continue
		}

		s.metrics.RecordSchedulerIteration("success")

		if err := s.sleep(ctx, s.tick); err != nil {
			return err
		}
	}
}

// runIteration runs the task checks in their fixed order.
func (s *Scheduler) runIteration(ctx context.Context) error {
	now := s.now()

	if err := s.maybeAutoPost(ctx, now); err != nil {
		return err
	}

	s.monitorHashtags(ctx)

	if err := s.maybeReplyDMs(ctx, now); err != nil {
		return err
	}

	if err := s.maybeAutoLike(ctx, now); err != nil {
		return err
	}

	s.maybeResetDailyCount(now)

	return nil
}

// maybeAutoPost publishes one scheduled post when the interval has
// elapsed and the daily quota is not exhausted.
func (s *Scheduler) maybeAutoPost(ctx context.Context, now time.Time) error {
	if now.Sub(s.lastPostTime) < s.cfg.Posting.Interval {
		return nil
	}
	if s.postCount >= s.cfg.Posting.MaxDailyPosts {
		s.logger.Debug("Daily post quota reached, skipping scheduled post")
		return nil
	}

	text := s.ai.GeneratePost(ctx, s.style, s.cfg.Posting.Topics)

	if err := s.pacer.Await(ctx); err != nil {
		return err
	}
	if _, err := s.social.PostStatus(ctx, text, "", ""); err != nil {
		return err
	}

	s.lastPostTime = now
	s.postCount++
	s.metrics.RecordPostPublished()
	s.metrics.SetDailyPostCount(s.postCount)

	s.logger.WithFields(logrus.Fields{
		"posts_today": s.postCount,
		"max_daily":   s.cfg.Posting.MaxDailyPosts,
	}).Info("Auto-post complete")

	return nil
}

// monitorHashtags replies to a random sample of recent posts per
// monitored hashtag. Failures are isolated per hashtag.
func (s *Scheduler) monitorHashtags(ctx context.Context) {
	for _, tag := range s.cfg.Monitor.Hashtags {
		if err := s.monitorHashtag(ctx, tag); err != nil {
			s.logger.WithError(err).WithField("hashtag", tag).Error("Error monitoring hashtag")
		}
	}
}

func (s *Scheduler) monitorHashtag(ctx context.Context, tag string) error {
	if err := s.pacer.Await(ctx); err != nil {
		return err
	}

	statuses, err := s.social.HashtagTimeline(ctx, tag, int64(s.cfg.Monitor.PerHashtagLimit))
	if err != nil {
		return err
	}

	for _, status := range statuses {
		if s.cache.WasHandled(string(status.ID)) {
			continue
		}
		if s.randFloat() >= s.cfg.Monitor.ReplyProbability {
			continue
		}

		reply := s.ai.GenerateReply(ctx, status.Content, status)

		if err := s.pacer.Await(ctx); err != nil {
			return err
		}
		if _, err := s.social.PostStatus(ctx, reply, status.ID, ""); err != nil {
			s.logger.WithError(err).WithField("status_id", status.ID).Error("Failed to reply to hashtag post")
			continue
		}

		s.cache.MarkHandled(string(status.ID))
		s.metrics.RecordReplySent("hashtag")
		s.logger.WithField("hashtag", tag).Info("Replied to hashtag post")

		// Cooldown between replies, spam avoidance
		if err := s.sleep(ctx, s.cfg.Monitor.ReplyCooldown); err != nil {
			return err
		}
	}

	return nil
}

// maybeReplyDMs answers direct messages the bot has not replied to yet.
// Replied ids are recorded durably so a restart never double-replies;
// the bot's own reply id is recorded too so it never answers itself.
func (s *Scheduler) maybeReplyDMs(ctx context.Context, now time.Time) error {
	if !s.cfg.DM.Enabled || !s.cfg.DM.AutoReply {
		return nil
	}
	if now.Before(s.nextDMRun) {
		return nil
	}
	s.nextDMRun = now.Add(s.cfg.DM.ReplyInterval)

	if err := s.pacer.Await(ctx); err != nil {
		return err
	}

	conversations, err := s.social.Conversations(ctx, int64(s.cfg.DM.FetchLimit))
	if err != nil {
		return err
	}

	for _, conv := range conversations {
		if conv.LastStatus == nil {
			continue
		}

		id := string(conv.LastStatus.ID)
		replied, err := s.dmStore.Has(ctx, id)
		if err != nil {
			s.metrics.RecordDMStoreOperation("has", "error")
			return err
		}
		if replied {
			continue
		}

		reply := s.ai.GenerateReply(ctx, conv.LastStatus.Content, conv.LastStatus)

		if err := s.pacer.Await(ctx); err != nil {
			return err
		}
		sent, err := s.social.PostStatus(ctx, reply, conv.LastStatus.ID, "direct")
		if err != nil {
			s.logger.WithError(err).WithField("conversation_id", conv.ID).Error("Failed to reply to DM")
			continue
		}

		if err := s.dmStore.Record(ctx, id); err != nil {
			s.metrics.RecordDMStoreOperation("record", "error")
			return err
		}
		if sent != nil {
			if err := s.dmStore.Record(ctx, string(sent.ID)); err != nil {
				s.metrics.RecordDMStoreOperation("record", "error")
				return err
			}
		}
		s.metrics.RecordDMStoreOperation("record", "success")
		s.metrics.RecordReplySent("dm")
		s.logger.WithField("conversation_id", conv.ID).Info("Replied to direct message")
	}

	return nil
}

// maybeAutoLike favourites a sample of public-timeline posts.
func (s *Scheduler) maybeAutoLike(ctx context.Context, now time.Time) error {
	if !s.cfg.AutoLike.Enabled {
		return nil
	}
	if now.Before(s.nextLikeRun) {
		return nil
	}
	s.nextLikeRun = now.Add(s.cfg.AutoLike.Interval)

	if err := s.pacer.Await(ctx); err != nil {
		return err
	}

	statuses, err := s.social.PublicTimeline(ctx, true, int64(s.cfg.AutoLike.SampleSize))
	if err != nil {
		return err
	}

	for _, status := range statuses {
		if err := s.pacer.Await(ctx); err != nil {
			return err
		}
		if err := s.social.Favourite(ctx, status.ID); err != nil {
			s.logger.WithError(err).WithField("status_id", status.ID).Warn("Failed to favourite status")
			continue
		}
		s.metrics.RecordFavourite()
	}

	s.logger.WithField("sample", len(statuses)).Debug("Auto-like pass complete")
	return nil
}

// maybeResetDailyCount zeroes the daily post counter once per local
// calendar day.
func (s *Scheduler) maybeResetDailyCount(now time.Time) {
	ly, lm, ld := s.lastReset.Date()
	y, m, d := now.Date()
	if ly == y && lm == m && ld == d {
		return
	}

	s.postCount = 0
	s.lastReset = now
	s.metrics.SetDailyPostCount(0)
	s.logger.Info("Daily post counter reset")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
