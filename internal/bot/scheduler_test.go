package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/gemini-mastobot-go/internal/config"
	"github.com/gemini-mastobot-go/internal/middleware"
	"github.com/gemini-mastobot-go/internal/models"
	"github.com/gemini-mastobot-go/internal/services/cache"
	"github.com/gemini-mastobot-go/internal/services/dmstore"
	"github.com/mattn/go-mastodon"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type postedStatus struct {
	text       string
	inReplyTo  mastodon.ID
	visibility string
}

// fakeSocial records every call and serves canned timelines.
type fakeSocial struct {
	posts         []postedStatus
	timeline      []*mastodon.Status
	conversations []*mastodon.Conversation
	public        []*mastodon.Status
	favourites    []mastodon.ID
	postErr       error
	nextID        int
}

func (f *fakeSocial) PostStatus(ctx context.Context, text string, inReplyTo mastodon.ID, visibility string) (*mastodon.Status, error) {
	if f.postErr != nil {
		return nil, f.postErr
	}
	f.nextID++
	f.posts = append(f.posts, postedStatus{text: text, inReplyTo: inReplyTo, visibility: visibility})
	return &mastodon.Status{ID: mastodon.ID(fmt.Sprintf("sent-%d", f.nextID))}, nil
}

func (f *fakeSocial) HashtagTimeline(ctx context.Context, tag string, limit int64) ([]*mastodon.Status, error) {
	return f.timeline, nil
}

func (f *fakeSocial) Conversations(ctx context.Context, limit int64) ([]*mastodon.Conversation, error) {
	return f.conversations, nil
}

func (f *fakeSocial) Favourite(ctx context.Context, id mastodon.ID) error {
	f.favourites = append(f.favourites, id)
	return nil
}

func (f *fakeSocial) PublicTimeline(ctx context.Context, local bool, limit int64) ([]*mastodon.Status, error) {
	return f.public, nil
}

func (f *fakeSocial) replies() []postedStatus {
	var out []postedStatus
	for _, p := range f.posts {
		if p.inReplyTo != "" {
			out = append(out, p)
		}
	}
	return out
}

// fakeAI returns fixed text without touching the network.
type fakeAI struct {
	replyCalls int
	postCalls  int
}

func (f *fakeAI) GenerateReply(ctx context.Context, postText string, status *mastodon.Status) string {
	f.replyCalls++
	return "Nice one! ✨"
}

func (f *fakeAI) GeneratePost(ctx context.Context, style models.PostStyle, topics []string) string {
	f.postCalls++
	return "Scheduled thoughts ☀️"
}

func baseConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := &config.Config{}
	cfg.Posting.Interval = time.Hour
	cfg.Posting.MaxDailyPosts = 10
	cfg.Posting.Style = "entertainer"
	cfg.Monitor.ReplyProbability = 0.3
	cfg.Monitor.PerHashtagLimit = 5
	cfg.DM.ReplyInterval = 5 * time.Minute
	cfg.DM.FetchLimit = 20
	cfg.AutoLike.Interval = 5 * time.Minute
	cfg.AutoLike.SampleSize = 5
	cfg.Cache.TTL = time.Minute
	cfg.Cache.CooldownTTL = time.Hour
	cfg.Cache.MaxSize = 100
	cfg.DMStore.Type = "file"
	cfg.DMStore.Path = filepath.Join(t.TempDir(), "dm_context.json")
	return cfg
}

func newTestScheduler(t *testing.T, cfg *config.Config, socialClient *fakeSocial, aiService *fakeAI) *Scheduler {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	dmStore, err := dmstore.NewManager(cfg, logger)
	require.NoError(t, err)

	s := New(cfg, socialClient, aiService, middleware.NewPacer(cfg, logger), dmStore, cache.NewCache(cfg, logger), middleware.NewMetrics(), logger)

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local)
	s.now = func() time.Time { return base }
	s.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	s.lastPostTime = base
	s.lastReset = base
	return s
}

func TestSchedulerRespectsDailyQuota(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Posting.Interval = 0 // always due
	cfg.Posting.MaxDailyPosts = 2

	social := &fakeSocial{}
	s := newTestScheduler(t, cfg, social, &fakeAI{})

	for i := 0; i < 3; i++ {
		require.NoError(t, s.runIteration(context.Background()))
	}

	assert.Len(t, social.posts, 2, "third iteration must skip the post step")
	assert.Equal(t, 2, s.postCount)
}

func TestSchedulerWaitsOutPostInterval(t *testing.T) {
	cfg := baseConfig(t)
	social := &fakeSocial{}
	s := newTestScheduler(t, cfg, social, &fakeAI{})

	base := s.now()
	require.NoError(t, s.runIteration(context.Background()))
	assert.Empty(t, social.posts, "interval not elapsed yet")

	s.now = func() time.Time { return base.Add(cfg.Posting.Interval) }
	require.NoError(t, s.runIteration(context.Background()))
	assert.Len(t, social.posts, 1)
}

func TestDailyCountResetsOncePerDay(t *testing.T) {
	cfg := baseConfig(t)
	s := newTestScheduler(t, cfg, &fakeSocial{}, &fakeAI{})

	s.postCount = 5
	nextDay := s.lastReset.Add(24 * time.Hour)

	s.maybeResetDailyCount(nextDay)
	assert.Equal(t, 0, s.postCount)

	s.postCount = 3
	s.maybeResetDailyCount(nextDay.Add(time.Minute))
	assert.Equal(t, 3, s.postCount, "same calendar day must not reset again")
}

func TestQuotaAvailableAgainAfterReset(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Posting.Interval = 0
	cfg.Posting.MaxDailyPosts = 1

	social := &fakeSocial{}
	s := newTestScheduler(t, cfg, social, &fakeAI{})

	require.NoError(t, s.runIteration(context.Background()))
	require.NoError(t, s.runIteration(context.Background()))
	assert.Len(t, social.posts, 1)

	day2 := s.now().Add(24 * time.Hour)
	s.now = func() time.Time { return day2 }
	require.NoError(t, s.runIteration(context.Background())) // quota still spent, reset at end
	require.NoError(t, s.runIteration(context.Background()))
	assert.Len(t, social.posts, 2)
}

func TestHashtagReplyProbability(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Monitor.Hashtags = []string{"tech"}
	cfg.Monitor.ReplyProbability = 0.3

	const sample = 10000
	social := &fakeSocial{}
	for i := 0; i < sample; i++ {
		social.timeline = append(social.timeline, &mastodon.Status{
			ID:      mastodon.ID(fmt.Sprintf("status-%d", i)),
			Content: "<p>hello</p>",
		})
	}

	s := newTestScheduler(t, cfg, social, &fakeAI{})
	s.randFloat = rand.New(rand.NewSource(42)).Float64

	require.NoError(t, s.runIteration(context.Background()))

	fraction := float64(len(social.replies())) / float64(sample)
	assert.InDelta(t, 0.30, fraction, 0.015, "observed reply fraction %f", fraction)
}

func TestHashtagMonitorSkipsHandledStatuses(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Monitor.Hashtags = []string{"tech"}
	cfg.Monitor.ReplyProbability = 1.0

	social := &fakeSocial{timeline: []*mastodon.Status{
		{ID: "s-1", Content: "<p>hi</p>"},
	}}

	s := newTestScheduler(t, cfg, social, &fakeAI{})
	s.randFloat = func() float64 { return 0 }

	require.NoError(t, s.runIteration(context.Background()))
	require.NoError(t, s.runIteration(context.Background()))

	assert.Len(t, social.replies(), 1, "a handled status is not replied to twice")
}

func TestDMReplyRecordedAndNotRepeatedAfterRestart(t *testing.T) {
	cfg := baseConfig(t)
	cfg.DM.Enabled = true
	cfg.DM.AutoReply = true

	conv := &mastodon.Conversation{
		ID: "conv-1",
		LastStatus: &mastodon.Status{
			ID:      "dm-1",
			Content: "<p>hey bot</p>",
		},
	}

	social := &fakeSocial{conversations: []*mastodon.Conversation{conv}}
	s := newTestScheduler(t, cfg, social, &fakeAI{})

	require.NoError(t, s.runIteration(context.Background()))

	replies := social.replies()
	require.Len(t, replies, 1)
	assert.Equal(t, mastodon.ID("dm-1"), replies[0].inReplyTo)
	assert.Equal(t, "direct", replies[0].visibility)

	// Restart: fresh scheduler over the same store file must not
	// answer the same message again.
	social2 := &fakeSocial{conversations: []*mastodon.Conversation{conv}}
	s2 := newTestScheduler(t, cfg, social2, &fakeAI{})

	require.NoError(t, s2.runIteration(context.Background()))
	assert.Empty(t, social2.replies())
}

func TestDMReplySkipsOwnLastStatus(t *testing.T) {
	cfg := baseConfig(t)
	cfg.DM.Enabled = true
	cfg.DM.AutoReply = true

	conv := &mastodon.Conversation{
		ID:         "conv-1",
		LastStatus: &mastodon.Status{ID: "dm-1", Content: "<p>hey</p>"},
	}

	social := &fakeSocial{conversations: []*mastodon.Conversation{conv}}
	s := newTestScheduler(t, cfg, social, &fakeAI{})

	require.NoError(t, s.runIteration(context.Background()))
	require.Len(t, social.replies(), 1)

	// The conversation now ends with the bot's own reply.
	conv.LastStatus = &mastodon.Status{ID: "sent-1", Content: "<p>Nice one! ✨</p>"}
	s.nextDMRun = time.Time{}

	require.NoError(t, s.runIteration(context.Background()))
	assert.Len(t, social.replies(), 1, "the bot must not answer its own reply")
}

func TestAutoLikeSamplesOncePerWindow(t *testing.T) {
	cfg := baseConfig(t)
	cfg.AutoLike.Enabled = true

	social := &fakeSocial{public: []*mastodon.Status{
		{ID: "p-1"}, {ID: "p-2"}, {ID: "p-3"},
	}}

	s := newTestScheduler(t, cfg, social, &fakeAI{})

	require.NoError(t, s.runIteration(context.Background()))
	assert.Len(t, social.favourites, 3)

	// Same window: no further likes.
	require.NoError(t, s.runIteration(context.Background()))
	assert.Len(t, social.favourites, 3)
}

func TestIterationErrorIsIsolated(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Posting.Interval = 0

	social := &fakeSocial{postErr: errors.New("instance down")}
	s := newTestScheduler(t, cfg, social, &fakeAI{})

	err := s.runIteration(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, s.postCount)

	social.postErr = nil
	require.NoError(t, s.runIteration(context.Background()))
	assert.Equal(t, 1, s.postCount)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	cfg := baseConfig(t)
	s := newTestScheduler(t, cfg, &fakeSocial{}, &fakeAI{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
