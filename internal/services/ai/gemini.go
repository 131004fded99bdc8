package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gemini-mastobot-go/internal/config"
	"github.com/gemini-mastobot-go/internal/middleware"
	"github.com/gemini-mastobot-go/internal/models"
	"github.com/gemini-mastobot-go/internal/services/cache"
	"github.com/gemini-mastobot-go/pkg/htmltext"
	"github.com/mattn/go-mastodon"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// FallbackReply is returned when every generation attempt fails.
// Callers never see an error from this service.
const FallbackReply = "✨ Interesting perspective! Thanks for sharing! 🌟"

// Service represents the generation service interface
type Service interface {
	GenerateReply(ctx context.Context, postText string, status *mastodon.Status) string
	GeneratePost(ctx context.Context, style models.PostStyle, topics []string) string
}

// mediaFetcher downloads one attachment, nil on failure
type mediaFetcher interface {
	Fetch(ctx context.Context, url, description string) *models.MediaItem
}

// caller issues one generation request against the model
type caller interface {
	generate(ctx context.Context, parts []*genai.Part, cfg *genai.GenerateContentConfig) (string, error)
}

// Gemini implements the generation service against the Gemini API
type Gemini struct {
	caller  caller
	fetcher mediaFetcher
	cache   cache.Service
	pacer   middleware.Pacer
	metrics *middleware.Metrics
	logger  *logrus.Logger

	maxLength   int
	useHashtags bool
	blacklist   []string

	maxAttempts int
	preWait     time.Duration
	retryStep   time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// NewGemini creates a new Gemini-backed generation service
func NewGemini(ctx context.Context, cfg *config.Config, fetcher mediaFetcher, cacheService cache.Service, pacer middleware.Pacer, metrics *middleware.Metrics, logger *logrus.Logger) (Service, error) {
	if cfg.Gemini.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.Gemini.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	logger.WithField("model", cfg.Gemini.Model).Info("Generation service initialized")

	return &Gemini{
		caller:      &genaiCaller{client: client, model: cfg.Gemini.Model},
		fetcher:     fetcher,
		cache:       cacheService,
		pacer:       pacer,
		metrics:     metrics,
		logger:      logger,
		maxLength:   cfg.Posting.MaxLength,
		useHashtags: cfg.Posting.UseHashtags,
		blacklist:   cfg.Posting.BlacklistedWords,
		maxAttempts: 3,
		preWait:     5 * time.Second,
		retryStep:   10 * time.Second,
		sleep:       sleepContext,
	}, nil
}

// GenerateReply produces a short, fun response to a status, grounding
// it in the status's images when they can be fetched. Generation errors
// are absorbed into the fallback reply.
func (s *Gemini) GenerateReply(ctx context.Context, postText string, status *mastodon.Status) string {
	clean := htmltext.StripTags(postText)

	if reply, found := s.cache.GetReply(ctx, clean, "reply"); found {
		s.metrics.RecordCacheHit()
		return reply
	}
	s.metrics.RecordCacheMiss()

	var images []*models.MediaItem
	if status != nil {
		images = s.fetchAttachments(ctx, status)
	}

	prompt := buildReplyPrompt(clean, len(images) > 0)

	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	var genCfg *genai.GenerateContentConfig
	mode := "text"

	if len(images) > 0 {
		mode = "multimodal"
		genCfg = &genai.GenerateContentConfig{
			Temperature: genai.Ptr[float32](0.7),
			TopP:        genai.Ptr[float32](0.8),
			TopK:        genai.Ptr[float32](40),
		}
		for _, img := range images {
			parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
			if img.Description != "" {
				parts = append(parts, genai.NewPartFromText("Image description: "+img.Description))
			}
		}
	}

	reply := s.generateWithRetry(ctx, parts, genCfg, mode)
	if reply != FallbackReply {
		s.cache.SetReply(ctx, clean, "reply", reply)
	}
	return reply
}

// GeneratePost produces an original status in the configured style.
func (s *Gemini) GeneratePost(ctx context.Context, style models.PostStyle, topics []string) string {
	prompt := buildPostPrompt(style, topics, s.useHashtags)

	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	post := s.generateWithRetry(ctx, parts, nil, "post")
	return filterBlacklisted(post, s.blacklist)
}

// fetchAttachments downloads the status's image attachments. A failed
// fetch skips that image, it is not retried.
func (s *Gemini) fetchAttachments(ctx context.Context, status *mastodon.Status) []*models.MediaItem {
	var images []*models.MediaItem
	for _, attachment := range status.MediaAttachments {
		if attachment.Type != "image" {
			continue
		}
		if img := s.fetcher.Fetch(ctx, attachment.URL, attachment.Description); img != nil {
			images = append(images, img)
			s.metrics.RecordMediaFetch("success")
		} else {
			s.metrics.RecordMediaFetch("skipped")
		}
	}
	return images
}

// generateWithRetry runs the bounded attempt loop: 5s before every
// attempt, 10s x attempt between retries, fallback after the last one.
func (s *Gemini) generateWithRetry(ctx context.Context, parts []*genai.Part, genCfg *genai.GenerateContentConfig, mode string) string {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := s.sleep(ctx, s.preWait); err != nil {
			break
		}
		if err := s.pacer.Await(ctx); err != nil {
			break
		}

		start := time.Now()
		text, err := s.caller.generate(ctx, parts, genCfg)
		if err == nil {
			s.metrics.RecordGeneration(mode, "success", time.Since(start))
			result := htmltext.FromMarkdown(text)
			return truncate(strings.TrimSpace(result), s.maxLength)
		}
		s.metrics.RecordGeneration(mode, "error", time.Since(start))

		s.logger.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt,
			"mode":    mode,
		}).Warn("Generation failed")

		if attempt < s.maxAttempts {
			if err := s.sleep(ctx, time.Duration(attempt)*s.retryStep); err != nil {
				break
			}
		}
	}

	s.metrics.RecordFallbackReply()
	return FallbackReply
}

// truncate limits s to n code points
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n]))
}

// filterBlacklisted removes blacklisted words from the text
func filterBlacklisted(text string, words []string) string {
	for _, word := range words {
		if word == "" {
			continue
		}
		text = strings.ReplaceAll(text, word, "")
	}
	return strings.TrimSpace(text)
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

// genaiCaller issues real requests through the Gemini SDK
type genaiCaller struct {
	client *genai.Client
	model  string
}

func (g *genaiCaller) generate(ctx context.Context, parts []*genai.Part, cfg *genai.GenerateContentConfig) (string, error) {
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", err
	}

	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from model")
	}

	return result.Candidates[0].Content.Parts[0].Text, nil
}
