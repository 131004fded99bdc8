package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/gemini-mastobot-go/internal/config"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Pacer serializes outbound API calls against the shared request quota.
// Await must be called before every Mastodon or Gemini request.
type Pacer interface {
	Await(ctx context.Context) error
}

// RequestPacer enforces a per-minute request ceiling plus a fixed
// spacing delay between consecutive requests.
type RequestPacer struct {
	enabled      bool
	maxPerWindow int
	window       time.Duration

	mu          sync.Mutex
	count       int
	windowStart time.Time

	spacer *rate.Limiter
	logger *logrus.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPacer creates a new request pacer
func NewPacer(cfg *config.Config, logger *logrus.Logger) Pacer {
	if !cfg.RateLimit.Enabled {
		return &RequestPacer{enabled: false}
	}

	spacing := rate.Every(cfg.RateLimit.Spacing)
	if cfg.RateLimit.Spacing <= 0 {
		spacing = rate.Inf
	}

	return &RequestPacer{
		enabled:      true,
		maxPerWindow: cfg.RateLimit.RequestsPerMinute,
		window:       time.Minute,
		windowStart:  time.Now(),
		spacer:       rate.NewLimiter(spacing, 1),
		logger:       logger,
		now:          time.Now,
		sleep:        sleepContext,
	}
}

// Await blocks until the next request is allowed to go out. The window
// counter resets once a full window has elapsed; at the ceiling the
// caller sleeps out the remainder of the window.
func (p *RequestPacer) Await(ctx context.Context) error {
	if !p.enabled {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	elapsed := now.Sub(p.windowStart)

	if elapsed >= p.window {
		p.count = 0
		p.windowStart = now
		elapsed = 0
	}

	if p.count >= p.maxPerWindow {
		wait := p.window - elapsed
		if wait > 0 {
			p.logger.WithField("wait", wait.Round(100*time.Millisecond)).Info("Rate limit reached, waiting")
			RecordRateLimitWait()
			if err := p.sleep(ctx, wait); err != nil {
				return err
			}
		}
		p.count = 0
		p.windowStart = p.now()
	}

	// Fixed spacing between consecutive requests
	if err := p.spacer.Wait(ctx); err != nil {
		return err
	}

	p.count++
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
