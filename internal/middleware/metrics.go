package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Posting metrics
	postsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mastodon_bot_posts_published_total",
		Help: "Total number of scheduled posts published",
	})

	repliesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mastodon_bot_replies_sent_total",
		Help: "Total number of replies sent",
	}, []string{"source"})

	favouritesGiven = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mastodon_bot_favourites_total",
		Help: "Total number of statuses favourited",
	})

	// Generation metrics
	generationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mastodon_bot_generation_requests_total",
		Help: "Total number of generation requests",
	}, []string{"mode", "status"})

	generationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mastodon_bot_generation_duration_seconds",
		Help:    "Duration of generation requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	fallbackReplies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mastodon_bot_fallback_replies_total",
		Help: "Total number of canned fallback replies returned",
	})

	// Media metrics
	mediaFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mastodon_bot_media_fetches_total",
		Help: "Total number of attachment fetches",
	}, []string{"status"})

	// Cache metrics
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mastodon_bot_cache_hits_total",
		Help: "Total number of reply cache hits",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mastodon_bot_cache_misses_total",
		Help: "Total number of reply cache misses",
	})

	// Rate limit metrics
	rateLimitWaits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mastodon_bot_rate_limit_waits_total",
		Help: "Total number of waits at the request-rate ceiling",
	})

	// DM store metrics
	dmStoreOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mastodon_bot_dm_store_operations_total",
		Help: "Total number of DM store operations",
	}, []string{"operation", "status"})

	// Scheduler metrics
	schedulerIterations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mastodon_bot_scheduler_iterations_total",
		Help: "Total number of scheduler iterations",
	}, []string{"status"})

	dailyPostCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mastodon_bot_daily_post_count",
		Help: "Number of posts published since the last midnight reset",
	})
)

// Metrics provides methods to record metrics
type Metrics struct{}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordPostPublished records a published scheduled post
func (m *Metrics) RecordPostPublished() {
	postsPublished.Inc()
}

// RecordReplySent records a sent reply
func (m *Metrics) RecordReplySent(source string) {
	repliesSent.WithLabelValues(source).Inc()
}

// RecordFavourite records a favourited status
func (m *Metrics) RecordFavourite() {
	favouritesGiven.Inc()
}

// RecordGeneration records a generation attempt
func (m *Metrics) RecordGeneration(mode, status string, duration time.Duration) {
	generationRequests.WithLabelValues(mode, status).Inc()
	generationDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordFallbackReply records a canned fallback reply
func (m *Metrics) RecordFallbackReply() {
	fallbackReplies.Inc()
}

// RecordMediaFetch records an attachment fetch
func (m *Metrics) RecordMediaFetch(status string) {
	mediaFetches.WithLabelValues(status).Inc()
}

// RecordCacheHit records a reply cache hit
func (m *Metrics) RecordCacheHit() {
	cacheHits.Inc()
}

// RecordCacheMiss records a reply cache miss
func (m *Metrics) RecordCacheMiss() {
	cacheMisses.Inc()
}

// RecordDMStoreOperation records a DM store operation
func (m *Metrics) RecordDMStoreOperation(operation, status string) {
	dmStoreOperations.WithLabelValues(operation, status).Inc()
}

// RecordSchedulerIteration records a completed scheduler iteration
func (m *Metrics) RecordSchedulerIteration(status string) {
	schedulerIterations.WithLabelValues(status).Inc()
}

// SetDailyPostCount sets the current daily post counter
func (m *Metrics) SetDailyPostCount(count int) {
	dailyPostCount.Set(float64(count))
}

// RecordRateLimitWait records a wait at the rate ceiling
func RecordRateLimitWait() {
	rateLimitWaits.Inc()
}

// StartMetricsServer starts the metrics HTTP server with the liveness route
func StartMetricsServer(addr, path string) error {
	router := mux.NewRouter()
	router.Handle(path, promhttp.Handler())

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
