package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/gemini-mastobot-go/internal/bot"
	"github.com/gemini-mastobot-go/internal/config"
	"github.com/gemini-mastobot-go/internal/middleware"
	"github.com/gemini-mastobot-go/internal/services/ai"
	"github.com/gemini-mastobot-go/internal/services/cache"
	"github.com/gemini-mastobot-go/internal/services/dmstore"
	"github.com/gemini-mastobot-go/internal/services/media"
	"github.com/gemini-mastobot-go/internal/services/social"
	"github.com/gemini-mastobot-go/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	envFile := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	// Load .env file if exists
	if err := godotenv.Load(*envFile); err != nil {
		// It's okay if .env doesn't exist
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("Starting Mastodon bot...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Mastodon client and verify credentials
	socialClient, err := social.NewMastodonClient(ctx, &cfg.Mastodon, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create Mastodon client")
	}

	// Initialize metrics
	metrics := middleware.NewMetrics()

	// Initialize rate pacer
	pacer := middleware.NewPacer(cfg, log)

	// Initialize cache
	cacheService := cache.NewCache(cfg, log)

	// Initialize media fetcher
	fetcher := media.NewFetcher(log)

	// Initialize generation service
	aiService, err := ai.NewGemini(ctx, cfg, fetcher, cacheService, pacer, metrics, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create generation service")
	}

	// Initialize the replied-DM store
	dmStore, err := dmstore.NewManager(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize DM store")
	}

	// Start metrics server with the /health liveness route
	if cfg.Monitoring.Metrics.Enabled {
		go func() {
			log.WithFields(logrus.Fields{
				"addr": cfg.Monitoring.Metrics.Addr,
				"path": cfg.Monitoring.Metrics.Path,
			}).Info("Starting metrics server")

			if err := middleware.StartMetricsServer(cfg.Monitoring.Metrics.Addr, cfg.Monitoring.Metrics.Path); err != nil {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.WithField("signal", sig.String()).Info("Shutdown signal received")
		cancel()
	}()

	// Run the scheduler loop
	scheduler := bot.New(cfg, socialClient, aiService, pacer, dmStore, cacheService, metrics, log)

	if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("Fatal error in scheduler loop")
		restartContainer(log)
		os.Exit(1)
	}

	log.Info("Bot stopped")
}

// restartContainer asks the container runtime to restart the bot as a
// last-resort recovery after an unrecoverable failure.
func restartContainer(log *logrus.Logger) {
	cmd := exec.Command("docker-compose", "restart", "mastodon-bot")
	if err := cmd.Run(); err != nil {
		log.WithError(err).Warn("Failed to trigger container restart")
	}
}
