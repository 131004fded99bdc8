package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mastodon   MastodonConfig   `mapstructure:"mastodon"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	Posting    PostingConfig    `mapstructure:"posting"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	DM         DMConfig         `mapstructure:"dm"`
	AutoLike   AutoLikeConfig   `mapstructure:"auto_like"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	DMStore    DMStoreConfig    `mapstructure:"dm_store"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

type MastodonConfig struct {
	InstanceURL  string `mapstructure:"instance_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	AccessToken  string `mapstructure:"access_token"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type PostingConfig struct {
	Interval         time.Duration `mapstructure:"interval"`
	MaxDailyPosts    int           `mapstructure:"max_daily_posts"`
	Style            string        `mapstructure:"style"`
	Topics           []string      `mapstructure:"topics"`
	UseHashtags      bool          `mapstructure:"use_hashtags"`
	MaxLength        int           `mapstructure:"max_length"`
	BlacklistedWords []string      `mapstructure:"blacklisted_words"`
}

type MonitorConfig struct {
	Hashtags         []string      `mapstructure:"hashtags"`
	ReplyProbability float64       `mapstructure:"reply_probability"`
	PerHashtagLimit  int           `mapstructure:"per_hashtag_limit"`
	ReplyCooldown    time.Duration `mapstructure:"reply_cooldown"`
}

type DMConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	AutoReply     bool          `mapstructure:"auto_reply"`
	ReplyInterval time.Duration `mapstructure:"reply_interval"`
	FetchLimit    int           `mapstructure:"fetch_limit"`
}

type AutoLikeConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Interval   time.Duration `mapstructure:"interval"`
	SampleSize int           `mapstructure:"sample_size"`
}

type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Spacing           time.Duration `mapstructure:"spacing"`
}

type DMStoreConfig struct {
	Type  string      `mapstructure:"type"`
	Path  string      `mapstructure:"path"`
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	TTL         time.Duration `mapstructure:"ttl"`
	CooldownTTL time.Duration `mapstructure:"cooldown_ttl"`
	MaxSize     int           `mapstructure:"max_size"`
}

type LoggingConfig struct {
	Level  string     `mapstructure:"level"`
	Format string     `mapstructure:"format"`
	Output string     `mapstructure:"output"`
	File   FileConfig `mapstructure:"file"`
}

type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

type MonitoringConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Path    string `mapstructure:"path"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// Enable environment variable substitution
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Set environment variable overrides
	viper.BindEnv("mastodon.instance_url", "MASTODON_INSTANCE_URL")
	viper.BindEnv("mastodon.client_id", "MASTODON_CLIENT_ID")
	viper.BindEnv("mastodon.client_secret", "MASTODON_CLIENT_SECRET")
	viper.BindEnv("mastodon.access_token", "MASTODON_ACCESS_TOKEN")
	viper.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	viper.BindEnv("dm_store.redis.addr", "REDIS_ADDR")
	viper.BindEnv("dm_store.redis.password", "REDIS_PASSWORD")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&config)

	// Validate required fields
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = "gemini-1.5-pro"
	}
	if cfg.Posting.Interval == 0 {
		cfg.Posting.Interval = 30 * time.Minute
	}
	if cfg.Posting.MaxDailyPosts == 0 {
		cfg.Posting.MaxDailyPosts = 48 // 2 posts per hour
	}
	if cfg.Posting.Style == "" {
		cfg.Posting.Style = "entertainer"
	}
	if cfg.Posting.MaxLength == 0 {
		cfg.Posting.MaxLength = 240
	}
	if cfg.Monitor.ReplyProbability == 0 {
		cfg.Monitor.ReplyProbability = 0.3
	}
	if cfg.Monitor.PerHashtagLimit == 0 {
		cfg.Monitor.PerHashtagLimit = 5
	}
	if cfg.Monitor.ReplyCooldown == 0 {
		cfg.Monitor.ReplyCooldown = 30 * time.Second
	}
	if cfg.DM.ReplyInterval == 0 {
		cfg.DM.ReplyInterval = 5 * time.Minute
	}
	if cfg.DM.FetchLimit == 0 {
		cfg.DM.FetchLimit = 20
	}
	if cfg.AutoLike.Interval == 0 {
		cfg.AutoLike.Interval = 5 * time.Minute
	}
	if cfg.AutoLike.SampleSize == 0 {
		cfg.AutoLike.SampleSize = 5
	}
	if cfg.RateLimit.RequestsPerMinute == 0 {
		cfg.RateLimit.RequestsPerMinute = 30
	}
	if cfg.RateLimit.Spacing == 0 {
		cfg.RateLimit.Spacing = 2 * time.Second
	}
	if cfg.DMStore.Type == "" {
		cfg.DMStore.Type = "file"
	}
	if cfg.DMStore.Path == "" {
		cfg.DMStore.Path = "dm_context.json"
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = time.Hour
	}
	if cfg.Cache.CooldownTTL == 0 {
		cfg.Cache.CooldownTTL = 24 * time.Hour
	}
	if cfg.Cache.MaxSize == 0 {
		cfg.Cache.MaxSize = 1000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Mastodon.InstanceURL == "" {
		return fmt.Errorf("mastodon instance URL is required")
	}
	if cfg.Mastodon.AccessToken == "" {
		return fmt.Errorf("mastodon access token is required")
	}
	if cfg.Gemini.APIKey == "" {
		return fmt.Errorf("gemini API key is required")
	}
	if cfg.Monitor.ReplyProbability < 0 || cfg.Monitor.ReplyProbability > 1 {
		return fmt.Errorf("reply probability must be between 0 and 1")
	}
	return nil
}
