package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Auctionflow AuctionflowConfig `yaml:"auctionflow"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Source      SourceConfig      `yaml:"source"`
	Fetcher     FetcherConfig     `yaml:"fetcher"`
	Paths       PathsConfig       `yaml:"paths"`
	Storage     StorageConfig     `yaml:"storage"`
	Rules       RulesConfig       `yaml:"rules"`
	Notifier    NotifierConfig    `yaml:"notifier"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
}

type AuctionflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type LoggingConfig struct {
	Level             string `yaml:"level"`
	Format            string `yaml:"format"`
	Output            string `yaml:"output"`
	MaxAge            int    `yaml:"max_age"`
	ReportIntervalSec int    `yaml:"report_interval_sec"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
	Dashboard string `yaml:"dashboard"`
}

// SourceConfig describes the upstream listing API: endpoints, namespaces
// and the server-imposed request budget.
type SourceConfig struct {
	OAuthTokenURL     string      `yaml:"oauth_token_url"`
	APIBaseURL        string      `yaml:"api_base_url"`
	Namespace         string      `yaml:"namespace"`
	StaticNamespace   string      `yaml:"static_namespace"`
	Locale            string      `yaml:"locale"`
	RequestsPerSecond int         `yaml:"requests_per_second"`
	TimeoutMS         int         `yaml:"timeout_ms"`
	Retry             RetryConfig `yaml:"retry"`
	Realms            []string    `yaml:"realms"`
}

type RetryConfig struct {
	MaxAttempts  int `yaml:"max_attempts"`
	BackoffMinMS int `yaml:"backoff_min_ms"`
	BackoffMaxMS int `yaml:"backoff_max_ms"`
}

type FetcherConfig struct {
	MaxWorkers int `yaml:"max_workers"`
}

type PathsConfig struct {
	AuctionsDir     string `yaml:"auctions_dir"`
	ItemsDir        string `yaml:"items_dir"`
	MediaDir        string `yaml:"media_dir"`
	EncounteredFile string `yaml:"encountered_file"`
	BonusesFile     string `yaml:"bonuses_file"`
}

type StorageConfig struct {
	SQLite SQLiteConfig `yaml:"sqlite"`
	S3     S3Config     `yaml:"s3"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Prefix          string `yaml:"prefix"`
}

type NotifierConfig struct {
	WebhookURL        string  `yaml:"webhook_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type SchedulerConfig struct {
	Cron string `yaml:"cron"`
}

// Timeout returns the HTTP client timeout for upstream requests.
func (s SourceConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

// BackoffRange returns the randomized throttle backoff window.
func (r RetryConfig) BackoffRange() (time.Duration, time.Duration) {
	return time.Duration(r.BackoffMinMS) * time.Millisecond,
		time.Duration(r.BackoffMaxMS) * time.Millisecond
}

// LoadConfig reads the YAML configuration file, applies defaults and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("cannot parse YAML: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Auctionflow.Name == "" {
		c.Auctionflow.Name = "auctionflow"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Logging.ReportIntervalSec <= 0 {
		c.Logging.ReportIntervalSec = 30
	}
	if c.Source.RequestsPerSecond <= 0 {
		c.Source.RequestsPerSecond = 90
	}
	if c.Source.TimeoutMS <= 0 {
		c.Source.TimeoutMS = 30000
	}
	if c.Source.Retry.MaxAttempts <= 0 {
		c.Source.Retry.MaxAttempts = 5
	}
	if c.Source.Retry.BackoffMinMS <= 0 {
		c.Source.Retry.BackoffMinMS = 2000
	}
	if c.Source.Retry.BackoffMaxMS <= c.Source.Retry.BackoffMinMS {
		c.Source.Retry.BackoffMaxMS = c.Source.Retry.BackoffMinMS + 6000
	}
	if c.Fetcher.MaxWorkers <= 0 {
		c.Fetcher.MaxWorkers = 16
	}
	if c.Paths.AuctionsDir == "" {
		c.Paths.AuctionsDir = "data/auctions"
	}
	if c.Paths.ItemsDir == "" {
		c.Paths.ItemsDir = "data/items"
	}
	if c.Paths.MediaDir == "" {
		c.Paths.MediaDir = "data/media"
	}
	if c.Paths.EncounteredFile == "" {
		c.Paths.EncounteredFile = "data/encountered_items.json"
	}
	if c.Storage.SQLite.Path == "" {
		c.Storage.SQLite.Path = "data/auctions.db"
	}
	if c.Metrics.CloudWatch.Namespace == "" {
		c.Metrics.CloudWatch.Namespace = "AuctionFlow"
	}
	if c.Notifier.RequestsPerSecond <= 0 {
		c.Notifier.RequestsPerSecond = 1
	}
	if c.Notifier.Burst <= 0 {
		c.Notifier.Burst = 1
	}
	if c.Scheduler.Cron == "" {
		c.Scheduler.Cron = "@every 30m"
	}
	c.Rules.applyDefaults()
}

func (c *Config) validate() error {
	if c.Source.OAuthTokenURL == "" {
		return fmt.Errorf("source.oauth_token_url is required")
	}
	if c.Source.APIBaseURL == "" {
		return fmt.Errorf("source.api_base_url is required")
	}
	if c.Source.Namespace == "" {
		return fmt.Errorf("source.namespace is required")
	}
	if err := c.Rules.validate(); err != nil {
		return err
	}
	if c.Storage.S3.Enabled && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("storage.s3.bucket is required when s3 is enabled")
	}
	// A production deployment that silently announces nothing is worse than
	// one that refuses to start.
	if IsProductionLike(AppEnvironment()) &&
		c.Notifier.WebhookURL == "" && os.Getenv("DISCORD_WEBHOOK_URL") == "" {
		return fmt.Errorf("notifier.webhook_url is required in %s", AppEnvironment())
	}
	return nil
}
