// Package config loads and validates announcer configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // announce.timezone must resolve on hosts without zoneinfo

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage provider names accepted by storage.provider.
const (
	StorageGCS    = "gcs"
	StorageLocal  = "local"
	StorageMemory = "memory"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Source    SourceConfig    `mapstructure:"source"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Detector  DetectorConfig  `mapstructure:"detector"`
	Announce  AnnounceConfig  `mapstructure:"announce"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Heartbeat HeartbeatConfig `mapstructure:"heartbeat"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Server    ServerConfig    `mapstructure:"server"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// HTTPConfig configures the outbound JSON client.
type HTTPConfig struct {
	// TimeoutSeconds bounds each outbound request; zero means no timeout.
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// SourceConfig points at the locations-of-interest API.
type SourceConfig struct {
	URL string `mapstructure:"url"`
}

// StorageConfig selects where the seen-state blob lives.
type StorageConfig struct {
	Provider string          `mapstructure:"provider"`
	Object   string          `mapstructure:"object"`
	GCS      GCSConfig       `mapstructure:"gcs"`
	Local    LocalBlobConfig `mapstructure:"local"`
}

// GCSConfig holds the bucket used by the gcs provider.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
}

// LocalBlobConfig holds the directory used by the local provider.
type LocalBlobConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// DetectorConfig controls which entries are eligible for announcement.
type DetectorConfig struct {
	Cities []string `mapstructure:"cities"`
}

// AnnounceConfig controls message rendering.
type AnnounceConfig struct {
	Timezone string `mapstructure:"timezone"`
}

// WebhookConfig describes the chat webhook and its batching limits.
type WebhookConfig struct {
	URL                 string        `mapstructure:"url"`
	Username            string        `mapstructure:"username"`
	AvatarURL           string        `mapstructure:"avatar_url"`
	MaxChars            int           `mapstructure:"max_chars"`
	MaxRateLimitRetries int           `mapstructure:"max_rate_limit_retries"`
	MinInterval         time.Duration `mapstructure:"min_interval"`
	MaxRetryWait        time.Duration `mapstructure:"max_retry_wait"`
}

// HeartbeatConfig describes the liveness ping sent after each run.
type HeartbeatConfig struct {
	URL    string `mapstructure:"url"`
	Method string `mapstructure:"method"`
}

// ScheduleConfig drives the serve command's cron trigger.
type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
}

// ServerConfig controls the serve command's HTTP listener.
type ServerConfig struct {
	Port int `mapstructure:"port"`
	// APIKey, when set, is required on POST /v1/run via X-API-Key.
	APIKey string `mapstructure:"api_key"`
}

// Tracing exporters accepted by tracing.exporter. An empty value picks
// stdout in development and none otherwise.
const (
	TracingNone   = "none"
	TracingStdout = "stdout"
)

// TracingConfig selects where run spans are exported.
type TracingConfig struct {
	Exporter string `mapstructure:"exporter"`
}

// TraceExporter resolves the effective exporter name.
func (c Config) TraceExporter() string {
	if c.Tracing.Exporter != "" {
		return c.Tracing.Exporter
	}
	if c.Logging.Development {
		return TracingStdout
	}
	return TracingNone
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	// A .env file in the working directory may carry LOCBOT_* secrets; it
	// never overrides variables already set.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("LOCBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/locbot/")
		v.AddConfigPath("$HOME/.locbot")
		if err := v.ReadInConfig(); err != nil {
			// Defaults and LOCBOT_* variables are enough on their own.
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("http.timeout_seconds", 0)
	v.SetDefault("http.user_agent", "loc-announcer/1.0")
	v.SetDefault("source.url",
		"https://api.integration.covid19.health.nz/locations/v1/current-locations-of-interest")
	v.SetDefault("storage.provider", StorageGCS)
	v.SetDefault("storage.object", "locs.json")
	v.SetDefault("storage.gcs.bucket", "")
	v.SetDefault("storage.local.base_dir", "data")
	v.SetDefault("detector.cities", []string{"Lower Hutt", "Wellington", "Upper Hutt", "Porirua"})
	v.SetDefault("announce.timezone", "Pacific/Auckland")
	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.username", "Wellington Locations of Interest Bot")
	v.SetDefault("webhook.avatar_url", "https://i.imgur.com/b50ktJm.jpg")
	v.SetDefault("webhook.max_chars", 1800)
	v.SetDefault("webhook.max_rate_limit_retries", 5)
	v.SetDefault("webhook.min_interval", "0s")
	v.SetDefault("webhook.max_retry_wait", "10m")
	v.SetDefault("heartbeat.url", "")
	v.SetDefault("heartbeat.method", "POST")
	v.SetDefault("schedule.cron", "*/10 * * * *")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.api_key", "")
	v.SetDefault("tracing.exporter", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Source.URL) == "" {
		return fmt.Errorf("source.url must be set")
	}
	if strings.TrimSpace(c.Webhook.URL) == "" {
		return fmt.Errorf("webhook.url must be set")
	}
	if c.Webhook.MaxChars <= 0 {
		return fmt.Errorf("webhook.max_chars must be > 0")
	}
	if c.Webhook.MaxRateLimitRetries < 0 {
		return fmt.Errorf("webhook.max_rate_limit_retries must be >= 0")
	}
	if c.Webhook.MinInterval < 0 {
		return fmt.Errorf("webhook.min_interval must be >= 0")
	}
	if c.Webhook.MaxRetryWait <= 0 {
		return fmt.Errorf("webhook.max_retry_wait must be > 0")
	}
	if c.HTTP.TimeoutSeconds < 0 {
		return fmt.Errorf("http.timeout_seconds must be >= 0")
	}
	if strings.TrimSpace(c.Storage.Object) == "" {
		return fmt.Errorf("storage.object must be set")
	}
	switch c.Storage.Provider {
	case StorageGCS:
		if c.Storage.GCS.Bucket == "" {
			return fmt.Errorf("storage.gcs.bucket must be set when storage.provider is gcs")
		}
	case StorageLocal:
		if c.Storage.Local.BaseDir == "" {
			return fmt.Errorf("storage.local.base_dir must be set when storage.provider is local")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("storage.provider %q is not one of gcs, local, memory", c.Storage.Provider)
	}
	if len(c.Detector.Cities) == 0 {
		return fmt.Errorf("detector.cities must list at least one city")
	}
	if _, err := time.LoadLocation(c.Announce.Timezone); err != nil {
		return fmt.Errorf("announce.timezone: %w", err)
	}
	switch c.Tracing.Exporter {
	case "", TracingNone, TracingStdout:
	default:
		return fmt.Errorf("tracing.exporter %q is not one of none, stdout", c.Tracing.Exporter)
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	return nil
}

// RequestTimeout converts the HTTP timeout into a duration; zero disables it.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
