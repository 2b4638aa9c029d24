// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/cme-volume-scraper/internal/extractor"
	"github.com/JakeFAU/cme-volume-scraper/internal/storage"
)

// Extractor modes.
const (
	ModeStatic   = "static"
	ModeHeadless = "headless"
	ModeAuto     = "auto"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Archive backends.
const (
	ArchiveNone  = "none"
	ArchiveLocal = "local"
	ArchiveGCS   = "gcs"
)

// DefaultSourceURL is the CME gold futures volume page.
const DefaultSourceURL = "https://www.cmegroup.com/markets/metals/precious/gold.volume.html"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Source    SourceConfig    `mapstructure:"source"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	API       APIConfig       `mapstructure:"api"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// SourceConfig names the page being scraped.
type SourceConfig struct {
	URL       string `mapstructure:"url"`
	UserAgent string `mapstructure:"user_agent"`

	// MinIntervalSec spaces live fetches; 0 disables the limiter.
	MinIntervalSec int `mapstructure:"min_interval_seconds"`
}

// HTTPConfig configures the static fetch.
type HTTPConfig struct {
	TimeoutSeconds int  `mapstructure:"timeout_seconds"`
	RespectRobots  bool `mapstructure:"respect_robots"`
}

// ExtractorConfig selects the extraction strategy and page selectors.
type ExtractorConfig struct {
	Mode      string              `mapstructure:"mode"`
	Selectors extractor.Selectors `mapstructure:"selectors"`
}

// HeadlessConfig configures the headless browser.
type HeadlessConfig struct {
	NavTimeoutSec int    `mapstructure:"nav_timeout_seconds"`
	ExecPath      string `mapstructure:"exec_path"`
}

// StorageConfig selects and configures the readings store.
type StorageConfig struct {
	Driver      string `mapstructure:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
	Table       string `mapstructure:"table"`
	MaxConns    int32  `mapstructure:"max_conns"`
}

// ArchiveConfig controls raw page archiving.
type ArchiveConfig struct {
	Backend     string `mapstructure:"backend"`
	LocalDir    string `mapstructure:"local_dir"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// APIConfig tunes the presentation layer.
type APIConfig struct {
	RecentLimit int `mapstructure:"recent_limit"`
	MaxLimit    int `mapstructure:"max_limit"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features and the rotating file sink.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
}

// Load builds a Config from defaults, an optional file, and the environment.
// Environment variables use the VOLSCRAPER_ prefix; PORT also sets server.port.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("VOLSCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.port", "VOLSCRAPER_SERVER_PORT", "PORT"); err != nil {
		return Config{}, fmt.Errorf("bind port env: %w", err)
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
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
	sel := extractor.DefaultSelectors()
	v.SetDefault("server.port", 8080)
	v.SetDefault("source.url", DefaultSourceURL)
	v.SetDefault("source.user_agent", "volscraper/1.0")
	v.SetDefault("source.min_interval_seconds", 5)
	v.SetDefault("http.timeout_seconds", 20)
	v.SetDefault("http.respect_robots", false)
	v.SetDefault("extractor.mode", ModeStatic)
	v.SetDefault("extractor.selectors.timestamp", sel.Timestamp)
	v.SetDefault("extractor.selectors.label", sel.Label)
	v.SetDefault("extractor.selectors.table", sel.Table)
	v.SetDefault("headless.nav_timeout_seconds", 45)
	v.SetDefault("headless.exec_path", "")
	v.SetDefault("storage.driver", DriverSQLite)
	v.SetDefault("storage.sqlite_path", "volume.db")
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.table", storage.DefaultTable)
	v.SetDefault("storage.max_conns", 4)
	v.SetDefault("archive.backend", ArchiveNone)
	v.SetDefault("archive.local_dir", "data/pages")
	v.SetDefault("archive.gcs_bucket", "")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("archive.content_type", "text/html; charset=utf-8")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("api.recent_limit", 10)
	v.SetDefault("api.max_limit", 500)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 3)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if strings.TrimSpace(c.Source.URL) == "" {
		return fmt.Errorf("source.url is required")
	}
	if c.Source.MinIntervalSec < 0 {
		return fmt.Errorf("source.min_interval_seconds must be >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	switch c.Extractor.Mode {
	case ModeStatic, ModeHeadless, ModeAuto:
	default:
		return fmt.Errorf("extractor.mode must be one of static, headless, auto")
	}
	if c.Extractor.Mode != ModeStatic && c.Headless.NavTimeoutSec <= 0 {
		return fmt.Errorf("headless.nav_timeout_seconds must be > 0")
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	switch c.Archive.Backend {
	case ArchiveNone:
	case ArchiveLocal:
		if c.Archive.LocalDir == "" {
			return fmt.Errorf("archive.local_dir is required for the local backend")
		}
	case ArchiveGCS:
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("archive.backend must be one of none, local, gcs")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id is required when pubsub.topic_name is set")
	}
	if c.API.RecentLimit <= 0 {
		return fmt.Errorf("api.recent_limit must be > 0")
	}
	if c.API.MaxLimit < c.API.RecentLimit {
		return fmt.Errorf("api.max_limit must be >= api.recent_limit")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

func (c Config) validateStorage() error {
	if _, err := storage.TableName(c.Storage.Table); err != nil {
		return fmt.Errorf("storage.table: %w", err)
	}
	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("storage.driver must be one of sqlite, postgres, memory")
	}
	return nil
}

// FetchTimeout converts http.timeout_seconds to a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// MinFetchInterval converts source.min_interval_seconds to a duration.
func (c Config) MinFetchInterval() time.Duration {
	return time.Duration(c.Source.MinIntervalSec) * time.Second
}

// NavigationTimeout converts headless.nav_timeout_seconds to a duration.
func (c Config) NavigationTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}
