package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Scraper    ScraperConfig    `yaml:"scraper"`
	Parser     ParserConfig     `yaml:"parser"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	Email      EmailConfig      `yaml:"email"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Archive    ArchiveConfig    `yaml:"archive"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Log        LogConfig        `yaml:"log"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size      int `yaml:"size"`
	BatchSize int `yaml:"batch_size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// EmailConfig describes the shoutrrr URL used for email delivery.
// The template may contain "{email}", replaced by the recipient address.
type EmailConfig struct {
	URLTemplate string `yaml:"url_template"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
	AdminToken      string  `yaml:"admin_token"`
}

// ScraperConfig holds the menu checking schedule and fetch settings.
type ScraperConfig struct {
	Enabled          bool          `yaml:"enabled"`
	IntervalSeconds  int           `yaml:"interval_seconds"`
	Interval         time.Duration `yaml:"-"` // Ignored by YAML parser
	FreshnessMinutes int           `yaml:"freshness_minutes"`
	Freshness        time.Duration `yaml:"-"`
	Concurrency      int           `yaml:"concurrency"`
	HTTPProxy        string        `yaml:"http_proxy"`
	UserAgent        string        `yaml:"user_agent"`
	TimeoutSeconds   int           `yaml:"timeout_seconds"`
	MaxBodyBytes     int64         `yaml:"max_body_bytes"`
}

// ParserConfig configures the OpenAI-compatible model used to read menus.
type ParserConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel               string `yaml:"log_level"`
}

// ArchiveConfig points at the object storage holding raw menu snapshots.
type ArchiveConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Endpoint       string `yaml:"endpoint"`
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	Bucket         string `yaml:"bucket"`
	Region         string `yaml:"region"`
	UseSSL         bool   `yaml:"use_ssl"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// MQTTConfig configures publication of check results.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
}

// LogConfig holds the logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TelemetryConfig holds the Sentry settings.
type TelemetryConfig struct {
	SentryDSN   string `yaml:"sentry_dsn"`
	Environment string `yaml:"environment"`
}

// Load reads the configuration from the given path. Values from a .env file
// and the process environment override secrets found in the YAML file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	// Missing .env is fine outside local development.
	_ = godotenv.Load()
	applyEnv(&cfg)
	applyDefaults(&cfg)

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	overrides := map[string]*string{
		"DATABASE_DRIVER":    &cfg.Database.Driver,
		"DATABASE_DSN":       &cfg.Database.DSN,
		"OPENAI_API_KEY":     &cfg.Parser.APIKey,
		"OPENAI_BASE_URL":    &cfg.Parser.BaseURL,
		"VAPID_PUBLIC_KEY":   &cfg.Push.PublicKey,
		"VAPID_PRIVATE_KEY":  &cfg.Push.PrivateKey,
		"ADMIN_TOKEN":        &cfg.Server.AdminToken,
		"SENTRY_DSN":         &cfg.Telemetry.SentryDSN,
		"EMAIL_URL":          &cfg.Email.URLTemplate,
		"ARCHIVE_ACCESS_KEY": &cfg.Archive.AccessKey,
		"ARCHIVE_SECRET_KEY": &cfg.Archive.SecretKey,
		"MQTT_PASSWORD":      &cfg.MQTT.Password,
	}
	for key, dst := range overrides {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 60
	}

	if cfg.Scraper.IntervalSeconds <= 0 {
		cfg.Scraper.IntervalSeconds = 3600
	}
	cfg.Scraper.Interval = time.Duration(cfg.Scraper.IntervalSeconds) * time.Second

	// Zero checks every approved bar on every run.
	if cfg.Scraper.FreshnessMinutes < 0 {
		cfg.Scraper.FreshnessMinutes = 0
	}
	cfg.Scraper.Freshness = time.Duration(cfg.Scraper.FreshnessMinutes) * time.Minute

	if cfg.Scraper.Concurrency <= 0 {
		cfg.Scraper.Concurrency = 4
	}
	if cfg.Scraper.TimeoutSeconds <= 0 {
		cfg.Scraper.TimeoutSeconds = 30
	}
	if cfg.Scraper.MaxBodyBytes <= 0 {
		cfg.Scraper.MaxBodyBytes = 20 << 20
	}
	if cfg.Scraper.UserAgent == "" {
		cfg.Scraper.UserAgent = "beer-scanner/1.0"
	}

	if cfg.Parser.BaseURL == "" {
		cfg.Parser.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Parser.Model == "" {
		cfg.Parser.Model = "gpt-4o-mini"
	}
	if cfg.Parser.TimeoutSeconds <= 0 {
		cfg.Parser.TimeoutSeconds = 120
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}
	if cfg.WorkerPool.BatchSize <= 0 {
		cfg.WorkerPool.BatchSize = 500
	}

	if cfg.Archive.Bucket == "" {
		cfg.Archive.Bucket = "menus"
	}
	if cfg.Archive.TimeoutSeconds <= 0 {
		cfg.Archive.TimeoutSeconds = 30
	}

	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "beer-scanner"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "beerscanner"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}
