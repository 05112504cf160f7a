package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Insight provider names.
const (
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

// Analytics source names.
const (
	AnalyticsRemote = "remote"
	AnalyticsLocal  = "local"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Remote   RemoteConfig   `yaml:"remote"`
	Insight  InsightConfig  `yaml:"insight"`
	Report   ReportConfig   `yaml:"report"`
	Worker   WorkerConfig   `yaml:"worker"`
	Export   ExportConfig   `yaml:"export"`
	Devstore DevstoreConfig `yaml:"devstore"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// AuthConfig contains authentication settings for the dashboard API.
// An empty key disables authentication.
type AuthConfig struct {
	APIKey string `yaml:"-"` // env-only, never in YAML
}

// RemoteConfig points at the remote project store.
type RemoteConfig struct {
	BaseURL    string   `yaml:"base_url"`
	APIKey     string   `yaml:"-"` // env-only, never in YAML
	Timeout    Duration `yaml:"timeout"`
	MaxRetries int      `yaml:"max_retries"`
	// Analytics selects where graphics are computed: "remote" or "local".
	Analytics string `yaml:"analytics"`
}

// InsightConfig contains text-generation provider settings.
type InsightConfig struct {
	Provider string   `yaml:"provider"`
	Model    string   `yaml:"model"`
	Timeout  Duration `yaml:"timeout"`
	APIKey   string   `yaml:"-"` // env-only, never in YAML
}

// ReportConfig shapes the dashboard report.
type ReportConfig struct {
	RecentLimit int `yaml:"recent_limit"`
}

// WorkerConfig contains background worker settings.
type WorkerConfig struct {
	RefreshInterval Duration `yaml:"refresh_interval"`
	ExportInterval  Duration `yaml:"export_interval"`
	ExportEnabled   bool     `yaml:"export_enabled"`
}

// ExportConfig contains report export settings. An empty bucket selects
// the local directory.
type ExportConfig struct {
	Dir       string   `yaml:"dir"`
	Bucket    string   `yaml:"bucket"`
	Endpoint  string   `yaml:"endpoint"`
	Region    string   `yaml:"region"`
	AccessKey string   `yaml:"-"` // env-only, never in YAML
	SecretKey string   `yaml:"-"` // env-only, never in YAML
	UseSSL    *bool    `yaml:"use_ssl"`
	URLExpiry Duration `yaml:"url_expiry"`
}

// DevstoreConfig contains settings for the reference project store.
type DevstoreConfig struct {
	Port   int    `yaml:"port"`
	DBPath string `yaml:"db_path"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	// Determine config path
	configPath := getEnv("PORTFOLIO_CONFIG_PATH", "config/portfolio.yaml")

	// Load YAML file if it exists (missing file is not an error)
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit path specification.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	// Load YAML file (file must exist for this function)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Remote: RemoteConfig{
			BaseURL:    "http://localhost:3000/api",
			Timeout:    Duration(30 * time.Second),
			MaxRetries: 3,
			Analytics:  AnalyticsRemote,
		},
		Insight: InsightConfig{
			Provider: ProviderOpenAI,
			Model:    "gpt-4o-mini",
			Timeout:  Duration(15 * time.Second),
		},
		Report: ReportConfig{
			RecentLimit: 5,
		},
		Worker: WorkerConfig{
			RefreshInterval: Duration(5 * time.Minute),
			ExportInterval:  Duration(24 * time.Hour),
		},
		Export: ExportConfig{
			Dir:       "data/reports",
			URLExpiry: Duration(15 * time.Minute),
		},
		Devstore: DevstoreConfig{
			Port:   3000,
			DBPath: "data/devstore.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
// Missing file is not an error; we just use defaults.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	envInt("PORTFOLIO_PORT", &cfg.Server.Port)
	envDuration("PORTFOLIO_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("PORTFOLIO_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("PORTFOLIO_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	// Auth
	envString("PORTFOLIO_API_KEY", &cfg.Auth.APIKey)

	// Remote
	envString("PORTFOLIO_REMOTE_URL", &cfg.Remote.BaseURL)
	envString("PORTFOLIO_REMOTE_API_KEY", &cfg.Remote.APIKey)
	envDuration("PORTFOLIO_REMOTE_TIMEOUT", &cfg.Remote.Timeout)
	envInt("PORTFOLIO_REMOTE_MAX_RETRIES", &cfg.Remote.MaxRetries)
	envString("PORTFOLIO_ANALYTICS_SOURCE", &cfg.Remote.Analytics)

	// Insight (OPENAI_API_KEY is industry convention)
	envString("OPENAI_API_KEY", &cfg.Insight.APIKey)
	envString("PORTFOLIO_INSIGHT_PROVIDER", &cfg.Insight.Provider)
	envString("PORTFOLIO_INSIGHT_MODEL", &cfg.Insight.Model)
	envDuration("PORTFOLIO_INSIGHT_TIMEOUT", &cfg.Insight.Timeout)

	// Report
	envInt("PORTFOLIO_REPORT_RECENT_LIMIT", &cfg.Report.RecentLimit)

	// Worker
	envDuration("PORTFOLIO_REFRESH_INTERVAL", &cfg.Worker.RefreshInterval)
	envDuration("PORTFOLIO_EXPORT_INTERVAL", &cfg.Worker.ExportInterval)
	envBool("PORTFOLIO_EXPORT_ENABLED", &cfg.Worker.ExportEnabled)

	// Export
	envString("PORTFOLIO_EXPORT_DIR", &cfg.Export.Dir)
	envString("PORTFOLIO_EXPORT_BUCKET", &cfg.Export.Bucket)
	envString("PORTFOLIO_S3_ENDPOINT", &cfg.Export.Endpoint)
	envString("PORTFOLIO_S3_REGION", &cfg.Export.Region)
	envString("PORTFOLIO_S3_ACCESS_KEY", &cfg.Export.AccessKey)
	envString("PORTFOLIO_S3_SECRET_KEY", &cfg.Export.SecretKey)
	if v := os.Getenv("PORTFOLIO_S3_USE_SSL"); v != "" {
		useSSL := v == "true" || v == "1"
		cfg.Export.UseSSL = &useSSL
	}
	envDuration("PORTFOLIO_S3_URL_EXPIRY", &cfg.Export.URLExpiry)

	// Devstore
	envInt("PORTFOLIO_DEVSTORE_PORT", &cfg.Devstore.Port)
	envString("PORTFOLIO_DEVSTORE_DB_PATH", &cfg.Devstore.DBPath)

	// Log
	envString("PORTFOLIO_LOG_LEVEL", &cfg.Log.Level)
	envString("PORTFOLIO_LOG_FORMAT", &cfg.Log.Format)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true" || v == "1"
	}
}

func envDuration(key string, dst *Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}

// validate checks that configuration values are usable. No credential is
// required: without one the insight engine runs on its fallback analyzer.
func (c *Config) validate() error {
	if strings.TrimSpace(c.Remote.BaseURL) == "" {
		return errors.New("remote.base_url is required")
	}
	if c.Remote.MaxRetries < 0 {
		return fmt.Errorf("remote.max_retries must not be negative, got %d", c.Remote.MaxRetries)
	}
	switch c.Remote.Analytics {
	case AnalyticsRemote, AnalyticsLocal:
	default:
		return fmt.Errorf("remote.analytics must be %q or %q, got %q", AnalyticsRemote, AnalyticsLocal, c.Remote.Analytics)
	}
	switch c.Insight.Provider {
	case ProviderOpenAI, ProviderNone:
	default:
		return fmt.Errorf("insight.provider must be %q or %q, got %q", ProviderOpenAI, ProviderNone, c.Insight.Provider)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}
	if c.Worker.RefreshInterval <= 0 {
		return errors.New("worker.refresh_interval must be positive")
	}
	if c.Worker.ExportEnabled && c.Worker.ExportInterval <= 0 {
		return errors.New("worker.export_interval must be positive when export is enabled")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
