package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envPrefix is prepended to every environment override (AMBASSADOR_API_BASE_URL, ...).
const envPrefix = "AMBASSADOR"

// APIConfig holds settings for the portal REST API.
type APIConfig struct {
	// BaseURL is the API root, including the version prefix.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds every HTTP request.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// MaxRetries is how many times a rate-limited (429) request is retried.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
}

// WorkflowConfig holds settings for the submission workflow.
type WorkflowConfig struct {
	// AdvanceDelayMs is the pause between a successful submission and
	// automatic navigation to the next task in the sequence.
	AdvanceDelayMs int `mapstructure:"advance_delay_ms" yaml:"advance_delay_ms"`
}

// NotificationsConfig holds settings for notification synchronization.
type NotificationsConfig struct {
	// PollIntervalSec is how often notifications and tasks are refetched
	// in the background. Zero selects the default of 60 seconds.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
}

// CacheConfig holds settings for the session cache database.
type CacheConfig struct {
	// Path is the SQLite DSN. The default ":memory:" keeps the cache
	// scoped to the running process.
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API           APIConfig           `mapstructure:"api" yaml:"api"`
	Workflow      WorkflowConfig      `mapstructure:"workflow" yaml:"workflow"`
	Notifications NotificationsConfig `mapstructure:"notifications" yaml:"notifications"`
	Cache         CacheConfig         `mapstructure:"cache" yaml:"cache"`
	Log           LogConfig           `mapstructure:"log" yaml:"log"`
	Display       DisplayConfig       `mapstructure:"display" yaml:"display"`
}

// RequestTimeout returns the HTTP timeout as a duration.
func (c *AppConfig) RequestTimeout() time.Duration {
	return time.Duration(c.API.TimeoutSec) * time.Second
}

// AdvanceDelay returns the auto-advance delay as a duration.
func (c *AppConfig) AdvanceDelay() time.Duration {
	return time.Duration(c.Workflow.AdvanceDelayMs) * time.Millisecond
}

// PollInterval returns the background notification refresh interval.
func (c *AppConfig) PollInterval() time.Duration {
	return time.Duration(c.Notifications.PollIntervalSec) * time.Second
}

// ConfigDir returns ~/.config/ambassador.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "ambassador")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/ambassador/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		API: APIConfig{
			BaseURL:    "http://localhost:3000/api/v1",
			TimeoutSec: 30,
			MaxRetries: 3,
		},
		Workflow:      WorkflowConfig{AdvanceDelayMs: 1500},
		Notifications: NotificationsConfig{PollIntervalSec: 60},
		Cache:         CacheConfig{Path: ":memory:"},
		Log:           LogConfig{Level: "info", Format: "text"},
		Display:       DisplayConfig{Theme: "default"},
	}
}

func setDefaults(v *viper.Viper) {
	d := defaultAppConfig()
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.timeout_sec", d.API.TimeoutSec)
	v.SetDefault("api.max_retries", d.API.MaxRetries)
	v.SetDefault("workflow.advance_delay_ms", d.Workflow.AdvanceDelayMs)
	v.SetDefault("notifications.poll_interval_sec", d.Notifications.PollIntervalSec)
	v.SetDefault("cache.path", d.Cache.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("display.theme", d.Display.Theme)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with AMBASSADOR_ override file values.
// If the file does not exist, defaults (plus environment overrides) are used.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		_, isPathErr := err.(*os.PathError)
		_, isNotFound := err.(viper.ConfigFileNotFoundError)
		if !isPathErr && !isNotFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.API.TimeoutSec <= 0 {
		cfg.API.TimeoutSec = 30
	}
	if cfg.API.MaxRetries < 0 {
		cfg.API.MaxRetries = 0
	}
	if cfg.Workflow.AdvanceDelayMs < 0 {
		cfg.Workflow.AdvanceDelayMs = 0
	}
	if cfg.Notifications.PollIntervalSec < 0 {
		cfg.Notifications.PollIntervalSec = 0
	}
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = ":memory:"
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("workflow", cfg.Workflow)
	v.Set("notifications", cfg.Notifications)
	v.Set("cache", cfg.Cache)
	v.Set("log", cfg.Log)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
