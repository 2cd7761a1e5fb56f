// Package config loads wisdom settings from defaults, a YAML file and the
// environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/rcliao/wisdom/internal/remote"
)

// Config holds all wisdom settings.
type Config struct {
	DBPath      string `yaml:"db_path" validate:"required"`
	CatalogPath string `yaml:"catalog_path"`
	LogLevel    string `yaml:"log_level" validate:"oneof=debug info warn error"`

	Remote RemoteConfig `yaml:"remote"`
	Sync   SyncConfig   `yaml:"sync"`
}

// RemoteConfig configures the hosted reflection service.
type RemoteConfig struct {
	URL         string        `yaml:"url" validate:"omitempty,url"`
	AnonKey     string        `yaml:"anon_key" validate:"required_with=URL"`
	AccessToken string        `yaml:"access_token"`
	Table       string        `yaml:"table" validate:"required"`
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
}

// SyncConfig configures periodic sync.
type SyncConfig struct {
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
}

// Dir returns the per-user wisdom directory.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".wisdom")
}

// DefaultPath is where Load looks when no file is named.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		DBPath:   filepath.Join(Dir(), "wisdom.db"),
		LogLevel: "warn",
		Remote: RemoteConfig{
			Table:   remote.DefaultTable,
			Timeout: remote.DefaultTimeout,
		},
		Sync: SyncConfig{
			Interval: 5 * time.Minute,
		},
	}
}

// Load builds the configuration. An empty path reads DefaultPath if it
// exists; a named file must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("WISDOM_DB"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("WISDOM_CATALOG"); v != "" {
		c.CatalogPath = v
	}
	if v := os.Getenv("WISDOM_LOG_LEVEL"); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("SUPABASE_URL"); v != "" {
		c.Remote.URL = v
	}
	if v := os.Getenv("SUPABASE_ANON_KEY"); v != "" {
		c.Remote.AnonKey = v
	}
	if v := os.Getenv("SUPABASE_ACCESS_TOKEN"); v != "" {
		c.Remote.AccessToken = v
	}
	if v := os.Getenv("WISDOM_SUPABASE_TABLE"); v != "" {
		c.Remote.Table = v
	}
	if v := os.Getenv("WISDOM_REMOTE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("WISDOM_REMOTE_TIMEOUT: %w", err)
		}
		c.Remote.Timeout = d
	}
	return nil
}

var validate = validator.New()

// Validate checks the configuration.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldError(fe))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func fieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "required_with":
		return fmt.Sprintf("%s is required when %s is set", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "url":
		return field + " must be a URL"
	case "gt":
		return field + " must be positive"
	default:
		return field + " is invalid"
	}
}

// RemoteClientConfig returns the remote client settings.
func (c *Config) RemoteClientConfig() remote.Config {
	return remote.Config{
		URL:         c.Remote.URL,
		Key:         c.Remote.AnonKey,
		AccessToken: c.Remote.AccessToken,
		Table:       c.Remote.Table,
		Timeout:     c.Remote.Timeout,
		Breaker:     remote.DefaultBreakerConfig(),
	}
}

// RemoteConfigured reports whether sync can reach a backend.
func (c *Config) RemoteConfigured() bool {
	return c.RemoteClientConfig().Configured()
}

// NewLogger builds a production zap logger writing to stderr at the
// configured level.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.Sampling = nil
	return zc.Build()
}
