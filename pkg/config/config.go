// Package config loads gateway configuration from a YAML file with
// environment overrides.
package config

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "github.com/pagegate/pagegate/pkg/errors"
)

// Config is the full gateway configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Notion NotionConfig `yaml:"notion"`
	Users  UsersConfig  `yaml:"users"`
	Audit  AuditConfig  `yaml:"audit"`
	Log    LogConfig    `yaml:"log"`
	Limits LimitsConfig `yaml:"limits"`
}

type ServerConfig struct {
	Bind           string   `yaml:"bind"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	PublicMetrics  bool     `yaml:"public_metrics"`
}

type NotionConfig struct {
	Token          string `yaml:"token"`
	BaseURL        string `yaml:"base_url"`
	Version        string `yaml:"version"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type UsersConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type LogConfig struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// LimitsConfig bounds follow-up message throughput per credential.
type LimitsConfig struct {
	MessagesPerSecond float64 `yaml:"messages_per_second"`
	Burst             int     `yaml:"burst"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: ":3000",
		},
		Notion: NotionConfig{
			BaseURL:        "https://api.notion.com",
			Version:        "2022-06-28",
			TimeoutSeconds: 30,
		},
		Users: UsersConfig{
			Path:  "users.json",
			Watch: true,
		},
		Audit: AuditConfig{
			Enabled: false,
			Path:    "audit.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Limits: LimitsConfig{
			MessagesPerSecond: 10,
			Burst:             20,
		},
	}
}

// Load reads configuration from path, layering file values over defaults and
// environment overrides over both. An empty path skips the file entirely.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, apperrors.Wrap(err, apperrors.ErrCodeConfigLoad, "read config file")
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, apperrors.Wrap(err, apperrors.ErrCodeConfigLoad, "parse config file")
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("NOTION_API_KEY"); v != "" {
		cfg.Notion.Token = v
	}
	if v := os.Getenv("PAGEGATE_BIND"); v != "" {
		cfg.Server.Bind = v
	} else if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Bind = ":" + port
	}
	if v := os.Getenv("PAGEGATE_USERS_FILE"); v != "" {
		cfg.Users.Path = v
	}
	if v := os.Getenv("PAGEGATE_AUDIT_DB"); v != "" {
		cfg.Audit.Path = v
		cfg.Audit.Enabled = true
	}
	if v := os.Getenv("PAGEGATE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("PAGEGATE_ALLOWED_ORIGINS"); v != "" {
		parts := strings.Split(v, ",")
		origins := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				origins = append(origins, p)
			}
		}
		cfg.Server.AllowedOrigins = origins
	}
	if v := os.Getenv("PAGEGATE_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Limits.MessagesPerSecond = f
		}
	}
}

// Validate checks the fields the serving path cannot run without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Notion.Token) == "" {
		return apperrors.New(apperrors.ErrCodeConfigInvalid, "notion token is required (set NOTION_API_KEY or notion.token)")
	}
	if strings.TrimSpace(c.Server.Bind) == "" {
		return apperrors.New(apperrors.ErrCodeConfigInvalid, "server bind address is required")
	}
	if strings.TrimSpace(c.Users.Path) == "" {
		return apperrors.New(apperrors.ErrCodeConfigInvalid, "users file path is required")
	}
	if c.Limits.MessagesPerSecond <= 0 {
		return apperrors.New(apperrors.ErrCodeConfigInvalid, "messages_per_second must be positive")
	}
	if c.Notion.TimeoutSeconds <= 0 {
		return apperrors.New(apperrors.ErrCodeConfigInvalid, "notion timeout must be positive")
	}
	return nil
}
