package config

import (
	"fmt"
	"log/slog"
	"time"
)

// Config is the top-level server configuration.
type Config struct {
	Host        string         `yaml:"host"`
	Port        int            `yaml:"port"`
	ServerName  string         `yaml:"server_name"`
	IdleTimeout time.Duration  `yaml:"idle_timeout"`
	LogLevel    string         `yaml:"log_level"`
	Events      EventsConfig   `yaml:"events"`
	NotFound    NotFoundConfig `yaml:"not_found"`
}

// EventsConfig controls the /api/events stream.
type EventsConfig struct {
	DefaultCloseAfterMs int           `yaml:"default_close_after_ms"`
	TickInterval        time.Duration `yaml:"tick_interval"`
}

// NotFoundConfig controls recording of unmatched requests.
type NotFoundConfig struct {
	LogDir string `yaml:"log_dir"`
	// BodyFilter is a jsonfilter expression; only matching request bodies are recorded.
	BodyFilter map[string]interface{} `yaml:"body_filter"`
}

// Addr returns the listen address. An empty host binds all interfaces.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Level parses LogLevel into a slog level.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}
