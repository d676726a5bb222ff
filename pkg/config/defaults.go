package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultPort         = 5555
	DefaultServerName   = "SSE-Test-Server"
	DefaultLogLevel     = "info"
	DefaultCloseAfterMs = 5000
	DefaultTickInterval = 1 * time.Second
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.ServerName == "" {
		c.ServerName = DefaultServerName
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Events.DefaultCloseAfterMs == 0 {
		c.Events.DefaultCloseAfterMs = DefaultCloseAfterMs
	}
	if c.Events.TickInterval == 0 {
		c.Events.TickInterval = DefaultTickInterval
	}
}
