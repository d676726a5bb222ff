package config

import (
	"errors"
	"fmt"
)

// Validate checks that all values are usable.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.IdleTimeout < 0 {
		return errors.New("idle_timeout must be >= 0")
	}
	if c.Events.DefaultCloseAfterMs < 1 {
		return errors.New("events.default_close_after_ms must be >= 1")
	}
	if c.Events.TickInterval <= 0 {
		return errors.New("events.tick_interval must be > 0")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if len(c.NotFound.BodyFilter) > 0 && c.NotFound.LogDir == "" {
		return errors.New("not_found.body_filter requires not_found.log_dir")
	}
	return nil
}
