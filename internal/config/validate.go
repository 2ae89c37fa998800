package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateClustering(); err != nil {
		return err
	}
	if err := c.validateMatching(); err != nil {
		return err
	}
	if err := c.validateIdentify(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateClustering() error {
	if c.Clustering.MaxGapMinutes <= 0 {
		return errors.New("clustering.max_gap_minutes must be positive")
	}
	if c.Clustering.RadiusKM <= 0 {
		return errors.New("clustering.radius_km must be positive")
	}
	return nil
}

func (c *Config) validateMatching() error {
	if c.Matching.BufferMinutes < 0 {
		return errors.New("matching.buffer_minutes must be >= 0")
	}
	return nil
}

func (c *Config) validateIdentify() error {
	if c.Identify.HighConfidence < 0 || c.Identify.HighConfidence > 1 {
		return errors.New("identify.high_confidence must be between 0 and 1")
	}
	if c.Identify.TimeoutSeconds <= 0 {
		return errors.New("identify.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
