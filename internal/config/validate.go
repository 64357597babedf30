package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateConnectivity(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	if c.Analysis.BaseURL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/swinglab/config.toml"
		}
		return fmt.Errorf("analysis.base_url is required. Edit %s (create with 'swinglab config init')", defaultPath)
	}
	parsed, err := url.Parse(c.Analysis.BaseURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("analysis.base_url %q must be an http(s) URL", c.Analysis.BaseURL)
	}
	return nil
}

func (c *Config) validateConnectivity() error {
	if c.Connectivity.DebounceMillis > 60_000 {
		return errors.New("connectivity.debounce_ms must not exceed 60000")
	}
	if c.Connectivity.ProbeIntervalMillis > 600_000 {
		return errors.New("connectivity.probe_interval_ms must not exceed 600000")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
