package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateAutomation(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DBRoot) == "" {
		return errors.New("paths.db_root must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateAutomation() error {
	if c.Automation.Protocol == "" {
		return errors.New("automation.protocol must be set")
	}
	if c.Automation.Workers < 1 {
		return fmt.Errorf("automation.workers must be at least 1 (got %d)", c.Automation.Workers)
	}
	for protocol, experiments := range c.Automation.Experiments {
		if len(experiments) == 0 {
			return fmt.Errorf("automation.experiments.%s must list at least one experiment", protocol)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (expected console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
