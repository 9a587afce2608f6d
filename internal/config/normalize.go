package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAutomation()
	c.normalizeSources()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("AUTOMATOR_DB_ROOT"); ok && strings.TrimSpace(value) != "" {
		c.Paths.DBRoot = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("AUTOMATOR_SOURCE_ROOT"); ok && strings.TrimSpace(value) != "" {
		c.Paths.SourceRoot = strings.TrimSpace(value)
	}

	var err error
	if strings.TrimSpace(c.Paths.DBRoot) == "" {
		c.Paths.DBRoot = defaultDBRoot
	}
	if c.Paths.DBRoot, err = expandPath(strings.TrimSpace(c.Paths.DBRoot)); err != nil {
		return fmt.Errorf("paths.db_root: %w", err)
	}
	if c.Paths.SourceRoot, err = expandPath(strings.TrimSpace(c.Paths.SourceRoot)); err != nil {
		return fmt.Errorf("paths.source_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.IndexPath, err = expandPath(strings.TrimSpace(c.Paths.IndexPath)); err != nil {
		return fmt.Errorf("paths.index_path: %w", err)
	}
	if strings.TrimSpace(c.Paths.HistoryPath) == "" {
		c.Paths.HistoryPath = filepath.Join(c.Paths.LogDir, defaultHistoryName)
	}
	if c.Paths.HistoryPath, err = expandPath(strings.TrimSpace(c.Paths.HistoryPath)); err != nil {
		return fmt.Errorf("paths.history_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeAutomation() {
	c.Automation.Protocol = strings.TrimSpace(c.Automation.Protocol)
	if c.Automation.Protocol == "" {
		c.Automation.Protocol = defaultProtocol
	}
	if c.Automation.Workers <= 0 {
		c.Automation.Workers = defaultWorkers
	}
	if len(c.Automation.MathTasks) == 0 {
		c.Automation.MathTasks = defaultMathTasks()
	} else {
		c.Automation.MathTasks = dedupeTrimmed(c.Automation.MathTasks)
	}
	experiments := make(map[string][]string, len(c.Automation.Experiments))
	for protocol, names := range c.Automation.Experiments {
		key := strings.TrimSpace(protocol)
		if key == "" {
			continue
		}
		experiments[key] = dedupeTrimmed(names)
	}
	c.Automation.Experiments = experiments
}

func (c *Config) normalizeSources() {
	c.Sources.Montage = dedupeTrimmed(c.Sources.Montage)
	c.Sources.BuildEvents = dedupeTrimmed(c.Sources.BuildEvents)
	c.Sources.BuildEphys = dedupeTrimmed(c.Sources.BuildEphys)
	c.Sources.ConvertEvents = dedupeTrimmed(c.Sources.ConvertEvents)
	c.Sources.ConvertEphys = dedupeTrimmed(c.Sources.ConvertEphys)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// ResolveIndexPath returns the index file for protocol, honouring paths.index_path.
func (c *Config) ResolveIndexPath(protocol string) string {
	if c.Paths.IndexPath != "" {
		return c.Paths.IndexPath
	}
	return filepath.Join(c.Paths.DBRoot, fmt.Sprintf(defaultIndexTemplate, protocol))
}

func dedupeTrimmed(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
