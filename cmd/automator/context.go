package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"sessionimport/internal/automator"
	"sessionimport/internal/config"
	"sessionimport/internal/history"
	"sessionimport/internal/importer"
	"sessionimport/internal/index"
	"sessionimport/internal/logging"
	"sessionimport/internal/pipeline"
)

type rootFlags struct {
	config   string
	protocol string
	format   string
	logLevel string
}

type commandContext struct {
	flags *rootFlags
	fs    afero.Fs

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(flags *rootFlags) *commandContext {
	return &commandContext{
		flags: flags,
		fs:    afero.NewOsFs(),
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = err
			return
		}
		if protocol := strings.TrimSpace(c.flags.protocol); protocol != "" {
			cfg.Automation.Protocol = protocol
		}
		if level := strings.TrimSpace(c.flags.logLevel); level != "" {
			cfg.Logging.Level = strings.ToLower(level)
			if err := cfg.Validate(); err != nil {
				c.configErr = err
				return
			}
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) loggerFor(component string) *slog.Logger {
	c.loggerOnce.Do(func() {
		logger, err := logging.NewFromConfig(c.config)
		if err != nil {
			logger = logging.NewNop()
		}
		c.logger = logger
	})
	return logging.NewComponentLogger(c.logger, component)
}

func (c *commandContext) outputFormat() outputFormat {
	format, _ := parseOutputFormat(c.flags.format)
	return format
}

func (c *commandContext) loadIndex(cfg *config.Config) (*index.Index, string, error) {
	path := cfg.ResolveIndexPath(cfg.Automation.Protocol)
	ix, err := index.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("load index for protocol %s: %w", cfg.Automation.Protocol, err)
	}
	return ix, path, nil
}

func (c *commandContext) registry(cfg *config.Config) (*importer.Registry, error) {
	return pipeline.NewRegistry(cfg, c.fs, pipeline.WithLogger(c.loggerFor("cli")))
}

func (c *commandContext) newAutomator(cfg *config.Config, phases []automator.Phase) (*automator.Automator, error) {
	ix, _, err := c.loadIndex(cfg)
	if err != nil {
		return nil, err
	}
	reg, err := c.registry(cfg)
	if err != nil {
		return nil, err
	}
	return automator.NewFromConfig(cfg, ix, reg,
		automator.WithPhases(phases...),
		automator.WithLogger(c.loggerFor("cli")),
	), nil
}

func (c *commandContext) openHistory(cfg *config.Config) (*history.Store, error) {
	store, err := history.Open(cfg.Paths.HistoryPath)
	if err != nil {
		return nil, fmt.Errorf("open run history: %w", err)
	}
	return store, nil
}

func parsePhases(values []string) ([]automator.Phase, error) {
	phases := make([]automator.Phase, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			phase, err := automator.ParsePhase(part)
			if err != nil {
				return nil, err
			}
			phases = append(phases, phase)
		}
	}
	return phases, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
