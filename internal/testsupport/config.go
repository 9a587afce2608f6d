package testsupport

import (
	"path/filepath"
	"testing"

	"sessionimport/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DBRoot = filepath.Join(base, "db")
	cfgVal.Paths.SourceRoot = filepath.Join(base, "raw")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.HistoryPath = filepath.Join(base, "logs", "history.db")
	cfgVal.Logging.Level = "debug"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithSourceRoot overrides paths.source_root; an empty value unsets it.
func WithSourceRoot(path string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.SourceRoot = path
	}
}

// WithIndexPath points paths.index_path at path.
func WithIndexPath(path string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.IndexPath = path
	}
}

// WithExperiments replaces the future-session experiments for protocol.
func WithExperiments(protocol string, experiments ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Automation.Experiments = map[string][]string{protocol: experiments}
	}
}

// WithWorkers sets automation.workers.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Automation.Workers = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DBRoot)
}
