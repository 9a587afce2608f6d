package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains repository and log directory configuration.
type Paths struct {
	DBRoot      string `toml:"db_root"`
	SourceRoot  string `toml:"source_root"`
	LogDir      string `toml:"log_dir"`
	IndexPath   string `toml:"index_path"`
	HistoryPath string `toml:"history_path"`
}

// Automation controls how the automator enumerates work units.
type Automation struct {
	Protocol           string              `toml:"protocol"`
	IncludeTransferred bool                `toml:"include_transferred"`
	Workers            int                 `toml:"workers"`
	MathTasks          []string            `toml:"math_tasks"`
	Experiments        map[string][]string `toml:"experiments"`
}

// Sources lists glob templates, relative to paths.source_root, that locate the
// raw inputs for each importer kind.
type Sources struct {
	Montage       []string `toml:"montage"`
	BuildEvents   []string `toml:"build_events"`
	BuildEphys    []string `toml:"build_ephys"`
	ConvertEvents []string `toml:"convert_events"`
	ConvertEphys  []string `toml:"convert_ephys"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the automator.
//
// Configuration sections by subsystem:
//   - Paths: data repository, raw sources, index, logs and run history
//   - Automation: protocol, future-session experiments, math tasks, workers
//   - Sources: per-kind source file templates
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Automation Automation `toml:"automation"`
	Sources    Sources    `toml:"sources"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("automator.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the automator writes to.
// SourceRoot is never created; it belongs to the acquisition systems.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DBRoot, c.Paths.LogDir, filepath.Dir(c.Paths.HistoryPath)} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath returns the repository lock file guarding concurrent automator runs.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DBRoot, ".automator.lock")
}

// LogPath returns the file the automator appends its log to.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "automator.log")
}

// FutureExperiments returns the experiments that receive next-session imports for protocol.
func (c *Config) FutureExperiments(protocol string) []string {
	experiments := c.Automation.Experiments[strings.TrimSpace(protocol)]
	out := make([]string, len(experiments))
	copy(out, experiments)
	return out
}

// Patterns returns the source templates configured for an importer kind slug.
func (s Sources) Patterns(kind string) []string {
	switch kind {
	case "montage":
		return s.Montage
	case "build_events":
		return s.BuildEvents
	case "build_ephys":
		return s.BuildEphys
	case "convert_events":
		return s.ConvertEvents
	case "convert_ephys":
		return s.ConvertEphys
	default:
		return nil
	}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
