package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sessionimport/internal/config"
	"sessionimport/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	indexPath  string
}

const testIndex = `{
  "protocols": {
    "r1": {
      "subjects": {
        "R1001P": {
          "experiments": {
            "FR1": {
              "sessions": {
                "0": {"subject_alias": "R1001P", "localization": "0", "montage": "0", "original_session": 0}
              }
            }
          }
        }
      }
    }
  }
}
`

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	t.Setenv("AUTOMATOR_DB_ROOT", "")
	t.Setenv("AUTOMATOR_SOURCE_ROOT", "")

	cfg := testsupport.NewConfig(t, testsupport.WithExperiments("r1", "FR1"))
	base := testsupport.BaseDir(cfg)
	cfg.Paths.IndexPath = filepath.Join(base, "index.json")
	cfg.Logging.Level = "error"

	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	if err := os.WriteFile(cfg.Paths.IndexPath, []byte(testIndex), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, indexPath: cfg.Paths.IndexPath}
}

// writeSources lays out the raw files for R1001P's montage and FR1 session 0.
func (e *cliTestEnv) writeSources(t *testing.T) {
	t.Helper()
	root := e.cfg.Paths.SourceRoot
	for path, content := range map[string]string{
		"R1001P/tal/VOX_coords_mother.txt":            "LA1 10 20 30\n",
		"R1001P/docs/jacksheet.txt":                   "1 LA1\n",
		"R1001P/behavioral/FR1/session_0/session.log": "0\tSESS_START\n",
	} {
		full := filepath.Join(root, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", filepath.Dir(full), err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", full, err)
		}
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
