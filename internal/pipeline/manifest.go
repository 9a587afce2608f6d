package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

const (
	manifestVersion  = 1
	processedDir     = "current_processed"
	manifestFileName = "manifest.json"
)

// Manifest records what a processing run consumed.
type Manifest struct {
	Version     int               `json:"version"`
	Kind        string            `json:"kind"`
	Params      map[string]string `json:"params"`
	SourceDir   string            `json:"source_dir"`
	Checksum    string            `json:"checksum"`
	Files       []string          `json:"files"`
	DoMath      bool              `json:"do_math,omitempty"`
	DoCompare   bool              `json:"do_compare,omitempty"`
	ProcessedAt time.Time         `json:"processed_at"`
}

func writeManifest(fsys afero.Fs, dest string, manifest Manifest) error {
	payload, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	dir := filepath.Join(dest, processedDir)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure processed dir: %w", err)
	}
	tmp := filepath.Join(dir, fmt.Sprintf(".manifest-%d.tmp", manifest.ProcessedAt.UnixNano()))
	if err := afero.WriteFile(fsys, tmp, payload, 0o644); err != nil {
		return fmt.Errorf("write manifest temp: %w", err)
	}
	if err := fsys.Rename(tmp, filepath.Join(dir, manifestFileName)); err != nil {
		_ = fsys.Remove(tmp)
		return fmt.Errorf("rename manifest: %w", err)
	}
	return nil
}

// LoadManifest reads the processing manifest under dest. The boolean is false
// when the unit has never been processed.
func LoadManifest(fsys afero.Fs, dest string) (Manifest, bool, error) {
	payload, err := afero.ReadFile(fsys, filepath.Join(dest, processedDir, manifestFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Manifest{}, false, nil
		}
		return Manifest{}, false, fmt.Errorf("read manifest: %w", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(payload, &manifest); err != nil {
		return Manifest{}, true, fmt.Errorf("decode manifest: %w", err)
	}
	if manifest.Version != manifestVersion {
		return Manifest{}, true, fmt.Errorf("unsupported manifest version %d", manifest.Version)
	}
	return manifest, true, nil
}
