package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"sessionimport/internal/fileutil"
	"sessionimport/internal/importer"
	"sessionimport/internal/services"
)

const (
	currentSourceDir = "current_source"
	checksumFileName = "checksum"
	locationFileName = "location"
	sourcesDir       = "sources"
)

// FileTransferer compares the digest of a unit's source files with the digest
// recorded at its destination and copies sources on request.
type FileTransferer struct {
	fs         afero.Fs
	sourceRoot string
	templates  []string
	params     importer.Params
	dest       string
}

// transfer describes one completed copy.
type transfer struct {
	Dir      string
	Files    []string
	Checksum string
}

// Sources returns the matched source files. No match is an ErrNotTransferable failure.
func (t *FileTransferer) Sources(ctx context.Context) ([]string, error) {
	files, err := resolveSources(ctx, t.fs, t.sourceRoot, t.templates, t.params)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "transfer", "resolve sources", "", err)
	}
	if len(files) == 0 {
		return nil, services.Wrap(services.ErrNotTransferable, "transfer", "resolve sources",
			fmt.Sprintf("no source files match %s under %s", strings.Join(t.templates, ", "), t.sourceRoot), nil)
	}
	return files, nil
}

// CheckChecksums reports whether the sources differ from the last transfer.
func (t *FileTransferer) CheckChecksums(ctx context.Context) (bool, error) {
	files, err := t.Sources(ctx)
	if err != nil {
		return false, err
	}
	digest, err := fileutil.HashFiles(t.fs, t.sourceRoot, files)
	if err != nil {
		return false, fmt.Errorf("compute source checksum: %w", err)
	}
	recorded, err := t.RecordedChecksum()
	if err != nil {
		return false, err
	}
	return recorded != digest, nil
}

// RecordedChecksum returns the digest stored by the last transfer, or "" if none.
func (t *FileTransferer) RecordedChecksum() (string, error) {
	data, err := afero.ReadFile(t.fs, filepath.Join(t.dest, currentSourceDir, checksumFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read recorded checksum: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Transfer copies the sources into sources/<stamp> and records their digest.
func (t *FileTransferer) Transfer(ctx context.Context, stamp string) (transfer, error) {
	files, err := t.Sources(ctx)
	if err != nil {
		return transfer{}, err
	}
	for _, path := range files {
		info, err := t.fs.Stat(path)
		if err != nil {
			return transfer{}, fmt.Errorf("stat source: %w", err)
		}
		if info.Size() == 0 {
			return transfer{}, services.Wrap(services.ErrNotTransferable, "transfer", "validate sources",
				fmt.Sprintf("source file %s is empty", path), nil)
		}
	}

	dir := filepath.Join(t.dest, sourcesDir, stamp)
	copied := make([]string, 0, len(files))
	rels := make([]string, 0, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return transfer{}, err
		}
		rel, err := filepath.Rel(t.sourceRoot, path)
		if err != nil {
			return transfer{}, fmt.Errorf("relative source path: %w", err)
		}
		target := filepath.Join(dir, rel)
		if _, err := fileutil.CopyFileVerified(t.fs, path, target); err != nil {
			return transfer{}, fmt.Errorf("copy %s: %w", rel, err)
		}
		copied = append(copied, target)
		rels = append(rels, filepath.ToSlash(rel))
	}

	digest, err := fileutil.HashFiles(t.fs, dir, copied)
	if err != nil {
		return transfer{}, fmt.Errorf("compute transferred checksum: %w", err)
	}
	current := filepath.Join(t.dest, currentSourceDir)
	if err := t.fs.MkdirAll(current, 0o755); err != nil {
		return transfer{}, fmt.Errorf("ensure current source dir: %w", err)
	}
	if err := afero.WriteFile(t.fs, filepath.Join(current, locationFileName), []byte(stamp+"\n"), 0o644); err != nil {
		return transfer{}, fmt.Errorf("record source location: %w", err)
	}
	if err := afero.WriteFile(t.fs, filepath.Join(current, checksumFileName), []byte(digest+"\n"), 0o644); err != nil {
		return transfer{}, fmt.Errorf("record checksum: %w", err)
	}
	return transfer{Dir: dir, Files: rels, Checksum: digest}, nil
}
