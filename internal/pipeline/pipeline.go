package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"sessionimport/internal/importer"
	"sessionimport/internal/logging"
	"sessionimport/internal/services"
)

const stampLayout = "20060102T150405.000000000Z"

// FilePipeline transfers a unit's sources and writes its processing manifest.
type FilePipeline struct {
	kind       importer.Kind
	params     importer.Params
	fs         afero.Fs
	dest       string
	transferer *FileTransferer
	now        func() time.Time
	logger     *slog.Logger
}

// Transferer exposes the checksum comparison.
func (p *FilePipeline) Transferer() importer.Transferer { return p.transferer }

// Run copies the sources and records the processing manifest. Source problems
// carry services.ErrNotTransferable.
func (p *FilePipeline) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logger := logging.WithContext(ctx, p.logger)
	processedAt := p.now().UTC()

	copied, err := p.transferer.Transfer(services.WithStage(ctx, "transfer"), processedAt.Format(stampLayout))
	if err != nil {
		return err
	}
	logger.Debug("sources transferred",
		logging.String("destination", p.dest),
		logging.Int("files", len(copied.Files)),
		logging.String("checksum", copied.Checksum),
	)

	manifest := Manifest{
		Version:     manifestVersion,
		Kind:        p.kind.String(),
		Params:      p.params.Map(),
		SourceDir:   copied.Dir,
		Checksum:    copied.Checksum,
		Files:       copied.Files,
		DoMath:      p.params.DoMath,
		DoCompare:   p.params.DoCompare,
		ProcessedAt: processedAt,
	}
	if err := writeManifest(p.fs, p.dest, manifest); err != nil {
		return services.Wrap(services.ErrTransient, "processing", "write manifest", "", err)
	}
	logger.Info("unit processed",
		logging.String(logging.FieldEventType, "unit_processed"),
		logging.String("destination", p.dest),
	)
	return nil
}
