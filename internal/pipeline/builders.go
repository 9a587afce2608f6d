package pipeline

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/afero"

	"sessionimport/internal/config"
	"sessionimport/internal/importer"
	"sessionimport/internal/index"
	"sessionimport/internal/logging"
	"sessionimport/internal/services"
)

// Option customizes the builders.
type Option func(*builderSet)

// WithClock overrides the clock used for transfer timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *builderSet) {
		if now != nil {
			b.now = now
		}
	}
}

// WithLogger sets the logger pipelines report through.
func WithLogger(logger *slog.Logger) Option {
	return func(b *builderSet) {
		if logger != nil {
			b.logger = logger
		}
	}
}

type builderSet struct {
	cfg    *config.Config
	fs     afero.Fs
	layout Layout
	now    func() time.Time
	logger *slog.Logger
}

// Builders returns a file-backed builder for every importer kind.
func Builders(cfg *config.Config, fsys afero.Fs, opts ...Option) map[importer.Kind]importer.Builder {
	set := &builderSet{
		cfg:    cfg,
		fs:     fsys,
		layout: Layout{Root: cfg.Paths.DBRoot},
		now:    time.Now,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(set)
	}
	set.logger = logging.NewComponentLogger(set.logger, "pipeline")

	builders := make(map[importer.Kind]importer.Builder, len(importer.Kinds()))
	for _, kind := range importer.Kinds() {
		builders[kind] = set.builder(kind)
	}
	return builders
}

// NewRegistry wraps Builders in an importer registry.
func NewRegistry(cfg *config.Config, fsys afero.Fs, opts ...Option) (*importer.Registry, error) {
	return importer.NewRegistry(Builders(cfg, fsys, opts...))
}

func (b *builderSet) builder(kind importer.Kind) importer.Builder {
	return func(p importer.Params) (importer.Pipeline, error) {
		sourceRoot := strings.TrimSpace(b.cfg.Paths.SourceRoot)
		if sourceRoot == "" {
			return nil, services.Wrap(services.ErrConfiguration, "init", kind.String(), "paths.source_root is not set", nil)
		}
		templates := b.cfg.Sources.Patterns(kind.String())
		if len(templates) == 0 {
			return nil, services.Wrap(services.ErrConfiguration, "init", kind.String(),
				fmt.Sprintf("sources.%s has no templates", kind.String()), nil)
		}
		if err := validateParams(kind, p); err != nil {
			return nil, services.Wrap(services.ErrValidation, "init", kind.String(), "", err)
		}
		dest, err := b.layout.Destination(kind, p)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "init", kind.String(), "", err)
		}
		return &FilePipeline{
			kind:   kind,
			params: p,
			fs:     b.fs,
			dest:   dest,
			transferer: &FileTransferer{
				fs:         b.fs,
				sourceRoot: sourceRoot,
				templates:  templates,
				params:     p,
				dest:       dest,
			},
			now:    b.now,
			logger: b.logger,
		}, nil
	}
}

func validateParams(kind importer.Kind, p importer.Params) error {
	var missing []string
	if strings.TrimSpace(p.Protocol) == "" {
		missing = append(missing, "protocol")
	}
	if strings.TrimSpace(p.Subject) == "" {
		missing = append(missing, "subject")
	}
	switch kind {
	case importer.Montage:
		if strings.TrimSpace(p.Montage) == "" {
			missing = append(missing, "montage")
		}
	default:
		if strings.TrimSpace(p.Experiment) == "" {
			missing = append(missing, "experiment")
		}
		if p.Session == nil {
			missing = append(missing, "session")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required params: %s", strings.Join(missing, ", "))
	}
	if kind == importer.Montage {
		if _, _, ok := index.ParseMontage(p.Montage); !ok {
			return fmt.Errorf("malformed montage %q, want <localization>.<montage>", p.Montage)
		}
	}
	if p.Session != nil && *p.Session < 0 {
		return fmt.Errorf("session %d is negative", *p.Session)
	}
	if p.OriginalSession != nil && *p.OriginalSession < 0 {
		return fmt.Errorf("original session %d is negative", *p.OriginalSession)
	}
	return nil
}
