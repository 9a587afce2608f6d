package automator

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"sessionimport/internal/config"
	"sessionimport/internal/importer"
	"sessionimport/internal/index"
	"sessionimport/internal/logging"
)

// Phase names one population pass.
type Phase string

const (
	PhaseMontage Phase = "montage"
	PhaseEvents  Phase = "events"
	PhaseFuture  Phase = "future"
)

// Phases returns every phase in population order.
func Phases() []Phase {
	return []Phase{PhaseMontage, PhaseEvents, PhaseFuture}
}

// ParsePhase resolves a phase name.
func ParsePhase(value string) (Phase, error) {
	phase := Phase(strings.ToLower(strings.TrimSpace(value)))
	if !slices.Contains(Phases(), phase) {
		return "", fmt.Errorf("unknown phase %q (want montage, events or future)", value)
	}
	return phase, nil
}

// Automator enumerates and runs the import work for one protocol.
type Automator struct {
	protocol string
	index    index.Reader
	registry *importer.Registry
	logger   *slog.Logger

	includeTransferred bool
	experiments        []string
	mathTasks          map[string]struct{}
	workers            int
	phases             []Phase

	importers []*importer.Importer
}

// Option configures optional Automator behavior.
type Option func(*Automator)

// WithIncludeTransferred keeps clean montage handles that need no transfer.
func WithIncludeTransferred(include bool) Option {
	return func(a *Automator) {
		a.includeTransferred = include
	}
}

// WithExperiments sets the experiments that receive next-session imports.
func WithExperiments(experiments ...string) Option {
	return func(a *Automator) {
		a.experiments = slices.Clone(experiments)
	}
}

// WithMathTasks sets the experiments whose events carry math distractor data.
func WithMathTasks(tasks ...string) Option {
	return func(a *Automator) {
		a.mathTasks = make(map[string]struct{}, len(tasks))
		for _, task := range tasks {
			a.mathTasks[task] = struct{}{}
		}
	}
}

// WithWorkers bounds how many handles run at once.
func WithWorkers(n int) Option {
	return func(a *Automator) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithPhases limits population to the given phases.
func WithPhases(phases ...Phase) Option {
	return func(a *Automator) {
		if len(phases) > 0 {
			a.phases = slices.Clone(phases)
		}
	}
}

// WithLogger sets the logger used for decisions and run outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Automator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New constructs an automator scoped to protocol's records in reader.
func New(protocol string, reader index.Reader, registry *importer.Registry, opts ...Option) *Automator {
	a := &Automator{
		protocol: protocol,
		index:    reader.Filtered(index.Protocol(protocol)),
		registry: registry,
		logger:   logging.NewNop(),
		workers:  1,
		phases:   Phases(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logging.NewComponentLogger(a.logger, "automator").With(logging.String("protocol", protocol))
	return a
}

// NewFromConfig applies the automation section of cfg.
func NewFromConfig(cfg *config.Config, reader index.Reader, registry *importer.Registry, opts ...Option) *Automator {
	protocol := cfg.Automation.Protocol
	base := []Option{
		WithIncludeTransferred(cfg.Automation.IncludeTransferred),
		WithExperiments(cfg.FutureExperiments(protocol)...),
		WithMathTasks(cfg.Automation.MathTasks...),
		WithWorkers(cfg.Automation.Workers),
	}
	return New(protocol, reader, registry, append(base, opts...)...)
}

// Protocol returns the protocol the automator is scoped to.
func (a *Automator) Protocol() string { return a.protocol }

// Importers returns the retained handles in insertion order.
func (a *Automator) Importers() []*importer.Importer {
	return slices.Clone(a.importers)
}

func (a *Automator) isMathTask(experiment string) bool {
	_, ok := a.mathTasks[experiment]
	return ok
}

func (a *Automator) phaseEnabled(phase Phase) bool {
	return slices.Contains(a.phases, phase)
}
