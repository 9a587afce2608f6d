package importer

import (
	"context"
	"errors"
	"fmt"

	"sessionimport/internal/services"
)

// TransferState is the memoized checksum verdict.
type TransferState int

const (
	TransferUnknown TransferState = iota
	TransferNotNeeded
	TransferNeeded
)

func (s TransferState) String() string {
	switch s {
	case TransferNeeded:
		return "needed"
	case TransferNotNeeded:
		return "not_needed"
	default:
		return "unknown"
	}
}

// Stage names one of the four error slots.
type Stage string

const (
	StageInit       Stage = "init"
	StageCheck      Stage = "check"
	StageTransfer   Stage = "transfer"
	StageProcessing Stage = "processing"
)

// Errors holds the per-stage failures of one importer. More than one slot may
// be set at a time.
type Errors struct {
	Init       error
	Check      error
	Transfer   error
	Processing error
}

// StageError pairs a populated slot with its stage.
type StageError struct {
	Stage Stage
	Err   error
}

// Any reports whether any slot is populated.
func (e Errors) Any() bool {
	return e.Init != nil || e.Check != nil || e.Transfer != nil || e.Processing != nil
}

// List returns the populated slots in stage order.
func (e Errors) List() []StageError {
	var out []StageError
	for _, entry := range []StageError{
		{StageInit, e.Init},
		{StageCheck, e.Check},
		{StageTransfer, e.Transfer},
		{StageProcessing, e.Processing},
	} {
		if entry.Err != nil {
			out = append(out, entry)
		}
	}
	return out
}

// Importer is the handle for one unit of work.
type Importer struct {
	kind     Kind
	params   Params
	pipeline Pipeline

	initialized    bool
	errs           Errors
	shouldTransfer TransferState
	transferred    bool
	processed      bool
}

// New builds the pipeline for kind. It fails only when kind has no registered
// builder; builder failures are captured in the init slot and the handle is
// returned uninitialized.
func New(reg *Registry, kind Kind, params Params) (*Importer, error) {
	builder, ok := reg.lookup(kind)
	if !ok {
		return nil, fmt.Errorf("%w: cannot build importer for %s", ErrUnknownKind, kind)
	}

	imp := &Importer{kind: kind, params: params}
	pipeline, err := build(builder, params)
	switch {
	case err != nil:
		imp.errs.Init = err
	case pipeline == nil:
		imp.errs.Init = errors.New("builder returned no pipeline")
	case pipeline.Transferer() == nil:
		imp.errs.Init = errors.New("pipeline has no transferer")
	default:
		imp.pipeline = pipeline
		imp.initialized = true
	}
	return imp, nil
}

func build(builder Builder, params Params) (pipeline Pipeline, err error) {
	defer func() {
		if r := recover(); r != nil {
			pipeline, err = nil, fmt.Errorf("builder panicked: %v", r)
		}
	}()
	return builder(params)
}

// Check recomputes the checksum verdict and overwrites the memo. A failed
// check records the check error and resolves to "no transfer". A successful
// recheck clears any earlier check error, so a needed verdict never sits next
// to a check error.
func (i *Importer) Check(ctx context.Context) bool {
	if !i.initialized {
		return false
	}
	needed, err := i.checkChecksums(ctx)
	if err != nil {
		i.errs.Check = err
		i.shouldTransfer = TransferNotNeeded
		return false
	}
	i.errs.Check = nil
	if needed {
		i.shouldTransfer = TransferNeeded
	} else {
		i.shouldTransfer = TransferNotNeeded
	}
	return needed
}

func (i *Importer) checkChecksums(ctx context.Context) (needed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			needed, err = false, fmt.Errorf("checksum panicked: %v", r)
		}
	}()
	return i.pipeline.Transferer().CheckChecksums(services.WithStage(ctx, string(StageCheck)))
}

// ShouldTransfer returns the memoized verdict, running Check once if no check
// has happened yet.
func (i *Importer) ShouldTransfer(ctx context.Context) bool {
	if i.initialized && i.shouldTransfer == TransferUnknown {
		i.Check(ctx)
	}
	return i.shouldTransfer == TransferNeeded
}

// Run executes the pipeline. Uninitialized handles do nothing. Each run starts
// from a clean outcome: flags and run error slots from an earlier run are
// cleared first. Failures the pipeline marks as not transferable land in the
// transfer slot, everything else in the processing slot.
func (i *Importer) Run(ctx context.Context) {
	if !i.initialized {
		return
	}
	i.transferred = false
	i.processed = false
	i.errs.Transfer = nil
	i.errs.Processing = nil
	if err := i.runPipeline(ctx); err != nil {
		if services.IsNotTransferable(err) {
			i.errs.Transfer = err
		} else {
			i.errs.Processing = err
		}
		return
	}
	i.transferred = true
	i.processed = true
}

func (i *Importer) runPipeline(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panicked: %v", r)
		}
	}()
	return i.pipeline.Run(ctx)
}

// Kind returns the importer kind.
func (i *Importer) Kind() Kind { return i.kind }

// Label returns the kind's display label.
func (i *Importer) Label() string { return i.kind.Label() }

// Params returns the identity parameters the handle was built with.
func (i *Importer) Params() Params { return i.params }

func (i *Importer) Subject() string { return i.params.Subject }

// Initialized reports whether the pipeline was built.
func (i *Importer) Initialized() bool { return i.initialized }

func (i *Importer) Errors() Errors { return i.errs }

// Errored reports whether any stage slot holds an error.
func (i *Importer) Errored() bool { return i.errs.Any() }

// TransferState returns the memoized verdict without running a check.
func (i *Importer) TransferState() TransferState { return i.shouldTransfer }

func (i *Importer) Transferred() bool { return i.transferred }

func (i *Importer) Processed() bool { return i.processed }
