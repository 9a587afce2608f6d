package importer

import "context"

// Transferer decides whether source data differs from what the repository holds.
type Transferer interface {
	CheckChecksums(ctx context.Context) (bool, error)
}

// Pipeline transfers and processes one unit of work.
//
// Run should tag failures where the source data itself is unacceptable with
// services.ErrNotTransferable; any other error is treated as a processing fault.
type Pipeline interface {
	Transferer() Transferer
	Run(ctx context.Context) error
}

// Builder constructs the pipeline for one unit of work.
type Builder func(Params) (Pipeline, error)
