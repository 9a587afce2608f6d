package importer

import (
	"errors"
	"fmt"
)

// ErrUnknownKind is returned when an importer is requested for a kind with no builder.
var ErrUnknownKind = errors.New("unknown importer kind")

// Registry is an immutable kind to builder table, built once at startup.
type Registry struct {
	builders map[Kind]Builder
}

// NewRegistry copies builders into a read-only registry. Kinds outside the
// closed set and nil builders are rejected.
func NewRegistry(builders map[Kind]Builder) (*Registry, error) {
	table := make(map[Kind]Builder, len(builders))
	for kind, builder := range builders {
		if !kind.Valid() {
			return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
		}
		if builder == nil {
			return nil, fmt.Errorf("builder for %s is nil", kind)
		}
		table[kind] = builder
	}
	return &Registry{builders: table}, nil
}

func (r *Registry) lookup(kind Kind) (Builder, bool) {
	if r == nil {
		return nil, false
	}
	builder, ok := r.builders[kind]
	return builder, ok
}
