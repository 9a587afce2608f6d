package index

import (
	"errors"
	"fmt"
	"strconv"

	"sessionimport/internal/services"
)

// ErrNotFound is returned by Value when no record in view carries the field.
var ErrNotFound = fmt.Errorf("index value %w", services.ErrNotFound)

// Reader is a read-only view over index records.
type Reader interface {
	Protocols() []string
	Subjects() []string
	Experiments() []string
	Sessions() []int
	Montages() []string
	Filtered(criteria ...Criterion) Reader
	Value(field string, criteria ...Criterion) (string, error)
}

type level int

const (
	levelProtocol level = iota
	levelSubject
	levelExperiment
	levelSession
	levelMontage
)

// Criterion fixes one level of the hierarchy to a value.
type Criterion struct {
	level level
	value string
}

func Protocol(name string) Criterion   { return Criterion{levelProtocol, name} }
func Subject(name string) Criterion    { return Criterion{levelSubject, name} }
func Experiment(name string) Criterion { return Criterion{levelExperiment, name} }
func Session(number int) Criterion     { return Criterion{levelSession, strconv.Itoa(number)} }
func Montage(version string) Criterion { return Criterion{levelMontage, version} }

// IntValue looks up field and parses it as an integer.
func IntValue(r Reader, field string, criteria ...Criterion) (int, error) {
	raw, err := r.Value(field, criteria...)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		if f, ferr := strconv.ParseFloat(raw, 64); ferr == nil && f == float64(int(f)) {
			return int(f), nil
		}
		return 0, fmt.Errorf("index field %s=%q is not an integer: %w", field, raw, err)
	}
	return n, nil
}

// IsNotFound reports whether err means the field is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
