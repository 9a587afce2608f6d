// Package logging assembles structured slog loggers and formatting helpers used
// across the automator.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so importer code can tag log
// lines with run IDs, subjects, importer kinds, and stages. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
