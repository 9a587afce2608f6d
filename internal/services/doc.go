// Package services defines shared utilities consumed by the importer handles,
// the reference pipelines, and the automator.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, subjects, importer kinds, and stage
//     names for logging.
//   - Structured error markers plus the Wrap helper so a pipeline can declare
//     a failure as "not transferable" (a business outcome) rather than a
//     processing fault.
//
// Use these helpers when wiring new pipeline logic so error classification and
// observability stay uniform across importers.
package services
