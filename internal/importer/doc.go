// Package importer wraps one import pipeline per unit of work.
//
// An Importer owns a pipeline built from an immutable Registry, memoizes the
// pipeline's checksum verdict, and records failures as data in four fixed
// stage slots (init, check, transfer, processing) rather than returning them.
// The only error callers ever see is ErrUnknownKind from New, which signals a
// programming mistake rather than bad data.
//
// The automator builds thousands of handles per pass; keeping failures on the
// handle lets enumeration and execution continue past any single unit.
package importer
