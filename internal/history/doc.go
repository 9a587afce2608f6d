// Package history persists automator runs in SQLite.
//
// Each run stores one row with its counts and one row per retained importer
// with the importer's final state and four stage error messages, so past
// reports can be listed and re-rendered without re-scanning the repository.
package history
