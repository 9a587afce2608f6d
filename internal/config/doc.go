// Package config loads, normalizes, and validates automator configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// AUTOMATOR_DB_ROOT. The Config type centralizes every knob the CLI needs:
// where the data repository and raw source data live, which protocol to
// automate, which experiments receive future-session imports, and how
// source files are located for each importer kind.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
