// Package main hosts the automator CLI entrypoint and command graph.
//
// The Cobra-based command tree loads configuration and the protocol index,
// builds the importer registry, and hands work to the automator package:
// planning and running imports, importing a single unit, browsing run
// history, and scaffolding configuration.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
