// Package pipeline provides the file-backed import pipelines registered for
// each importer kind.
//
// A pipeline resolves its kind's source templates under paths.source_root,
// decides whether a transfer is needed by comparing a content digest with the
// one recorded at the destination, copies sources into a timestamped
// directory, and writes a processing manifest. All filesystem access goes
// through afero so tests run against an in-memory tree.
package pipeline
