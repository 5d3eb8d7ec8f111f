// Package pipeline turns a resolved configuration into work and runs it.
//
// Files:
//   - discover.go: supported-extension filter, flat and nested traversal
//   - runner.go:   the Dispatcher and the top-level Run orchestration
//   - stats.go:    RunStats and the end-of-run summary
//
// Work is split into segments: the whole output in flat mode, or one per
// chapter in nested mode. A segment is archived only when every entry in it
// succeeded and the run was not interrupted.
package pipeline
