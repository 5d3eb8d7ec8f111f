// Package naming resolves where outputs go: the run's output directory,
// each image's mirrored destination and the archive path for a finished
// folder.
//
// Destinations keep the source's base name unchanged, so an output folder
// can be diffed against its input folder name for name.
package naming
