// Package upscaler runs the external waifu2x-ncnn-vulkan executable for one
// image at a time and interprets the result.
//
// Files:
//   - builder.go:  argv construction from a job.Spec
//   - executor.go: process execution with stderr capture and time limit
//   - errors.go:   UpscaleError, MissingDependencyError, stderr hints
//   - invoker.go:  the Invoker interface and its Waifu2x implementation
//
// A run is successful only when the process exits 0 and leaves a non-empty
// output that passes verification; some builds exit 0 after failing to
// write, so the exit code alone is not trusted.
package upscaler
