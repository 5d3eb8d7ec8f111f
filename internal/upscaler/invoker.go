package upscaler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/backmassage/mangaup/internal/job"
	"github.com/backmassage/mangaup/internal/probe"
)

// BinaryName is the upscaler executable's base name (".exe" is appended on
// Windows by the models package).
const BinaryName = "waifu2x-ncnn-vulkan"

const stderrTailLines = 8

//go:generate mockgen -source=invoker.go -destination=mocks/mock_invoker.go -package=mocks

// Invoker upscales a single image.
type Invoker interface {
	Invoke(ctx context.Context, entry job.FileEntry, spec job.Spec) error
}

// Waifu2x invokes waifu2x-ncnn-vulkan.
type Waifu2x struct {
	Binary    string        // Absolute path to the executable.
	ModelsDir string        // Model directory passed with -m.
	Timeout   time.Duration // Per-image limit; 0 disables it.
	Verify    bool          // Fully decode outputs and check dimensions.
	Stderr    io.Writer     // Optional live mirror of the tool's stderr (verbose mode).

	// TileFallback re-runs an image with a smaller tile when the GPU runs
	// out of memory. Off by default: each image gets exactly one run.
	TileFallback bool
	// OnRetry, when set, is told before each fallback run.
	OnRetry func(entry job.FileEntry, tileSize int)
}

// Invoke runs the tool for entry. It returns *MissingDependencyError when
// the executable or model directory is gone and *UpscaleError for any
// per-image failure. A failed image never leaves an output behind.
func (w *Waifu2x) Invoke(ctx context.Context, entry job.FileEntry, spec job.Spec) error {
	if _, err := os.Stat(w.Binary); err != nil {
		return &MissingDependencyError{Name: BinaryName, Path: w.Binary, Err: err}
	}
	if _, err := os.Stat(w.ModelsDir); err != nil {
		return &MissingDependencyError{Name: filepath.Base(w.ModelsDir), Path: w.ModelsDir, Err: err}
	}

	// Unreadable headers skip the dimension check; the tool decides whether
	// the input is usable.
	in, _ := probe.Probe(entry.Source)

	if err := os.MkdirAll(filepath.Dir(entry.Destination), 0o755); err != nil {
		return &UpscaleError{Path: entry.Source, Err: fmt.Errorf("create output dir: %w", err)}
	}

	retry := NewRetryState(spec.TileSize)
	var res ExecResult
	for {
		attempt := spec
		attempt.TileSize = retry.TileSize
		res = Execute(ctx, Build(w.Binary, w.ModelsDir, entry, attempt), w.Timeout, w.Stderr)
		if res.Err == nil {
			break
		}
		if errors.Is(res.Err, exec.ErrNotFound) || errors.Is(res.Err, fs.ErrNotExist) || errors.Is(res.Err, fs.ErrPermission) {
			return &MissingDependencyError{Name: BinaryName, Path: w.Binary, Err: res.Err}
		}
		_ = os.Remove(entry.Destination)
		if w.TileFallback && !res.TimedOut && ctx.Err() == nil && retry.Advance(res.Stderr) == RetrySmallerTile {
			if w.OnRetry != nil {
				w.OnRetry(entry, retry.TileSize)
			}
			continue
		}
		err := res.Err
		if res.TimedOut {
			err = fmt.Errorf("timed out after %s", w.Timeout)
		}
		return &UpscaleError{Path: entry.Source, ExitCode: res.ExitCode, Stderr: tail(res.Stderr, stderrTailLines), Err: err}
	}

	if _, err := probe.Verify(entry.Destination, in, spec.Scale, w.Verify); err != nil {
		_ = os.Remove(entry.Destination)
		if errors.Is(err, fs.ErrNotExist) {
			err = errors.New("no output file produced")
		}
		return &UpscaleError{Path: entry.Source, Stderr: tail(res.Stderr, stderrTailLines), Err: err}
	}
	return nil
}
