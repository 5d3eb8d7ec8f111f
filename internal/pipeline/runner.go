package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/backmassage/mangaup/internal/archive"
	"github.com/backmassage/mangaup/internal/config"
	"github.com/backmassage/mangaup/internal/display"
	"github.com/backmassage/mangaup/internal/history"
	"github.com/backmassage/mangaup/internal/job"
	"github.com/backmassage/mangaup/internal/logging"
	"github.com/backmassage/mangaup/internal/naming"
	"github.com/backmassage/mangaup/internal/probe"
	"github.com/backmassage/mangaup/internal/upscaler"
)

// State is the dispatcher lifecycle.
type State int

const (
	Idle State = iota
	Running
	Completed
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Progress is advanced once per finished entry.
type Progress interface {
	Add(n int64, item string)
	Clear()
}

// Dispatcher drives an Invoker over a work list, one entry at a time.
type Dispatcher struct {
	Invoker      upscaler.Invoker
	Log          *logging.Logger
	Progress     Progress // Optional; nil logs a line per entry instead.
	SkipExisting bool
	DryRun       bool
	Verbose      bool

	state State
}

// State returns the lifecycle state of the most recent Run.
func (d *Dispatcher) State() State { return d.state }

// Run processes entries in order. A *upscaler.UpscaleError is recorded and
// the next entry is attempted; any other error (a missing executable)
// aborts and is returned. Cancellation of ctx is checked before each entry:
// the run stops there and the result is marked Interrupted.
func (d *Dispatcher) Run(ctx context.Context, spec job.Spec, entries []job.FileEntry) (job.BatchResult, error) {
	res := job.BatchResult{Total: len(entries)}
	d.state = Idle
	if len(entries) == 0 {
		return res, nil
	}
	d.state = Running

	for i, e := range entries {
		if ctx.Err() != nil {
			res.Interrupted = true
			d.state = Aborted
			return res, nil
		}

		name := displayName(e)
		if d.Progress == nil {
			d.Log.Info("[%d/%d] %s", i+1, len(entries), name)
		}

		switch {
		case d.SkipExisting && probe.Exists(e.Destination):
			d.Log.Debug(d.Verbose, "Skip (exists): %s", name)
			res.Skipped++

		case d.DryRun:
			d.Log.Info("[DRY] %s -> %s", e.Source, e.Destination)
			res.Succeeded++

		default:
			start := time.Now()
			err := d.Invoker.Invoke(ctx, e, spec)
			var ue *upscaler.UpscaleError
			switch {
			case err == nil:
				res.Succeeded++
				d.Log.Debug(d.Verbose, "Upscaled %s in %s", name, time.Since(start).Round(time.Millisecond))
				d.Log.Event("file_done", zap.String("source", e.Source), zap.String("destination", e.Destination),
					zap.Duration("elapsed", time.Since(start)))
			case errors.As(err, &ue):
				d.clearProgress()
				d.logFailure(name, ue)
				res.Failed = append(res.Failed, e)
			default:
				d.clearProgress()
				d.state = Aborted
				return res, err
			}
		}

		if d.Progress != nil {
			d.Progress.Add(1, name)
		}
	}

	d.state = Completed
	return res, nil
}

func (d *Dispatcher) clearProgress() {
	if d.Progress != nil {
		d.Progress.Clear()
	}
}

func (d *Dispatcher) logFailure(name string, ue *upscaler.UpscaleError) {
	d.Log.Error("Failed: %s: %v", name, ue.Err)
	if h := ue.Hint(); h != "" {
		d.Log.Warn("  Hint: %s", h)
	}
	if ue.Stderr != "" {
		d.Log.Debug(d.Verbose, "  upscaler output:\n%s", ue.Stderr)
	}
	d.Log.Event("file_failed", zap.String("source", ue.Path), zap.Int("exit_code", ue.ExitCode),
		zap.String("stderr", ue.Stderr), zap.NamedError("reason", ue.Err))
}

func displayName(e job.FileEntry) string {
	if e.Chapter == "" {
		return filepath.Base(e.Source)
	}
	return e.Chapter + "/" + filepath.Base(e.Source)
}

// --- Top-level orchestration ---

// Archiver zips a finished folder and removes it.
type Archiver interface {
	Archive(ctx context.Context, dir, zipPath string) (archive.Result, error)
}

// Publisher uploads a finished archive and returns its location.
type Publisher interface {
	Publish(ctx context.Context, zipPath string) (string, error)
}

// Recorder stores a finished run.
type Recorder interface {
	Record(ctx context.Context, r history.Run) error
}

// Deps are Run's collaborators. Invoker and Archiver are required;
// the rest are optional.
type Deps struct {
	Invoker     upscaler.Invoker
	Archiver    Archiver
	Publisher   Publisher
	History     Recorder
	NewProgress func(label string, total int64) Progress
	RunID       string
}

// segment is a unit of dispatch and archiving: the whole output in flat
// mode, one chapter in nested mode.
type segment struct {
	chapter string
	outDir  string
	entries []job.FileEntry
}

// Run resolves paths, discovers work, dispatches it segment by segment,
// archives clean segments when asked to and records the run. The returned
// error is fatal (bad configuration, no input, missing dependency); per-file
// failures are reported through RunStats.
func Run(ctx context.Context, cfg *config.Config, log *logging.Logger, deps Deps) (RunStats, error) {
	stats := RunStats{Started: time.Now()}

	inputAbs, err := filepath.Abs(cfg.InputDir)
	if err != nil {
		return stats, err
	}
	out, err := naming.ResolveOutputDir(inputAbs, cfg.OutputDir, cfg.UseSubdir)
	if err != nil {
		return stats, err
	}
	outAbs, err := filepath.Abs(out)
	if err != nil {
		return stats, err
	}
	if err := cfg.ValidatePaths(inputAbs, outAbs); err != nil {
		return stats, &naming.ConfigurationError{Path: outAbs, Reason: err.Error()}
	}
	stats.InputDir, stats.OutputDir = inputAbs, outAbs

	spec, err := job.NewSpec(cfg, inputAbs, outAbs, job.DefaultScale)
	if err != nil {
		return stats, err
	}

	segments, nested, err := discover(log, inputAbs, outAbs, cfg.Nested)
	if err != nil {
		return stats, err
	}
	total := 0
	for _, s := range segments {
		total += len(s.entries)
	}
	if total == 0 {
		log.Warn("No supported images found in %s", inputAbs)
		return stats, ErrEmptyInput
	}
	if nested {
		stats.Chapters = len(segments)
		log.Info("Found %d images in %s", total, display.Plural(len(segments), "chapter"))
	} else {
		log.Info("Found %d images", total)
	}

	zipChapters := cfg.ZipChapters && nested
	zipAll := cfg.ZipOutput && !zipChapters
	switch {
	case cfg.ZipChapters && !cfg.Nested:
		log.Warn("--zip-chapters only applies with --nested; ignoring")
	case cfg.ZipChapters && cfg.ZipOutput && nested:
		log.Info("--zip-chapters set; zipping each chapter instead of the whole output")
	}

	if !cfg.DryRun {
		if err := os.MkdirAll(outAbs, 0o755); err != nil {
			return stats, fmt.Errorf("create output directory: %w", err)
		}
	}

	var bar Progress
	if deps.NewProgress != nil {
		bar = deps.NewProgress("Upscaling", int64(total))
	}
	d := &Dispatcher{
		Invoker:      deps.Invoker,
		Log:          log,
		Progress:     bar,
		SkipExisting: cfg.SkipExisting,
		DryRun:       cfg.DryRun,
		Verbose:      cfg.Verbose,
	}

	var fatal error
	for _, seg := range segments {
		if seg.chapter != "" {
			log.Debug(cfg.Verbose, "Chapter: %s (%d images)", seg.chapter, len(seg.entries))
		}
		res, err := d.Run(ctx, spec, seg.entries)
		stats.Merge(res)
		if err != nil {
			fatal = err
			break
		}
		if res.Interrupted || ctx.Err() != nil {
			stats.Interrupted = true
			break
		}
		if zipChapters && !cfg.DryRun {
			archiveSegment(ctx, log, deps, &stats, seg.outDir, res)
		}
	}
	if bar != nil {
		bar.Clear()
	}
	// Segments never dispatched still count toward the total.
	stats.Total = total

	if fatal == nil && zipAll && !cfg.DryRun {
		archiveSegment(ctx, log, deps, &stats, outAbs, stats.BatchResult)
	}

	stats.Elapsed = time.Since(stats.Started)
	logSummary(log, &stats, cfg.DryRun)
	record(log, deps, cfg, &stats, nested)
	return stats, fatal
}

func discover(log *logging.Logger, inputAbs, outAbs string, nested bool) ([]segment, bool, error) {
	if nested {
		chapters, err := Chapters(inputAbs, outAbs)
		if err != nil {
			return nil, false, err
		}
		if len(chapters) == 0 {
			log.Warn("No chapter folders found, processing as flat")
			nested = false
		} else {
			var segs []segment
			for _, ch := range chapters {
				entries, err := Collect(chapterFiles(filepath.Join(inputAbs, ch), outAbs, ch))
				if errors.Is(err, ErrEmptyInput) {
					log.Warn("Chapter %s: %v, skipping", ch, err)
					continue
				}
				if err != nil {
					return nil, true, err
				}
				segs = append(segs, segment{chapter: ch, outDir: filepath.Join(outAbs, ch), entries: entries})
			}
			return segs, true, nil
		}
	}

	entries, err := Collect(Flat(inputAbs, outAbs))
	if errors.Is(err, ErrEmptyInput) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []segment{{outDir: outAbs, entries: entries}}, false, nil
}

// archiveSegment zips dir when res is clean. Failures keep the folder and
// never stop the run.
func archiveSegment(ctx context.Context, log *logging.Logger, deps Deps, stats *RunStats, dir string, res job.BatchResult) {
	name := filepath.Base(dir)
	if !res.Clean() {
		log.Warn("Not archiving %s: %d failed", name, len(res.Failed))
		return
	}
	if deps.Archiver == nil {
		return
	}

	zipPath := naming.ArchivePath(dir)
	ar, err := deps.Archiver.Archive(ctx, dir, zipPath)
	if err != nil {
		stats.ArchiveFailures++
		log.Error("Archive failed for %s: %v (folder kept)", name, err)
		return
	}
	stats.Archives = append(stats.Archives, zipPath)
	log.Success("Archived %s (%d files)", filepath.Base(zipPath), ar.Files)
	if ar.RemoveErr != nil {
		log.Warn("Archive complete but %s could not be removed: %v", name, ar.RemoveErr)
	}

	if deps.Publisher == nil {
		return
	}
	loc, err := deps.Publisher.Publish(ctx, zipPath)
	if err != nil {
		log.Warn("Publish failed for %s: %v", filepath.Base(zipPath), err)
		return
	}
	stats.Published++
	log.Info("Published %s", loc)
}

func record(log *logging.Logger, deps Deps, cfg *config.Config, stats *RunStats, nested bool) {
	if deps.History == nil {
		return
	}
	failed := make([]string, 0, len(stats.Failed))
	for _, e := range stats.Failed {
		failed = append(failed, e.Source)
	}
	run := history.Run{
		ID:          deps.RunID,
		StartedAt:   stats.Started,
		FinishedAt:  stats.Started.Add(stats.Elapsed),
		InputDir:    stats.InputDir,
		OutputDir:   stats.OutputDir,
		Model:       cfg.Model,
		Preset:      string(cfg.Quality),
		Nested:      nested,
		Total:       stats.Total,
		Succeeded:   stats.Succeeded,
		Skipped:     stats.Skipped,
		Failed:      failed,
		Interrupted: stats.Interrupted,
		Archives:    len(stats.Archives),
		DryRun:      cfg.DryRun,
	}
	// Use a fresh context: an interrupted run is still worth recording.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := deps.History.Record(ctx, run); err != nil {
		log.Warn("Could not record run history: %v", err)
	}
}
