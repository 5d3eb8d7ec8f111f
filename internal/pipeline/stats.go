package pipeline

import (
	"path/filepath"
	"time"

	"github.com/backmassage/mangaup/internal/display"
	"github.com/backmassage/mangaup/internal/job"
	"github.com/backmassage/mangaup/internal/logging"
)

// RunStats tracks aggregate counters across a batch run.
type RunStats struct {
	job.BatchResult

	InputDir  string
	OutputDir string
	Chapters  int

	Archives        []string // Zip files written.
	ArchiveFailures int
	Published       int

	Started time.Time
	Elapsed time.Duration
}

func logSummary(log *logging.Logger, s *RunStats, dryRun bool) {
	log.Info("==============================")
	log.Info("Done: %d upscaled, %d skipped, %d failed", s.Succeeded, s.Skipped, len(s.Failed))
	log.Info("  Total images: %d", s.Total)
	if s.Chapters > 0 {
		log.Info("  Chapters: %d", s.Chapters)
	}
	log.Info("  Elapsed: %s (%s)", display.FormatDuration(s.Elapsed), display.FormatRate(s.Succeeded, s.Elapsed))
	if dryRun {
		log.Info("  Output: n/a (dry run)")
	} else {
		log.Info("  Output: %s", s.OutputDir)
	}
	if len(s.Archives) > 0 {
		log.Success("  Archives: %s", display.Plural(len(s.Archives), "zip"))
	}
	if s.ArchiveFailures > 0 {
		log.Warn("  Archive failures: %d (folders kept)", s.ArchiveFailures)
	}
	if s.Published > 0 {
		log.Info("  Published: %d", s.Published)
	}

	if len(s.Failed) > 0 {
		log.Error("Failed files:")
		if s.Chapters > 0 {
			for _, ch := range failedChapters(s.Failed) {
				failed := s.FailedIn(ch)
				log.Error("  %s: %s", ch, display.Plural(len(failed), "page"))
				for _, e := range failed {
					log.Error("    %s", filepath.Base(e.Source))
				}
			}
		} else {
			for _, e := range s.Failed {
				log.Error("  %s", e.Source)
			}
		}
	}
	if s.Interrupted {
		log.Warn("Run interrupted: %d of %d images not processed", s.Total-s.Processed(), s.Total)
	}
}

// failedChapters lists the chapters with failures in first-seen order.
func failedChapters(failed []job.FileEntry) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range failed {
		if !seen[e.Chapter] {
			seen[e.Chapter] = true
			out = append(out, e.Chapter)
		}
	}
	return out
}
