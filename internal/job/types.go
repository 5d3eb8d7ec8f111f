// Package job defines the values passed between discovery, dispatch and
// archiving: the per-run [Spec], one [FileEntry] per image and the
// accumulated [BatchResult].
package job

import (
	"github.com/backmassage/mangaup/internal/config"
)

// DefaultScale is the upscale factor passed to the external tool.
const DefaultScale = 2

// Spec is the immutable per-run job description built from resolved
// configuration.
type Spec struct {
	InputDir  string
	OutputDir string
	Model     string
	Denoise   int // -1..3
	TileSize  int // 0 = auto, else 32..2048
	GPU       int
	Scale     int
}

// NewSpec resolves the quality preset and overrides from cfg into a Spec
// for the given resolved directories.
func NewSpec(cfg *config.Config, inputDir, outputDir string, scale int) (Spec, error) {
	p, err := ResolveQuality(cfg.Quality, cfg.DenoiseOverride, cfg.TileSizeOverride)
	if err != nil {
		return Spec{}, err
	}
	if scale <= 0 {
		scale = DefaultScale
	}
	return Spec{
		InputDir:  inputDir,
		OutputDir: outputDir,
		Model:     cfg.Model,
		Denoise:   p.Denoise,
		TileSize:  p.TileSize,
		GPU:       cfg.GPU,
		Scale:     scale,
	}, nil
}

// FileEntry is one image to process. Chapter is empty in flat mode.
type FileEntry struct {
	Source      string
	Chapter     string
	Destination string
}

// BatchResult accumulates dispatch outcomes in input order.
type BatchResult struct {
	Total       int
	Succeeded   int
	Skipped     int // Outputs kept because they already existed.
	Failed      []FileEntry
	Interrupted bool
}

// Merge folds another segment's result into r.
func (r *BatchResult) Merge(o BatchResult) {
	r.Total += o.Total
	r.Succeeded += o.Succeeded
	r.Skipped += o.Skipped
	r.Failed = append(r.Failed, o.Failed...)
	r.Interrupted = r.Interrupted || o.Interrupted
}

// FailedIn returns the failed entries belonging to chapter.
func (r *BatchResult) FailedIn(chapter string) []FileEntry {
	var out []FileEntry
	for _, e := range r.Failed {
		if e.Chapter == chapter {
			out = append(out, e)
		}
	}
	return out
}

// Processed is the number of entries that reached a final state.
func (r *BatchResult) Processed() int {
	return r.Succeeded + r.Skipped + len(r.Failed)
}

// Clean reports whether every entry succeeded (or was skipped) and the run
// was not interrupted. Only clean segments are archived.
func (r *BatchResult) Clean() bool {
	return len(r.Failed) == 0 && !r.Interrupted && r.Processed() == r.Total
}
