// Package config holds runtime configuration: defaults, the optional TOML
// file, environment overrides, CLI flag binding, and validation. Defaults
// match the original upscaler script so behavior stays the same when no
// configuration is present.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// --- Enum types for validated string fields ---

// QualityPreset names a bundle of denoise/tile-size defaults.
type QualityPreset string

const (
	QualityFast     QualityPreset = "fast"     // No denoise, automatic tiles.
	QualityBalanced QualityPreset = "balanced" // Light denoise, automatic tiles (default).
	QualityBest     QualityPreset = "quality"  // Strong denoise, small fixed tiles.
)

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// Parameter ranges accepted by waifu2x-ncnn-vulkan.
const (
	DenoiseMin  = -1
	DenoiseMax  = 3
	TileSizeMin = 32
	TileSizeMax = 2048
)

// Config holds all runtime settings. It is populated by [DefaultConfig],
// then layered with [LoadFile], [ApplyEnv] and [ApplyFlags] before being
// passed (by pointer) to packages that need it.
type Config struct {
	// Paths.
	InputDir  string
	OutputDir string // Explicit -o value; resolved by naming.ResolveOutputDir when empty.
	UseSubdir bool   // --subdir: output into <input>/upscaled.
	Nested    bool   // --nested: treat immediate subdirectories as chapters.
	Home      string // Tool home holding bin/, models/ and data/. Default: executable dir.

	// Model and quality.
	Model            string        // Default: "waifu2x".
	Quality          QualityPreset // Default: "balanced".
	DenoiseOverride  *int          // --denoise; nil keeps the preset value.
	TileSizeOverride *int          // --tile-size; nil keeps the preset value.
	GPU              int           // Default: 0.
	TileFallback     bool          // Halve the tile and re-run when the GPU runs out of memory.

	// Archiving.
	ZipOutput   bool // --zip: archive the whole output folder.
	ZipChapters bool // --zip-chapters: archive each chapter (nested mode only).

	// Behavior.
	SkipExisting bool          // Keep outputs that already exist instead of overwriting.
	DryRun       bool          // Log the work list without invoking the upscaler.
	Verify       bool          // Default: true. Fully decode each output and check its size.
	Timeout      time.Duration // Per-image limit. Default: 5m.

	// Display and logging.
	Verbose   bool
	ColorMode ColorMode // Default: "auto".
	LogFile   string    // Optional JSON log file.

	// Run history.
	HistoryEnabled bool   // Default: true.
	HistoryPath    string // Default: <home>/data/history.db.

	// Optional archive publishing.
	S3 S3Config

	// Management commands (short-circuit the batch pipeline).
	ListGPUs   bool
	ListModels bool
	Download   string
}

// S3Config configures uploading finished archives to S3-compatible storage.
// Publishing is enabled when Bucket is non-empty.
type S3Config struct {
	Bucket    string
	Prefix    string
	Region    string // Default: "us-east-1".
	Endpoint  string // Custom endpoint for MinIO and friends.
	AccessKey string
	SecretKey string
	PathStyle bool
}

// Enabled reports whether archives should be published.
func (s S3Config) Enabled() bool { return s.Bucket != "" }

// DefaultConfig returns a Config with all defaults matching the original
// script. Used as the base before files, environment and flags apply.
func DefaultConfig() Config {
	return Config{
		Model:          "waifu2x",
		Quality:        QualityBalanced,
		GPU:            0,
		Verify:         true,
		Timeout:        5 * time.Minute,
		ColorMode:      ColorAuto,
		HistoryEnabled: true,
		S3: S3Config{
			Region: "us-east-1",
		},
	}
}

// Management reports whether a terminal management command was requested.
func (c *Config) Management() bool {
	return c.ListGPUs || c.ListModels || c.Download != ""
}

// NormalizeDirArg strips trailing slashes from a directory path.
// The filesystem root "/" is returned unchanged so we don't produce an empty string.
func NormalizeDirArg(path string) string {
	if path == "/" {
		return "/"
	}
	return strings.TrimRight(path, "/")
}

// Validate checks enum fields and numeric ranges. Every problem is
// collected into a single *ConfigError. When no management command is set
// an input directory is required.
func (c *Config) Validate() error {
	cerr := &ConfigError{}

	switch c.Quality {
	case QualityFast, QualityBalanced, QualityBest:
		// valid
	default:
		cerr.Errors = append(cerr.Errors, fmt.Sprintf("invalid quality preset %q (use 'fast', 'balanced' or 'quality')", c.Quality))
	}

	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		cerr.Errors = append(cerr.Errors, fmt.Sprintf("invalid color mode %q (use 'auto', 'always' or 'never')", c.ColorMode))
	}

	if d := c.DenoiseOverride; d != nil && (*d < DenoiseMin || *d > DenoiseMax) {
		cerr.Errors = append(cerr.Errors, fmt.Sprintf("denoise must be between %d and %d (got %d)", DenoiseMin, DenoiseMax, *d))
	}
	if t := c.TileSizeOverride; t != nil && !ValidTileSize(*t) {
		cerr.Errors = append(cerr.Errors, fmt.Sprintf("tile size must be 0 (auto) or between %d and %d (got %d)", TileSizeMin, TileSizeMax, *t))
	}
	if c.GPU < 0 {
		cerr.Errors = append(cerr.Errors, fmt.Sprintf("gpu id must not be negative (got %d)", c.GPU))
	}
	if strings.TrimSpace(c.Model) == "" {
		cerr.Errors = append(cerr.Errors, "model must not be empty")
	}
	if c.Timeout <= 0 {
		cerr.Errors = append(cerr.Errors, fmt.Sprintf("timeout must be positive (got %s)", c.Timeout))
	}
	if c.UseSubdir && c.OutputDir != "" {
		cerr.Errors = append(cerr.Errors, "--subdir and --output are mutually exclusive")
	}

	if !c.Management() && c.InputDir == "" {
		cerr.Errors = append(cerr.Errors, "input directory is required for processing (use -i)")
	}

	if cerr.HasErrors() {
		return cerr
	}
	return nil
}

// ValidTileSize reports whether t is 0 (auto) or within the manual range.
func ValidTileSize(t int) bool {
	return t == 0 || (t >= TileSizeMin && t <= TileSizeMax)
}

// ValidatePaths ensures the output directory is not the input directory
// itself, which would overwrite sources in place. Output nested inside
// input is allowed (--subdir); discovery skips it. Both arguments must be
// absolute. A name that reaches the input through a symlink or a different
// letter case on a case-insensitive volume is rejected too.
func (c *Config) ValidatePaths(inputAbs, outputAbs string) error {
	if filepath.Clean(outputAbs) == filepath.Clean(inputAbs) || sameDir(inputAbs, outputAbs) {
		return errors.New("output directory must differ from input directory")
	}
	return nil
}

// sameDir reports whether a and b resolve to the same existing directory.
// An output that does not exist yet cannot be the input.
func sameDir(a, b string) bool {
	if ra, err := filepath.EvalSymlinks(a); err == nil {
		a = ra
	}
	if rb, err := filepath.EvalSymlinks(b); err == nil {
		b = rb
	}
	if filepath.Clean(a) == filepath.Clean(b) {
		return true
	}
	fa, err := os.Stat(a)
	if err != nil {
		return false
	}
	fb, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(fa, fb)
}
