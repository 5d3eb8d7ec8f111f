package config

// This file binds CLI flags and applies them over defaults, file and
// environment values. Flags are captured into [Flags] first and copied onto
// Config only when the user actually passed them (pflag's Changed), so a
// flag's zero value never clobbers a value from the config file.

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// Flags holds raw flag values between parsing and [ApplyFlags].
type Flags struct {
	ConfigPath string

	Input     string
	Output    string
	Subdir    bool
	Nested    bool
	Home      string
	Model     string
	Quality   string
	Denoise   int
	TileSize  int
	GPU       int
	Fallback  bool
	Zip       bool
	ZipChaps  bool
	Skip      bool
	DryRun    bool
	NoVerify  bool
	Timeout   time.Duration
	Verbose   bool
	Color     bool
	NoColor   bool
	LogFile   string
	NoHistory bool

	ListGPUs   bool
	ListModels bool
	Download   string
}

// BindFlags registers every upscale flag on fs. Defaults shown in help come
// from d so they match [DefaultConfig].
func BindFlags(fs *pflag.FlagSet, f *Flags) {
	d := DefaultConfig()

	// Paths.
	fs.StringVarP(&f.Input, "input", "i", "", "Input directory containing images")
	fs.StringVarP(&f.Output, "output", "o", "", "Output directory (default: INPUT_upscaled)")
	fs.BoolVar(&f.Subdir, "subdir", false, "Create 'upscaled' folder in the input directory")
	fs.BoolVar(&f.Nested, "nested", false, "Process nested folder structure (chapters)")
	fs.StringVar(&f.Home, "home", "", "Tool home holding bin/ and models/ (default: executable dir)")
	fs.StringVar(&f.ConfigPath, "config", "", "Config file (default: ./mangaup.toml or $XDG_CONFIG_HOME/mangaup/config.toml)")

	// Model and quality.
	fs.StringVarP(&f.Model, "model", "m", d.Model, "Model to use")
	fs.StringVarP(&f.Quality, "quality", "q", string(d.Quality), "Quality preset: fast, balanced, quality")
	fs.IntVar(&f.Denoise, "denoise", 0, "Denoise level: -1=none, 0=low, 1-3=higher (overrides preset)")
	fs.IntVar(&f.TileSize, "tile-size", 0, "Tile size: 0=auto, 32-2048 manual (overrides preset)")
	fs.IntVar(&f.GPU, "gpu", d.GPU, "GPU device ID to use")
	fs.BoolVar(&f.Fallback, "tile-fallback", false, "On GPU out-of-memory, retry with smaller tiles (200, 100, 50)")

	// Archiving.
	fs.BoolVar(&f.Zip, "zip", false, "Zip output directory after processing and remove the folder")
	fs.BoolVar(&f.ZipChaps, "zip-chapters", false, "With --nested, zip each chapter separately and remove the folders")

	// Behavior.
	fs.BoolVar(&f.Skip, "skip-existing", false, "Keep outputs that already exist")
	fs.BoolVarP(&f.DryRun, "dry-run", "d", false, "Preview only; do not run the upscaler")
	fs.BoolVar(&f.NoVerify, "no-verify", false, "Skip full decode of each output image")
	fs.DurationVar(&f.Timeout, "timeout", d.Timeout, "Per-image upscaler time limit")

	// Display.
	fs.BoolVarP(&f.Verbose, "verbose", "v", false, "Verbose output")
	fs.BoolVar(&f.Color, "color", false, "Force colored logs")
	fs.BoolVar(&f.NoColor, "no-color", false, "Disable colored logs")
	fs.StringVarP(&f.LogFile, "log", "l", "", "Append JSON logs to file")
	fs.BoolVar(&f.NoHistory, "no-history", false, "Do not record this run in history")

	// Management.
	fs.BoolVar(&f.ListGPUs, "list-gpus", false, "List detected Vulkan GPUs and exit")
	fs.BoolVar(&f.ListModels, "list-models", false, "List available models and their status and exit")
	fs.StringVar(&f.Download, "download", "", "Download a model and exit")
}

// ApplyFlags copies every flag the user set onto cfg.
func ApplyFlags(fs *pflag.FlagSet, f *Flags, cfg *Config) {
	set := fs.Changed

	if set("input") {
		cfg.InputDir = NormalizeDirArg(f.Input)
	}
	if set("output") {
		cfg.OutputDir = NormalizeDirArg(f.Output)
	}
	if set("subdir") {
		cfg.UseSubdir = f.Subdir
	}
	if set("nested") {
		cfg.Nested = f.Nested
	}
	if set("home") {
		cfg.Home = f.Home
	}
	if set("model") {
		cfg.Model = strings.ToLower(strings.TrimSpace(f.Model))
	}
	// An explicit preset drops denoise/tile overrides from the file so the
	// command line wins; --denoise/--tile-size below still apply on top.
	if set("quality") {
		cfg.Quality = QualityPreset(strings.ToLower(f.Quality))
		cfg.DenoiseOverride = nil
		cfg.TileSizeOverride = nil
	}
	if set("denoise") {
		v := f.Denoise
		cfg.DenoiseOverride = &v
	}
	if set("tile-size") {
		v := f.TileSize
		cfg.TileSizeOverride = &v
	}
	if set("gpu") {
		cfg.GPU = f.GPU
	}
	if set("tile-fallback") {
		cfg.TileFallback = f.Fallback
	}
	if set("zip") {
		cfg.ZipOutput = f.Zip
	}
	if set("zip-chapters") {
		cfg.ZipChapters = f.ZipChaps
	}
	if set("skip-existing") {
		cfg.SkipExisting = f.Skip
	}
	if set("dry-run") {
		cfg.DryRun = f.DryRun
	}
	if f.NoVerify {
		cfg.Verify = false
	}
	if set("timeout") {
		cfg.Timeout = f.Timeout
	}
	if set("verbose") {
		cfg.Verbose = f.Verbose
	}
	if f.NoColor {
		cfg.ColorMode = ColorNever
	} else if f.Color {
		cfg.ColorMode = ColorAlways
	}
	if set("log") {
		cfg.LogFile = f.LogFile
	}
	if f.NoHistory {
		cfg.HistoryEnabled = false
	}

	cfg.ListGPUs = f.ListGPUs
	cfg.ListModels = f.ListModels
	cfg.Download = strings.ToLower(strings.TrimSpace(f.Download))
}

// Summary renders the effective settings as label/value pairs for the
// startup banner, in display order.
func (c *Config) Summary(outputDir string) [][2]string {
	yesNo := func(b bool) string {
		if b {
			return "Yes"
		}
		return "No"
	}
	rows := [][2]string{
		{"Input", c.InputDir},
		{"Output", outputDir},
		{"Model", c.Model},
		{"Nested", yesNo(c.Nested)},
		{"Quality Preset", string(c.Quality)},
	}
	if c.DenoiseOverride != nil {
		rows = append(rows, [2]string{"Denoise", fmt.Sprintf("%d (manual)", *c.DenoiseOverride)})
	}
	if c.TileSizeOverride != nil {
		rows = append(rows, [2]string{"Tile Size", fmt.Sprintf("%d (manual)", *c.TileSizeOverride)})
	}
	if c.TileFallback {
		rows = append(rows, [2]string{"Tile Fallback", "Yes"})
	}
	if c.ZipOutput {
		rows = append(rows, [2]string{"Zip Output", "Yes"})
	}
	if c.ZipChapters && c.Nested {
		rows = append(rows, [2]string{"Zip Chapters", "Yes"})
	}
	if c.SkipExisting {
		rows = append(rows, [2]string{"Skip Existing", "Yes"})
	}
	return rows
}
