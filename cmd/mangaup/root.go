package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/backmassage/mangaup/internal/archive"
	"github.com/backmassage/mangaup/internal/check"
	"github.com/backmassage/mangaup/internal/config"
	"github.com/backmassage/mangaup/internal/display"
	"github.com/backmassage/mangaup/internal/history"
	"github.com/backmassage/mangaup/internal/job"
	"github.com/backmassage/mangaup/internal/logging"
	"github.com/backmassage/mangaup/internal/models"
	"github.com/backmassage/mangaup/internal/naming"
	"github.com/backmassage/mangaup/internal/pipeline"
	"github.com/backmassage/mangaup/internal/publish"
	"github.com/backmassage/mangaup/internal/term"
	"github.com/backmassage/mangaup/internal/upscaler"
)

// Exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitInterrupted = 130
)

// exitError carries a process exit code through cobra. The message has
// already been reported when err is nil.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit status %d", e.code)
}

func (e *exitError) Unwrap() error { return e.err }

func newRootCmd() *cobra.Command {
	var flags config.Flags

	cmd := &cobra.Command{
		Use:   "mangaup -i INPUT [flags]",
		Short: "Batch upscale manga pages with waifu2x-ncnn-vulkan",
		Long: `mangaup - batch upscaler for manga and comic scans

Feeds every PNG, JPEG and WebP page of a folder (or of each chapter folder
with --nested) to waifu2x-ncnn-vulkan, mirrors the layout into an output
folder and optionally zips the result.

Examples:
  mangaup -i ./series                       # -> ./series_upscaled
  mangaup -i ./series --nested --zip-chapters
  mangaup -i ./vol1 -q quality --gpu 1
  mangaup --download waifu2x                # install the upscaler and models
  mangaup --list-gpus`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRoot(cmd.Context(), cmd.Flags(), &flags)
		},
	}
	config.BindFlags(cmd.Flags(), &flags)
	cmd.Flags().SortFlags = false

	cmd.Version = fmt.Sprintf("%s (%s)", version, commit)
	cmd.SetVersionTemplate("mangaup {{.Version}}\n")

	cmd.AddCommand(newCheckCmd(), newHistoryCmd(), newCompletionCmd(cmd))
	return cmd
}

// loadConfig layers defaults, the config file, .env and MANGAUP_* variables
// and finally the flags the user set.
func loadConfig(fs *pflag.FlagSet, flags *config.Flags) (config.Config, error) {
	cfg := config.DefaultConfig()

	path := flags.ConfigPath
	if path == "" {
		var err error
		if path, err = config.Discover(); err != nil {
			return cfg, err
		}
	}
	if path != "" {
		if err := config.LoadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := config.LoadDotEnv(""); err != nil {
		return cfg, err
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	if fs != nil {
		config.ApplyFlags(fs, flags, &cfg)
	}

	home, err := config.ResolveHome(cfg.Home)
	if err != nil {
		return cfg, fmt.Errorf("resolve tool home: %w", err)
	}
	cfg.Home = home
	if cfg.HistoryPath == "" {
		cfg.HistoryPath = config.DefaultHistoryPath(home)
	}
	return cfg, nil
}

func runRoot(ctx context.Context, fs *pflag.FlagSet, flags *config.Flags) error {
	// Bootstrap: the logger doesn't exist yet, so errors go straight to stderr.
	cfg, err := loadConfig(fs, flags)
	if err != nil {
		return &exitError{code: exitFailure, err: err}
	}
	if err := cfg.Validate(); err != nil {
		return &exitError{code: exitFailure, err: err}
	}

	log, err := logging.NewLogger(&cfg)
	if err != nil {
		return &exitError{code: exitFailure, err: err}
	}
	defer log.Close()

	display.PrintBanner(os.Stdout)
	paths := models.NewPaths(cfg.Home)

	if cfg.Management() {
		return manage(ctx, &cfg, paths, log)
	}

	m, err := models.Lookup(cfg.Model)
	if err != nil {
		log.Error("%v", err)
		return &exitError{code: exitFailure}
	}
	if cfg.DryRun {
		log.Warn("DRY RUN: no images will be written")
	} else if err := check.CheckDeps(paths, m.Name); err != nil {
		log.Error("%v", err)
		log.Info("Run: mangaup --download %s", m.Name)
		return &exitError{code: exitFailure}
	}

	inputAbs, err := filepath.Abs(cfg.InputDir)
	if err != nil {
		log.Error("%v", err)
		return &exitError{code: exitFailure}
	}
	out, err := naming.ResolveOutputDir(inputAbs, cfg.OutputDir, cfg.UseSubdir)
	if err != nil {
		log.Error("%v", err)
		return &exitError{code: exitFailure}
	}
	display.PrintSummary(os.Stdout, cfg.Summary(out))

	deps, closeDeps, err := buildDeps(&cfg, paths, m, log)
	if err != nil {
		log.Error("%v", err)
		return &exitError{code: exitFailure}
	}
	defer closeDeps()

	stats, err := runBatch(ctx, &cfg, log, deps)
	if code := exitCode(log, m.Name, stats, err); code != exitOK {
		return &exitError{code: code}
	}
	return nil
}

func manage(ctx context.Context, cfg *config.Config, paths models.Paths, log *logging.Logger) error {
	switch {
	case cfg.ListGPUs:
		check.ListGPUs(ctx, log)
	case cfg.ListModels:
		check.ListModels(paths, log)
	case cfg.Download != "":
		log.Info("Installing %s into %s", cfg.Download, cfg.Home)
		in := &models.Installer{
			NewProgress: func(label string, total int64) models.Progress {
				return newBar(label, total, false)
			},
		}
		res, err := in.Install(ctx, paths, cfg.Download)
		if err != nil {
			log.Error("Download failed: %v", err)
			return &exitError{code: exitFailure}
		}
		log.Success("Installed %s (%s downloaded)", res.Binary, display.FormatBytes(res.Bytes))
		for _, d := range res.ModelDirs {
			log.Info("  %s", filepath.Base(d))
		}
	}
	return nil
}

// buildDeps wires the run's collaborators. The returned func releases
// whatever was opened.
func buildDeps(cfg *config.Config, paths models.Paths, m models.Model, log *logging.Logger) (pipeline.Deps, func(), error) {
	inputAbs, err := filepath.Abs(cfg.InputDir)
	if err != nil {
		return pipeline.Deps{}, func() {}, err
	}
	if resolved, err := filepath.EvalSymlinks(inputAbs); err == nil {
		inputAbs = resolved
	}

	w := &upscaler.Waifu2x{
		Binary:    paths.Binary(),
		ModelsDir: paths.ModelDir(m),
		Timeout:   cfg.Timeout,
		Verify:    cfg.Verify,

		TileFallback: cfg.TileFallback,
		OnRetry: func(e job.FileEntry, tile int) {
			log.Warn("GPU out of memory on %s, retrying with tile size %d", filepath.Base(e.Source), tile)
		},
	}
	if cfg.Verbose {
		w.Stderr = os.Stderr
	}

	deps := pipeline.Deps{
		Invoker: w,
		Archiver: &archive.Archiver{
			Protected: []string{inputAbs},
			NewProgress: func(label string, total int64) archive.Progress {
				return newBar(label, total, false)
			},
		},
		NewProgress: func(label string, total int64) pipeline.Progress {
			return newBar(label, total, true)
		},
		RunID: log.RunID(),
	}

	if cfg.S3.Enabled() {
		pub, err := publish.NewS3Publisher(cfg.S3)
		if err != nil {
			return deps, func() {}, err
		}
		deps.Publisher = pub
		log.Debug(cfg.Verbose, "Publishing archives to s3://%s/%s", cfg.S3.Bucket, cfg.S3.Prefix)
	}

	closeFn := func() {}
	if cfg.HistoryEnabled {
		store, err := history.Open(cfg.HistoryPath)
		if err != nil {
			log.Warn("Run history disabled: %v", err)
		} else {
			deps.History = store
			closeFn = func() { _ = store.Close() }
		}
	}
	return deps, closeFn, nil
}

// newBar draws on stdout only when it is a terminal.
func newBar(label string, total int64, count bool) *display.Progress {
	return display.NewProgress(os.Stdout, term.IsTerminal(os.Stdout), label, total, count)
}

// runBatch runs the pipeline next to a signal watcher. The first SIGINT or
// SIGTERM stops the batch before the next image; a second one falls back to
// the default handler and kills the process.
func runBatch(ctx context.Context, cfg *config.Config, log *logging.Logger, deps pipeline.Deps) (pipeline.RunStats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var stats pipeline.RunStats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		var err error
		stats, err = pipeline.Run(gctx, cfg, log, deps)
		return err
	})
	g.Go(func() error {
		watchSignals(gctx, log, cancel)
		return nil
	})
	err := g.Wait()
	return stats, err
}

func watchSignals(ctx context.Context, log *logging.Logger, cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
		log.Warn("Received interrupt, finishing current image… (press Ctrl-C again to abort)")
		cancel()
	case <-ctx.Done():
	}
}

// exitCode maps a finished run onto the process exit status.
func exitCode(log *logging.Logger, model string, stats pipeline.RunStats, err error) int {
	if err != nil {
		var missing *upscaler.MissingDependencyError
		switch {
		case errors.Is(err, pipeline.ErrEmptyInput):
			// Already reported by the pipeline.
		case errors.As(err, &missing):
			log.Error("%v", err)
			log.Info("Run: mangaup --download %s", model)
		default:
			log.Error("%v", err)
		}
		if stats.Interrupted {
			return exitInterrupted
		}
		return exitFailure
	}
	switch {
	case stats.Interrupted:
		return exitInterrupted
	case len(stats.Failed) > 0, stats.ArchiveFailures > 0:
		return exitFailure
	}
	return exitOK
}
