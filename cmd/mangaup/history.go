package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/backmassage/mangaup/internal/config"
	"github.com/backmassage/mangaup/internal/display"
	"github.com/backmassage/mangaup/internal/history"
)

func newHistoryCmd() *cobra.Command {
	var (
		flags    config.Flags
		limit    int
		failures bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs",
		Long: `List recent upscaling runs recorded in the tool home's history
database, newest first.

Examples:
  mangaup history              # last 20 runs
  mangaup history -n 5 --failures`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags(), &flags)
			if err != nil {
				return &exitError{code: exitFailure, err: err}
			}
			store, err := history.Open(cfg.HistoryPath)
			if err != nil {
				return &exitError{code: exitFailure, err: err}
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return &exitError{code: exitFailure, err: err}
			}
			printRuns(cmd.OutOrStdout(), runs, failures)
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.ConfigPath, "config", "", "Config file")
	cmd.Flags().StringVar(&flags.Home, "home", "", "Tool home holding data/history.db")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	cmd.Flags().BoolVar(&failures, "failures", false, "List failed files under each run")
	return cmd
}

func printRuns(w io.Writer, runs []history.Run, failures bool) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded yet.")
		return
	}
	for _, r := range runs {
		var flags []string
		if r.DryRun {
			flags = append(flags, "dry-run")
		}
		if r.Interrupted {
			flags = append(flags, "interrupted")
		}
		if r.Nested {
			flags = append(flags, "nested")
		}
		status := "ok"
		if len(r.Failed) > 0 || r.Interrupted {
			status = "incomplete"
		}

		fmt.Fprintf(w, "%s  %-10s  %s\n", r.StartedAt.Format("2006-01-02 15:04"), status, filepath.Base(r.InputDir))
		fmt.Fprintf(w, "    %d/%d upscaled, %d skipped, %d failed, %s in %s (%s)\n",
			r.Succeeded, r.Total, r.Skipped, len(r.Failed),
			display.Plural(r.Archives, "archive"),
			display.FormatDuration(r.FinishedAt.Sub(r.StartedAt)),
			humanize.Time(r.StartedAt))
		fmt.Fprintf(w, "    model %s, preset %s", r.Model, r.Preset)
		if len(flags) > 0 {
			fmt.Fprintf(w, ", %s", strings.Join(flags, ", "))
		}
		fmt.Fprintf(w, "\n    -> %s\n", r.OutputDir)
		if failures {
			for _, f := range r.Failed {
				fmt.Fprintf(w, "    failed: %s\n", f)
			}
		}
	}
}
