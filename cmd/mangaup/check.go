package main

import (
	"github.com/spf13/cobra"

	"github.com/backmassage/mangaup/internal/check"
	"github.com/backmassage/mangaup/internal/config"
	"github.com/backmassage/mangaup/internal/logging"
	"github.com/backmassage/mangaup/internal/models"
)

func newCheckCmd() *cobra.Command {
	var flags config.Flags

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the upscaler, models and Vulkan GPUs",
		Long: `Check that waifu2x-ncnn-vulkan and the selected model are installed
under the tool home and list the Vulkan devices vulkaninfo reports.

Exits non-zero when the selected model cannot run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags(), &flags)
			if err != nil {
				return &exitError{code: exitFailure, err: err}
			}
			log, err := logging.NewLogger(&cfg)
			if err != nil {
				return &exitError{code: exitFailure, err: err}
			}
			defer log.Close()

			if !check.RunCheck(cmd.Context(), models.NewPaths(cfg.Home), cfg.Model, cfg.GPU, log) {
				return &exitError{code: exitFailure}
			}
			return nil
		},
	}
	// Names match the root flags so config.ApplyFlags picks them up.
	cmd.Flags().StringVar(&flags.ConfigPath, "config", "", "Config file")
	cmd.Flags().StringVar(&flags.Home, "home", "", "Tool home holding bin/ and models/")
	cmd.Flags().StringVarP(&flags.Model, "model", "m", models.DefaultModel, "Model to check")
	cmd.Flags().IntVar(&flags.GPU, "gpu", 0, "GPU device ID expected to be present")
	return cmd
}
