package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quenby/glimpse/internal/baseline"
	"github.com/quenby/glimpse/internal/config"
	"github.com/quenby/glimpse/internal/report"
	"github.com/quenby/glimpse/internal/task"
	"github.com/quenby/glimpse/pkg/capture"
)

func newBaselineStore(cfg *config.Config) (*baseline.Store, error) {
	j, err := newJudge(cfg)
	if err != nil {
		return nil, err
	}
	return baseline.New(cfg.BaselineDir, j, baseline.WithEventLog(newEventLog(cfg))), nil
}

func baselineOptions(cfg *config.Config) capture.Options {
	return capture.Options{
		OutputDir:  cfg.OutputDir,
		Width:      cfg.Capture.Width,
		Height:     cfg.Capture.Height,
		WaitBefore: cfg.Capture.WaitBefore.Std(),
		WaitAfter:  cfg.Capture.WaitAfter.Std(),
		Timeout:    cfg.Capture.Timeout.Std(),
		FullPage:   cfg.Capture.FullPage,
	}
}

func newBaselineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Save, compare, list, and delete known-good captures",
	}
	cmd.AddCommand(
		newBaselineSaveCmd(),
		newBaselineCompareCmd(),
		newBaselineListCmd(),
		newBaselineDeleteCmd(),
	)
	return cmd
}

func newBaselineSaveCmd() *cobra.Command {
	var appType, target, description string

	cmd := &cobra.Command{
		Use:   "save <name>",
		Short: "Capture the target now and record it as the baseline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := newBaselineStore(cfg)
			if err != nil {
				return err
			}
			if target == "" {
				return errors.New("baseline save: --target is required")
			}

			d := task.Descriptor{Kind: task.AppType(appType), Target: target}
			entry, err := store.Save(cmd.Context(), args[0], d, description, baselineOptions(cfg))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved baseline %q (%s) -> %s\n", entry.Name, entry.AppType, entry.File)
			return nil
		},
	}
	cmd.Flags().StringVar(&appType, "type", "webapp", "application type (webapp, gui, tui, cli)")
	cmd.Flags().StringVar(&target, "target", "", "URL or command to capture")
	cmd.Flags().StringVar(&description, "description", "", "what this baseline shows")
	return cmd
}

func newBaselineCompareCmd() *cobra.Command {
	var currentPath string

	cmd := &cobra.Command{
		Use:   "compare <name>",
		Short: "Recapture and judge the current state against the baseline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := newBaselineStore(cfg)
			if err != nil {
				return err
			}

			result, err := store.Compare(cmd.Context(), args[0], currentPath)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.Comparison(result))
			if !result.Matches {
				return errors.New("baseline mismatch")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&currentPath, "current", "", "compare an existing capture instead of recapturing")
	return cmd
}

func newBaselineListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved baselines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := newBaselineStore(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.BaselineList(store.List()))
			return nil
		},
	}
}

func newBaselineDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Remove a baseline and its capture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := newBaselineStore(cfg)
			if err != nil {
				return err
			}
			removed, err := store.Delete(args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("baseline %q not found", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted baseline %q\n", args[0])
			return nil
		},
	}
}
