package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quenby/glimpse/internal/autofix"
	"github.com/quenby/glimpse/internal/report"
	"github.com/quenby/glimpse/internal/task"
	"github.com/quenby/glimpse/internal/verify"
)

func newAutofixCmd() *cobra.Command {
	var editedFiles []string

	cmd := &cobra.Command{
		Use:   "autofix <task-file>",
		Short: "Verify, then propose and apply fixes until the checklist passes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			j, err := newJudge(cfg)
			if err != nil {
				return err
			}

			taskFile := args[0]
			tf, err := task.ParseFile(taskFile)
			if err != nil {
				return err
			}
			items := tf.Pending()
			if len(items) == 0 {
				items = tf.AllItems()
			}
			if len(items) == 0 {
				return errors.New("autofix: task file has no checklist items")
			}

			events := newEventLog(cfg)
			project := strings.TrimSuffix(filepath.Base(taskFile), filepath.Ext(taskFile))
			o := verify.New(j,
				verify.WithEventLog(events),
				verify.WithOutputDir(cfg.OutputDir),
				verify.WithProject(project),
			)
			fixer := autofix.New(autofix.Config{
				MaxAttempts:         cfg.AutoFix.MaxAttempts,
				ConfidenceThreshold: cfg.AutoFix.ConfidenceThreshold,
				HotReloadPause:      cfg.AutoFix.HotReloadPause.Std(),
				ProjectRoot:         projectRoot,
			}, j, o, autofix.WithEventLog(events))

			result := fixer.Run(cmd.Context(), tf.Descriptor, items, tf.Criteria, editedFiles)
			fmt.Fprintln(cmd.OutOrStdout(), report.AutoFix(result))
			if !result.AllFixed {
				return errVerificationFailed
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&editedFiles, "edited", nil, "recently edited files to point the judge at")
	return cmd
}
