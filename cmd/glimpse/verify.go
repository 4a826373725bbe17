package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quenby/glimpse/internal/report"
	"github.com/quenby/glimpse/internal/task"
	"github.com/quenby/glimpse/internal/verify"
)

var errVerificationFailed = errors.New("verification failed")

func newVerifyCmd() *cobra.Command {
	var batch bool
	var batchTask string

	cmd := &cobra.Command{
		Use:   "verify <task-file> | verify --batch <capture>...",
		Short: "Capture the task's target and judge its checklist",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			j, err := newJudge(cfg)
			if err != nil {
				return err
			}

			if batch {
				var items []string
				var criteria string
				if batchTask != "" {
					tf, err := task.ParseFile(batchTask)
					if err != nil {
						return err
					}
					items = tf.AllItems()
					criteria = tf.Criteria
				}
				o := verify.New(j, verify.WithEventLog(newEventLog(cfg)), verify.WithOutputDir(cfg.OutputDir))
				result := o.VerifyBatch(cmd.Context(), args, items, criteria)
				fmt.Fprintln(cmd.OutOrStdout(), report.Batch(result, true))
				if result.Failed > 0 {
					return errVerificationFailed
				}
				return nil
			}

			if len(args) != 1 {
				return errors.New("verify: exactly one task file expected")
			}
			taskFile := args[0]
			project := strings.TrimSuffix(filepath.Base(taskFile), filepath.Ext(taskFile))
			o := verify.New(j,
				verify.WithEventLog(newEventLog(cfg)),
				verify.WithOutputDir(cfg.OutputDir),
				verify.WithProject(project),
			)

			result, err := o.VerifyTaskFile(cmd.Context(), taskFile)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), report.Verification(result))
			if !result.Success {
				return errVerificationFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&batch, "batch", false, "treat arguments as capture files and judge them together")
	cmd.Flags().StringVar(&batchTask, "task", "", "task file providing checklist items for --batch")
	return cmd
}
