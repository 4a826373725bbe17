package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quenby/glimpse/internal/report"
	"github.com/quenby/glimpse/internal/trigger"
	"github.com/quenby/glimpse/internal/verify"
)

func newCheckFileCmd() *cobra.Command {
	var taskFile string
	var pathOnly bool

	cmd := &cobra.Command{
		Use:   "check-file <file>...",
		Short: "Report whether edited files should trigger verification",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			triggered := false
			for _, file := range args {
				var d trigger.Detection
				if pathOnly {
					d = trigger.DetectPath(file)
				} else {
					d = trigger.Detect(file)
				}
				if d.ShouldVerify {
					triggered = true
					fmt.Fprintf(out, "%s: verify (%s, %s)\n", file, d.Category, d.Reason)
				} else {
					fmt.Fprintf(out, "%s: skip (%s)\n", file, d.Reason)
				}
			}

			if !triggered || taskFile == "" {
				return nil
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			j, err := newJudge(cfg)
			if err != nil {
				return err
			}
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
			fmt.Fprintln(out, report.Verification(result))
			if !result.Success {
				return errVerificationFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&taskFile, "task", "", "task file to verify when a file triggers")
	cmd.Flags().BoolVar(&pathOnly, "path-only", false, "skip the file content sniff")
	return cmd
}
