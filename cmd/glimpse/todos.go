package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quenby/glimpse/internal/report"
	"github.com/quenby/glimpse/internal/todo"
	"github.com/quenby/glimpse/internal/verify"
)

func newCheckTodosCmd() *cobra.Command {
	var todosJSON, todosFile, taskFile string
	var force bool

	cmd := &cobra.Command{
		Use:   "check-todos [todo-markdown-file]",
		Short: "Decide from todo state whether to verify, and run it when warranted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mdPath := todosFile
			if len(args) == 1 {
				mdPath = args[0]
			}
			items, err := loadTodos(todosJSON, mdPath)
			if err != nil {
				return err
			}

			decision := todo.Evaluate(items)
			if force {
				decision.ShouldVerify = true
				decision.Reasons = append(decision.Reasons, "forced by --force")
			}

			var verification *verify.Result
			if decision.ShouldVerify && taskFile != "" {
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
				verification = &result
			}

			fmt.Fprintln(cmd.OutOrStdout(), report.TriggerCheck(decision, verification))
			if verification != nil && !verification.Success {
				return errVerificationFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&todosJSON, "todos-json", "", "JSON todo list file")
	cmd.Flags().StringVar(&todosFile, "todos-file", "", "markdown checklist file")
	cmd.Flags().StringVar(&taskFile, "task", "", "task file to verify when triggered")
	cmd.Flags().BoolVar(&force, "force", false, "verify regardless of todo state")
	return cmd
}

func loadTodos(jsonPath, mdPath string) ([]todo.Item, error) {
	switch {
	case jsonPath != "":
		raw, err := os.ReadFile(jsonPath)
		if err != nil {
			return nil, err
		}
		return todo.ParseJSON(string(raw)), nil
	case mdPath != "":
		raw, err := os.ReadFile(mdPath)
		if err != nil {
			return nil, err
		}
		return todo.ParseMarkdown(string(raw)), nil
	default:
		return nil, errors.New("check-todos: pass --todos-json or --todos-file")
	}
}
