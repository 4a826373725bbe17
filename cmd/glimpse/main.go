// Command glimpse captures applications in their native surface and asks an
// LLM judge whether the work a task file describes is actually done.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quenby/glimpse/internal/config"
	"github.com/quenby/glimpse/internal/judge"
	logpkg "github.com/quenby/glimpse/internal/log"
)

var projectRoot string

func main() {
	root := &cobra.Command{
		Use:           "glimpse",
		Short:         "Visual verification for webapps, GUIs, TUIs, and CLIs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&projectRoot, "project", "p", ".", "project root directory")

	root.AddCommand(
		newVerifyCmd(),
		newAutofixCmd(),
		newBaselineCmd(),
		newCapturesCmd(),
		newCheckTodosCmd(),
		newCheckFileCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "glimpse:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(projectRoot)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newJudge(cfg *config.Config) (judge.Judge, error) {
	switch cfg.Judge.Transport {
	case "api":
		api := judge.DefaultAPIConfig()
		if cfg.Judge.Model != "" {
			api.Model = cfg.Judge.Model
		}
		if cfg.Judge.MaxTokens > 0 {
			api.MaxTokens = cfg.Judge.MaxTokens
		}
		return judge.NewAPI(api)
	default:
		return judge.NewCLI(judge.CLIConfig{
			Command: cfg.Judge.Command,
			Model:   cfg.Judge.Model,
			Timeout: cfg.Judge.Timeout.Std(),
		}), nil
	}
}

func newEventLog(cfg *config.Config) *logpkg.EventLog {
	return logpkg.NewEventLog(cfg.LogDir)
}
