package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quenby/glimpse/internal/capturestore"
	"github.com/quenby/glimpse/internal/report"
	"github.com/quenby/glimpse/internal/task"
	"github.com/quenby/glimpse/internal/verify"
)

func newCapturesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "captures",
		Short: "Register, list, watch, and batch-verify capture files",
	}
	cmd.AddCommand(
		newCapturesAddCmd(),
		newCapturesListCmd(),
		newCapturesWatchCmd(),
		newCapturesVerifyBatchCmd(),
		newCapturesClearCmd(),
	)
	return cmd
}

func newCapturesAddCmd() *cobra.Command {
	var event, description, source string
	var tags []string

	cmd := &cobra.Command{
		Use:   "add <path>...",
		Short: "Copy capture files into the store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store := capturestore.New(cfg.CaptureDir, newEventLog(cfg))

			if len(args) == 1 {
				meta, err := store.Add(args[0], event, description, source, tags)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s -> %s\n", meta.ID, meta.StoredPath)
				return nil
			}

			added := store.AddBatch(args, tags)
			for _, meta := range added {
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s -> %s\n", meta.ID, meta.StoredPath)
			}
			if len(added) < len(args) {
				return fmt.Errorf("added %d of %d files", len(added), len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&event, "event", "", "event that produced the capture")
	cmd.Flags().StringVar(&description, "description", "", "what the capture shows")
	cmd.Flags().StringVar(&source, "source", "manual", "producer of the capture")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tags to attach")
	return cmd
}

func newCapturesListCmd() *cobra.Command {
	var pendingOnly bool
	var tag, source string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List captures in the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store := capturestore.New(cfg.CaptureDir, newEventLog(cfg))

			var items []capturestore.Metadata
			switch {
			case pendingOnly:
				items = store.Pending()
			case tag != "":
				items = store.ByTag(tag)
			case source != "":
				items = store.BySource(source)
			default:
				items = store.List()
			}

			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No captures.")
				return nil
			}
			for _, meta := range items {
				status := "pending"
				if meta.Verified {
					status = meta.Result
				}
				when := time.Unix(meta.Timestamp, 0).Format("2006-01-02 15:04")
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-9s  %s  %s\n", meta.ID, status, when, meta.StoredPath)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&pendingOnly, "pending", false, "only unverified captures")
	cmd.Flags().StringVar(&tag, "tag", "", "filter by tag")
	cmd.Flags().StringVar(&source, "source", "", "filter by source")
	return cmd
}

func newCapturesWatchCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch a directory and auto-register dropped capture files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store := capturestore.New(cfg.CaptureDir, newEventLog(cfg))

			watchDir := dir
			if watchDir == "" {
				watchDir = cfg.IncomingDir
			}
			watcher, err := capturestore.NewWatcher(store, watchDir)
			if err != nil {
				return err
			}
			defer watcher.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (ctrl-c to stop)\n", watchDir)

			errCh := make(chan error, 1)
			go func() { errCh <- watcher.Start(ctx) }()

			// Registrations print as they happen; Start's error (or nil on
			// shutdown) arrives once the watch loop exits.
			for {
				select {
				case meta, ok := <-watcher.Accepted():
					if !ok {
						return <-errCh
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Registered %s <- %s\n", meta.ID, meta.OriginalPath)
				case err := <-errCh:
					return err
				}
			}
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory to watch (default: the store's incoming dir)")
	return cmd
}

func newCapturesVerifyBatchCmd() *cobra.Command {
	var taskFile string
	var all, detailed bool

	cmd := &cobra.Command{
		Use:   "verify-batch",
		Short: "Judge pending captures in one request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			j, err := newJudge(cfg)
			if err != nil {
				return err
			}
			events := newEventLog(cfg)
			store := capturestore.New(cfg.CaptureDir, events)

			pending := store.Pending()
			if all {
				pending = store.List()
			}
			if len(pending) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No captures to verify.")
				return nil
			}

			var items []string
			var criteria string
			if taskFile != "" {
				tf, err := task.ParseFile(taskFile)
				if err != nil {
					return err
				}
				items = tf.AllItems()
				criteria = tf.Criteria
			}

			paths := make([]string, len(pending))
			byPath := make(map[string]string, len(pending))
			for i, meta := range pending {
				paths[i] = meta.StoredPath
				byPath[meta.StoredPath] = meta.ID
			}

			o := verify.New(j, verify.WithEventLog(events), verify.WithOutputDir(cfg.OutputDir))
			result := o.VerifyBatch(cmd.Context(), paths, items, criteria)

			for _, v := range result.Verdicts {
				if id, ok := byPath[v.Path]; ok {
					if err := store.MarkVerified(id, v.Status); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "warning: mark %s: %v\n", id, err)
					}
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), report.Batch(result, detailed))
			if result.Failed > 0 {
				return errVerificationFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&taskFile, "task", "", "task file providing checklist items")
	cmd.Flags().BoolVar(&all, "all", false, "verify every capture, not just pending ones")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include per-capture verdicts")
	return cmd
}

func newCapturesClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every capture and its metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("captures clear: pass --yes to confirm")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store := capturestore.New(cfg.CaptureDir, newEventLog(cfg))
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cleared capture store.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}
