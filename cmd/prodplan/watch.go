package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/TudorHulban/production-scheduler/internal/snapshot"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Recompute the plan every time the snapshot changes",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	addSolveFlags(watchCmd)
	watchCmd.Flags().Duration("debounce", 200*time.Millisecond, "quiet period before a change is solved")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		renderSuggestions(cmd.ErrOrStderr(), err)
		return err
	}

	debounce, _ := cmd.Flags().GetDuration("debounce")

	watcher, err := snapshot.NewWatcher(rt.cfg.Snapshot, debounce)
	if err != nil {
		return err
	}

	if err := watcher.Start(); err != nil {
		return err
	}
	defer watcher.Stop()

	ctx, cancel := setupSignalContext(rt.logger)
	defer cancel()

	solveAndRender(ctx, cmd, rt)

	// Solves run on this goroutine, so changes arriving meanwhile coalesce
	// into the watcher's single slot and at most one solve is in flight.
	for {
		select {
		case <-ctx.Done():
			return nil

		case _, ok := <-watcher.Changes:
			if !ok {
				return nil
			}

			if err := rt.reload(); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), styleDanger.Render("rejected")+" "+err.Error())
				renderSuggestions(cmd.ErrOrStderr(), err)

				continue
			}

			solveAndRender(ctx, cmd, rt)
		}
	}
}

func solveAndRender(ctx context.Context, cmd *cobra.Command, rt *runtime) {
	result, err := rt.context.ComputeSchedule(ctx, rt.solveOptions())
	if result == nil {
		fmt.Fprintln(cmd.ErrOrStderr(), styleDanger.Render("failed")+" "+err.Error())
		return
	}

	rt.record(ctx, result)

	if jsonOutput(cmd) {
		if errWrite := writeJSON(cmd.OutOrStdout(), result); errWrite != nil {
			rt.logger.Error("write plan", "error", errWrite)
		}
	} else {
		renderResult(cmd.OutOrStdout(), result, result.Entries)
	}

	if err != nil {
		rt.logger.Warn("solve", "error", err)
	}
}
