package main

import (
	"github.com/spf13/cobra"

	scheduler "github.com/TudorHulban/production-scheduler"
)

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Solve the snapshot and print the plan",
	Args:  cobra.NoArgs,
	RunE:  runCompute,
}

func init() {
	addSolveFlags(computeCmd)
	computeCmd.Flags().String("resource", "", "only list steps on this resource")
	computeCmd.Flags().String("from", "", "report range start, YYYY-MM-DD (default today)")
	computeCmd.Flags().String("to", "", "report range end, YYYY-MM-DD (default plan end)")

	rootCmd.AddCommand(computeCmd)
}

func runCompute(cmd *cobra.Command, _ []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		renderSuggestions(cmd.ErrOrStderr(), err)
		return err
	}

	ctx, cancel := setupSignalContext(rt.logger)
	defer cancel()

	result, errSolve := rt.context.ComputeSchedule(ctx, rt.solveOptions())
	if result == nil {
		return errSolve
	}

	rt.record(ctx, result)

	entries, err := reportEntries(cmd, result)
	if err != nil {
		return err
	}

	if jsonOutput(cmd) {
		if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}

		return errSolve
	}

	renderResult(cmd.OutOrStdout(), result, entries)

	return errSolve
}

// reportEntries narrows the plan to one resource over a date range when
// --resource is given.
func reportEntries(cmd *cobra.Command, result *scheduler.ScheduleResult) ([]scheduler.ScheduleEntry, error) {
	resource, _ := cmd.Flags().GetString("resource")
	if resource == "" {
		return result.Entries, nil
	}

	from := result.Today
	if v, _ := cmd.Flags().GetString("from"); v != "" {
		date, err := scheduler.ParseDate(v)
		if err != nil {
			return nil, err
		}
		from = date
	}

	to := result.Today.AddDate(0, 0, result.Makespan)
	if v, _ := cmd.Flags().GetString("to"); v != "" {
		date, err := scheduler.ParseDate(v)
		if err != nil {
			return nil, err
		}
		to = date
	}

	return result.EntriesForResource(resource, from, to), nil
}
