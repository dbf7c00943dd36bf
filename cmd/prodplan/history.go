package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/TudorHulban/production-scheduler/internal/config"
	"github.com/TudorHulban/production-scheduler/internal/history"
)

var errNoHistory = errors.New("no history database configured, set history in .prodplan.yaml or PRODPLAN_HISTORY")

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded plans",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <plan-id>",
	Short: "Print the steps of a recorded plan",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func init() {
	historyCmd.Flags().Int("limit", 10, "number of plans to list")
	historyCmd.AddCommand(historyShowCmd)

	rootCmd.AddCommand(historyCmd)
}

func openHistory(cmd *cobra.Command) (*history.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if cfg.History == "" {
		return nil, errNoHistory
	}

	return history.Open(cmd.Context(), cfg.History)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")

	records, err := store.Recent(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if jsonOutput(cmd) {
		return writeJSON(cmd.OutOrStdout(), records)
	}

	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), styleMuted.Render("no recorded plans"))
		return nil
	}

	t := newTable("Plan", "Recorded", "Status", "Objective", "Makespan", "Late", "Snapshot")

	for _, record := range records {
		t.Row(
			strconv.FormatInt(record.ID, 10),
			humanize.Time(record.RecordedAt),
			statusStyle(record.Status).Render(string(record.Status)),
			humanize.Comma(record.Objective),
			strconv.Itoa(record.Makespan),
			strconv.Itoa(record.Late),
			record.Snapshot,
		)
	}

	fmt.Fprintln(cmd.OutOrStdout(), t.Render())

	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	planID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("plan id: %w", err)
	}

	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Entries(cmd.Context(), planID)
	if err != nil {
		return err
	}

	if jsonOutput(cmd) {
		return writeJSON(cmd.OutOrStdout(), entries)
	}

	renderEntries(cmd.OutOrStdout(), entries)

	return nil
}
