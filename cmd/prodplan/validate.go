package main

import (
	"fmt"

	"github.com/spf13/cobra"

	scheduler "github.com/TudorHulban/production-scheduler"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the snapshot rows and rules without solving",
	Args:  cobra.NoArgs,
	RunE:  runValidate,
}

var stepCmd = &cobra.Command{
	Use:   "step",
	Short: "Look up steps",
}

var stepFindCmd = &cobra.Command{
	Use:   "find <project> <step-name>",
	Short: "Print the identifier and predecessors of a step",
	Args:  cobra.ExactArgs(2),
	RunE:  runStepFind,
}

func init() {
	stepCmd.AddCommand(stepFindCmd)

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(stepCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), styleDanger.Render("invalid")+" "+err.Error())
		renderSuggestions(cmd.ErrOrStderr(), err)
		return err
	}

	summary := struct {
		Steps             int      `json:"steps"`
		Projects          []string `json:"projects"`
		Groups            int      `json:"groups"`
		FixedStarts       int      `json:"fixed_starts"`
		CapacityOverrides int      `json:"capacity_overrides"`
		Today             string   `json:"today"`
	}{
		Steps:             len(rt.context.Steps()),
		Projects:          rt.context.ProjectNames(),
		Groups:            len(rt.context.ManualGroups()),
		FixedStarts:       len(rt.context.FixedStarts()),
		CapacityOverrides: len(rt.context.CapacityOverrides()),
		Today:             scheduler.FormatDate(rt.context.Today()),
	}

	if jsonOutput(cmd) {
		return writeJSON(cmd.OutOrStdout(), summary)
	}

	fmt.Fprintf(
		cmd.OutOrStdout(),
		"%s %d steps in %d projects, %d groups, %d fixed starts, %d capacity windows, today %s\n",

		styleSuccess.Render("valid"),
		summary.Steps,
		len(summary.Projects),
		summary.Groups,
		summary.FixedStarts,
		summary.CapacityOverrides,
		summary.Today,
	)

	return nil
}

func runStepFind(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}

	stepID, err := rt.context.FindStep(args[0], args[1])
	if err != nil {
		renderSuggestions(cmd.ErrOrStderr(), err)
		return err
	}

	predecessors, err := rt.context.PredecessorIDs(stepID)
	if err != nil {
		return err
	}

	if jsonOutput(cmd) {
		return writeJSON(
			cmd.OutOrStdout(),
			map[string]any{
				"step_id":      stepID,
				"predecessors": predecessors,
			},
		)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", styleTitle.Render(stepID), styleMuted.Render(fmt.Sprint(predecessors)))

	return nil
}
