package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	scheduler "github.com/TudorHulban/production-scheduler"
	"github.com/TudorHulban/production-scheduler/internal/supervisor"
)

var superviseCmd = &cobra.Command{
	Use:   "supervise",
	Short: "Raise priorities of late projects until the plan is within tolerance",
	Long: "supervise reviews the plan, proposes one priority change per attempt, asks for " +
		"confirmation, then recomputes. It stops on approval or after max_attempts proposals.",
	Args: cobra.NoArgs,
	RunE: runSupervise,
}

func init() {
	addSolveFlags(superviseCmd)
	superviseCmd.Flags().Bool("yes", false, "confirm every proposal without asking")
	superviseCmd.Flags().Int("max-attempts", 0, "override the proposal budget")

	rootCmd.AddCommand(superviseCmd)
}

func runSupervise(cmd *cobra.Command, _ []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		renderSuggestions(cmd.ErrOrStderr(), err)
		return err
	}

	maxAttempts := rt.cfg.MaxAttempts
	if v, _ := cmd.Flags().GetInt("max-attempts"); v > 0 {
		maxAttempts = v
	}

	var confirmer supervisor.Confirmer = promptConfirmer(cmd.InOrStdin(), cmd.ErrOrStderr())
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		confirmer = supervisor.ConfirmFunc(
			func(context.Context, supervisor.Mutation) (bool, error) {
				return true, nil
			},
		)
	}

	ctx, cancel := setupSignalContext(rt.logger)
	defer cancel()

	run := supervisor.Supervisor{
		Session: supervisor.NewSession(
			&supervisor.ParamsNewSession{
				Context:   rt.context,
				Options:   rt.solveOptions(),
				Publisher: supervisor.PublishFunc(publishTo(rt)),
				Logger:    rt.logger,
			},
		),
		Advisor:     supervisor.TardinessAdvisor{},
		Confirmer:   confirmer,
		MaxAttempts: maxAttempts,
		Logger:      rt.logger,
	}

	outcome, errRun := run.Run(ctx)
	if outcome == nil || outcome.Plan == nil {
		return errRun
	}

	rt.record(ctx, outcome.Plan)

	if jsonOutput(cmd) {
		if err := writeJSON(cmd.OutOrStdout(), outcome); err != nil {
			return err
		}

		return errRun
	}

	for _, note := range outcome.Notes {
		fmt.Fprintln(cmd.ErrOrStderr(), styleMuted.Render(note))
	}

	phaseStyle := styleSuccess
	if outcome.Phase != supervisor.PhaseApproved {
		phaseStyle = styleWarning
	}

	fmt.Fprintf(
		cmd.OutOrStdout(),
		"%s after %d attempts, %d applied, %d declined, %d failed\n",
		phaseStyle.Render(outcome.Phase.String()),
		outcome.Attempts,
		len(outcome.Applied),
		len(outcome.Declined),
		len(outcome.Failed),
	)

	renderResult(cmd.OutOrStdout(), outcome.Plan, outcome.Plan.Entries)

	if errors.Is(errRun, supervisor.ErrAttemptsExhausted) {
		// exhaustion is reported above, not as a failure
		return nil
	}

	return errRun
}

// promptConfirmer asks on the terminal before each proposal is applied.
func promptConfirmer(in io.Reader, out io.Writer) supervisor.Confirmer {
	scanner := bufio.NewScanner(in)

	return supervisor.ConfirmFunc(
		func(_ context.Context, mutation supervisor.Mutation) (bool, error) {
			fmt.Fprintf(out, "%s %s? [y/N] ", styleWarning.Render("apply"), mutation.String())

			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return false, err
				}

				return false, nil
			}

			answer := strings.ToLower(strings.TrimSpace(scanner.Text()))

			return answer == "y" || answer == "yes", nil
		},
	)
}

func publishTo(rt *runtime) func(context.Context, *scheduler.SchedulingContext) error {
	return func(_ context.Context, sc *scheduler.SchedulingContext) error {
		return rt.save(sc)
	}
}
