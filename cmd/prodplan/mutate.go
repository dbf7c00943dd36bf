package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	scheduler "github.com/TudorHulban/production-scheduler"
	"github.com/TudorHulban/production-scheduler/internal/supervisor"
)

var capacityCmd = &cobra.Command{
	Use:   "capacity",
	Short: "Manage time windowed capacity overrides",
}

var capacitySetCmd = &cobra.Command{
	Use:   "set <resource> <from> <to> <capacity>",
	Short: "Override a resource capacity over an inclusive date window",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := scheduler.ParseDate(args[1])
		if err != nil {
			return err
		}

		to, err := scheduler.ParseDate(args[2])
		if err != nil {
			return err
		}

		capacity, err := strconv.Atoi(args[3])
		if err != nil {
			return fmt.Errorf("capacity: %w", err)
		}

		return runMutation(
			cmd,
			supervisor.Mutation{
				Kind:         supervisor.SetCapacityWindow,
				ResourceName: args[0],
				WindowStart:  from,
				WindowEnd:    to,
				Capacity:     capacity,
			},
		)
	},
}

var capacityClearCmd = &cobra.Command{
	Use:   "clear [resource]",
	Short: "Remove the overrides of one resource, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mutation := supervisor.Mutation{
			Kind: supervisor.ClearCapacityOverrides,
		}
		if len(args) == 1 {
			mutation.ResourceName = args[0]
		}

		return runMutation(cmd, mutation)
	},
}

var fixedCmd = &cobra.Command{
	Use:   "fixed",
	Short: "Manage fixed start dates",
}

var fixedAddCmd = &cobra.Command{
	Use:   "add <step-id> <date>",
	Short: "Pin a step to start on a date",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := scheduler.ParseDate(args[1])
		if err != nil {
			return err
		}

		return runMutation(
			cmd,
			supervisor.Mutation{
				Kind:      supervisor.AddFixedStart,
				StepID:    args[0],
				StartDate: start,
			},
		)
	},
}

var fixedRemoveCmd = &cobra.Command{
	Use:   "remove <step-id>",
	Short: "Unpin a step",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMutation(
			cmd,
			supervisor.Mutation{
				Kind:   supervisor.RemoveFixedStart,
				StepID: args[0],
			},
		)
	},
}

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage manual start groups",
}

var groupAddCmd = &cobra.Command{
	Use:   "add <step-id> <step-id>...",
	Short: "Make steps start on the same day",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMutation(
			cmd,
			supervisor.Mutation{
				Kind:    supervisor.AddManualGroup,
				StepIDs: args,
			},
		)
	},
}

var groupDissolveCmd = &cobra.Command{
	Use:   "dissolve <group-id>",
	Short: "Remove a manual group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMutation(
			cmd,
			supervisor.Mutation{
				Kind:    supervisor.DissolveManualGroup,
				GroupID: args[0],
			},
		)
	},
}

var priorityCmd = &cobra.Command{
	Use:   "priority",
	Short: "Manage project priorities",
}

var prioritySetCmd = &cobra.Command{
	Use:   "set <project> <priority>",
	Short: "Set a project priority, 1 highest to 5 lowest",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		priority, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("priority: %w", err)
		}

		return runMutation(
			cmd,
			supervisor.Mutation{
				Kind:        supervisor.SetProjectPriority,
				ProjectName: args[0],
				Priority:    priority,
			},
		)
	},
}

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <project>",
	Short: "Delete a project with its steps and the rules that name them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMutation(
			cmd,
			supervisor.Mutation{
				Kind:        supervisor.DeleteProject,
				ProjectName: args[0],
			},
		)
	},
}

func init() {
	for _, mutating := range []*cobra.Command{
		capacitySetCmd, capacityClearCmd,
		fixedAddCmd, fixedRemoveCmd,
		groupAddCmd, groupDissolveCmd,
		prioritySetCmd,
		projectDeleteCmd,
	} {
		addSolveFlags(mutating)
		mutating.Flags().Bool("check", false, "solve before saving and keep the snapshot unless a schedule exists")
	}

	capacityCmd.AddCommand(capacitySetCmd, capacityClearCmd)
	fixedCmd.AddCommand(fixedAddCmd, fixedRemoveCmd)
	groupCmd.AddCommand(groupAddCmd, groupDissolveCmd)
	priorityCmd.AddCommand(prioritySetCmd)
	projectCmd.AddCommand(projectDeleteCmd)

	rootCmd.AddCommand(capacityCmd, fixedCmd, groupCmd, priorityCmd, projectCmd)
}

// runMutation applies one rule change to the snapshot. The file is only
// written once the change is accepted.
func runMutation(cmd *cobra.Command, mutation supervisor.Mutation) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		renderSuggestions(cmd.ErrOrStderr(), err)
		return err
	}

	if check, _ := cmd.Flags().GetBool("check"); check {
		return runCheckedMutation(cmd, rt, mutation)
	}

	next, groupID, err := mutation.Apply(rt.context)
	if err != nil {
		renderSuggestions(cmd.ErrOrStderr(), err)
		return err
	}

	if err := rt.save(next); err != nil {
		return err
	}

	return reportMutation(cmd, mutation, next, groupID)
}

func runCheckedMutation(cmd *cobra.Command, rt *runtime, mutation supervisor.Mutation) error {
	ctx, cancel := setupSignalContext(rt.logger)
	defer cancel()

	before := rt.context

	session := supervisor.NewSession(
		&supervisor.ParamsNewSession{
			Context:   rt.context,
			Options:   rt.solveOptions(),
			Publisher: supervisor.PublishFunc(publishTo(rt)),
			Logger:    rt.logger,
		},
	)

	result, err := session.Apply(ctx, mutation)
	if err != nil {
		if result != nil {
			renderResult(cmd.ErrOrStderr(), result, nil)
		}
		renderSuggestions(cmd.ErrOrStderr(), err)

		return err
	}

	rt.record(ctx, result)

	if err := reportMutation(cmd, mutation, session.Context(), addedGroupID(before, session.Context())); err != nil {
		return err
	}

	if jsonOutput(cmd) {
		return writeJSON(cmd.OutOrStdout(), result)
	}

	renderResult(cmd.OutOrStdout(), result, result.Entries)

	return nil
}

func reportMutation(cmd *cobra.Command, mutation supervisor.Mutation, sc *scheduler.SchedulingContext, groupID string) error {
	if jsonOutput(cmd) {
		if groupID == "" {
			return nil
		}

		return writeJSON(
			cmd.OutOrStdout(),
			map[string]string{
				"group_id": groupID,
			},
		)
	}

	line := fmt.Sprintf("%s %s (version %d)", styleSuccess.Render("applied"), mutation.String(), sc.Version())
	if groupID != "" {
		line += " group " + styleTitle.Render(groupID)
	}

	fmt.Fprintln(cmd.OutOrStdout(), line)

	return nil
}

func addedGroupID(before, after *scheduler.SchedulingContext) string {
	known := make(map[string]bool)
	for _, group := range before.ManualGroups() {
		known[group.ID] = true
	}

	for _, group := range after.ManualGroups() {
		if !known[group.ID] {
			return group.ID
		}
	}

	return ""
}
