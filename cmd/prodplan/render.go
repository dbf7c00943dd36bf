package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	scheduler "github.com/TudorHulban/production-scheduler"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/charmbracelet/lipgloss/table"
)

// Semantic color palette.
var (
	colorPrimary = lipgloss.Color("#00BFFF")
	colorAccent  = lipgloss.Color("#FFD700")
	colorSuccess = lipgloss.Color("#00E676")
	colorDanger  = lipgloss.Color("#FF5252")
	colorMuted   = lipgloss.Color("#636363")
)

var (
	styleTitle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true)

	styleSuccess = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	styleWarning = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	styleDanger = lipgloss.NewStyle().
			Foreground(colorDanger).
			Bold(true)

	styleMuted = lipgloss.NewStyle().
			Foreground(colorMuted)

	styleHeader = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true).
			Padding(0, 1)

	styleCell = lipgloss.NewStyle().
			Padding(0, 1)
)

func statusStyle(status scheduler.SolverStatus) lipgloss.Style {
	switch status {
	case scheduler.StatusOptimal:
		return styleSuccess
	case scheduler.StatusFeasible:
		return styleWarning
	default:
		return styleDanger
	}
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styleMuted).
		Headers(headers...).
		StyleFunc(
			func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return styleHeader
				}

				return styleCell
			},
		)
}

func renderSummary(w io.Writer, result *scheduler.ScheduleResult) {
	fmt.Fprintf(
		w,
		"%s %s  objective %s  makespan %d days  from %s  in %s\n",

		styleTitle.Render("plan"),
		statusStyle(result.Status).Render(string(result.Status)),
		humanize.Comma(result.Objective),
		result.Makespan,
		scheduler.FormatDate(result.Today),
		result.WallTime.Round(time.Millisecond),
	)
}

func renderEntries(w io.Writer, entries []scheduler.ScheduleEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, styleMuted.Render("no scheduled steps"))
		return
	}

	t := newTable("Step", "Project", "Name", "Resource", "Machine", "Start", "End", "Delay")

	for _, entry := range entries {
		delay := strconv.Itoa(entry.DelayDays)
		if entry.ExceedsTolerance {
			delay = styleDanger.Render(delay)
		}

		t.Row(
			entry.StepID,
			entry.ProjectName,
			entry.StepName,
			entry.ResourceName,
			entry.MachineName,
			scheduler.FormatDate(entry.Start),
			scheduler.FormatDate(entry.End),
			delay,
		)
	}

	fmt.Fprintln(w, t.Render())
}

func renderProjects(w io.Writer, projects []scheduler.ProjectSummary) {
	if len(projects) == 0 {
		return
	}

	t := newTable("Project", "Priority", "Due", "Completion", "Delay", "Tolerance")

	for _, project := range projects {
		delay := strconv.Itoa(project.DelayDays)

		switch {
		case project.ExceedsTolerance:
			delay = styleDanger.Render(delay)
		case project.DelayDays <= 0:
			delay = styleSuccess.Render(delay)
		}

		t.Row(
			project.ProjectName,
			strconv.Itoa(project.Priority),
			scheduler.FormatDate(project.DueDate),
			scheduler.FormatDate(project.CompletionDate),
			delay,
			strconv.Itoa(project.ToleranceDays),
		)
	}

	fmt.Fprintln(w, t.Render())
}

func renderInfeasibility(w io.Writer, report *scheduler.InfeasibilityReport) {
	if report == nil {
		return
	}

	fmt.Fprintln(w, styleDanger.Render("infeasible")+" "+report.String())
}

func renderResult(w io.Writer, result *scheduler.ScheduleResult, entries []scheduler.ScheduleEntry) {
	renderSummary(w, result)

	if !result.Status.HasSchedule() {
		renderInfeasibility(w, result.Infeasibility)
		return
	}

	renderEntries(w, entries)
	renderProjects(w, result.Projects)
}

func renderSuggestions(w io.Writer, err error) {
	var errValidation *scheduler.ValidationError
	if !errors.As(err, &errValidation) || len(errValidation.Suggestions) == 0 {
		return
	}

	fmt.Fprintln(
		w,
		styleWarning.Render("suggestions")+" "+strings.Join(errValidation.Suggestions, ", ")+
			styleMuted.Render(" (not applied, confirm by editing the snapshot)"),
	)
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(v)
}
