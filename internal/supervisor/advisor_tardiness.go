package supervisor

import (
	"context"
	"fmt"

	scheduler "github.com/TudorHulban/production-scheduler"
)

// TardinessAdvisor approves a plan once no project is late beyond its
// tolerance. Otherwise it proposes raising the priority of the project
// with the largest excess delay, one rank per attempt.
type TardinessAdvisor struct{}

var _ Advisor = TardinessAdvisor{}

func (TardinessAdvisor) Advise(_ context.Context, plan *scheduler.ScheduleResult, _ int) (Advice, error) {
	if plan == nil || !plan.Status.HasSchedule() {
		return Advice{
				Note: "no schedule to review",
			},
			nil
	}

	var (
		worst *scheduler.ProjectSummary
		late  int
	)

	for ix := range plan.Projects {
		project := &plan.Projects[ix]

		if !project.ExceedsTolerance {
			continue
		}

		late++

		if project.Priority <= scheduler.PriorityHighest {
			continue
		}

		if worst == nil || excess(project) > excess(worst) {
			worst = project
		}
	}

	if late == 0 {
		return Advice{
				Approve: true,
				Note:    "every project within tolerance",
			},
			nil
	}

	if worst == nil {
		return Advice{
				Note: fmt.Sprintf("%d late projects already at highest priority", late),
			},
			nil
	}

	return Advice{
			Mutation: &Mutation{
				Kind:        SetProjectPriority,
				ProjectName: worst.ProjectName,
				Priority:    worst.Priority - 1,
			},
			Note: fmt.Sprintf(
				"%s is %d days late against a tolerance of %d",

				worst.ProjectName,
				worst.DelayDays,
				worst.ToleranceDays,
			),
		},
		nil
}

func excess(project *scheduler.ProjectSummary) int {
	return project.DelayDays - project.ToleranceDays
}
