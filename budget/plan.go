package budget

import (
	"fmt"
	"time"

	"github.com/warp/formation-engine/generic"
)

// ArchiveResult is the outcome of archiving a plan: the archived plan and
// the needs that were detached from it.
type ArchiveResult struct {
	Plan     Plan
	Detached []TrainingNeed
}

// ArchivePlan soft-deletes a plan. Its needs are not archived: they are
// detached and become one-off spend of the same fiscal year. Needs of other
// plans are left out of the result. Archiving twice is an error.
func ArchivePlan(plan Plan, needs []TrainingNeed, at time.Time) (ArchiveResult, error) {
	if plan.IsArchived() {
		return ArchiveResult{}, &generic.TransitionError{Document: "plan " + string(plan.ID), From: "archived", To: "archived"}
	}
	if err := generic.ValidateFiscalYear(plan.FiscalYear); err != nil {
		return ArchiveResult{}, fmt.Errorf("archive plan %s: %w", plan.ID, err)
	}

	archivedAt := at
	plan.ArchivedAt = &archivedAt

	var detached []TrainingNeed
	for _, n := range needs {
		if n.PlanID != plan.ID {
			continue
		}
		n.PlanID = ""
		n.OneOff = true
		detached = append(detached, n)
	}
	return ArchiveResult{Plan: plan, Detached: detached}, nil
}
