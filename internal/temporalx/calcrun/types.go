package calcrun

import (
	"github.com/google/uuid"
)

const (
	WorkflowName    = "goal_calculation_run"
	ActivityExecute = "goal_calculation_execute"
)

// WorkflowID groups runs by period in the Temporal UI and is deterministic
// per run, so a second dispatch of the same run is rejected instead of
// executing twice.
func WorkflowID(periodID, runID uuid.UUID) string {
	return "goal-calc/" + periodID.String() + "/" + runID.String()
}
