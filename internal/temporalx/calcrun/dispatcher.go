package calcrun

import (
	"context"
	"fmt"

	enumspb "go.temporal.io/api/enums/v1"
	temporalsdkclient "go.temporal.io/sdk/client"

	types "github.com/yungbote/sectorgoals-backend/internal/domain"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
)

// Starter is the slice of the Temporal client the dispatcher needs.
type Starter interface {
	ExecuteWorkflow(ctx context.Context, options temporalsdkclient.StartWorkflowOptions, workflow interface{}, args ...interface{}) (temporalsdkclient.WorkflowRun, error)
}

// Dispatcher starts one workflow per calculation run.
type Dispatcher struct {
	Client    Starter
	TaskQueue string
	Log       *logger.Logger
}

func (d *Dispatcher) Dispatch(ctx context.Context, run *types.CalculationRun) error {
	if d == nil || d.Client == nil {
		return fmt.Errorf("calcrun: temporal client not configured")
	}
	wr, err := d.Client.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:                    WorkflowID(run.PeriodID, run.ID),
		TaskQueue:             d.TaskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
		Memo: map[string]interface{}{
			"period_id":    run.PeriodID.String(),
			"requested_by": run.RequestedBy,
		},
	}, WorkflowName, run.ID.String())
	if err != nil {
		return fmt.Errorf("calcrun: start workflow: %w", err)
	}
	if d.Log != nil {
		d.Log.Info("Calculation workflow started", "run_id", run.ID, "period_id", run.PeriodID, "workflow_id", wr.GetID(), "temporal_run_id", wr.GetRunID())
	}
	return nil
}
