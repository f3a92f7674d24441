package calcrun

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
)

// Executor is satisfied by the calculation orchestrator.
type Executor interface {
	Execute(ctx context.Context, runID uuid.UUID) error
}

type Activities struct {
	Log  *logger.Logger
	Exec Executor

	// HeartbeatEvery defaults to 10s.
	HeartbeatEvery time.Duration
}

func (a *Activities) Execute(ctx context.Context, runID string) error {
	id, err := uuid.Parse(runID)
	if err != nil {
		return temporal.NewNonRetryableApplicationError(fmt.Sprintf("invalid run id %q", runID), "InvalidRunID", err)
	}
	if a.Exec == nil {
		return temporal.NewNonRetryableApplicationError("calcrun: executor not configured", "MissingExecutor", nil)
	}

	stop := a.startHeartbeat(ctx, runID)
	defer stop()

	if err := a.Exec.Execute(ctx, id); err != nil {
		if a.Log != nil {
			a.Log.Warn("Calculation run execution rejected", "run_id", runID, "error", err)
		}
		return temporal.NewNonRetryableApplicationError(err.Error(), "ExecuteRejected", err)
	}
	return nil
}

func (a *Activities) startHeartbeat(ctx context.Context, runID string) func() {
	every := a.HeartbeatEvery
	if every <= 0 {
		every = 10 * time.Second
	}
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				activity.RecordHeartbeat(ctx, runID)
			}
		}
	}()
	return func() { close(done) }
}
