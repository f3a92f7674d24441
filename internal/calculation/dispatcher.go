package calculation

import (
	"context"

	types "github.com/yungbote/sectorgoals-backend/internal/domain"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
)

// Dispatcher hands a freshly created PENDING run to whatever executes it.
type Dispatcher interface {
	Dispatch(ctx context.Context, run *types.CalculationRun) error
}

// QueueDispatcher leaves the run PENDING; the worker pool claims it.
type QueueDispatcher struct {
	Log *logger.Logger
}

func (d QueueDispatcher) Dispatch(ctx context.Context, run *types.CalculationRun) error {
	if d.Log != nil {
		d.Log.Debug("Run queued for worker pool", "run_id", run.ID, "period_id", run.PeriodID)
	}
	return nil
}
