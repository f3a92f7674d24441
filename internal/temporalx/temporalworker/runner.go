package temporalworker

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/sectorgoals-backend/internal/pkg/envutil"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
	"github.com/yungbote/sectorgoals-backend/internal/temporalx"
	"github.com/yungbote/sectorgoals-backend/internal/temporalx/calcrun"
)

// Runner polls the calculation task queue and executes runs through the orchestrator.
type Runner struct {
	log  *logger.Logger
	tc   temporalsdkclient.Client
	exec calcrun.Executor
	cfg  temporalx.Config
}

func NewRunner(log *logger.Logger, tc temporalsdkclient.Client, exec calcrun.Executor, cfg temporalx.Config) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if exec == nil {
		return nil, fmt.Errorf("temporal worker missing executor")
	}
	return &Runner{
		log:  log.With("component", "TemporalWorker", "task_queue", cfg.TaskQueue),
		tc:   tc,
		exec: exec,
		cfg:  cfg,
	}, nil
}

// Start starts the worker within cfg.WorkerStart and stops it when ctx is
// done. A missing namespace is registered first when auto registration is on.
func (r *Runner) Start(ctx context.Context) error {
	if r == nil || r.tc == nil {
		return fmt.Errorf("temporal worker not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := r.cfg
	r.log.Info("Starting Temporal worker", "address", cfg.Address, "namespace", cfg.Namespace)

	return cfg.WorkerStart.Do(ctx, r.log, "temporal worker start", func(context.Context) (bool, error) {
		w := r.newWorker()
		err := w.Start()
		if err == nil {
			go func() {
				<-ctx.Done()
				w.Stop()
			}()
			r.log.Info("Temporal worker started")
			return false, nil
		}
		w.Stop()

		var missing *serviceerror.NamespaceNotFound
		if errors.As(err, &missing) {
			if !cfg.AutoRegisterNamespace {
				return true, fmt.Errorf("namespace %s not found: %w", cfg.Namespace, err)
			}
			if ensureErr := temporalx.EnsureNamespace(ctx, cfg, r.log); ensureErr != nil {
				r.log.Warn("Temporal namespace ensure failed", "namespace", cfg.Namespace, "error", ensureErr)
			}
		}
		return true, err
	})
}

func (r *Runner) newWorker() worker.Worker {
	concurrency := envutil.Int("WORKER_CONCURRENCY", 2, r.log)
	if concurrency < 1 {
		concurrency = 1
	}
	w := worker.New(r.tc, r.cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: concurrency,
	})
	acts := &calcrun.Activities{Log: r.log, Exec: r.exec}
	w.RegisterWorkflowWithOptions(calcrun.Workflow, workflow.RegisterOptions{Name: calcrun.WorkflowName})
	w.RegisterActivityWithOptions(acts.Execute, activity.RegisterOptions{Name: calcrun.ActivityExecute})
	return w
}
