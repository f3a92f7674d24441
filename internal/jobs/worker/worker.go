package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/sectorgoals-backend/internal/data/repos"
	types "github.com/yungbote/sectorgoals-backend/internal/domain"
	"github.com/yungbote/sectorgoals-backend/internal/jobs/runtime"
	"github.com/yungbote/sectorgoals-backend/internal/notify"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/dbctx"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/envutil"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
)

// Executor runs one claimed calculation run to a terminal status.
type Executor interface {
	Execute(ctx context.Context, runID uuid.UUID) error
}

type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	runs     repos.CalculationRunRepo
	exec     Executor
	progress notify.ProgressSink
	interval time.Duration

	// A claim is stale once its heartbeat is older than claimTimeout.
	heartbeat    time.Duration
	claimTimeout time.Duration
	maxAttempts  int
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, runs repos.CalculationRunRepo, exec Executor, progress notify.ProgressSink) *Worker {
	log := baseLog.With("component", "CalculationWorker")
	return &Worker{
		db:       db,
		log:      log,
		runs:     runs,
		exec:     exec,
		progress: progress,
		interval: envutil.Seconds("WORKER_POLL_SECONDS", time.Second, log),

		heartbeat:    envutil.Seconds("CALC_HEARTBEAT_SECONDS", 15*time.Second, log),
		claimTimeout: envutil.Seconds("CALC_CLAIM_TIMEOUT_SECONDS", 2*time.Minute, log),
		maxAttempts:  envutil.Int("CALC_MAX_ATTEMPTS", 3, log),
	}
}

func (w *Worker) Start(ctx context.Context) {
	concurrency := envutil.Int("WORKER_CONCURRENCY", 2, w.log)
	if concurrency < 1 {
		concurrency = 1
	}
	w.log.Info("Starting calculation worker pool", "concurrency", concurrency)

	for i := 0; i < concurrency; i++ {
		workerID := i + 1
		go w.runLoop(ctx, workerID)
	}
	go w.reapLoop(ctx)
}

func (w *Worker) reapLoop(ctx context.Context) {
	every := w.claimTimeout / 2
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.ReleaseStale(ctx)
		}
	}
}

// ReleaseStale requeues runs claimed by a process that stopped beating.
// Runs that exhausted their attempts are failed and reported as ERROR.
func (w *Worker) ReleaseStale(ctx context.Context) repos.StaleRelease {
	cutoff := time.Now().Add(-w.claimTimeout)
	rel, err := w.runs.ReleaseStale(dbctx.New(ctx), cutoff, w.maxAttempts)
	if err != nil {
		w.log.Warn("ReleaseStale failed", "error", err)
		return repos.StaleRelease{}
	}
	for _, id := range rel.Failed {
		run, err := w.runs.GetByID(dbctx.New(ctx), id)
		if err != nil || run == nil {
			continue
		}
		w.emit(ctx, run)
	}
	return rel
}

func (w *Worker) emit(ctx context.Context, run *types.CalculationRun) {
	if w.progress == nil {
		return
	}
	ev := notify.ProgressEvent{
		RunID:    run.ID,
		PeriodID: run.PeriodID,
		Status:   run.Status,
		Step:     run.Step,
		Percent:  run.Progress,
		At:       time.Now().UTC(),
	}
	if err := w.progress.Progress(ctx, ev); err != nil {
		w.log.Warn("Progress emit failed", "run_id", run.ID, "error", err)
	}
}

// beat keeps the claim on runID fresh until stop is closed.
func (w *Worker) beat(ctx context.Context, runID uuid.UUID, stop <-chan struct{}) {
	if w.heartbeat <= 0 {
		return
	}
	ticker := time.NewTicker(w.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := w.runs.Heartbeat(dbctx.New(ctx), runID)
			if err != nil {
				w.log.Warn("Run heartbeat failed", "run_id", runID, "error", err)
			} else if !ok {
				return
			}
		}
	}
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	interval := w.interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			w.RunOnce(ctx, workerID)
		}
	}
}

// RunOnce claims at most one pending run and executes it. It reports whether
// a run was claimed.
func (w *Worker) RunOnce(ctx context.Context, workerID int) bool {
	run, err := w.runs.ClaimNextPending(dbctx.New(ctx))
	if err != nil {
		w.log.Warn("ClaimNextPending failed", "worker_id", workerID, "error", err)
		return false
	}
	if run == nil {
		return false
	}

	rc := runtime.NewContext(ctx, run, w.runs, w.progress, w.log)
	stop := make(chan struct{})
	go w.beat(ctx, run.ID, stop)
	defer close(stop)
	func() {
		defer func() {
			if r := recover(); r != nil {
				w.log.Error("Calculation run panic",
					"worker_id", workerID,
					"run_id", run.ID,
					"panic", r,
				)
				rc.Fail("panic", fmt.Errorf("panic: %v", r), nil)
			}
		}()

		if runErr := w.exec.Execute(ctx, run.ID); runErr != nil {
			// Execute records its own failures; this only catches runs it
			// could not even load.
			rc.Fail("run", runErr, nil)
		}
	}()
	return true
}
