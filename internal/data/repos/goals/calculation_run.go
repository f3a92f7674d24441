package goals

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/sectorgoals-backend/internal/domain"
	domaingoals "github.com/yungbote/sectorgoals-backend/internal/domain/goals"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/dbctx"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
)

type CalculationRunRepo interface {
	Create(dbc dbctx.Context, run *types.CalculationRun) (*types.CalculationRun, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.CalculationRun, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.CalculationRun, error)
	ListByPeriod(dbc dbctx.Context, periodID uuid.UUID) ([]*types.CalculationRun, error)
	// InFlightForPeriod returns the non-terminal run of a period, or nil.
	InFlightForPeriod(dbc dbctx.Context, periodID uuid.UUID) (*types.CalculationRun, error)
	ApprovedForPeriod(dbc dbctx.Context, periodID uuid.UUID) ([]*types.CalculationRun, error)
	// ClaimNextPending marks the oldest unclaimed PENDING run as claimed.
	ClaimNextPending(dbc dbctx.Context) (*types.CalculationRun, error)
	// Heartbeat refreshes heartbeat_at on a claimed in-flight run.
	Heartbeat(dbc dbctx.Context, id uuid.UUID) (bool, error)
	// ReleaseStale hands back runs whose claim has not beaten since cutoff.
	// Runs below maxAttempts return to PENDING; the rest end in ERROR.
	ReleaseStale(dbc dbctx.Context, cutoff time.Time, maxAttempts int) (StaleRelease, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	// UpdateFieldsIfStatus applies updates only while the run is in one of
	// allowed; false means the guard rejected it.
	UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, allowed []string, updates map[string]interface{}) (bool, error)
	UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error)
}

type StaleRelease struct {
	Requeued []uuid.UUID
	Failed   []uuid.UUID
}

type calculationRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCalculationRunRepo(db *gorm.DB, baseLog *logger.Logger) CalculationRunRepo {
	return &calculationRunRepo{db: db, log: baseLog.With("repo", "CalculationRunRepo")}
}

func (r *calculationRunRepo) Create(dbc dbctx.Context, run *types.CalculationRun) (*types.CalculationRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(dbc.Ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (r *calculationRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.CalculationRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return firstRun(transaction.WithContext(dbc.Ctx).Where("id = ?", id))
}

func (r *calculationRunRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.CalculationRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return firstRun(transaction.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

func (r *calculationRunRepo) ListByPeriod(dbc dbctx.Context, periodID uuid.UUID) ([]*types.CalculationRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.CalculationRun
	if err := transaction.WithContext(dbc.Ctx).
		Where("period_id = ?", periodID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *calculationRunRepo) InFlightForPeriod(dbc dbctx.Context, periodID uuid.UUID) (*types.CalculationRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return firstRun(transaction.WithContext(dbc.Ctx).
		Where("period_id = ? AND status IN ?", periodID, domaingoals.StatusStrings(domaingoals.InFlightStatuses)))
}

func (r *calculationRunRepo) ApprovedForPeriod(dbc dbctx.Context, periodID uuid.UUID) ([]*types.CalculationRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.CalculationRun
	if err := transaction.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("period_id = ? AND status = ?", periodID, string(domaingoals.RunApproved)).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *calculationRunRepo) ClaimNextPending(dbc dbctx.Context) (*types.CalculationRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	var claimed *types.CalculationRun
	err := transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var run types.CalculationRun
		qErr := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND claimed_at IS NULL", string(domaingoals.RunPending)).
			Order("created_at ASC").
			First(&run).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		res := txx.Model(&types.CalculationRun{}).
			Where("id = ? AND claimed_at IS NULL", run.ID).
			Updates(map[string]interface{}{
				"claimed_at":   now,
				"heartbeat_at": now,
				"attempts":     gorm.Expr("attempts + 1"),
				"updated_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		run.ClaimedAt = &now
		run.HeartbeatAt = &now
		run.Attempts++
		claimed = &run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *calculationRunRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.CalculationRun{}).
		Where("id = ? AND claimed_at IS NOT NULL AND status IN ?", id, domaingoals.StatusStrings(domaingoals.InFlightStatuses)).
		UpdateColumn("heartbeat_at", time.Now())
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *calculationRunRepo) ReleaseStale(dbc dbctx.Context, cutoff time.Time, maxAttempts int) (StaleRelease, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var out StaleRelease
	err := transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var stale []*types.CalculationRun
		if err := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("claimed_at IS NOT NULL AND status IN ? AND COALESCE(heartbeat_at, claimed_at) < ?",
				domaingoals.StatusStrings(domaingoals.InFlightStatuses), cutoff).
			Order("created_at ASC").
			Find(&stale).Error; err != nil {
			return err
		}
		now := time.Now()
		for _, run := range stale {
			updates := map[string]interface{}{
				"status":       string(domaingoals.RunPending),
				"step":         "",
				"progress":     0,
				"claimed_at":   nil,
				"heartbeat_at": nil,
				"started_at":   nil,
				"updated_at":   now,
			}
			if run.Attempts >= maxAttempts {
				updates = map[string]interface{}{
					"status":       string(domaingoals.RunError),
					"outcome":      string(domaingoals.RunError),
					"error":        fmt.Sprintf("claim expired after %d attempt(s) without heartbeat", run.Attempts),
					"error_at":     now,
					"finished_at":  now,
					"heartbeat_at": nil,
					"updated_at":   now,
				}
			}
			if err := txx.Model(&types.CalculationRun{}).Where("id = ?", run.ID).Updates(updates).Error; err != nil {
				return err
			}
			if run.Attempts >= maxAttempts {
				out.Failed = append(out.Failed, run.ID)
			} else {
				out.Requeued = append(out.Requeued, run.ID)
			}
		}
		return nil
	})
	if err != nil {
		return StaleRelease{}, err
	}
	if n := len(out.Requeued) + len(out.Failed); n > 0 {
		r.log.Warn("Released stale run claims", "requeued", len(out.Requeued), "failed", len(out.Failed))
	}
	return out, nil
}

func (r *calculationRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.CalculationRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *calculationRunRepo) UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, allowed []string, updates map[string]interface{}) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || len(allowed) == 0 {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.CalculationRun{}).
		Where("id = ? AND status IN ?", id, allowed).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *calculationRunRepo) UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}

	q := transaction.WithContext(dbc.Ctx).
		Model(&types.CalculationRun{}).
		Where("id = ?", id)
	if len(disallowedStatuses) == 1 {
		q = q.Where("status <> ?", disallowedStatuses[0])
	} else if len(disallowedStatuses) > 1 {
		q = q.Where("status NOT IN ?", disallowedStatuses)
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func firstRun(q *gorm.DB) (*types.CalculationRun, error) {
	var run types.CalculationRun
	err := q.First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}
