package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/sectorgoals-backend/internal/cache"
	"github.com/yungbote/sectorgoals-backend/internal/data/repos"
	types "github.com/yungbote/sectorgoals-backend/internal/domain"
	"github.com/yungbote/sectorgoals-backend/internal/notify"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/dbctx"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/errors"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
	"github.com/yungbote/sectorgoals-backend/internal/safemath"
)

type UpsertRequest struct {
	Key           types.ParameterKey
	Value         float64
	Justification string
	Actor         string
	// BaseVersionID, when set, must still be the open version.
	BaseVersionID *uuid.UUID
}

// UpsertResult carries the new version and the audit events that the caller
// emits once the surrounding transaction commits.
type UpsertResult struct {
	Record   *types.GoalParameter
	Previous *types.GoalParameter
	Events   []notify.AuditEvent
}

// ParameterVersionStore writes append-only versions of named values and
// goals. A goal write also updates the target projection on the performance
// entry in the same transaction.
type ParameterVersionStore interface {
	// Upsert joins dbc.Tx when present. Call Publish after commit.
	Upsert(dbc dbctx.Context, req UpsertRequest) (*UpsertResult, error)
	// Save runs Upsert in its own transaction and publishes the result.
	Save(ctx context.Context, req UpsertRequest) (*types.GoalParameter, error)
	Publish(ctx context.Context, results ...*UpsertResult)
	Current(dbc dbctx.Context, key types.ParameterKey) (*types.GoalParameter, error)
	History(dbc dbctx.Context, key types.ParameterKey) ([]*types.GoalParameter, error)
	VerifyConsistency(dbc dbctx.Context, key types.ParameterKey) error
}

type parameterVersionStore struct {
	db      *gorm.DB
	log     *logger.Logger
	periods repos.PeriodRepo
	params  repos.GoalParameterRepo
	entries repos.PerformanceEntryRepo
	cache   cache.ParamCache
	audit   notify.AuditSink
	now     func() time.Time
}

func NewParameterVersionStore(
	db *gorm.DB,
	baseLog *logger.Logger,
	periods repos.PeriodRepo,
	params repos.GoalParameterRepo,
	entries repos.PerformanceEntryRepo,
	c cache.ParamCache,
	audit notify.AuditSink,
) ParameterVersionStore {
	return &parameterVersionStore{
		db:      db,
		log:     baseLog.With("service", "ParameterVersionStore"),
		periods: periods,
		params:  params,
		entries: entries,
		cache:   c,
		audit:   audit,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *parameterVersionStore) Upsert(dbc dbctx.Context, req UpsertRequest) (*UpsertResult, error) {
	if err := req.Key.Validate(); err != nil {
		return nil, errors.NewValidation("parameter key", err.Error())
	}
	if strings.TrimSpace(req.Justification) == "" {
		return nil, errors.NewValidation("justification", "a justification is required for every parameter change")
	}
	identity := req.Key.Identity()
	value := safemath.Round4(req.Value)

	var out *UpsertResult
	run := func(tx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: tx}

		var period *types.Period
		if req.Key.IsGoal() {
			p, err := s.periods.LockByID(inner, *req.Key.PeriodID)
			if err != nil {
				return err
			}
			if p == nil {
				return fmt.Errorf("%w: period %s", errors.ErrNotFound, req.Key.PeriodID)
			}
			if p.State() != types.PeriodPlanning {
				return errors.NewValidation("period status",
					fmt.Sprintf("goals of period %s can only change while PLANNING (is %s)", p.Label(), p.Status))
			}
			period = p
		}

		open, err := s.params.LockOpen(inner, identity)
		if err != nil {
			return err
		}
		if req.BaseVersionID != nil {
			if err := s.checkBase(inner, *req.BaseVersionID, open); err != nil {
				return err
			}
		}

		maxVersion, err := s.params.MaxVersion(inner, identity)
		if err != nil {
			return err
		}
		now := s.now()
		rec := &types.GoalParameter{
			IdentityKey:   identity,
			Version:       maxVersion + 1,
			Name:          strings.TrimSpace(req.Key.Name),
			CriterionID:   req.Key.CriterionID,
			SectorID:      req.Key.SectorID,
			PeriodID:      req.Key.PeriodID,
			Value:         value,
			EffectiveFrom: now,
			Justification: strings.TrimSpace(req.Justification),
			CreatedBy:     req.Actor,
		}
		if period != nil {
			rec.EffectiveFrom = period.Start()
		}
		if open != nil {
			closed, err := s.params.Close(inner, open.ID, now)
			if err != nil {
				return err
			}
			if !closed {
				return fmt.Errorf("%w: version %d of %s was closed concurrently", errors.ErrConflict, open.Version, identity)
			}
			closedAt := now
			open.EffectiveTo = &closedAt
			id := open.ID
			rec.PreviousVersionID = &id
			rec.EffectiveFrom = open.EffectiveFrom
		}
		if _, err := s.params.Create(inner, rec); err != nil {
			return err
		}

		if req.Key.IsGoal() {
			if err := s.project(inner, req.Key, value); err != nil {
				return err
			}
		}

		out = &UpsertResult{Record: rec, Previous: open, Events: []notify.AuditEvent{versionEvent(rec, open, now)}}
		return nil
	}

	var err error
	if dbc.Tx != nil {
		err = dbc.Tx.WithContext(dbc.Ctx).Transaction(run)
	} else {
		err = s.db.WithContext(dbc.Ctx).Transaction(run)
	}
	if err != nil {
		return nil, err
	}
	s.invalidate(dbc.Ctx, identity)
	s.log.Info("Parameter version written",
		"identity_key", identity,
		"version", out.Record.Version,
		"value", out.Record.Value,
		"actor", req.Actor,
	)
	return out, nil
}

func (s *parameterVersionStore) checkBase(dbc dbctx.Context, baseID uuid.UUID, open *types.GoalParameter) error {
	base, err := s.params.GetByID(dbc, baseID)
	if err != nil {
		return err
	}
	if base == nil {
		return fmt.Errorf("%w: parameter version %s", errors.ErrNotFound, baseID)
	}
	if !base.Open() || open == nil || open.ID != base.ID {
		return errors.NewValidation("base version",
			fmt.Sprintf("version %d of %s is no longer current", base.Version, base.IdentityKey))
	}
	return nil
}

// project writes the target on the performance entry and reads it back.
func (s *parameterVersionStore) project(dbc dbctx.Context, key types.ParameterKey, value float64) error {
	if _, err := s.entries.SetTarget(dbc, *key.PeriodID, *key.CriterionID, key.SectorID, value); err != nil {
		return fmt.Errorf("project target %s: %w", key.Identity(), err)
	}
	got, err := s.entries.Find(dbc, *key.PeriodID, *key.CriterionID, key.SectorID)
	if err != nil {
		return err
	}
	if got == nil || got.Target == nil || safemath.Round4(*got.Target) != value {
		ce := &errors.ConsistencyError{Key: key.Identity(), Want: value}
		if got != nil {
			ce.Got = got.Target
		}
		return ce
	}
	return nil
}

func (s *parameterVersionStore) invalidate(ctx context.Context, identity string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, identity); err != nil {
		s.log.Warn("Parameter cache invalidation failed", "identity_key", identity, "error", err)
	}
}

func versionEvent(rec, prev *types.GoalParameter, at time.Time) notify.AuditEvent {
	ev := notify.AuditEvent{
		Kind:          notify.AuditParameterVersion,
		EntityID:      rec.IdentityKey,
		Actor:         rec.CreatedBy,
		After:         rec.Value,
		Justification: rec.Justification,
		Data: map[string]interface{}{
			"version":    rec.Version,
			"version_id": rec.ID.String(),
		},
		At: at,
	}
	if prev != nil {
		ev.Before = prev.Value
		ev.Data["previous_version_id"] = prev.ID.String()
	}
	return ev
}

func (s *parameterVersionStore) Save(ctx context.Context, req UpsertRequest) (*types.GoalParameter, error) {
	res, err := s.Upsert(dbctx.New(ctx), req)
	if err != nil {
		return nil, err
	}
	s.Publish(ctx, res)
	return res.Record, nil
}

// Publish invalidates the cache again and emits the audit events. It runs
// after commit so a reader cannot re-cache the previous value.
func (s *parameterVersionStore) Publish(ctx context.Context, results ...*UpsertResult) {
	var box notify.Outbox
	for _, res := range results {
		if res == nil || res.Record == nil {
			continue
		}
		s.invalidate(ctx, res.Record.IdentityKey)
		box.Add(res.Events...)
	}
	box.Flush(ctx, s.audit, s.log)
}

func (s *parameterVersionStore) Current(dbc dbctx.Context, key types.ParameterKey) (*types.GoalParameter, error) {
	if err := key.Validate(); err != nil {
		return nil, errors.NewValidation("parameter key", err.Error())
	}
	return s.params.GetOpen(dbc, key.Identity())
}

func (s *parameterVersionStore) History(dbc dbctx.Context, key types.ParameterKey) ([]*types.GoalParameter, error) {
	if err := key.Validate(); err != nil {
		return nil, errors.NewValidation("parameter key", err.Error())
	}
	return s.params.History(dbc, key.Identity())
}

// VerifyConsistency checks that exactly one version is open and, for goal
// keys, that the target projection matches it.
func (s *parameterVersionStore) VerifyConsistency(dbc dbctx.Context, key types.ParameterKey) error {
	if err := key.Validate(); err != nil {
		return errors.NewValidation("parameter key", err.Error())
	}
	identity := key.Identity()
	n, err := s.params.CountOpen(dbc, identity)
	if err != nil {
		return err
	}
	if n > 1 {
		return fmt.Errorf("%w: %d open versions of %s", errors.ErrConflict, n, identity)
	}
	if !key.IsGoal() || n == 0 {
		return nil
	}
	open, err := s.params.GetOpen(dbc, identity)
	if err != nil {
		return err
	}
	entry, err := s.entries.Find(dbc, *key.PeriodID, *key.CriterionID, key.SectorID)
	if err != nil {
		return err
	}
	if entry == nil || entry.Target == nil || safemath.Round4(*entry.Target) != safemath.Round4(open.Value) {
		ce := &errors.ConsistencyError{Key: identity, Want: open.Value}
		if entry != nil {
			ce.Got = entry.Target
		}
		return ce
	}
	return nil
}
