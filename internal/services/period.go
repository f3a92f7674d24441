package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/sectorgoals-backend/internal/data/repos"
	types "github.com/yungbote/sectorgoals-backend/internal/domain"
	"github.com/yungbote/sectorgoals-backend/internal/notify"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/dbctx"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/errors"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
)

type PeriodService interface {
	Create(ctx context.Context, year, month int) (*types.Period, error)
	// Transition moves PLANNING -> ACTIVE -> CLOSED. Closing a period
	// recomputes its ranking.
	Transition(ctx context.Context, periodID uuid.UUID, to types.PeriodStatus, actor string) (*types.Period, error)
}

type periodService struct {
	db      *gorm.DB
	log     *logger.Logger
	periods repos.PeriodRepo
	ranking RankingService
	audit   notify.AuditSink
}

func NewPeriodService(db *gorm.DB, baseLog *logger.Logger, periods repos.PeriodRepo, rankingSvc RankingService, audit notify.AuditSink) PeriodService {
	return &periodService{
		db:      db,
		log:     baseLog.With("service", "PeriodService"),
		periods: periods,
		ranking: rankingSvc,
		audit:   audit,
	}
}

func (s *periodService) Create(ctx context.Context, year, month int) (*types.Period, error) {
	if month < 1 || month > 12 || year < 2000 {
		return nil, fmt.Errorf("%w: period %04d-%02d", errors.ErrInvalidArgument, year, month)
	}
	dbc := dbctx.New(ctx)
	existing, err := s.periods.GetByYearMonth(dbc, year, month)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: period %s already exists", errors.ErrConflict, existing.Label())
	}
	created, err := s.periods.Create(dbc, []*types.Period{{Year: year, Month: month, Status: string(types.PeriodPlanning)}})
	if err != nil {
		return nil, err
	}
	return created[0], nil
}

func (s *periodService) Transition(ctx context.Context, periodID uuid.UUID, to types.PeriodStatus, actor string) (*types.Period, error) {
	var (
		period *types.Period
		from   types.PeriodStatus
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		p, err := s.periods.LockByID(dbc, periodID)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("%w: period %s", errors.ErrNotFound, periodID)
		}
		from = p.State()
		if !from.CanTransitionTo(to) {
			return errors.NewValidation("period status", fmt.Sprintf("%s cannot move from %s to %s", p.Label(), from, to))
		}
		ok, err := s.periods.UpdateStatus(dbc, periodID, from, to)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: period %s changed concurrently", errors.ErrConflict, p.Label())
		}
		p.Status = string(to)
		period = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	var box notify.Outbox
	box.Add(notify.AuditEvent{
		Kind:     notify.AuditPeriodTransition,
		EntityID: periodID.String(),
		Actor:    actor,
		Before:   string(from),
		After:    string(to),
		At:       time.Now().UTC(),
	})
	box.Flush(ctx, s.audit, s.log)
	s.log.Info("Period transitioned", "period", period.Label(), "from", from, "to", to, "actor", actor)

	if to == types.PeriodClosed && s.ranking != nil {
		if _, err := s.ranking.Calculate(ctx, periodID, actor); err != nil {
			return period, fmt.Errorf("period %s closed but ranking failed: %w", period.Label(), err)
		}
	}
	return period, nil
}
