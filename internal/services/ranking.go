package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/yungbote/sectorgoals-backend/internal/config"
	"github.com/yungbote/sectorgoals-backend/internal/data/repos"
	types "github.com/yungbote/sectorgoals-backend/internal/domain"
	"github.com/yungbote/sectorgoals-backend/internal/notify"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/dbctx"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/errors"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
	"github.com/yungbote/sectorgoals-backend/internal/ranking"
)

var tracer = otel.Tracer("github.com/yungbote/sectorgoals-backend/internal/services")

type RankingService interface {
	// Calculate ranks every active criterion of an ACTIVE or CLOSED period
	// and replaces the stored scores.
	Calculate(ctx context.Context, periodID uuid.UUID, actor string) (*ranking.Outcome, error)
	Standings(dbc dbctx.Context, periodID uuid.UUID) ([]*types.FinalRanking, error)
}

type rankingService struct {
	db    *gorm.DB
	log   *logger.Logger
	repos repos.Set
	rules *config.Store
	audit notify.AuditSink
}

func NewRankingService(db *gorm.DB, baseLog *logger.Logger, set repos.Set, rules *config.Store, audit notify.AuditSink) RankingService {
	return &rankingService{
		db:    db,
		log:   baseLog.With("service", "RankingService"),
		repos: set,
		rules: rules,
		audit: audit,
	}
}

func (s *rankingService) Calculate(ctx context.Context, periodID uuid.UUID, actor string) (*ranking.Outcome, error) {
	ctx, span := tracer.Start(ctx, "ranking.calculate")
	defer span.End()
	span.SetAttributes(attribute.String("period_id", periodID.String()))

	out, err := s.calculate(ctx, periodID, actor)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}

func (s *rankingService) calculate(ctx context.Context, periodID uuid.UUID, actor string) (*ranking.Outcome, error) {
	dbc := dbctx.New(ctx)
	period, err := s.repos.Periods.GetByID(dbc, periodID)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, fmt.Errorf("%w: period %s", errors.ErrNotFound, periodID)
	}
	if st := period.State(); st != types.PeriodActive && st != types.PeriodClosed {
		return nil, errors.NewValidation("period status",
			fmt.Sprintf("ranking needs an ACTIVE or CLOSED period, %s is %s", period.Label(), st))
	}

	sectors, err := s.repos.Sectors.ListActive(dbc)
	if err != nil {
		return nil, err
	}
	criteria, err := s.repos.Criteria.ListActive(dbc)
	if err != nil {
		return nil, err
	}
	entries, err := s.repos.Entries.ListByPeriod(dbc, periodID)
	if err != nil {
		return nil, err
	}

	rules := s.rules.Current().Ranking()
	ResolveKinds(criteria, rules)

	sectorIDs := make([]uuid.UUID, 0, len(sectors))
	for _, sec := range sectors {
		sectorIDs = append(sectorIDs, sec.ID)
	}
	inputs := BuildCriterionInputs(criteria, sectorIDs, entries)
	outcome := ranking.NewEngine(rules).RankPeriod(sectorIDs, inputs)

	for _, w := range outcome.Warnings {
		s.log.Warn("Ranking warning",
			"period", period.Label(),
			"criterion_id", w.CriterionID,
			"sector_id", w.SectorID,
			"message", w.Message,
		)
	}

	scores, final := scoreRows(periodID, outcome)
	if err := s.repos.Scores.ReplaceForPeriod(dbc, periodID, scores, final); err != nil {
		return nil, fmt.Errorf("persist ranking: %w", err)
	}

	ev := notify.AuditEvent{
		Kind:     notify.AuditRankingComputed,
		EntityID: periodID.String(),
		Actor:    actor,
		Data: map[string]interface{}{
			"period":   period.Label(),
			"criteria": len(outcome.Criteria),
			"sectors":  len(sectorIDs),
			"warnings": len(outcome.Warnings),
		},
		At: time.Now().UTC(),
	}
	var box notify.Outbox
	box.Add(ev)
	box.Flush(ctx, s.audit, s.log)

	s.log.Info("Ranking computed",
		"period", period.Label(),
		"criteria", len(outcome.Criteria),
		"sectors", len(sectorIDs),
		"warnings", len(outcome.Warnings),
	)
	return &outcome, nil
}

func (s *rankingService) Standings(dbc dbctx.Context, periodID uuid.UUID) ([]*types.FinalRanking, error) {
	return s.repos.Scores.ListFinal(dbc, periodID)
}

// BuildCriterionInputs pairs each sector's realized value with its target,
// falling back to the sector-agnostic target of the criterion.
func BuildCriterionInputs(criteria []*types.Criterion, sectors []uuid.UUID, entries []*types.PerformanceEntry) []ranking.CriterionInput {
	type key struct {
		criterion uuid.UUID
		sector    uuid.UUID
	}
	bySector := map[key]*types.PerformanceEntry{}
	shared := map[uuid.UUID]*types.PerformanceEntry{}
	for _, e := range entries {
		if e.SectorID == nil {
			shared[e.CriterionID] = e
			continue
		}
		bySector[key{e.CriterionID, *e.SectorID}] = e
	}

	out := make([]ranking.CriterionInput, 0, len(criteria))
	for _, c := range criteria {
		in := ranking.CriterionInput{
			CriterionID: c.ID,
			Name:        c.Name,
			Kind:        ranking.Kind(c.Kind),
			Direction:   ranking.ParseDirection(c.Direction),
		}
		fallback := shared[c.ID]
		for _, sid := range sectors {
			v := ranking.SectorValue{SectorID: sid}
			if e := bySector[key{c.ID, sid}]; e != nil {
				v.Realized = e.Realized
				v.Target = e.Target
			}
			if v.Target == nil && fallback != nil {
				v.Target = fallback.Target
			}
			in.Values = append(in.Values, v)
		}
		out = append(out, in)
	}
	return out
}

func scoreRows(periodID uuid.UUID, outcome ranking.Outcome) ([]*types.CriterionScore, []*types.FinalRanking) {
	var scores []*types.CriterionScore
	for _, res := range outcome.Criteria {
		if res.Skipped {
			continue
		}
		for _, sc := range res.Scores {
			scores = append(scores, &types.CriterionScore{
				PeriodID:    periodID,
				SectorID:    sc.SectorID,
				CriterionID: res.CriterionID,
				Realized:    sc.Realized,
				Target:      sc.Target,
				Percent:     sc.Percent,
				Rank:        sc.Rank,
				Score:       sc.Score,
			})
		}
	}
	final := make([]*types.FinalRanking, 0, len(outcome.Final))
	for _, f := range outcome.Final {
		final = append(final, &types.FinalRanking{
			PeriodID:   periodID,
			SectorID:   f.SectorID,
			TotalScore: f.TotalScore,
			Rank:       f.Rank,
		})
	}
	return scores, final
}
