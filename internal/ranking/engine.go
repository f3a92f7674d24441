package ranking

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/yungbote/sectorgoals-backend/internal/safemath"
)

// SectorValue is one sector's realized and target values for a criterion.
type SectorValue struct {
	SectorID uuid.UUID
	Realized *float64
	Target   *float64
}

type CriterionInput struct {
	CriterionID uuid.UUID
	Name        string
	Kind        Kind
	Direction   Direction
	Values      []SectorValue
}

type SectorScore struct {
	SectorID uuid.UUID `json:"sector_id"`
	Realized *float64  `json:"realized,omitempty"`
	Target   *float64  `json:"target,omitempty"`
	Percent  *float64  `json:"percent,omitempty"`
	Rank     *int      `json:"rank,omitempty"`
	Score    float64   `json:"score"`
}

type CriterionResult struct {
	CriterionID uuid.UUID     `json:"criterion_id"`
	Skipped     bool          `json:"skipped"`
	Scores      []SectorScore `json:"scores"`
}

// Warning is advisory; it never aborts a ranking run.
type Warning struct {
	CriterionID *uuid.UUID `json:"criterion_id,omitempty"`
	SectorID    *uuid.UUID `json:"sector_id,omitempty"`
	Message     string     `json:"message"`
}

type FinalEntry struct {
	SectorID   uuid.UUID `json:"sector_id"`
	TotalScore float64   `json:"total_score"`
	Rank       int       `json:"rank"`
}

type Engine struct {
	rules Rules
}

func NewEngine(rules Rules) *Engine {
	if len(rules.Scale) == 0 {
		rules.Scale = append(Scale(nil), DefaultScale...)
	}
	return &Engine{rules: rules}
}

func (e *Engine) Rules() Rules { return e.rules }

// RankCriterion ranks every sector for one criterion.
func (e *Engine) RankCriterion(in CriterionInput) (CriterionResult, []Warning) {
	res := CriterionResult{CriterionID: in.CriterionID}
	critID := in.CriterionID
	var warnings []Warning

	if !anyRealized(in.Values) {
		res.Skipped = true
		warnings = append(warnings, Warning{
			CriterionID: &critID,
			Message:     fmt.Sprintf("criterion %q has no realized data for any sector; skipped", in.Name),
		})
		return res, warnings
	}

	neutral := safemath.Round2(e.rules.Scale.Neutral())
	rule, hasRule := e.rules.RuleFor(in.Kind)

	scores := make([]SectorScore, 0, len(in.Values))
	for _, v := range in.Values {
		sc := SectorScore{SectorID: v.SectorID, Realized: v.Realized, Target: v.Target, Score: neutral}
		pct, err := sectorPercent(v, rule, hasRule)
		if err != nil {
			sid := v.SectorID
			warnings = append(warnings, Warning{CriterionID: &critID, SectorID: &sid, Message: err.Error()})
		}
		sc.Percent = pct
		scores = append(scores, sc)
	}

	if in.Direction == Unranked {
		res.Scores = scores
		return res, warnings
	}

	ranked := make([]int, 0, len(scores))
	for i := range scores {
		if scores[i].Percent != nil {
			ranked = append(ranked, i)
		}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		pa, pb := *scores[ranked[a]].Percent, *scores[ranked[b]].Percent
		if pa != pb {
			if in.Direction == LowerIsBetter {
				return pa < pb
			}
			return pa > pb
		}
		return scores[ranked[a]].SectorID.String() < scores[ranked[b]].SectorID.String()
	})

	prevRank := 0
	var prevPct float64
	for pos, idx := range ranked {
		pct := *scores[idx].Percent
		rank := e.rules.Ties.next(pos, prevRank, pct == prevPct)
		r := rank
		scores[idx].Rank = &r
		scores[idx].Score = safemath.Round2(e.rules.Scale.PointsFor(rank))
		prevRank, prevPct = rank, pct
	}

	res.Scores = orderByRank(scores)
	return res, warnings
}

// sectorPercent applies the special rule first, then PercentOf. A panic in
// one sector becomes an error so the other sectors still get ranked.
func sectorPercent(v SectorValue, rule SpecialRule, hasRule bool) (pct *float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			pct = nil
			err = fmt.Errorf("sector %s: percent computation failed: %v", v.SectorID, r)
		}
	}()
	if v.Realized == nil {
		return nil, nil
	}
	if hasRule && rule.Applies(*v.Realized) {
		p := safemath.Round4(rule.ForcedPercent)
		return &p, nil
	}
	if v.Target == nil {
		return nil, fmt.Errorf("sector %s: no target configured", v.SectorID)
	}
	p := safemath.PercentOf(*v.Realized, *v.Target)
	if p == nil {
		return nil, fmt.Errorf("sector %s: percent vs target is not finite", v.SectorID)
	}
	return p, nil
}

func anyRealized(values []SectorValue) bool {
	for _, v := range values {
		if v.Realized != nil {
			return true
		}
	}
	return false
}

// orderByRank lists ranked sectors first by rank, then unranked ones in
// input order.
func orderByRank(scores []SectorScore) []SectorScore {
	out := append([]SectorScore(nil), scores...)
	sort.SliceStable(out, func(a, b int) bool {
		ra, rb := out[a].Rank, out[b].Rank
		switch {
		case ra != nil && rb != nil:
			return *ra < *rb
		case ra != nil:
			return true
		default:
			return false
		}
	})
	return out
}

// Accumulator keeps each sector's running total across criteria.
type Accumulator struct {
	totals map[uuid.UUID]float64
	order  []uuid.UUID
	ties   TieRule
}

// NewAccumulator seeds every participating sector with a zero total.
func NewAccumulator(sectors []uuid.UUID) *Accumulator {
	a := &Accumulator{totals: make(map[uuid.UUID]float64, len(sectors))}
	for _, id := range sectors {
		a.touch(id)
	}
	return a
}

func (a *Accumulator) touch(id uuid.UUID) {
	if _, ok := a.totals[id]; !ok {
		a.totals[id] = 0
		a.order = append(a.order, id)
	}
}

func (a *Accumulator) Add(res CriterionResult) {
	if res.Skipped {
		return
	}
	for _, s := range res.Scores {
		a.touch(s.SectorID)
		a.totals[s.SectorID] += s.Score
	}
}

func (a *Accumulator) Total(id uuid.UUID) float64 { return safemath.Round2(a.totals[id]) }

// Final ranks sectors ascending by total score; equal totals share a rank.
func (a *Accumulator) Final() []FinalEntry {
	out := make([]FinalEntry, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, FinalEntry{SectorID: id, TotalScore: safemath.Round2(a.totals[id])})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalScore != out[j].TotalScore {
			return out[i].TotalScore < out[j].TotalScore
		}
		return out[i].SectorID.String() < out[j].SectorID.String()
	})
	for i := range out {
		prev := 0
		tied := false
		if i > 0 {
			prev = out[i-1].Rank
			tied = out[i].TotalScore == out[i-1].TotalScore
		}
		out[i].Rank = a.ties.next(i, prev, tied)
	}
	return out
}

// Outcome is a full period ranking.
type Outcome struct {
	Criteria []CriterionResult `json:"criteria"`
	Final    []FinalEntry      `json:"final"`
	Warnings []Warning         `json:"warnings,omitempty"`
}

// RankPeriod ranks each criterion and aggregates the final standings.
func (e *Engine) RankPeriod(sectors []uuid.UUID, criteria []CriterionInput) Outcome {
	acc := NewAccumulator(sectors)
	acc.ties = e.rules.Ties
	var out Outcome
	for _, c := range criteria {
		res, warns := e.RankCriterion(c)
		out.Warnings = append(out.Warnings, warns...)
		out.Criteria = append(out.Criteria, res)
		acc.Add(res)
	}
	out.Final = acc.Final()
	return out
}
