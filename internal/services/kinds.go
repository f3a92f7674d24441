package services

import (
	types "github.com/yungbote/sectorgoals-backend/internal/domain"
	"github.com/yungbote/sectorgoals-backend/internal/ranking"
)

// ResolveKinds tags every criterion with its kind from the rule table.
func ResolveKinds(criteria []*types.Criterion, rules ranking.Rules) {
	for _, c := range criteria {
		if c == nil {
			continue
		}
		c.Kind = string(rules.KindFor(c.Name))
	}
}

// CriteriaByKind returns the first active criterion of each kind.
func CriteriaByKind(criteria []*types.Criterion) map[ranking.Kind]*types.Criterion {
	out := map[ranking.Kind]*types.Criterion{}
	for _, c := range criteria {
		if c == nil || c.Kind == "" {
			continue
		}
		k := ranking.Kind(c.Kind)
		if _, ok := out[k]; !ok {
			out[k] = c
		}
	}
	return out
}
