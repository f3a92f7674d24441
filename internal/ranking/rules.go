package ranking

import (
	"fmt"
	"strings"
)

// Direction says which way a criterion improves. The empty value means the
// criterion is not ranked and every sector gets the neutral score.
type Direction string

const (
	HigherIsBetter Direction = "HIGHER"
	LowerIsBetter  Direction = "LOWER"
	Unranked       Direction = ""
)

func ParseDirection(s string) Direction {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HIGHER", "HIGHER_IS_BETTER", "MAIOR":
		return HigherIsBetter
	case "LOWER", "LOWER_IS_BETTER", "MENOR":
		return LowerIsBetter
	default:
		return Unranked
	}
}

// Kind tags a criterion once at load time so special cases are table
// lookups instead of name comparisons.
type Kind string

const (
	KindGeneric     Kind = "GENERIC"
	KindAbsenteeism Kind = "ABSENTEEISM"
	KindDistance    Kind = "DISTANCE"
	KindFuel        Kind = "FUEL"
	KindTires       Kind = "TIRES"
	KindParts       Kind = "PARTS"
)

func (k Kind) Valid() bool {
	switch k {
	case KindGeneric, KindAbsenteeism, KindDistance, KindFuel, KindTires, KindParts:
		return true
	default:
		return false
	}
}

// SpecialRule forces a percent when the realized value is strictly below an
// absolute threshold, regardless of target. It always wins over PercentOf.
type SpecialRule struct {
	Threshold     float64 `yaml:"threshold" json:"threshold"`
	ForcedPercent float64 `yaml:"forced_percent" json:"forced_percent"`
}

func (r SpecialRule) Applies(realized float64) bool { return realized < r.Threshold }

// Scale maps rank to points; index 0 is rank 1. Lower points are better.
type Scale []float64

var DefaultScale = Scale{1.0, 1.5, 2.0, 2.5}

// PointsFor returns the points for a 1-based rank. Ranks past the end reuse
// the worst value.
func (s Scale) PointsFor(rank int) float64 {
	if len(s) == 0 {
		return 0
	}
	if rank < 1 {
		rank = 1
	}
	if rank > len(s) {
		return s[len(s)-1]
	}
	return s[rank-1]
}

// Neutral is the midpoint of the scale, given to unrankable sectors.
func (s Scale) Neutral() float64 {
	if len(s) == 0 {
		return 0
	}
	return (s[0] + s[len(s)-1]) / 2
}

func (s Scale) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("point scale is empty")
	}
	for i := 1; i < len(s); i++ {
		if s[i] < s[i-1] {
			return fmt.Errorf("point scale must be ascending: %v", []float64(s))
		}
	}
	return nil
}

// TieRule decides the rank that follows a group of tied sectors.
// Competition skips the tied positions (1, 1, 3); dense does not (1, 1, 2).
type TieRule string

const (
	TieCompetition TieRule = "COMPETITION"
	TieDense       TieRule = "DENSE"
)

func ParseTieRule(s string) (TieRule, error) {
	switch t := TieRule(strings.ToUpper(strings.TrimSpace(s))); t {
	case "":
		return TieCompetition, nil
	case TieCompetition, TieDense:
		return t, nil
	default:
		return "", fmt.Errorf("unknown tie rule %q", s)
	}
}

// next returns the rank for the item at 0-based position pos, given the
// rank of the previous item and whether the two are tied.
func (t TieRule) next(pos, prevRank int, tied bool) int {
	switch {
	case pos == 0:
		return 1
	case tied:
		return prevRank
	case t == TieDense:
		return prevRank + 1
	default:
		return pos + 1
	}
}

// Rules is the resolved ranking configuration.
type Rules struct {
	Scale   Scale
	Ties    TieRule
	Kinds   map[string]Kind
	Special map[Kind]SpecialRule
}

// DefaultRules reproduces the legacy behaviour: absenteeism below 10
// occurrences counts as a perfect result.
func DefaultRules() Rules {
	return Rules{
		Scale: append(Scale(nil), DefaultScale...),
		Ties:  TieCompetition,
		Kinds: map[string]Kind{
			"falta func":  KindAbsenteeism,
			"absenteeism": KindAbsenteeism,
			"km rodado":   KindDistance,
			"distance":    KindDistance,
			"consumo":     KindFuel,
			"fuel":        KindFuel,
			"pneus":       KindTires,
			"tires":       KindTires,
			"pecas":       KindParts,
			"parts":       KindParts,
		},
		Special: map[Kind]SpecialRule{
			KindAbsenteeism: {Threshold: 10, ForcedPercent: 0},
		},
	}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// KindFor resolves a criterion name to its kind; unknown names are generic.
func (r Rules) KindFor(name string) Kind {
	if k, ok := r.Kinds[normalizeName(name)]; ok {
		return k
	}
	return KindGeneric
}

func (r Rules) RuleFor(k Kind) (SpecialRule, bool) {
	rule, ok := r.Special[k]
	return rule, ok
}

// WithKinds returns a copy whose name lookup table is replaced.
func (r Rules) WithKinds(kinds map[string]Kind) Rules {
	out := r
	out.Kinds = make(map[string]Kind, len(kinds))
	for name, k := range kinds {
		out.Kinds[normalizeName(name)] = k
	}
	return out
}
