// Package config loads the ranking and forecasting rules file.
//
// Fields:
//   - scale               ascending rank-to-points table (default 1.0, 1.5, 2.0, 2.5)
//   - kinds               criterion name -> kind (ABSENTEEISM, DISTANCE, FUEL, TIRES, PARTS)
//   - special             kind -> {threshold, forced_percent}
//   - quality_threshold   data quality below which forecasts warn (default 0.7)
//   - required_parameters named values that must resolve before a run starts
//   - parameter_ranges    name -> {min, max, integer} accepted for a named value
//   - forecast            lookback windows and default adjustment values
//
// Load(path) applies defaults before unmarshalling, then validates.
package config

import (
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/sectorgoals-backend/internal/forecast"
	"github.com/yungbote/sectorgoals-backend/internal/ranking"
)

// Named configuration values read through ConfigurationSource.
const (
	ParamFuelReductionPct   = "fuel_reduction_pct"
	ParamTiresAwardPct      = "tires_award_pct"
	ParamPartsAwardPct      = "parts_award_pct"
	ParamCarryoverTolerance = "carryover_tolerance_pct"
	ParamFuelLookbackMonths = "fuel_lookback_months"
	ParamCostLookbackMonths = "cost_lookback_months"
)

// DefaultRequiredParameters must resolve for the validator to pass.
var DefaultRequiredParameters = []string{
	ParamFuelReductionPct,
	ParamTiresAwardPct,
	ParamPartsAwardPct,
}

// ParamRange bounds a named configuration value. Integer values must have no
// fractional part.
type ParamRange struct {
	Min     float64 `yaml:"min"`
	Max     float64 `yaml:"max"`
	Integer bool    `yaml:"integer"`
}

func (r ParamRange) Check(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("must be a finite number")
	}
	if v < r.Min || v > r.Max {
		return fmt.Errorf("must be within [%v,%v]", r.Min, r.Max)
	}
	if r.Integer && v != math.Trunc(v) {
		return fmt.Errorf("must be a whole number")
	}
	return nil
}

var percentRange = ParamRange{Min: 0, Max: 100}

// DefaultParameterRanges covers every named value the forecasts read.
var DefaultParameterRanges = map[string]ParamRange{
	ParamFuelReductionPct:   percentRange,
	ParamTiresAwardPct:      percentRange,
	ParamPartsAwardPct:      percentRange,
	ParamCarryoverTolerance: percentRange,
	ParamFuelLookbackMonths: {Min: 1, Max: 60, Integer: true},
	ParamCostLookbackMonths: {Min: 1, Max: 60, Integer: true},
}

type Rules struct {
	Scale              []float64                      `yaml:"scale"`
	Ties               string                         `yaml:"ties"`
	Kinds              map[string]string              `yaml:"kinds"`
	Special            map[string]ranking.SpecialRule `yaml:"special"`
	QualityThreshold   float64                        `yaml:"quality_threshold"`
	RequiredParameters []string                       `yaml:"required_parameters"`
	ParameterRanges    map[string]ParamRange          `yaml:"parameter_ranges"`
	Forecast           ForecastRules                  `yaml:"forecast"`
}

type ForecastRules struct {
	FuelLookbackMonths int     `yaml:"fuel_lookback_months"`
	CostLookbackMonths int     `yaml:"cost_lookback_months"`
	TolerancePct       float64 `yaml:"tolerance_pct"`
}

// Load reads and parses the rules file at path. An empty path returns the
// defaults.
func Load(path string) (*Rules, error) {
	if strings.TrimSpace(path) == "" {
		return Defaults(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Rules, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Defaults mirrors ranking.DefaultRules plus the forecast defaults.
func Defaults() *Rules {
	base := ranking.DefaultRules()
	kinds := make(map[string]string, len(base.Kinds))
	for name, k := range base.Kinds {
		kinds[name] = string(k)
	}
	special := make(map[string]ranking.SpecialRule, len(base.Special))
	for k, r := range base.Special {
		special[string(k)] = r
	}
	ranges := make(map[string]ParamRange, len(DefaultParameterRanges))
	for name, r := range DefaultParameterRanges {
		ranges[name] = r
	}
	return &Rules{
		Scale:              append([]float64(nil), base.Scale...),
		Ties:               string(base.Ties),
		Kinds:              kinds,
		Special:            special,
		QualityThreshold:   forecast.QualityThreshold,
		RequiredParameters: append([]string(nil), DefaultRequiredParameters...),
		ParameterRanges:    ranges,
		Forecast: ForecastRules{
			FuelLookbackMonths: forecast.DefaultFuelLookbackMonths,
			CostLookbackMonths: forecast.DefaultCostLookbackMonths,
			TolerancePct:       forecast.DefaultTolerancePct,
		},
	}
}

func validate(cfg *Rules) error {
	if err := ranking.Scale(cfg.Scale).Validate(); err != nil {
		return fmt.Errorf("scale: %w", err)
	}
	if _, err := ranking.ParseTieRule(cfg.Ties); err != nil {
		return fmt.Errorf("ties: %w", err)
	}
	for name, k := range cfg.Kinds {
		if !ranking.Kind(strings.ToUpper(k)).Valid() {
			return fmt.Errorf("kinds[%q]: unknown kind %q", name, k)
		}
	}
	for k := range cfg.Special {
		if !ranking.Kind(strings.ToUpper(k)).Valid() {
			return fmt.Errorf("special: unknown kind %q", k)
		}
	}
	if cfg.QualityThreshold < 0 || cfg.QualityThreshold > 1 {
		return fmt.Errorf("quality_threshold must be within [0,1]")
	}
	if cfg.Forecast.FuelLookbackMonths <= 0 {
		return fmt.Errorf("forecast.fuel_lookback_months must be positive")
	}
	if cfg.Forecast.CostLookbackMonths <= 0 {
		return fmt.Errorf("forecast.cost_lookback_months must be positive")
	}
	if cfg.Forecast.TolerancePct < 0 {
		return fmt.Errorf("forecast.tolerance_pct must not be negative")
	}
	for i, name := range cfg.RequiredParameters {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("required_parameters[%d]: empty name", i)
		}
	}
	for name, r := range cfg.ParameterRanges {
		if r.Min > r.Max {
			return fmt.Errorf("parameter_ranges[%q]: min %v above max %v", name, r.Min, r.Max)
		}
	}
	return nil
}

// CheckParameter validates v against the configured range for name. Names
// without a range only need to be finite.
func (r *Rules) CheckParameter(name string, v float64) error {
	rng, ok := r.ParameterRanges[name]
	if !ok {
		rng = ParamRange{Min: math.Inf(-1), Max: math.Inf(1)}
	}
	return rng.Check(v)
}

// Ranking resolves the file into the engine's rule table.
func (r *Rules) Ranking() ranking.Rules {
	ties, _ := ranking.ParseTieRule(r.Ties)
	out := ranking.Rules{
		Scale:   append(ranking.Scale(nil), r.Scale...),
		Ties:    ties,
		Special: make(map[ranking.Kind]ranking.SpecialRule, len(r.Special)),
	}
	kinds := make(map[string]ranking.Kind, len(r.Kinds))
	for name, k := range r.Kinds {
		kinds[name] = ranking.Kind(strings.ToUpper(k))
	}
	for k, rule := range r.Special {
		out.Special[ranking.Kind(strings.ToUpper(k))] = rule
	}
	return out.WithKinds(kinds)
}
