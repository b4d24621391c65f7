// Package selection scores registered providers against a search request and
// picks the top candidates to dispatch.
package selection

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/tripweave/tripweave/internal/provider/resilience"
	"github.com/tripweave/tripweave/internal/registry"
	"github.com/tripweave/tripweave/internal/search"
)

// Scoring weights. The weighted sub-scores sum to roughly 100 for a healthy,
// well-matched provider; MinScore is the eligibility floor.
const (
	scoreStrongRegion   = 30.0
	scoreCoverageRegion = 15.0
	scoreCategoryFit    = 20.0
	scorePreferenceFit  = 15.0
	scorePerformanceMax = 25.0
	latencyPenaltyMax   = 5.0
	latencyPenaltyPerMS = 0.002
	costPenaltyPerCent  = 0.5
	costPenaltyMax      = 10.0
)

// Selection caps: routine searches query at most 3 providers, comprehensive
// searches widen to 5.
const (
	MaxProvidersRoutine       = 3
	MaxProvidersComprehensive = 5
	DefaultMinScore           = 35.0
)

// Score is the transient per-request scoring record for one provider. It is
// never persisted.
type Score struct {
	Provider string  `json:"provider"`
	Total    float64 `json:"total"`

	// Breakdown.
	GeoFit      float64 `json:"geoFit"`
	CategoryFit float64 `json:"categoryFit"`
	Preference  float64 `json:"preference"`
	Performance float64 `json:"performance"`
	CostPenalty float64 `json:"costPenalty"`
	RuleBoost   float64 `json:"ruleBoost"`

	Eligible bool `json:"eligible"`

	priority int
	cost     float64
	regional registry.RegionFit
}

// Plan is the selection output handed to the execution coordinator.
type Plan struct {
	// Providers is the ordered list of provider codes to dispatch.
	Providers []string

	// Scores holds the full scoring breakdown for every considered
	// provider, in dispatch order first.
	Scores []Score

	// Rescued is true when no provider met the eligibility bar and the
	// single best-scoring candidate was selected anyway to guarantee at
	// least one attempt.
	Rescued bool
}

// Config holds configuration for the selection engine.
type Config struct {
	Registry *registry.Registry
	Rules    *registry.RuleSet
	Breakers *resilience.BreakerSet
	Logger   zerolog.Logger

	// MinScore is the eligibility threshold (default 35).
	MinScore float64

	// CheapCostCeiling is the cost-per-call ceiling applied when the call
	// budget is in cheap-only mode (default 1.0 cent).
	CheapCostCeiling float64
}

// Engine scores and selects providers for dispatch.
type Engine struct {
	registry         *registry.Registry
	rules            *registry.RuleSet
	breakers         *resilience.BreakerSet
	logger           zerolog.Logger
	minScore         float64
	cheapCostCeiling float64
}

// NewEngine creates a selection engine.
func NewEngine(cfg Config) *Engine {
	minScore := cfg.MinScore
	if minScore == 0 {
		minScore = DefaultMinScore
	}
	cheapCeiling := cfg.CheapCostCeiling
	if cheapCeiling == 0 {
		cheapCeiling = 1.0
	}

	return &Engine{
		registry:         cfg.Registry,
		rules:            cfg.Rules,
		breakers:         cfg.Breakers,
		logger:           cfg.Logger,
		minScore:         minScore,
		cheapCostCeiling: cheapCeiling,
	}
}

// Select produces the ordered provider plan for a request. cheapOnly
// restricts candidates to low-cost providers when the call budget is
// exhausted.
func (e *Engine) Select(req *search.Request, cheapOnly bool) Plan {
	// Explicit provider selection bypasses scoring entirely.
	if req.Provider != "" {
		if _, err := e.registry.Get(req.Provider); err == nil {
			return Plan{Providers: []string{req.Provider}}
		}
		return Plan{}
	}

	region := req.Region()
	boosts := e.rules.BoostsFor(req.Category, region)
	candidates := e.registry.Candidates(req.Category)

	scores := make([]Score, 0, len(candidates))
	regionCovered := false
	for i := range candidates {
		p := &candidates[i]
		if cheapOnly && p.CostPerCall > e.cheapCostCeiling {
			continue
		}

		s := e.score(p, req, region, boosts[p.Code])
		if s.regional != registry.RegionNone {
			regionCovered = true
		}
		scores = append(scores, s)
	}

	// Providers with zero geographic fit are excluded unless nobody covers
	// the region at all.
	eligible := make([]Score, 0, len(scores))
	for i := range scores {
		s := &scores[i]
		if regionCovered && s.regional == registry.RegionNone {
			s.Eligible = false
			continue
		}
		if e.breakers.Open(s.Provider) {
			s.Eligible = false
			continue
		}
		if s.Total < e.minScore {
			s.Eligible = false
			continue
		}
		s.Eligible = true
		eligible = append(eligible, *s)
	}

	sortScores(eligible)

	limit := MaxProvidersRoutine
	if req.Comprehensive {
		limit = MaxProvidersComprehensive
	}
	if len(eligible) > limit {
		eligible = eligible[:limit]
	}

	plan := Plan{Scores: scores}
	for _, s := range eligible {
		plan.Providers = append(plan.Providers, s.Provider)
	}

	// Guarantee at least one attempt: rescue the single highest-scoring
	// candidate that only missed the threshold or region cut. Breaker-open
	// providers stay excluded.
	if len(plan.Providers) == 0 && len(scores) > 0 {
		rescue := make([]Score, 0, len(scores))
		for _, s := range scores {
			if !e.breakers.Open(s.Provider) {
				rescue = append(rescue, s)
			}
		}
		if len(rescue) > 0 {
			sortScores(rescue)
			plan.Providers = []string{rescue[0].Provider}
			plan.Rescued = true
			e.logger.Warn().
				Str("provider", rescue[0].Provider).
				Float64("score", rescue[0].Total).
				Str("category", string(req.Category)).
				Str("region", region).
				Msg("no eligible providers, rescuing best candidate")
		}
	}

	return plan
}

// score computes the weighted sub-scores for one provider.
func (e *Engine) score(p *registry.Provider, req *search.Request, region string, ruleBoost float64) Score {
	s := Score{
		Provider: p.Code,
		priority: p.Priority,
		cost:     p.CostPerCall,
		regional: p.FitForRegion(region),
	}

	switch s.regional {
	case registry.RegionStrong:
		s.GeoFit = scoreStrongRegion
	case registry.RegionCoverage:
		s.GeoFit = scoreCoverageRegion
	}

	// Candidates already passed the capability check.
	s.CategoryFit = scoreCategoryFit

	if req.Preferences != nil {
		for _, code := range req.Preferences.PreferredProviders {
			if code == p.Code {
				s.Preference = scorePreferenceFit
				break
			}
		}
	}

	perf := p.HealthScore / 100.0 * scorePerformanceMax
	latencyPenalty := p.AvgLatencyMS * latencyPenaltyPerMS
	if latencyPenalty > latencyPenaltyMax {
		latencyPenalty = latencyPenaltyMax
	}
	s.Performance = perf - latencyPenalty

	s.CostPenalty = p.CostPerCall * costPenaltyPerCent
	if s.CostPenalty > costPenaltyMax {
		s.CostPenalty = costPenaltyMax
	}

	s.RuleBoost = ruleBoost
	s.Total = s.GeoFit + s.CategoryFit + s.Preference + s.Performance - s.CostPenalty + s.RuleBoost
	return s
}

// sortScores orders by total score, then priority, then lower cost.
func sortScores(scores []Score) {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Total != scores[j].Total {
			return scores[i].Total > scores[j].Total
		}
		if scores[i].priority != scores[j].priority {
			return scores[i].priority > scores[j].priority
		}
		return scores[i].cost < scores[j].cost
	})
}
