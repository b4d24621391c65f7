package registry

import (
	"sync"

	"github.com/tripweave/tripweave/internal/search"
)

// RuleSet holds the operator routing rules. Rules are replaced wholesale on
// reload and read concurrently at request time.
type RuleSet struct {
	mu    sync.RWMutex
	rules []RoutingRule
}

// NewRuleSet creates a rule set with the given rules.
func NewRuleSet(rules []RoutingRule) *RuleSet {
	return &RuleSet{rules: rules}
}

// Replace swaps in a new rule list.
func (rs *RuleSet) Replace(rules []RoutingRule) {
	rs.mu.Lock()
	rs.rules = rules
	rs.mu.Unlock()
}

// List returns a copy of the current rules.
func (rs *RuleSet) List() []RoutingRule {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	out := make([]RoutingRule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

// BoostsFor evaluates every rule against the search category and region and
// returns the summed boost per target provider code.
func (rs *RuleSet) BoostsFor(category search.Category, region string) map[string]float64 {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	boosts := make(map[string]float64)
	for i := range rs.rules {
		if rs.rules[i].Matches(category, region) {
			boosts[rs.rules[i].Provider] += rs.rules[i].Boost
		}
	}
	return boosts
}
