package governance

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/veritas-labs/sentinel/core/pkg/contracts"
)

// RiskInput is the structural input to risk classification.
type RiskInput struct {
	Action           string
	Reversible       bool
	ServiceCount     int
	CriticalServices int
	Confidence       float64
	BusinessHours    *bool // nil when the caller does not know
}

// RuleEvaluator classifies a proposed action's risk. The detection logic is
// pluggable so the keyword thresholds stay a reviewable placeholder policy
// rather than a baked-in risk model.
type RuleEvaluator interface {
	// Evaluate returns the risk level and the factor names that drove it.
	Evaluate(input RiskInput) (contracts.RiskLevel, []string)
}

// OrderedRules is the default evaluator: an ordered list of predicates,
// first match from the top wins, falling through to low.
type OrderedRules struct {
	rules []orderedRule
}

type orderedRule struct {
	name  string
	level contracts.RiskLevel
	match func(RiskInput) bool
}

// DefaultRules returns the standard ordered rule set. Multiple critical
// services, irreversibility, and low confidence escalate; a single
// reversible low-impact action lands at low or medium.
func DefaultRules() *OrderedRules {
	return &OrderedRules{rules: []orderedRule{
		{
			name:  "multiple-critical-services",
			level: contracts.RiskCritical,
			match: func(in RiskInput) bool { return in.CriticalServices >= 2 },
		},
		{
			name:  "irreversible-on-critical-service",
			level: contracts.RiskCritical,
			match: func(in RiskInput) bool { return !in.Reversible && in.CriticalServices >= 1 },
		},
		{
			name:  "irreversible-action",
			level: contracts.RiskHigh,
			match: func(in RiskInput) bool { return !in.Reversible },
		},
		{
			name:  "low-confidence-analysis",
			level: contracts.RiskHigh,
			match: func(in RiskInput) bool { return in.Confidence > 0 && in.Confidence < 0.5 },
		},
		{
			name:  "critical-service-touched",
			level: contracts.RiskHigh,
			match: func(in RiskInput) bool { return in.CriticalServices >= 1 },
		},
		{
			name:  "wide-footprint",
			level: contracts.RiskMedium,
			match: func(in RiskInput) bool { return in.ServiceCount >= 3 },
		},
		{
			name:  "business-hours-impact",
			level: contracts.RiskMedium,
			match: func(in RiskInput) bool { return in.BusinessHours != nil && *in.BusinessHours },
		},
	}}
}

// Evaluate walks the ordered rules; every matching rule's name is reported
// as a factor, and the highest-priority match sets the level.
func (r *OrderedRules) Evaluate(input RiskInput) (contracts.RiskLevel, []string) {
	level := contracts.RiskLow
	var factors []string
	matched := false
	for _, rule := range r.rules {
		if rule.match(input) {
			factors = append(factors, rule.name)
			if !matched {
				level = rule.level
				matched = true
			}
		}
	}
	return level, factors
}

// CELRules evaluates risk tiers from CEL expressions, letting operators
// swap the placeholder keyword policy for declarative rules without a
// rebuild. Each tier holds expressions over the risk input; the highest
// tier with any true expression wins.
type CELRules struct {
	env      *cel.Env
	mu       sync.RWMutex
	programs map[contracts.RiskLevel][]cel.Program
	names    map[contracts.RiskLevel][]string
	fallback contracts.RiskLevel
}

// NewCELRules compiles the given expressions. The exprs map keys are risk
// levels; values are CEL expressions over the variables: action (string),
// reversible (bool), service_count (int), critical_services (int),
// confidence (double), business_hours (bool).
func NewCELRules(exprs map[contracts.RiskLevel][]string) (*CELRules, error) {
	env, err := cel.NewEnv(
		cel.Variable("action", cel.StringType),
		cel.Variable("reversible", cel.BoolType),
		cel.Variable("service_count", cel.IntType),
		cel.Variable("critical_services", cel.IntType),
		cel.Variable("confidence", cel.DoubleType),
		cel.Variable("business_hours", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("governance: creating CEL environment: %w", err)
	}
	r := &CELRules{
		env:      env,
		programs: make(map[contracts.RiskLevel][]cel.Program),
		names:    make(map[contracts.RiskLevel][]string),
		fallback: contracts.RiskLow,
	}
	for level, sources := range exprs {
		for _, src := range sources {
			ast, issues := env.Compile(src)
			if issues != nil && issues.Err() != nil {
				return nil, fmt.Errorf("governance: compiling rule %q: %w", src, issues.Err())
			}
			prg, err := env.Program(ast)
			if err != nil {
				return nil, fmt.Errorf("governance: building program for %q: %w", src, err)
			}
			r.programs[level] = append(r.programs[level], prg)
			r.names[level] = append(r.names[level], src)
		}
	}
	return r, nil
}

// Evaluate implements RuleEvaluator. Evaluation errors on a rule are
// treated as non-matches: a broken rule must not block governance.
func (r *CELRules) Evaluate(input RiskInput) (contracts.RiskLevel, []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	vars := map[string]any{
		"action":            input.Action,
		"reversible":        input.Reversible,
		"service_count":     int64(input.ServiceCount),
		"critical_services": int64(input.CriticalServices),
		"confidence":        input.Confidence,
		"business_hours":    input.BusinessHours != nil && *input.BusinessHours,
	}

	level := r.fallback
	var factors []string
	for _, tier := range []contracts.RiskLevel{
		contracts.RiskCritical, contracts.RiskHigh, contracts.RiskMedium, contracts.RiskLow,
	} {
		for i, prg := range r.programs[tier] {
			out, _, err := prg.Eval(vars)
			if err != nil {
				continue
			}
			if truth, ok := out.Value().(bool); ok && truth {
				factors = append(factors, r.names[tier][i])
				if tier.AtLeast(level) {
					level = tier
				}
			}
		}
	}
	return level, factors
}

var (
	_ RuleEvaluator = (*OrderedRules)(nil)
	_ RuleEvaluator = (*CELRules)(nil)
)
