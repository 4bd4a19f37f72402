package governance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-labs/sentinel/core/pkg/contracts"
)

func TestOrderedRulesFirstMatchWins(t *testing.T) {
	rules := DefaultRules()

	// Irreversible on a critical service matches two rules; the first sets
	// the level, both are reported as factors.
	level, factors := rules.Evaluate(RiskInput{
		Reversible:       false,
		CriticalServices: 1,
		ServiceCount:     1,
		Confidence:       0.9,
	})
	assert.Equal(t, contracts.RiskCritical, level)
	assert.Equal(t, []string{
		"irreversible-on-critical-service",
		"irreversible-action",
		"critical-service-touched",
	}, factors)
}

func TestOrderedRulesFallThroughToLow(t *testing.T) {
	level, factors := DefaultRules().Evaluate(RiskInput{
		Reversible:   true,
		ServiceCount: 1,
		Confidence:   0.95,
	})
	assert.Equal(t, contracts.RiskLow, level)
	assert.Empty(t, factors)
}

func TestOrderedRulesZeroConfidenceIsNotLowConfidence(t *testing.T) {
	// Confidence 0 means no outputs contributed, not a bad analysis.
	level, factors := DefaultRules().Evaluate(RiskInput{Reversible: true})
	assert.Equal(t, contracts.RiskLow, level)
	assert.NotContains(t, factors, "low-confidence-analysis")
}

func TestCELRulesEvaluate(t *testing.T) {
	rules, err := NewCELRules(map[contracts.RiskLevel][]string{
		contracts.RiskCritical: {"critical_services >= 2"},
		contracts.RiskHigh:     {"!reversible", "confidence > 0.0 && confidence < 0.5"},
		contracts.RiskMedium:   {"service_count >= 3", "business_hours"},
	})
	require.NoError(t, err)

	level, factors := rules.Evaluate(RiskInput{
		Reversible:   false,
		ServiceCount: 4,
		Confidence:   0.8,
	})
	assert.Equal(t, contracts.RiskHigh, level)
	assert.Equal(t, []string{"!reversible", "service_count >= 3"}, factors)

	level, factors = rules.Evaluate(RiskInput{
		Reversible:       false,
		CriticalServices: 2,
		Confidence:       0.8,
	})
	assert.Equal(t, contracts.RiskCritical, level)
	assert.Contains(t, factors, "critical_services >= 2")

	level, factors = rules.Evaluate(RiskInput{Reversible: true, Confidence: 0.9})
	assert.Equal(t, contracts.RiskLow, level)
	assert.Empty(t, factors)
}

func TestCELRulesCompileError(t *testing.T) {
	_, err := NewCELRules(map[contracts.RiskLevel][]string{
		contracts.RiskHigh: {"this is not CEL ((("},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compiling rule")
}

func TestCELRulesMatchesOrderedDefaults(t *testing.T) {
	cel, err := NewCELRules(map[contracts.RiskLevel][]string{
		contracts.RiskCritical: {
			"critical_services >= 2",
			"!reversible && critical_services >= 1",
		},
		contracts.RiskHigh: {
			"!reversible",
			"confidence > 0.0 && confidence < 0.5",
			"critical_services >= 1",
		},
		contracts.RiskMedium: {
			"service_count >= 3",
			"business_hours",
		},
	})
	require.NoError(t, err)
	ordered := DefaultRules()

	yes := true
	inputs := []RiskInput{
		{Reversible: true, ServiceCount: 1, Confidence: 0.9},
		{Reversible: false, ServiceCount: 1, Confidence: 0.9},
		{Reversible: false, CriticalServices: 1, Confidence: 0.9},
		{Reversible: true, CriticalServices: 2, Confidence: 0.9},
		{Reversible: true, ServiceCount: 5, Confidence: 0.9},
		{Reversible: true, ServiceCount: 1, Confidence: 0.3},
		{Reversible: true, ServiceCount: 1, Confidence: 0.9, BusinessHours: &yes},
	}
	for _, in := range inputs {
		wantLevel, _ := ordered.Evaluate(in)
		gotLevel, _ := cel.Evaluate(in)
		assert.Equal(t, wantLevel, gotLevel, "input %+v", in)
	}
}
