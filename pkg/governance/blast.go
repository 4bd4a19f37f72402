package governance

import (
	"sort"
	"strings"

	"github.com/veritas-labs/sentinel/core/pkg/contracts"
)

// irreversibleVerbs in a proposed action mark it non-reversible. These are
// placeholder policy, kept in one table so they can be reviewed as such.
var irreversibleVerbs = []string{
	"delete", "drop", "purge", "destroy", "truncate",
	"revoke", "wipe", "decommission",
}

// criticalServices are services whose involvement escalates risk.
var criticalServices = map[string]struct{}{
	"auth":     {},
	"payments": {},
	"billing":  {},
	"database": {},
	"gateway":  {},
}

// IncidentContext is the structural context the orchestrator assembles for
// a governance request. BusinessHours is caller-supplied; nil means the
// caller does not know and no time-zone policy is inferred.
type IncidentContext struct {
	Summary           string   `json:"summary"`
	AffectedServices  []string `json:"affected_services"`
	FindingSummaries  []string `json:"finding_summaries"`
	FrequentTerms     []string `json:"frequent_terms"`
	AverageConfidence float64  `json:"average_confidence"`
	CorrelationCount  int      `json:"correlation_count"`
	BusinessHours     *bool    `json:"business_hours,omitempty"`
}

// actionReversible scans the proposed action text for irreversible verbs.
func actionReversible(action string) bool {
	lower := strings.ToLower(action)
	for _, verb := range irreversibleVerbs {
		if strings.Contains(lower, verb) {
			return false
		}
	}
	return true
}

// affectedServices merges services named in the action text with the
// incident context's list.
func affectedServices(action string, ctx IncidentContext) []string {
	set := make(map[string]struct{})
	for _, s := range ctx.AffectedServices {
		if s != "" {
			set[strings.ToLower(s)] = struct{}{}
		}
	}
	lower := strings.ToLower(action)
	for svc := range criticalServices {
		if strings.Contains(lower, svc) {
			set[svc] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func criticalAffected(services []string) []string {
	var out []string
	for _, s := range services {
		if _, ok := criticalServices[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// AssessBlastRadius derives the full impact envelope for a proposed action:
// affected services, reversibility, risk level via the rule evaluator,
// dependency analysis, and the risk-factor summary. The second return value
// names the rules that matched.
func AssessBlastRadius(action string, ctx IncidentContext, rules RuleEvaluator) (contracts.BlastRadius, []string) {
	services := affectedServices(action, ctx)
	critical := criticalAffected(services)
	reversible := actionReversible(action)

	input := RiskInput{
		Action:           action,
		Reversible:       reversible,
		ServiceCount:     len(services),
		CriticalServices: len(critical),
		Confidence:       ctx.AverageConfidence,
		BusinessHours:    ctx.BusinessHours,
	}
	level, factors := rules.Evaluate(input)

	businessHours := "unspecified"
	if ctx.BusinessHours != nil {
		if *ctx.BusinessHours {
			businessHours = "yes"
		} else {
			businessHours = "no"
		}
	}

	return contracts.BlastRadius{
		AffectedServices: services,
		RiskLevel:        level,
		Reversible:       reversible,
		Dependencies:     analyzeDependencies(services, critical),
		RiskFactors: contracts.RiskFactorSummary{
			Confidence:               ctx.AverageConfidence,
			ServiceCount:             len(services),
			ActionType:               classifyAction(action),
			BusinessHours:            businessHours,
			CriticalServicesAffected: critical,
		},
	}, factors
}

// analyzeDependencies tiers cascade exposure from the service footprint.
// Structural only: the core holds no real dependency graph, so the tier is
// derived from counts and critical-service membership.
func analyzeDependencies(services, critical []string) contracts.DependencyAnalysis {
	cascade := "low"
	switch {
	case len(critical) >= 2:
		cascade = "high"
	case len(critical) == 1 || len(services) >= 3:
		cascade = "moderate"
	}
	return contracts.DependencyAnalysis{
		DirectDependencies:   append([]string(nil), services...),
		CascadeRisk:          cascade,
		CriticalPath:         len(critical) > 0,
		TotalPotentialImpact: len(services) + len(critical),
	}
}

func classifyAction(action string) string {
	lower := strings.ToLower(action)
	switch {
	case !actionReversible(action):
		return "destructive"
	case strings.Contains(lower, "restart") || strings.Contains(lower, "rollback") || strings.Contains(lower, "failover"):
		return "disruptive"
	case strings.Contains(lower, "scale") || strings.Contains(lower, "config"):
		return "adjustive"
	default:
		return "investigative"
	}
}

// policyTriggers map text patterns to named conflict strings. Matching is
// case-insensitive substring search over the action and context text.
var policyTriggers = []struct {
	pattern  string
	conflict string
}{
	{"production deploy", "production-deployment-freeze"},
	{"deploy to production", "production-deployment-freeze"},
	{"hotfix", "production-deployment-freeze"},
	{"auth", "security-change-review-required"},
	{"security group", "security-change-review-required"},
	{"firewall", "security-change-review-required"},
	{"certificate", "security-change-review-required"},
	{"permission", "access-control-review-required"},
	{"iam", "access-control-review-required"},
	{"customer data", "data-handling-review-required"},
	{"pii", "data-handling-review-required"},
}

// DetectPolicyConflicts scans the action and context text for known policy
// triggers and returns the distinct matched conflicts.
func DetectPolicyConflicts(action string, ctx IncidentContext) []string {
	text := strings.ToLower(action + " " + ctx.Summary + " " + strings.Join(ctx.FindingSummaries, " "))
	seen := make(map[string]struct{})
	var conflicts []string
	for _, t := range policyTriggers {
		if _, ok := seen[t.conflict]; ok {
			continue
		}
		if strings.Contains(text, t.pattern) {
			seen[t.conflict] = struct{}{}
			conflicts = append(conflicts, t.conflict)
		}
	}
	sort.Strings(conflicts)
	return conflicts
}
