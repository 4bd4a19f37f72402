package contracts

import "time"

// DecisionTag enumerates the three possible human governance verdicts.
type DecisionTag string

const (
	DecisionApprove                 DecisionTag = "approve"
	DecisionApproveWithRestrictions DecisionTag = "approve_with_restrictions"
	DecisionBlock                   DecisionTag = "block"
)

// ValidDecisionTag reports whether t is one of the three known tags.
func ValidDecisionTag(t DecisionTag) bool {
	switch t {
	case DecisionApprove, DecisionApproveWithRestrictions, DecisionBlock:
		return true
	}
	return false
}

// RiskLevel orders proposed-action risk from low to critical.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// riskOrder maps levels to a comparable rank.
var riskOrder = map[RiskLevel]int{RiskLow: 0, RiskMedium: 1, RiskHigh: 2, RiskCritical: 3}

// AtLeast reports whether l is at or above the given level.
func (l RiskLevel) AtLeast(other RiskLevel) bool {
	return riskOrder[l] >= riskOrder[other]
}

// Approver identifies the human who recorded a governance decision.
type Approver struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// DependencyAnalysis summarizes how far a proposed action could cascade.
type DependencyAnalysis struct {
	DirectDependencies   []string `json:"direct_dependencies"`
	CascadeRisk          string   `json:"cascade_risk"` // "low" | "moderate" | "high"
	CriticalPath         bool     `json:"critical_path"`
	TotalPotentialImpact int      `json:"total_potential_impact"`
}

// RiskFactorSummary collects the inputs that drove a risk classification.
// BusinessHours is caller-supplied context; when the caller does not know,
// it is reported as "unspecified" rather than guessed from a clock.
type RiskFactorSummary struct {
	Confidence               float64  `json:"confidence"`
	ServiceCount             int      `json:"service_count"`
	ActionType               string   `json:"action_type"`
	BusinessHours            string   `json:"business_hours"` // "yes" | "no" | "unspecified"
	CriticalServicesAffected []string `json:"critical_services_affected"`
}

// BlastRadius is the assessed impact envelope of a proposed action.
type BlastRadius struct {
	AffectedServices []string           `json:"affected_services"`
	RiskLevel        RiskLevel          `json:"risk_level"`
	Reversible       bool               `json:"reversible"`
	Dependencies     DependencyAnalysis `json:"dependency_analysis"`
	RiskFactors      RiskFactorSummary  `json:"risk_factors"`
}

func (b BlastRadius) clone() BlastRadius {
	cp := b
	cp.AffectedServices = append([]string(nil), b.AffectedServices...)
	cp.Dependencies.DirectDependencies = append([]string(nil), b.Dependencies.DirectDependencies...)
	cp.RiskFactors.CriticalServicesAffected = append([]string(nil), b.RiskFactors.CriticalServicesAffected...)
	return cp
}

// GovernanceDecision is the single, irrevocable human verdict on a
// workflow's proposed remediation.
type GovernanceDecision struct {
	Decision     DecisionTag `json:"decision"`
	Rationale    string      `json:"rationale"`
	Approver     Approver    `json:"approver"`
	DecidedAt    time.Time   `json:"decided_at"`
	Restrictions []string    `json:"restrictions,omitempty"`
	BlastRadius  BlastRadius `json:"blast_radius"`
}
