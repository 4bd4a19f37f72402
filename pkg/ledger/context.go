package ledger

import (
	"fmt"
	"math"
	"time"

	"github.com/veritas-labs/sentinel/core/pkg/contracts"
)

// Capture builders derive the type-specific context blocks recorded with
// each audit event. The derivations are structural: counts, tiers, and
// bounded scores, never interpretation of finding content.

// BuildOutputCapture derives analysis metrics from an accepted output.
func BuildOutputCapture(o *contracts.AgentOutput) *contracts.ContextCapture {
	evidence := len(o.Findings.Evidence)
	correlations := len(o.Findings.Correlations)
	return &contracts.ContextCapture{
		Output: &contracts.OutputCapture{
			SkillsApplied:       append([]string(nil), o.SkillsUsed...),
			DataSources:         append([]string(nil), o.DataSources...),
			Confidence:          o.Confidence,
			Validation:          o.Validation,
			EvidenceCount:       evidence,
			CorrelationCount:    correlations,
			CorrelationStrength: correlationStrength(correlations),
			DataQualityScore:    dataQualityScore(evidence, correlations, o.Confidence),
		},
	}
}

// correlationStrength tiers the correlation count.
func correlationStrength(n int) string {
	switch {
	case n == 0:
		return "none"
	case n == 1:
		return "weak"
	case n <= 3:
		return "moderate"
	default:
		return "strong"
	}
}

// dataQualityScore blends evidence depth, correlation depth, and confidence
// into a single 0..1 score. Evidence saturates at five items, correlations
// at three.
func dataQualityScore(evidence, correlations int, confidence float64) float64 {
	ev := math.Min(float64(evidence)/5.0, 1.0)
	co := math.Min(float64(correlations)/3.0, 1.0)
	score := 0.4*ev + 0.3*co + 0.3*confidence
	return math.Round(score*100) / 100
}

// authorizedApproverRoles classifies which roles constitute recognized
// decision authority. Anything else is recorded as unverified, not rejected;
// authorization of the human belongs to the transport layer.
var authorizedApproverRoles = map[string]struct{}{
	"incident-commander": {},
	"sre-lead":           {},
	"security-officer":   {},
}

// BuildGovernanceCapture derives the governance risk context for a recorded
// decision, including the detected policy conflicts from the request.
func BuildGovernanceCapture(d *contracts.GovernanceDecision, policyConflicts []string) *contracts.ContextCapture {
	authority := "unverified"
	if _, ok := authorizedApproverRoles[d.Approver.Role]; ok {
		authority = "authorized"
	}
	var compliance string
	switch d.Decision {
	case contracts.DecisionApprove:
		compliance = "standard"
	case contracts.DecisionApproveWithRestrictions:
		compliance = "restricted"
	case contracts.DecisionBlock:
		compliance = "halted"
	}
	return &contracts.ContextCapture{
		Governance: &contracts.GovernanceCapture{
			BlastRadius:        d.BlastRadius,
			RiskScore:          RiskScore(d.BlastRadius),
			PolicyConflicts:    append([]string(nil), policyConflicts...),
			DecisionCompliance: compliance,
			ApproverAuthority:  authority,
		},
	}
}

// RiskScore maps a blast-radius assessment onto 0..1. The base comes from
// the risk level; irreversibility and critical-path exposure push the score
// toward the top of the band.
func RiskScore(b contracts.BlastRadius) float64 {
	var base float64
	switch b.RiskLevel {
	case contracts.RiskLow:
		base = 0.2
	case contracts.RiskMedium:
		base = 0.45
	case contracts.RiskHigh:
		base = 0.7
	case contracts.RiskCritical:
		base = 0.9
	}
	if !b.Reversible {
		base += 0.05
	}
	if b.Dependencies.CriticalPath {
		base += 0.05
	}
	return math.Min(math.Round(base*100)/100, 1.0)
}

// BuildTerminationCapture reconstructs the workflow timeline and residual
// risk at termination time.
func BuildTerminationCapture(w *contracts.Workflow, reason string, now time.Time) *contracts.ContextCapture {
	timeline := make([]contracts.StateSpan, 0, len(w.History))
	for i, visit := range w.History {
		end := now
		if i+1 < len(w.History) {
			end = w.History[i+1].EnteredAt
		}
		timeline = append(timeline, contracts.StateSpan{
			State:      visit.State,
			EnteredAt:  visit.EnteredAt,
			DurationMs: end.Sub(visit.EnteredAt).Milliseconds(),
		})
	}

	residual := residualRisks(w, reason)
	status := completionStatus(w)

	var confidenceSum float64
	for _, o := range w.Outputs {
		confidenceSum += o.Confidence
	}
	avg := 0.0
	if len(w.Outputs) > 0 {
		avg = math.Round(confidenceSum/float64(len(w.Outputs))*100) / 100
	}

	return &contracts.ContextCapture{
		Termination: &contracts.TerminationCapture{
			Timeline:         timeline,
			ResidualRisks:    residual,
			CompletionStatus: status,
			Quality: contracts.QualityMetrics{
				OutputsAccepted:   len(w.Outputs),
				RolesReported:     len(w.Outputs),
				DecisionRecorded:  w.Decision != nil,
				AverageConfidence: avg,
			},
		},
	}
}

func residualRisks(w *contracts.Workflow, reason string) []string {
	var risks []string
	if w.Decision != nil && w.Decision.Decision == contracts.DecisionBlock {
		risks = append(risks, fmt.Sprintf(
			"remediation blocked by governance: %s", w.Decision.Rationale))
	}
	if len(w.Outputs) < len(contracts.AnalysisRoles()) {
		risks = append(risks, fmt.Sprintf(
			"analysis incomplete: %d of %d roles reported", len(w.Outputs), len(contracts.AnalysisRoles())))
	}
	if w.Decision == nil {
		risks = append(risks, "no governance decision was recorded")
	}
	if reason != "" {
		risks = append(risks, fmt.Sprintf("termination reason: %s", reason))
	}
	if len(risks) == 0 {
		risks = append(risks, "none identified")
	}
	return risks
}

func completionStatus(w *contracts.Workflow) string {
	if w.Decision != nil && w.Decision.Decision == contracts.DecisionBlock {
		return "governance_blocked"
	}
	if len(w.Outputs) == len(contracts.AnalysisRoles()) {
		return "forced"
	}
	return "aborted"
}
