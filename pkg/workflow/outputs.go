package workflow

import (
	"context"
	"fmt"
	"sort"

	"github.com/veritas-labs/sentinel/core/pkg/bus"
	"github.com/veritas-labs/sentinel/core/pkg/contracts"
	"github.com/veritas-labs/sentinel/core/pkg/ledger"
	"github.com/veritas-labs/sentinel/core/pkg/validation"
)

// AddAgentOutput validates and accepts a specialist candidate. Permitted
// only while the workflow is ANALYZING; a role may contribute once. On
// rejection nothing is stored and the validation errors are returned.
// Warnings accompany success and are advisory only.
func (m *Machine) AddAgentOutput(ctx context.Context, id string, candidate validation.Candidate) (*contracts.AgentOutput, []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, err := m.registry.Get(id)
	if err != nil {
		return nil, nil, err
	}
	if w.CurrentState != contracts.StateAnalyzing {
		return nil, nil, &WrongStateError{WorkflowID: id, Current: w.CurrentState, Expected: contracts.StateAnalyzing}
	}

	res := m.validator.Validate(candidate)
	if !res.Valid() {
		return nil, res.Warnings, &ValidationError{Errors: res.Errors}
	}
	output := res.Output
	if existing := w.Output(output.Role); existing != nil {
		return nil, res.Warnings, fmt.Errorf("%w: %s", ErrDuplicateRole, output.Role)
	}

	prevUpdated := w.UpdatedAt
	w.Outputs = append(w.Outputs, output)
	w.UpdatedAt = m.clock().UTC()

	capture := ledger.BuildOutputCapture(output)
	if _, err := m.ledger.GenerateEvent(ctx, id, contracts.EventAgentOutput, string(output.Role),
		map[string]any{
			"role":        string(output.Role),
			"skills_used": output.SkillsUsed,
			"confidence":  output.Confidence,
		}, capture); err != nil {
		// An output the ledger never saw must not be retained.
		w.Outputs = w.Outputs[:len(w.Outputs)-1]
		w.UpdatedAt = prevUpdated
		return nil, res.Warnings, fmt.Errorf("workflow: recording output: %w", err)
	}

	m.pub.Publish(bus.Notification{
		Type:       bus.TypeOutputAccepted,
		WorkflowID: id,
		Payload: map[string]any{
			"role":       string(output.Role),
			"confidence": output.Confidence,
		},
	})
	m.logger.Info("agent output accepted",
		"workflow_id", id, "role", output.Role, "confidence", output.Confidence)

	clone := w.Clone()
	return clone.Output(output.Role), res.Warnings, nil
}

// IsAnalysisComplete reports whether the workflow is ANALYZING and every
// designated role has contributed exactly one accepted output.
func (m *Machine) IsAnalysisComplete(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, err := m.registry.Get(id)
	if err != nil {
		return false, err
	}
	return analysisComplete(w), nil
}

func analysisComplete(w *contracts.Workflow) bool {
	if w.CurrentState != contracts.StateAnalyzing {
		return false
	}
	for _, role := range contracts.AnalysisRoles() {
		if w.Output(role) == nil {
			return false
		}
	}
	return len(w.Outputs) == len(contracts.AnalysisRoles())
}

// CanTransitionToRCAComplete requires complete analysis plus an all-true
// validation triple on every stored output.
func (m *Machine) CanTransitionToRCAComplete(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, err := m.registry.Get(id)
	if err != nil {
		return false, err
	}
	if !analysisComplete(w) {
		return false, nil
	}
	for _, o := range w.Outputs {
		if !o.Validation.AllValid() {
			return false, nil
		}
	}
	return true, nil
}

// RoleEvidence pairs one role's evidence and correlation lists.
type RoleEvidence struct {
	Role         contracts.Role `json:"role"`
	Evidence     []string       `json:"evidence"`
	Correlations []string       `json:"correlations"`
}

// CorrelationSummary is the structural cross-role view the orchestrator
// consumes: completeness per role, the union of capability tags used, and
// the paired evidence lists. It counts and flags; it never classifies or
// diagnoses findings.
type CorrelationSummary struct {
	RoleCompletion map[contracts.Role]bool `json:"role_completion"`
	SkillsUsed     []string                `json:"skills_used"`
	Evidence       []RoleEvidence          `json:"evidence"`
	ReadyForRCA    bool                    `json:"ready_for_rca"`
}

// CorrelateAgentOutputs builds the structural summary for a workflow.
func (m *Machine) CorrelateAgentOutputs(id string) (*CorrelationSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, err := m.registry.Get(id)
	if err != nil {
		return nil, err
	}

	summary := &CorrelationSummary{
		RoleCompletion: make(map[contracts.Role]bool, len(contracts.AnalysisRoles())),
	}
	tagSet := make(map[string]struct{})
	allValid := true
	for _, role := range contracts.AnalysisRoles() {
		o := w.Output(role)
		summary.RoleCompletion[role] = o != nil
		if o == nil {
			allValid = false
			continue
		}
		for _, t := range o.SkillsUsed {
			tagSet[t] = struct{}{}
		}
		summary.Evidence = append(summary.Evidence, RoleEvidence{
			Role:         role,
			Evidence:     append([]string(nil), o.Findings.Evidence...),
			Correlations: append([]string(nil), o.Findings.Correlations...),
		})
		if !o.Validation.AllValid() {
			allValid = false
		}
	}
	for t := range tagSet {
		summary.SkillsUsed = append(summary.SkillsUsed, t)
	}
	sort.Strings(summary.SkillsUsed)
	summary.ReadyForRCA = analysisComplete(w) && allValid
	return summary, nil
}
