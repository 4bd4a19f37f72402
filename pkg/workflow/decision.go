package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/veritas-labs/sentinel/core/pkg/bus"
	"github.com/veritas-labs/sentinel/core/pkg/contracts"
	"github.com/veritas-labs/sentinel/core/pkg/ledger"
)

// AddGovernanceDecision records the single human verdict for a workflow.
// Permitted only in GOVERNANCE_PENDING; the recorded decision is
// irrevocable. A block decision terminates the workflow immediately; an
// approval leaves it in GOVERNANCE_PENDING until TransitionTo(ACTION_PROPOSED)
// is explicitly called. policyConflicts are the conflicts detected by the
// governance gate, recorded with the ledger entry.
func (m *Machine) AddGovernanceDecision(ctx context.Context, id string, d contracts.GovernanceDecision, policyConflicts []string) (*contracts.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, err := m.registry.Get(id)
	if err != nil {
		return nil, err
	}
	if w.CurrentState != contracts.StateGovernancePending {
		return nil, &WrongStateError{WorkflowID: id, Current: w.CurrentState, Expected: contracts.StateGovernancePending}
	}
	if w.Decision != nil {
		return nil, ErrDecisionExists
	}
	if errs := validateDecision(d); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	if d.DecidedAt.IsZero() {
		d.DecidedAt = m.clock().UTC()
	}
	prevUpdated := w.UpdatedAt
	w.Decision = &d
	w.UpdatedAt = m.clock().UTC()

	capture := ledger.BuildGovernanceCapture(&d, policyConflicts)
	if _, err := m.ledger.GenerateEvent(ctx, id, contracts.EventGovernanceDecision, d.Approver.ID,
		map[string]any{
			"decision":  string(d.Decision),
			"rationale": d.Rationale,
			"approver":  d.Approver.ID,
		}, capture); err != nil {
		// A decision the ledger never saw must not consume the single slot.
		w.Decision = nil
		w.UpdatedAt = prevUpdated
		return nil, fmt.Errorf("workflow: recording decision: %w", err)
	}

	m.pub.Publish(bus.Notification{
		Type:       bus.TypeGovernanceDecision,
		WorkflowID: id,
		Payload: map[string]any{
			"decision": string(d.Decision),
			"approver": d.Approver.ID,
		},
	})
	m.logger.Info("governance decision recorded",
		"workflow_id", id, "decision", d.Decision, "approver", d.Approver.ID)

	if d.Decision == contracts.DecisionBlock {
		if err := m.terminateLocked(ctx, w, d.Rationale, d.Approver.ID); err != nil {
			return nil, err
		}
	}
	return w.Clone(), nil
}

func validateDecision(d contracts.GovernanceDecision) []string {
	var errs []string
	if !contracts.ValidDecisionTag(d.Decision) {
		errs = append(errs, fmt.Sprintf("decision: unknown tag %q", d.Decision))
	}
	if strings.TrimSpace(d.Rationale) == "" {
		errs = append(errs, "decision: rationale must not be empty")
	}
	if d.Approver.ID == "" {
		errs = append(errs, "decision: approver id must not be empty")
	}
	return errs
}
