// Package contracts defines the shared domain types exchanged between the
// workflow state machine, the audit ledger, the governance gate, and the
// orchestrator. Types here are plain data: all behavior lives in the owning
// packages.
package contracts

import "time"

// WorkflowState enumerates the incident workflow lifecycle.
type WorkflowState string

const (
	StateIdle              WorkflowState = "IDLE"
	StateIncidentIngested  WorkflowState = "INCIDENT_INGESTED"
	StateAnalyzing         WorkflowState = "ANALYZING"
	StateRCAComplete       WorkflowState = "RCA_COMPLETE"
	StateGovernancePending WorkflowState = "GOVERNANCE_PENDING"
	StateActionProposed    WorkflowState = "ACTION_PROPOSED"
	StateVerified          WorkflowState = "VERIFIED"
	StateResolved          WorkflowState = "RESOLVED"
	StateTerminated        WorkflowState = "TERMINATED"
)

// IsTerminal reports whether no transition leaves the state.
func (s WorkflowState) IsTerminal() bool {
	return s == StateResolved || s == StateTerminated
}

// StateVisit records entry into a state, used to reconstruct the workflow
// timeline for termination context capture.
type StateVisit struct {
	State     WorkflowState `json:"state"`
	EnteredAt time.Time     `json:"entered_at"`
}

// Workflow is the aggregate owned by the state machine. It is never deleted;
// a finished workflow is retained in a terminal state for audit.
type Workflow struct {
	WorkflowID   string              `json:"workflow_id"`
	CurrentState WorkflowState       `json:"current_state"`
	Outputs      []*AgentOutput      `json:"outputs"`
	Decision     *GovernanceDecision `json:"decision,omitempty"`
	History      []StateVisit        `json:"history"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// Output returns the accepted output for a role, or nil.
func (w *Workflow) Output(role Role) *AgentOutput {
	for _, o := range w.Outputs {
		if o.Role == role {
			return o
		}
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate stored workflow state.
func (w *Workflow) Clone() *Workflow {
	cp := *w
	cp.Outputs = make([]*AgentOutput, len(w.Outputs))
	for i, o := range w.Outputs {
		oc := *o
		oc.SkillsUsed = append([]string(nil), o.SkillsUsed...)
		oc.DataSources = append([]string(nil), o.DataSources...)
		oc.Findings = o.Findings.clone()
		cp.Outputs[i] = &oc
	}
	if w.Decision != nil {
		dc := *w.Decision
		dc.Restrictions = append([]string(nil), w.Decision.Restrictions...)
		dc.BlastRadius = w.Decision.BlastRadius.clone()
		cp.Decision = &dc
	}
	cp.History = append([]StateVisit(nil), w.History...)
	return &cp
}
