package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/veritas-labs/sentinel/core/pkg/contracts"
)

var (
	// ErrInvalidTransition marks an edge that does not exist in the
	// transition table.
	ErrInvalidTransition = errors.New("workflow: invalid state transition")

	// ErrGovernanceNotSatisfied marks the one structurally special edge:
	// GOVERNANCE_PENDING → ACTION_PROPOSED attempted without a recorded,
	// non-blocking governance decision. Distinct from ErrInvalidTransition
	// so callers can tell "wrong edge" from "missing governance gate".
	ErrGovernanceNotSatisfied = errors.New("workflow: governance gate not satisfied")

	// ErrWrongState marks an operation invoked outside its permitted state.
	ErrWrongState = errors.New("workflow: operation not permitted in current state")

	// ErrDecisionExists marks a second governance decision attempt; the
	// recorded decision is irrevocable.
	ErrDecisionExists = errors.New("workflow: governance decision already recorded")

	// ErrDuplicateRole marks a second output from a role that has already
	// contributed in this analysis phase.
	ErrDuplicateRole = errors.New("workflow: role already contributed an output")
)

// InvalidTransitionError names the rejected edge.
type InvalidTransitionError struct {
	WorkflowID string
	From       contracts.WorkflowState
	To         contracts.WorkflowState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("workflow %s: no transition from %s to %s", e.WorkflowID, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// GovernanceGateError reports the gated edge attempted without a decision.
type GovernanceGateError struct {
	WorkflowID string
}

func (e *GovernanceGateError) Error() string {
	return fmt.Sprintf(
		"workflow %s: transition GOVERNANCE_PENDING → ACTION_PROPOSED requires a recorded non-blocking governance decision",
		e.WorkflowID)
}

func (e *GovernanceGateError) Is(target error) bool { return target == ErrGovernanceNotSatisfied }

// WrongStateError carries the current and expected states so callers can
// branch on cause.
type WrongStateError struct {
	WorkflowID string
	Current    contracts.WorkflowState
	Expected   contracts.WorkflowState
}

func (e *WrongStateError) Error() string {
	return fmt.Sprintf("workflow %s: in state %s, operation requires %s", e.WorkflowID, e.Current, e.Expected)
}

func (e *WrongStateError) Is(target error) bool { return target == ErrWrongState }

// ValidationError wraps the structured error list from a rejected output or
// decision. No state mutation accompanies it.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("workflow: validation failed: %s", strings.Join(e.Errors, "; "))
}
