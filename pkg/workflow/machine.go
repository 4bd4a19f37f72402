// Package workflow owns the incident workflow state machine. Every mutation
// is validated against a fixed transition table and recorded in the audit
// ledger before the call returns; a failed call leaves no partial state.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veritas-labs/sentinel/core/pkg/bus"
	"github.com/veritas-labs/sentinel/core/pkg/contracts"
	"github.com/veritas-labs/sentinel/core/pkg/ledger"
	"github.com/veritas-labs/sentinel/core/pkg/store"
	"github.com/veritas-labs/sentinel/core/pkg/validation"
)

// transitions is the fixed adjacency table. TERMINATED is reachable from
// every non-terminal state and is handled in canTransition rather than
// listed per state.
var transitions = map[contracts.WorkflowState][]contracts.WorkflowState{
	contracts.StateIdle:              {contracts.StateIncidentIngested},
	contracts.StateIncidentIngested:  {contracts.StateAnalyzing},
	contracts.StateAnalyzing:         {contracts.StateRCAComplete},
	contracts.StateRCAComplete:       {contracts.StateGovernancePending},
	contracts.StateGovernancePending: {contracts.StateActionProposed},
	contracts.StateActionProposed:    {contracts.StateVerified},
	contracts.StateVerified:          {contracts.StateResolved},
}

func canTransition(from, to contracts.WorkflowState) bool {
	if from.IsTerminal() {
		return false
	}
	if to == contracts.StateTerminated {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Machine coordinates workflow mutations. All operations are synchronous:
// a call either returns with the new state visible or fails without
// mutation.
type Machine struct {
	mu        sync.Mutex
	registry  store.Registry
	ledger    *ledger.Ledger
	validator *validation.Validator
	pub       bus.Publisher
	logger    *slog.Logger
	clock     func() time.Time
}

// NewMachine wires the state machine to its registry, ledger, and validator.
func NewMachine(reg store.Registry, led *ledger.Ledger, val *validation.Validator, pub bus.Publisher) *Machine {
	if pub == nil {
		pub = bus.NopPublisher{}
	}
	return &Machine{
		registry:  reg,
		ledger:    led,
		validator: val,
		pub:       pub,
		logger:    slog.Default(),
		clock:     time.Now,
	}
}

// WithClock overrides the clock for deterministic tests.
func (m *Machine) WithClock(clock func() time.Time) *Machine {
	m.clock = clock
	return m
}

// WithLogger overrides the default logger.
func (m *Machine) WithLogger(logger *slog.Logger) *Machine {
	m.logger = logger
	return m
}

// CreateWorkflow registers a new workflow in IDLE and writes its first
// ledger entry.
func (m *Machine) CreateWorkflow(ctx context.Context) (*contracts.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock().UTC()
	w := &contracts.Workflow{
		WorkflowID:   uuid.New().String(),
		CurrentState: contracts.StateIdle,
		History:      []contracts.StateVisit{{State: contracts.StateIdle, EnteredAt: now}},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := m.registry.Create(w); err != nil {
		return nil, err
	}

	if _, err := m.ledger.GenerateEvent(ctx, w.WorkflowID, contracts.EventStateTransition, "system",
		map[string]any{"transition": "workflow_created", "to": string(contracts.StateIdle)}, nil); err != nil {
		return nil, fmt.Errorf("workflow: recording creation: %w", err)
	}

	m.notifyState(w, "", contracts.StateIdle)
	m.logger.Info("workflow created", "workflow_id", w.WorkflowID)
	return w.Clone(), nil
}

// GetWorkflow returns a defensive copy of the workflow.
func (m *Machine) GetWorkflow(id string) (*contracts.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, err := m.registry.Get(id)
	if err != nil {
		return nil, err
	}
	return w.Clone(), nil
}

// TransitionTo moves the workflow along a validated edge. The
// GOVERNANCE_PENDING → ACTION_PROPOSED edge additionally requires a
// recorded, non-blocking governance decision and fails with
// ErrGovernanceNotSatisfied otherwise. A TERMINATED target routes through
// the termination path so the final ledger entry is always written.
func (m *Machine) TransitionTo(ctx context.Context, id string, target contracts.WorkflowState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, err := m.registry.Get(id)
	if err != nil {
		return err
	}
	if !canTransition(w.CurrentState, target) {
		return &InvalidTransitionError{WorkflowID: id, From: w.CurrentState, To: target}
	}
	if target == contracts.StateTerminated {
		return m.terminateLocked(ctx, w, "termination requested", "system")
	}
	if w.CurrentState == contracts.StateGovernancePending && target == contracts.StateActionProposed {
		if w.Decision == nil || w.Decision.Decision == contracts.DecisionBlock {
			return &GovernanceGateError{WorkflowID: id}
		}
	}

	from := w.CurrentState
	undo := snapshotState(w)
	m.applyState(w, target)

	if _, err := m.ledger.GenerateEvent(ctx, id, contracts.EventStateTransition, "system",
		map[string]any{"from": string(from), "to": string(target)}, nil); err != nil {
		undo(w)
		return fmt.Errorf("workflow: recording transition: %w", err)
	}
	m.notifyState(w, from, target)
	return nil
}

// TerminateWorkflow moves the workflow to TERMINATED from any non-terminal
// state and writes the final ledger entry with timeline and residual-risk
// context.
func (m *Machine) TerminateWorkflow(ctx context.Context, id, reason string) error {
	return m.ForceTerminateWorkflow(ctx, id, reason, "system")
}

// ForceTerminateWorkflow is TerminateWorkflow with an explicit actor, used
// by the governance gate when a block decision halts the workflow.
func (m *Machine) ForceTerminateWorkflow(ctx context.Context, id, reason, actor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, err := m.registry.Get(id)
	if err != nil {
		return err
	}
	if w.CurrentState.IsTerminal() {
		return &InvalidTransitionError{WorkflowID: id, From: w.CurrentState, To: contracts.StateTerminated}
	}
	return m.terminateLocked(ctx, w, reason, actor)
}

func (m *Machine) terminateLocked(ctx context.Context, w *contracts.Workflow, reason, actor string) error {
	from := w.CurrentState
	undo := snapshotState(w)
	m.applyState(w, contracts.StateTerminated)

	capture := ledger.BuildTerminationCapture(w, reason, m.clock().UTC())
	if _, err := m.ledger.GenerateEvent(ctx, w.WorkflowID, contracts.EventWorkflowTermination, actor,
		map[string]any{"from": string(from), "reason": reason}, capture); err != nil {
		undo(w)
		return fmt.Errorf("workflow: recording termination: %w", err)
	}

	m.pub.Publish(bus.Notification{
		Type:       bus.TypeWorkflowTerminated,
		WorkflowID: w.WorkflowID,
		Payload:    map[string]any{"reason": reason, "actor": actor, "from": string(from)},
	})
	m.logger.Info("workflow terminated", "workflow_id", w.WorkflowID, "reason", reason, "actor", actor)
	return nil
}

// snapshotState captures the fields applyState touches so a failed ledger
// append can restore the workflow to its pre-transition value.
func snapshotState(w *contracts.Workflow) func(*contracts.Workflow) {
	state := w.CurrentState
	historyLen := len(w.History)
	updated := w.UpdatedAt
	return func(w *contracts.Workflow) {
		w.CurrentState = state
		w.History = w.History[:historyLen]
		w.UpdatedAt = updated
	}
}

func (m *Machine) applyState(w *contracts.Workflow, target contracts.WorkflowState) {
	now := m.clock().UTC()
	w.CurrentState = target
	w.History = append(w.History, contracts.StateVisit{State: target, EnteredAt: now})
	w.UpdatedAt = now
}

func (m *Machine) notifyState(w *contracts.Workflow, from, to contracts.WorkflowState) {
	m.pub.Publish(bus.Notification{
		Type:       bus.TypeStateChanged,
		WorkflowID: w.WorkflowID,
		Payload:    map[string]any{"from": string(from), "to": string(to)},
	})
}
