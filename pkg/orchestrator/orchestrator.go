// Package orchestrator coordinates the parallel specialist analysis for a
// workflow: it creates one task per role, tracks completion, and decides
// when the workflow may advance to RCA and governance. Coordination only —
// the orchestrator never reads or judges finding content; it counts, lists,
// and flags completeness.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veritas-labs/sentinel/core/pkg/bus"
	"github.com/veritas-labs/sentinel/core/pkg/contracts"
	"github.com/veritas-labs/sentinel/core/pkg/governance"
	"github.com/veritas-labs/sentinel/core/pkg/workflow"
)

var ErrNoSession = errors.New("orchestrator: no analysis session for workflow")

// SessionStatus tracks one coordination session.
type SessionStatus string

const (
	SessionInitiated  SessionStatus = "initiated"
	SessionInProgress SessionStatus = "in-progress"
	SessionCompleted  SessionStatus = "completed"
	SessionFailed     SessionStatus = "failed"
)

// TaskStatus tracks one per-role coordination task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in-progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// roleFocus stamps each task with a structural focus label and the
// capabilities the role is expected to exercise. Defining WHAT each role
// looks at, never HOW.
var roleFocus = map[contracts.Role]struct {
	focus        string
	capabilities []string
}{
	contracts.RoleReliability: {
		focus:        "operational-reliability-analysis",
		capabilities: []string{"metrics-analysis", "log-analysis", "distributed-tracing"},
	},
	contracts.RoleSecurity: {
		focus:        "security-threat-analysis",
		capabilities: []string{"threat-intelligence", "access-log-analysis", "ioc-matching"},
	},
	contracts.RoleCompliance: {
		focus:        "regulatory-compliance-analysis",
		capabilities: []string{"policy-lookup", "regulatory-mapping", "data-classification"},
	},
}

// Task is one role's coordination record.
type Task struct {
	TaskID               string         `json:"task_id"`
	Role                 contracts.Role `json:"role"`
	Focus                string         `json:"focus"`
	ExpectedCapabilities []string       `json:"expected_capabilities"`
	Status               TaskStatus     `json:"status"`
	CreatedAt            time.Time      `json:"created_at"`
	CompletedAt          *time.Time     `json:"completed_at,omitempty"`
}

// Session tracks the parallel analysis for one workflow.
type Session struct {
	SessionID  string                   `json:"session_id"`
	WorkflowID string                   `json:"workflow_id"`
	Status     SessionStatus            `json:"status"`
	Tasks      map[contracts.Role]*Task `json:"tasks"`
	CreatedAt  time.Time                `json:"created_at"`
}

// RCAReadiness is the result of coordinateRCATransition: every outstanding
// blocker is listed so a UI can display them all at once.
type RCAReadiness struct {
	CanTransition bool                         `json:"can_transition"`
	Correlation   *workflow.CorrelationSummary `json:"correlation,omitempty"`
	Blockers      []string                     `json:"blockers"`
}

// Machine is the state-machine surface the orchestrator consumes.
type Machine interface {
	GetWorkflow(id string) (*contracts.Workflow, error)
	IsAnalysisComplete(id string) (bool, error)
	CanTransitionToRCAComplete(id string) (bool, error)
	CorrelateAgentOutputs(id string) (*workflow.CorrelationSummary, error)
}

// Orchestrator coordinates sessions and invokes the governance gate.
type Orchestrator struct {
	mu       sync.Mutex
	sessions map[string]*Session

	machine Machine
	gate    *governance.Gate
	pub     bus.Publisher
	logger  *slog.Logger
	clock   func() time.Time
}

// New creates an orchestrator over the state machine and governance gate.
func New(machine Machine, gate *governance.Gate, pub bus.Publisher) *Orchestrator {
	if pub == nil {
		pub = bus.NopPublisher{}
	}
	return &Orchestrator{
		sessions: make(map[string]*Session),
		machine:  machine,
		gate:     gate,
		pub:      pub,
		logger:   slog.Default(),
		clock:    time.Now,
	}
}

// WithClock overrides the clock for deterministic tests.
func (o *Orchestrator) WithClock(clock func() time.Time) *Orchestrator {
	o.clock = clock
	return o
}

// WithLogger overrides the default logger.
func (o *Orchestrator) WithLogger(logger *slog.Logger) *Orchestrator {
	o.logger = logger
	return o
}

// CoordinateParallelAnalysis opens a session with one task per role. The
// workflow must be ANALYZING.
func (o *Orchestrator) CoordinateParallelAnalysis(ctx context.Context, workflowID string) (*Session, error) {
	_ = ctx
	w, err := o.machine.GetWorkflow(workflowID)
	if err != nil {
		return nil, err
	}
	if w.CurrentState != contracts.StateAnalyzing {
		return nil, &workflow.WrongStateError{
			WorkflowID: workflowID,
			Current:    w.CurrentState,
			Expected:   contracts.StateAnalyzing,
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if existing, ok := o.sessions[workflowID]; ok {
		return cloneSession(existing), nil
	}

	now := o.clock().UTC()
	session := &Session{
		SessionID:  uuid.New().String(),
		WorkflowID: workflowID,
		Status:     SessionInitiated,
		Tasks:      make(map[contracts.Role]*Task, len(contracts.AnalysisRoles())),
		CreatedAt:  now,
	}
	for _, role := range contracts.AnalysisRoles() {
		focus := roleFocus[role]
		session.Tasks[role] = &Task{
			TaskID:               uuid.New().String(),
			Role:                 role,
			Focus:                focus.focus,
			ExpectedCapabilities: append([]string(nil), focus.capabilities...),
			Status:               TaskPending,
			CreatedAt:            now,
		}
	}
	o.sessions[workflowID] = session

	o.logger.Info("analysis session opened",
		"workflow_id", workflowID, "session_id", session.SessionID, "tasks", len(session.Tasks))
	return cloneSession(session), nil
}

// ProcessAgentOutputCompletion marks the matching task completed and
// recomputes session status. It never inspects the output's findings.
func (o *Orchestrator) ProcessAgentOutputCompletion(ctx context.Context, workflowID string, output *contracts.AgentOutput) (*Session, error) {
	_ = ctx
	o.mu.Lock()
	session, ok := o.sessions[workflowID]
	if !ok {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNoSession, workflowID)
	}
	task, ok := session.Tasks[output.Role]
	if !ok {
		o.mu.Unlock()
		return nil, fmt.Errorf("orchestrator: no task for role %q in workflow %s", output.Role, workflowID)
	}
	now := o.clock().UTC()
	task.Status = TaskCompleted
	task.CompletedAt = &now

	allDone := true
	for _, t := range session.Tasks {
		if t.Status != TaskCompleted {
			allDone = false
			break
		}
	}
	if allDone {
		session.Status = SessionCompleted
	} else {
		session.Status = SessionInProgress
	}
	snapshot := cloneSession(session)
	o.mu.Unlock()

	complete, err := o.machine.IsAnalysisComplete(workflowID)
	if err != nil {
		return nil, err
	}
	o.logger.Info("agent task completed",
		"workflow_id", workflowID, "role", output.Role,
		"session_status", snapshot.Status, "analysis_complete", complete)
	return snapshot, nil
}

// Session returns a copy of the workflow's session, if one exists.
func (o *Orchestrator) Session(workflowID string) (*Session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sessions[workflowID]
	if !ok {
		return nil, false
	}
	return cloneSession(s), true
}

// CoordinateRCATransition reports whether the workflow may advance to
// RCA_COMPLETE, with every outstanding blocker listed.
func (o *Orchestrator) CoordinateRCATransition(workflowID string) (*RCAReadiness, error) {
	w, err := o.machine.GetWorkflow(workflowID)
	if err != nil {
		return nil, err
	}

	readiness := &RCAReadiness{Blockers: []string{}}
	if w.CurrentState != contracts.StateAnalyzing {
		readiness.Blockers = append(readiness.Blockers, fmt.Sprintf(
			"workflow is in state %s, expected %s", w.CurrentState, contracts.StateAnalyzing))
	}

	complete, err := o.machine.IsAnalysisComplete(workflowID)
	if err != nil {
		return nil, err
	}
	if !complete {
		readiness.Blockers = append(readiness.Blockers, fmt.Sprintf(
			"analysis incomplete: %d of %d roles reported", len(w.Outputs), len(contracts.AnalysisRoles())))
	}

	valid, err := o.machine.CanTransitionToRCAComplete(workflowID)
	if err != nil {
		return nil, err
	}
	if complete && !valid {
		readiness.Blockers = append(readiness.Blockers, "one or more outputs failed validation")
	}

	correlation, err := o.machine.CorrelateAgentOutputs(workflowID)
	if err != nil {
		return nil, err
	}
	readiness.Correlation = correlation
	if complete && valid && !correlation.ReadyForRCA {
		readiness.Blockers = append(readiness.Blockers, "correlation summary reports not ready")
	}

	readiness.CanTransition = len(readiness.Blockers) == 0
	return readiness, nil
}

func cloneSession(s *Session) *Session {
	cp := *s
	cp.Tasks = make(map[contracts.Role]*Task, len(s.Tasks))
	for role, t := range s.Tasks {
		tc := *t
		tc.ExpectedCapabilities = append([]string(nil), t.ExpectedCapabilities...)
		if t.CompletedAt != nil {
			at := *t.CompletedAt
			tc.CompletedAt = &at
		}
		cp.Tasks[role] = &tc
	}
	return &cp
}
