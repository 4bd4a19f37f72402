// Package governance implements the human-decision checkpoint between
// analysis completion and remediation proposal. The gate assesses blast
// radius and policy conflicts for a proposed action, presents the decision
// options a human may take, and processes the verdict. Every remediation
// path runs through here; there is no programmatic bypass.
package governance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veritas-labs/sentinel/core/pkg/auth"
	"github.com/veritas-labs/sentinel/core/pkg/bus"
	"github.com/veritas-labs/sentinel/core/pkg/contracts"
)

var (
	ErrRequestNotFound = errors.New("governance: request not found")
	ErrRequestResolved = errors.New("governance: request already resolved")
)

// RequestStatus tracks a governance request's lifecycle.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestResolved RequestStatus = "resolved"
)

// Request is a pending (or resolved) approval request for one workflow.
// A pending request has no timeout: it stays open until a decision is
// processed or the workflow is terminated externally.
type Request struct {
	RequestID       string                `json:"request_id"`
	WorkflowID      string                `json:"workflow_id"`
	ProposedAction  string                `json:"proposed_action"`
	Context         IncidentContext       `json:"context"`
	BlastRadius     contracts.BlastRadius `json:"blast_radius"`
	RiskFactors     []string              `json:"risk_factors"`
	PolicyConflicts []string              `json:"policy_conflicts"`
	Status          RequestStatus         `json:"status"`
	CreatedAt       time.Time             `json:"created_at"`
}

// ApprovalInterface lists the decision options presentable to a human for
// a stored request. Computed purely from the request: block is always
// available, approve is withheld for critical or irreversible actions, and
// approve_with_restrictions is the always-available conservative fallback.
type ApprovalInterface struct {
	RequestID          string                  `json:"request_id"`
	AvailableDecisions []contracts.DecisionTag `json:"available_decisions"`
	WithheldReason     string                  `json:"withheld_reason,omitempty"`
}

// DecisionResult reports the outcome of processing a verdict.
type DecisionResult struct {
	Success            bool                          `json:"success"`
	WorkflowTerminated bool                          `json:"workflow_terminated"`
	GovernanceDecision *contracts.GovernanceDecision `json:"governance_decision,omitempty"`
}

// WorkflowController is the narrow state-machine surface the gate drives.
type WorkflowController interface {
	AddGovernanceDecision(ctx context.Context, workflowID string, d contracts.GovernanceDecision, policyConflicts []string) (*contracts.Workflow, error)
}

// Gate owns governance requests and decision processing.
type Gate struct {
	mu         sync.Mutex
	requests   map[string]*Request
	byWorkflow map[string]string // workflowID → pending requestID

	controller WorkflowController
	rules      RuleEvaluator
	verifier   *auth.Verifier
	pub        bus.Publisher
	logger     *slog.Logger
	clock      func() time.Time
}

// NewGate creates a governance gate driving the given workflow controller.
func NewGate(controller WorkflowController, rules RuleEvaluator, pub bus.Publisher) *Gate {
	if rules == nil {
		rules = DefaultRules()
	}
	if pub == nil {
		pub = bus.NopPublisher{}
	}
	return &Gate{
		requests:   make(map[string]*Request),
		byWorkflow: make(map[string]string),
		controller: controller,
		rules:      rules,
		pub:        pub,
		logger:     slog.Default(),
		clock:      time.Now,
	}
}

// WithClock overrides the clock for deterministic tests.
func (g *Gate) WithClock(clock func() time.Time) *Gate {
	g.clock = clock
	return g
}

// WithLogger overrides the default logger.
func (g *Gate) WithLogger(logger *slog.Logger) *Gate {
	g.logger = logger
	return g
}

// WithVerifier enables signed approver-assertion checking.
func (g *Gate) WithVerifier(v *auth.Verifier) *Gate {
	g.verifier = v
	return g
}

// CreateRequest opens a governance request for a workflow's proposed
// action. Idempotent per workflow: while a pending request exists,
// re-invocation returns it instead of creating a duplicate.
func (g *Gate) CreateRequest(ctx context.Context, workflowID, proposedAction string, incident IncidentContext) (*Request, error) {
	_ = ctx
	if workflowID == "" {
		return nil, errors.New("governance: workflow id must not be empty")
	}
	if strings.TrimSpace(proposedAction) == "" {
		return nil, errors.New("governance: proposed action must not be empty")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if existingID, ok := g.byWorkflow[workflowID]; ok {
		if existing := g.requests[existingID]; existing != nil && existing.Status == RequestPending {
			return cloneRequest(existing), nil
		}
	}

	radius, factors := AssessBlastRadius(proposedAction, incident, g.rules)

	req := &Request{
		RequestID:       uuid.New().String(),
		WorkflowID:      workflowID,
		ProposedAction:  proposedAction,
		Context:         incident,
		BlastRadius:     radius,
		RiskFactors:     factors,
		PolicyConflicts: DetectPolicyConflicts(proposedAction, incident),
		Status:          RequestPending,
		CreatedAt:       g.clock().UTC(),
	}
	g.requests[req.RequestID] = req
	g.byWorkflow[workflowID] = req.RequestID

	g.pub.Publish(bus.Notification{
		Type:       bus.TypeGovernanceRequest,
		WorkflowID: workflowID,
		Payload: map[string]any{
			"request_id": req.RequestID,
			"risk_level": string(radius.RiskLevel),
			"reversible": radius.Reversible,
		},
	})
	g.logger.Info("governance request created",
		"workflow_id", workflowID, "request_id", req.RequestID,
		"risk_level", radius.RiskLevel, "conflicts", len(req.PolicyConflicts))
	return cloneRequest(req), nil
}

// GetRequest returns a copy of a request by id.
func (g *Gate) GetRequest(requestID string) (*Request, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	req, ok := g.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRequestNotFound, requestID)
	}
	return cloneRequest(req), nil
}

// PendingRequest returns the pending request for a workflow, if any.
func (g *Gate) PendingRequest(workflowID string) (*Request, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, ok := g.byWorkflow[workflowID]
	if !ok {
		return nil, false
	}
	req := g.requests[id]
	if req == nil || req.Status != RequestPending {
		return nil, false
	}
	return cloneRequest(req), true
}

// PendingRequests returns every open request, for external SLA tooling.
func (g *Gate) PendingRequests() []*Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []*Request
	for _, req := range g.requests {
		if req.Status == RequestPending {
			out = append(out, cloneRequest(req))
		}
	}
	return out
}

// GetApprovalInterface computes which decisions a human may take on the
// stored request. Pure and deterministic: the same stored request always
// yields the same options.
func (g *Gate) GetApprovalInterface(requestID string) (*ApprovalInterface, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	req, ok := g.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRequestNotFound, requestID)
	}

	iface := &ApprovalInterface{RequestID: requestID}
	withholdApprove := req.BlastRadius.RiskLevel == contracts.RiskCritical || !req.BlastRadius.Reversible
	if withholdApprove {
		switch {
		case req.BlastRadius.RiskLevel == contracts.RiskCritical:
			iface.WithheldReason = "unrestricted approval withheld: risk level is critical"
		default:
			iface.WithheldReason = "unrestricted approval withheld: proposed action is irreversible"
		}
	} else {
		iface.AvailableDecisions = append(iface.AvailableDecisions, contracts.DecisionApprove)
	}
	iface.AvailableDecisions = append(iface.AvailableDecisions,
		contracts.DecisionApproveWithRestrictions, contracts.DecisionBlock)
	return iface, nil
}

// ProcessDecision validates and records a human verdict, resolves the
// request, and drives the workflow: block force-terminates it (via the
// state machine), approvals leave the explicit ACTION_PROPOSED transition
// to the caller.
func (g *Gate) ProcessDecision(
	ctx context.Context,
	requestID string,
	decision contracts.DecisionTag,
	rationale string,
	approver contracts.Approver,
	restrictions []string,
) (*DecisionResult, error) {
	g.mu.Lock()
	req, ok := g.requests[requestID]
	if !ok {
		g.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrRequestNotFound, requestID)
	}
	if req.Status != RequestPending {
		g.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrRequestResolved, requestID)
	}

	var errs []string
	if !contracts.ValidDecisionTag(decision) {
		errs = append(errs, fmt.Sprintf("decision: unknown tag %q", decision))
	}
	if strings.TrimSpace(rationale) == "" {
		errs = append(errs, "decision: rationale must not be empty")
	}
	if len(errs) > 0 {
		g.mu.Unlock()
		return nil, fmt.Errorf("governance: invalid decision: %s", strings.Join(errs, "; "))
	}

	record := contracts.GovernanceDecision{
		Decision:     decision,
		Rationale:    rationale,
		Approver:     approver,
		DecidedAt:    g.clock().UTC(),
		Restrictions: append([]string(nil), restrictions...),
		BlastRadius:  req.BlastRadius,
	}
	conflicts := append([]string(nil), req.PolicyConflicts...)
	workflowID := req.WorkflowID
	g.mu.Unlock()

	// The state machine validates state, records the decision in the
	// ledger, and terminates on block.
	w, err := g.controller.AddGovernanceDecision(ctx, workflowID, record, conflicts)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	req.Status = RequestResolved
	delete(g.byWorkflow, workflowID)
	g.mu.Unlock()

	terminated := w.CurrentState == contracts.StateTerminated
	g.logger.Info("governance decision processed",
		"workflow_id", workflowID, "request_id", requestID,
		"decision", decision, "terminated", terminated)

	return &DecisionResult{
		Success:            true,
		WorkflowTerminated: terminated,
		GovernanceDecision: w.Decision,
	}, nil
}

// ProcessSignedDecision verifies a signed approver assertion before
// processing. The asserted identity must match the claimed approver.
func (g *Gate) ProcessSignedDecision(
	ctx context.Context,
	requestID string,
	decision contracts.DecisionTag,
	rationale string,
	assertion string,
	restrictions []string,
) (*DecisionResult, error) {
	if g.verifier == nil {
		return nil, errors.New("governance: approver verification not configured")
	}
	approver, err := g.verifier.VerifyApprover(assertion)
	if err != nil {
		return nil, fmt.Errorf("governance: approver assertion rejected: %w", err)
	}
	return g.ProcessDecision(ctx, requestID, decision, rationale, approver, restrictions)
}

func cloneRequest(r *Request) *Request {
	cp := *r
	cp.Context.AffectedServices = append([]string(nil), r.Context.AffectedServices...)
	cp.Context.FindingSummaries = append([]string(nil), r.Context.FindingSummaries...)
	cp.Context.FrequentTerms = append([]string(nil), r.Context.FrequentTerms...)
	cp.BlastRadius.AffectedServices = append([]string(nil), r.BlastRadius.AffectedServices...)
	cp.RiskFactors = append([]string(nil), r.RiskFactors...)
	cp.PolicyConflicts = append([]string(nil), r.PolicyConflicts...)
	return &cp
}
