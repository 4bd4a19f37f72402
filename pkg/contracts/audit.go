package contracts

import "time"

// AuditEventType categorizes ledger entries.
type AuditEventType string

const (
	EventStateTransition     AuditEventType = "state_transition"
	EventAgentOutput         AuditEventType = "agent_output"
	EventGovernanceDecision  AuditEventType = "governance_decision"
	EventWorkflowTermination AuditEventType = "workflow_termination"
)

// SystemContext carries running per-workflow totals, captured on every event.
type SystemContext struct {
	TotalOutputs     int `json:"total_outputs"`
	TotalDecisions   int `json:"total_decisions"`
	TotalTransitions int `json:"total_transitions"`
}

// OutputCapture is the context block attached to agent_output events.
type OutputCapture struct {
	SkillsApplied       []string         `json:"skills_applied"`
	DataSources         []string         `json:"data_sources"`
	Confidence          float64          `json:"confidence"`
	Validation          ValidationResult `json:"validation"`
	EvidenceCount       int              `json:"evidence_count"`
	CorrelationCount    int              `json:"correlation_count"`
	CorrelationStrength string           `json:"correlation_strength"` // "none" | "weak" | "moderate" | "strong"
	DataQualityScore    float64          `json:"data_quality_score"`   // 0..1
}

// GovernanceCapture is the context block attached to governance_decision events.
type GovernanceCapture struct {
	BlastRadius        BlastRadius `json:"blast_radius"`
	RiskScore          float64     `json:"risk_score"` // 0..1
	PolicyConflicts    []string    `json:"policy_conflicts"`
	DecisionCompliance string      `json:"decision_compliance"` // "standard" | "restricted" | "halted"
	ApproverAuthority  string      `json:"approver_authority"`  // "authorized" | "unverified"
}

// StateSpan is one segment of the reconstructed workflow timeline.
type StateSpan struct {
	State      WorkflowState `json:"state"`
	EnteredAt  time.Time     `json:"entered_at"`
	DurationMs int64         `json:"duration_ms"`
}

// QualityMetrics summarizes how complete the workflow was at termination.
type QualityMetrics struct {
	OutputsAccepted   int     `json:"outputs_accepted"`
	RolesReported     int     `json:"roles_reported"`
	DecisionRecorded  bool    `json:"decision_recorded"`
	AverageConfidence float64 `json:"average_confidence"`
}

// TerminationCapture is the context block attached to workflow_termination events.
type TerminationCapture struct {
	Timeline         []StateSpan    `json:"timeline"`
	ResidualRisks    []string       `json:"residual_risks"`
	CompletionStatus string         `json:"completion_status"` // "governance_blocked" | "forced" | "aborted"
	Quality          QualityMetrics `json:"workflow_quality"`
}

// ContextCapture holds exactly one of the type-specific blocks; which one is
// populated follows the event type.
type ContextCapture struct {
	Output      *OutputCapture      `json:"analysis_metrics,omitempty"`
	Governance  *GovernanceCapture  `json:"governance_risk,omitempty"`
	Termination *TerminationCapture `json:"termination,omitempty"`
}

// AuditEvent is one immutable, hash-chained ledger entry.
//
// EventHash covers {eventId, workflowId, eventType, timestamp, actor,
// details, contextCapture, chainPosition} in RFC 8785 canonical form, so any
// retroactive edit of those fields is detectable. PreviousEventHash links the
// chain; it is empty only at position 0.
type AuditEvent struct {
	EventID           string          `json:"event_id"`
	WorkflowID        string          `json:"workflow_id"`
	EventType         AuditEventType  `json:"event_type"`
	Timestamp         time.Time       `json:"timestamp"`
	Actor             string          `json:"actor"`
	Details           map[string]any  `json:"details"`
	ContextCapture    *ContextCapture `json:"context_capture,omitempty"`
	SystemContext     SystemContext   `json:"system_context"`
	EventHash         string          `json:"event_hash"`
	PreviousEventHash string          `json:"previous_event_hash,omitempty"`
	ChainPosition     int             `json:"chain_position"`
}

// IntegrityReport is the result of verifying a workflow's hash chain.
// Verification is a query: findings are reported, never raised.
type IntegrityReport struct {
	Valid       bool     `json:"valid"`
	Errors      []string `json:"errors"`
	ChainLength int      `json:"chain_length"`
}

// ExportedEvent annotates a ledger entry for compliance export.
type ExportedEvent struct {
	Event           *AuditEvent `json:"event"`
	Immutable       bool        `json:"immutable"`
	ComplianceReady bool        `json:"compliance_ready"`
	EventHash       string      `json:"event_hash"`
	ChainPosition   int         `json:"chain_position"`
}

// LedgerMetrics summarizes one workflow's chain for export.
type LedgerMetrics struct {
	ChainLength    int            `json:"chain_length"`
	EventsByType   map[string]int `json:"events_by_type"`
	FirstTimestamp time.Time      `json:"first_timestamp"`
	LastTimestamp  time.Time      `json:"last_timestamp"`
}

// AuditArtifacts is the compliance export bundle for one workflow.
type AuditArtifacts struct {
	AuditChain  []ExportedEvent `json:"audit_chain"`
	Metrics     LedgerMetrics   `json:"metrics"`
	Integrity   IntegrityReport `json:"integrity"`
	SinkEntries []string        `json:"sink_entries"`
}
