// Package ledger implements the per-workflow, append-only, hash-chained
// audit trail. Every state transition, accepted output, governance decision,
// and termination produces exactly one entry. Entries are never mutated or
// removed; accessors return defensive copies; integrity checking is a query
// that reports findings instead of raising them.
package ledger

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
)

var (
	ErrEmptyWorkflowID  = errors.New("ledger: workflow id must not be empty")
	ErrUnknownEventType = errors.New("ledger: unknown event type")
	ErrLedgerClosed     = errors.New("ledger: ledger is closed")
)

// SinkEntry is one formatted record mirrored to the external log sink.
type SinkEntry struct {
	Summary       string `json:"summary"`
	WorkflowID    string `json:"workflow_id"`
	EventType     string `json:"event_type"`
	EventHash     string `json:"event_hash"`
	ChainPosition int    `json:"chain_position"`
	DetailJSON    string `json:"detail_json"`
}

// Sink receives best-effort mirrors of every audit event. Implementations
// must tolerate being called concurrently; failures are absorbed by the
// ledger and never propagate to workflow operations.
type Sink interface {
	WriteEntry(ctx context.Context, entry SinkEntry) error
}

// Ledger is the in-memory enhanced audit ledger for all workflows.
type Ledger struct {
	mu       sync.RWMutex
	chains   map[string][]*contracts.AuditEvent
	counters map[string]contracts.SystemContext
	sinkLog  map[string][]string

	queue  *keyedSerialQueue
	sink   Sink
	pub    bus.Publisher
	logger *slog.Logger
	clock  func() time.Time
}

// New creates a ledger mirroring to sink and publishing notifications to
// pub. Either may be nil.
func New(sink Sink, pub bus.Publisher) *Ledger {
	if pub == nil {
		pub = bus.NopPublisher{}
	}
	return &Ledger{
		chains:   make(map[string][]*contracts.AuditEvent),
		counters: make(map[string]contracts.SystemContext),
		sinkLog:  make(map[string][]string),
		queue:    newKeyedSerialQueue(),
		sink:     sink,
		pub:      pub,
		logger:   slog.Default(),
		clock:    time.Now,
	}
}

// WithClock overrides the clock for deterministic tests.
func (l *Ledger) WithClock(clock func() time.Time) *Ledger {
	l.clock = clock
	return l
}

// WithLogger overrides the default logger.
func (l *Ledger) WithLogger(logger *slog.Logger) *Ledger {
	l.logger = logger
	return l
}

// Close stops the append workers. Pending appends complete first.
func (l *Ledger) Close() {
	l.queue.Close()
}

func validEventType(t contracts.AuditEventType) bool {
	switch t {
	case contracts.EventStateTransition, contracts.EventAgentOutput,
		contracts.EventGovernanceDecision, contracts.EventWorkflowTermination:
		return true
	}
	return false
}

// GenerateEvent appends one event to the workflow's chain. Appends for the
// same workflow are serialized through a per-workflow FIFO queue so that
// chain positions are assigned exactly once, in order, even under
// concurrent callers.
func (l *Ledger) GenerateEvent(
	ctx context.Context,
	workflowID string,
	eventType contracts.AuditEventType,
	actor string,
	details map[string]any,
	capture *contracts.ContextCapture,
) (*contracts.AuditEvent, error) {
	if workflowID == "" {
		return nil, ErrEmptyWorkflowID
	}
	if !validEventType(eventType) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, eventType)
	}
	if details == nil {
		details = map[string]any{}
	}

	var (
		event *contracts.AuditEvent
		err   error
	)
	if qErr := l.queue.Do(workflowID, func() {
		event, err = l.append(ctx, workflowID, eventType, actor, details, capture)
	}); qErr != nil {
		return nil, qErr
	}
	if err != nil {
		return nil, err
	}
	return cloneEvent(event), nil
}

// append runs on the workflow's serial worker; it is the only writer for
// that workflow's chain.
func (l *Ledger) append(
	ctx context.Context,
	workflowID string,
	eventType contracts.AuditEventType,
	actor string,
	details map[string]any,
	capture *contracts.ContextCapture,
) (*contracts.AuditEvent, error) {
	l.mu.Lock()
	chain := l.chains[workflowID]
	position := len(chain)
	prevHash := ""
	if position > 0 {
		prevHash = chain[position-1].EventHash
	}
	counters := l.counters[workflowID]
	switch eventType {
	case contracts.EventStateTransition, contracts.EventWorkflowTermination:
		counters.TotalTransitions++
	case contracts.EventAgentOutput:
		counters.TotalOutputs++
	case contracts.EventGovernanceDecision:
		counters.TotalDecisions++
	}
	l.mu.Unlock()

	event := &contracts.AuditEvent{
		EventID:           uuid.New().String(),
		WorkflowID:        workflowID,
		EventType:         eventType,
		Timestamp:         l.clock().UTC(),
		Actor:             actor,
		Details:           copyMap(details),
		ContextCapture:    capture,
		SystemContext:     counters,
		PreviousEventHash: prevHash,
		ChainPosition:     position,
	}
	hash, err := computeEventHash(event)
	if err != nil {
		return nil, err
	}
	event.EventHash = hash

	sinkEntry := l.formatSinkEntry(event)

	l.mu.Lock()
	l.chains[workflowID] = append(l.chains[workflowID], event)
	l.counters[workflowID] = counters
	l.sinkLog[workflowID] = append(l.sinkLog[workflowID], sinkEntry.Summary)
	l.mu.Unlock()

	l.mirror(ctx, sinkEntry)

	l.pub.Publish(bus.Notification{
		Type:       bus.TypeAuditEvent,
		WorkflowID: workflowID,
		Timestamp:  event.Timestamp,
		Payload: map[string]any{
			"event_id":       event.EventID,
			"event_type":     string(eventType),
			"event_hash":     event.EventHash,
			"chain_position": event.ChainPosition,
		},
	})
	return event, nil
}

// mirror writes the entry to the external sink, best effort. A sink failure
// is logged and surfaced as a side notification; audit bookkeeping must
// never block workflow progress.
func (l *Ledger) mirror(ctx context.Context, entry SinkEntry) {
	if l.sink == nil {
		return
	}
	if err := l.sink.WriteEntry(ctx, entry); err != nil {
		l.logger.Warn("audit sink write failed",
			"workflow_id", entry.WorkflowID,
			"chain_position", entry.ChainPosition,
			"error", err)
		l.pub.Publish(bus.Notification{
			Type:       bus.TypeSinkFailure,
			WorkflowID: entry.WorkflowID,
			Payload:    map[string]any{"error": err.Error()},
		})
	}
}

// VerifyChainIntegrity recomputes every event hash and checks position and
// linkage. Corruption yields a report, never an error: integrity checking
// is diagnostic.
func (l *Ledger) VerifyChainIntegrity(workflowID string) contracts.IntegrityReport {
	l.mu.RLock()
	chain := l.chains[workflowID]
	l.mu.RUnlock()

	report := contracts.IntegrityReport{Valid: true, Errors: []string{}, ChainLength: len(chain)}
	for i, event := range chain {
		if event.ChainPosition != i {
			report.Errors = append(report.Errors, fmt.Sprintf(
				"event %d: chain position %d does not match index %d", i, event.ChainPosition, i))
		}
		if i == 0 {
			if event.PreviousEventHash != "" {
				report.Errors = append(report.Errors, "event 0: unexpected previous hash on first event")
			}
		} else if event.PreviousEventHash != chain[i-1].EventHash {
			report.Errors = append(report.Errors, fmt.Sprintf(
				"event %d: previous hash %q does not match event %d hash %q",
				i, event.PreviousEventHash, i-1, chain[i-1].EventHash))
		}
		recomputed, err := computeEventHash(event)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("event %d: hash recomputation failed: %v", i, err))
			continue
		}
		if recomputed != event.EventHash {
			report.Errors = append(report.Errors, fmt.Sprintf(
				"event %d: stored hash %q does not match recomputed %q", i, event.EventHash, recomputed))
		}
	}
	report.Valid = len(report.Errors) == 0
	return report
}

// GetChain returns a defensive copy of the workflow's audit chain.
func (l *Ledger) GetChain(workflowID string) []*contracts.AuditEvent {
	l.mu.RLock()
	chain := l.chains[workflowID]
	l.mu.RUnlock()

	out := make([]*contracts.AuditEvent, len(chain))
	for i, e := range chain {
		out[i] = cloneEvent(e)
	}
	return out
}

// ChainLength returns the number of events recorded for a workflow.
func (l *Ledger) ChainLength(workflowID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.chains[workflowID])
}

// SystemContext returns the running totals recorded for a workflow.
func (l *Ledger) SystemContext(workflowID string) contracts.SystemContext {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.counters[workflowID]
}

// corruptEvent is a test hook: it mutates stored chain state directly so
// integrity detection can be exercised. Only _test.go files call it.
func (l *Ledger) corruptEvent(workflowID string, index int, mutate func(*contracts.AuditEvent)) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	chain := l.chains[workflowID]
	if index < 0 || index >= len(chain) {
		return false
	}
	mutate(chain[index])
	return true
}

func cloneEvent(e *contracts.AuditEvent) *contracts.AuditEvent {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Details = copyMap(e.Details)
	if e.ContextCapture != nil {
		cc := *e.ContextCapture
		if e.ContextCapture.Output != nil {
			o := *e.ContextCapture.Output
			o.SkillsApplied = append([]string(nil), o.SkillsApplied...)
			o.DataSources = append([]string(nil), o.DataSources...)
			cc.Output = &o
		}
		if e.ContextCapture.Governance != nil {
			g := *e.ContextCapture.Governance
			g.PolicyConflicts = append([]string(nil), g.PolicyConflicts...)
			cc.Governance = &g
		}
		if e.ContextCapture.Termination != nil {
			t := *e.ContextCapture.Termination
			t.Timeline = append([]contracts.StateSpan(nil), t.Timeline...)
			t.ResidualRisks = append([]string(nil), t.ResidualRisks...)
			cc.Termination = &t
		}
		cp.ContextCapture = &cc
	}
	return &cp
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
