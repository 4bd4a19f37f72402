package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/veritas-labs/sentinel/core/pkg/contracts"
)

// formatSinkEntry renders the external-log form of an event: a summary line
// plus the machine-readable JSON detail block.
func (l *Ledger) formatSinkEntry(e *contracts.AuditEvent) SinkEntry {
	detail, err := json.Marshal(map[string]any{
		"event_id":       e.EventID,
		"actor":          e.Actor,
		"details":        e.Details,
		"system_context": e.SystemContext,
	})
	if err != nil {
		detail = []byte("{}")
	}
	summary := fmt.Sprintf("[%s] workflow=%s type=%s pos=%d hash=%s",
		e.Timestamp.Format(time.RFC3339), e.WorkflowID, e.EventType, e.ChainPosition, e.EventHash)
	return SinkEntry{
		Summary:       summary,
		WorkflowID:    e.WorkflowID,
		EventType:     string(e.EventType),
		EventHash:     e.EventHash,
		ChainPosition: e.ChainPosition,
		DetailJSON:    string(detail),
	}
}

// ExportArtifacts assembles the compliance bundle for one workflow: the
// annotated chain, summary metrics, an integrity report, and the sink
// mirror. Every entry is annotated immutable; compliance readiness requires
// the whole chain to verify.
func (l *Ledger) ExportArtifacts(workflowID string) *contracts.AuditArtifacts {
	integrity := l.VerifyChainIntegrity(workflowID)
	chain := l.GetChain(workflowID)

	exported := make([]contracts.ExportedEvent, len(chain))
	byType := make(map[string]int)
	for i, e := range chain {
		byType[string(e.EventType)]++
		exported[i] = contracts.ExportedEvent{
			Event:           e,
			Immutable:       true,
			ComplianceReady: integrity.Valid,
			EventHash:       e.EventHash,
			ChainPosition:   e.ChainPosition,
		}
	}

	metrics := contracts.LedgerMetrics{
		ChainLength:  len(chain),
		EventsByType: byType,
	}
	if len(chain) > 0 {
		metrics.FirstTimestamp = chain[0].Timestamp
		metrics.LastTimestamp = chain[len(chain)-1].Timestamp
	}

	l.mu.RLock()
	sinkEntries := append([]string(nil), l.sinkLog[workflowID]...)
	l.mu.RUnlock()

	return &contracts.AuditArtifacts{
		AuditChain:  exported,
		Metrics:     metrics,
		Integrity:   integrity,
		SinkEntries: sinkEntries,
	}
}
