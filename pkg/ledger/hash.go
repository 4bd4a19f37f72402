package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/veritas-labs/sentinel/core/pkg/contracts"
)

// hashableEvent is the exact field set covered by an event's hash. The
// previous hash is deliberately excluded: linkage is verified structurally,
// while the content hash pins the event's own content and position.
type hashableEvent struct {
	EventID        string                    `json:"event_id"`
	WorkflowID     string                    `json:"workflow_id"`
	EventType      contracts.AuditEventType  `json:"event_type"`
	Timestamp      time.Time                 `json:"timestamp"`
	Actor          string                    `json:"actor"`
	Details        map[string]any            `json:"details"`
	ContextCapture *contracts.ContextCapture `json:"context_capture,omitempty"`
	ChainPosition  int                       `json:"chain_position"`
}

// computeEventHash returns the 64-hex-character SHA-256 of the event's
// RFC 8785 canonical JSON form. Recomputing from stored fields reproduces
// the stored hash exactly, so any retroactive edit is detectable.
func computeEventHash(e *contracts.AuditEvent) (string, error) {
	raw, err := json.Marshal(hashableEvent{
		EventID:        e.EventID,
		WorkflowID:     e.WorkflowID,
		EventType:      e.EventType,
		Timestamp:      e.Timestamp,
		Actor:          e.Actor,
		Details:        e.Details,
		ContextCapture: e.ContextCapture,
		ChainPosition:  e.ChainPosition,
	})
	if err != nil {
		return "", fmt.Errorf("ledger: marshaling event for hashing: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("ledger: canonicalizing event: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
