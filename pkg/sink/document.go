// Package sink writes audit events into the external human-readable log
// document. The document is append-only text with a fixed machine-readable
// section; the core treats it as best effort and never blocks a workflow
// operation on it.
package sink

import (
	"context"
	"fmt"
	"os"
	"sync"

	"golang.org/x/time/rate"

	"github.com/veritas-labs/sentinel/core/pkg/ledger"
)

const documentHeader = `# Incident Governance Audit Log

This document is maintained by the sentinel core. Entries below the marker
are machine-generated; do not edit them by hand.

## Machine-Readable Entries
`

// DocumentSink appends formatted audit entries to a file, seeding the
// header on first write if the document does not exist.
type DocumentSink struct {
	mu      sync.Mutex
	path    string
	limiter *rate.Limiter
	seeded  bool
}

// NewDocumentSink creates a sink writing to path. Writes are rate limited
// so a burst of audit activity cannot saturate the filesystem.
func NewDocumentSink(path string) *DocumentSink {
	return &DocumentSink{
		path:    path,
		limiter: rate.NewLimiter(rate.Limit(200), 400),
	}
}

// WriteEntry implements ledger.Sink.
func (s *DocumentSink) WriteEntry(ctx context.Context, entry ledger.SinkEntry) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("sink: rate limit wait: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureSeeded(); err != nil {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("sink: opening document: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("- %s\n  workflow: %s\n  event_type: %s\n  hash: %s\n  position: %d\n  detail: %s\n",
		entry.Summary, entry.WorkflowID, entry.EventType, entry.EventHash, entry.ChainPosition, entry.DetailJSON)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("sink: appending entry: %w", err)
	}
	return nil
}

// ensureSeeded creates the document with its header when absent.
func (s *DocumentSink) ensureSeeded() error {
	if s.seeded {
		return nil
	}
	if _, err := os.Stat(s.path); err == nil {
		s.seeded = true
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("sink: checking document: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(documentHeader), 0o644); err != nil {
		return fmt.Errorf("sink: seeding document: %w", err)
	}
	s.seeded = true
	return nil
}

var _ ledger.Sink = (*DocumentSink)(nil)
