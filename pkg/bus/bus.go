// Package bus provides the typed notification channel between the core and
// its transport collaborator. Delivery is at-least-once within the process
// and fire-and-forget: a slow subscriber drops notifications rather than
// blocking a workflow operation.
package bus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Notification types emitted by the core.
const (
	TypeStateChanged       = "state_changed"
	TypeOutputAccepted     = "output_accepted"
	TypeGovernanceRequest  = "governance_request"
	TypeGovernanceDecision = "governance_decision"
	TypeWorkflowTerminated = "workflow_terminated"
	TypeAuditEvent         = "audit_event_generated"
	TypeSinkFailure        = "sink_write_failed"
)

// Notification is the envelope pushed to subscribers.
type Notification struct {
	Type       string         `json:"type"`
	WorkflowID string         `json:"workflow_id"`
	Timestamp  time.Time      `json:"timestamp"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// Publisher is the narrow interface core components depend on.
type Publisher interface {
	Publish(n Notification)
}

// NopPublisher discards all notifications.
type NopPublisher struct{}

func (NopPublisher) Publish(Notification) {}

// Bus fans notifications out to buffered subscriber channels.
type Bus struct {
	mu      sync.RWMutex
	subs    []*subscription
	dropped atomic.Uint64
	clock   func() time.Time
}

type subscription struct {
	ch    chan Notification
	types map[string]struct{} // empty means all types
}

// New creates a notification bus.
func New() *Bus {
	return &Bus{clock: time.Now}
}

// Subscribe returns a channel receiving notifications of the given types
// (all types when none are named). The buffer absorbs bursts; when it is
// full the notification is dropped for that subscriber.
func (b *Bus) Subscribe(types ...string) <-chan Notification {
	sub := &subscription{
		ch:    make(chan Notification, 64),
		types: make(map[string]struct{}, len(types)),
	}
	for _, t := range types {
		sub.types[t] = struct{}{}
	}
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
	return sub.ch
}

// Publish delivers n to every matching subscriber without blocking.
func (b *Bus) Publish(n Notification) {
	if n.Timestamp.IsZero() {
		n.Timestamp = b.clock()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if len(sub.types) > 0 {
			if _, ok := sub.types[n.Type]; !ok {
				continue
			}
		}
		select {
		case sub.ch <- n:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns how many notifications were discarded due to full
// subscriber buffers.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}
