package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOutToMatchingSubscribers(t *testing.T) {
	b := New()
	all := b.Subscribe()
	states := b.Subscribe(TypeStateChanged)
	decisions := b.Subscribe(TypeGovernanceDecision)

	b.Publish(Notification{Type: TypeStateChanged, WorkflowID: "wf-1"})

	n := <-all
	assert.Equal(t, TypeStateChanged, n.Type)
	n = <-states
	assert.Equal(t, "wf-1", n.WorkflowID)
	assert.False(t, n.Timestamp.IsZero())

	select {
	case <-decisions:
		t.Fatal("decision subscriber should not receive state changes")
	default:
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	b := New()
	ch := b.Subscribe(TypeAuditEvent)

	// Fill the subscriber buffer, then overflow it.
	for i := 0; i < 70; i++ {
		b.Publish(Notification{Type: TypeAuditEvent})
	}
	assert.Equal(t, uint64(6), b.Dropped())
	assert.Len(t, ch, 64)
}

func TestPublishPreservesExplicitTimestamp(t *testing.T) {
	b := New()
	ch := b.Subscribe()
	ts := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	b.Publish(Notification{Type: TypeOutputAccepted, Timestamp: ts})
	n := <-ch
	assert.Equal(t, ts, n.Timestamp)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	require.NotPanics(t, func() {
		p.Publish(Notification{Type: TypeSinkFailure})
	})
}
