// Package store provides the workflow registry abstraction and the archival
// audit store. The registry hides the id→handle mapping behind an interface
// so a persistent implementation can replace the in-memory one without
// changing call contracts.
package store

import (
	"errors"
	"sort"
	"sync"

	"github.com/veritas-labs/sentinel/core/pkg/contracts"
)

var (
	ErrWorkflowExists   = errors.New("store: workflow already registered")
	ErrWorkflowNotFound = errors.New("store: workflow not found")
)

// Registry maps workflow ids to their aggregates. The state machine is the
// only mutator; the registry is plain storage.
type Registry interface {
	Create(w *contracts.Workflow) error
	Get(id string) (*contracts.Workflow, error)
	IDs() []string
}

// MemoryRegistry is the in-process Registry implementation.
type MemoryRegistry struct {
	mu        sync.RWMutex
	workflows map[string]*contracts.Workflow
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{workflows: make(map[string]*contracts.Workflow)}
}

func (r *MemoryRegistry) Create(w *contracts.Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.workflows[w.WorkflowID]; ok {
		return ErrWorkflowExists
	}
	r.workflows[w.WorkflowID] = w
	return nil
}

func (r *MemoryRegistry) Get(id string) (*contracts.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workflows[id]
	if !ok {
		return nil, ErrWorkflowNotFound
	}
	return w, nil
}

func (r *MemoryRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.workflows))
	for id := range r.workflows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

var _ Registry = (*MemoryRegistry)(nil)
