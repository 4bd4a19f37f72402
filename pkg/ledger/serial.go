package ledger

import "sync"

// keyedSerialQueue executes tasks for the same key strictly one at a time,
// in enqueue order. Each key gets a dedicated worker goroutine with a
// channel mailbox, so chain-position assignment for one workflow can never
// interleave even under concurrent appends. Tasks for different keys run
// independently.
type keyedSerialQueue struct {
	mu      sync.Mutex
	workers map[string]chan func()
	wg      sync.WaitGroup
	closed  bool
}

func newKeyedSerialQueue() *keyedSerialQueue {
	return &keyedSerialQueue{workers: make(map[string]chan func())}
}

// Do runs fn on key's worker and blocks until it has completed. After
// Close it refuses the task and returns ErrLedgerClosed so callers never
// see a success-shaped result for work that did not run.
func (q *keyedSerialQueue) Do(key string, fn func()) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrLedgerClosed
	}
	ch, ok := q.workers[key]
	if !ok {
		ch = make(chan func(), 16)
		q.workers[key] = ch
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for task := range ch {
				task()
			}
		}()
	}
	done := make(chan struct{})
	ch <- func() {
		fn()
		close(done)
	}
	q.mu.Unlock()
	<-done
	return nil
}

// Close stops all workers after draining their mailboxes.
func (q *keyedSerialQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	for _, ch := range q.workers {
		close(ch)
	}
	q.mu.Unlock()
	q.wg.Wait()
}
