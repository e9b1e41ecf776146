// Package sequencer serializes work per key. It is the single concurrency
// control for cart operations: everything that mutates one user's cart runs
// through the user's queue, so the components downstream need no locking of
// their own.
package sequencer

import (
	"context"
	"sync"
)

// Sequencer runs tasks one at a time per key, in submission order. Tasks for
// different keys never wait on each other. A failing (or panicking) task
// reports to its own caller only; the next task for the key still runs.
type Sequencer struct {
	mu   sync.Mutex
	keys map[string]*keyQueue
}

// keyQueue tracks the tail of one key's chain. Each submitted task closes its
// own done channel when it finishes; the next task waits on its predecessor's
// channel. pending counts submitted-but-unfinished tasks so the map entry can
// be dropped once the key goes quiet.
type keyQueue struct {
	tail    chan struct{}
	pending int
}

func New() *Sequencer {
	return &Sequencer{keys: make(map[string]*keyQueue)}
}

// Do waits until every task submitted earlier for key has finished, then runs
// task and returns its error. The context is passed through to the task;
// waiting for a predecessor is not interruptible. Once submitted, a task
// holds its place in the queue and runs.
func (s *Sequencer) Do(ctx context.Context, key string, task func(context.Context) error) error {
	s.mu.Lock()
	q, ok := s.keys[key]
	if !ok {
		q = &keyQueue{}
		s.keys[key] = q
	}
	prev := q.tail
	done := make(chan struct{})
	q.tail = done
	q.pending++
	s.mu.Unlock()

	defer func() {
		// Runs even when the task panics, so the chain never wedges.
		close(done)
		s.mu.Lock()
		q.pending--
		if q.pending == 0 {
			delete(s.keys, key)
		}
		s.mu.Unlock()
	}()

	if prev != nil {
		<-prev
	}
	return task(ctx)
}

// Len reports how many keys currently have running or queued tasks.
func (s *Sequencer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}
