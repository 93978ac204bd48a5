package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue is an in-process Queue.  Tasks do not survive a restart.
type MemoryQueue struct {
	mu         sync.Mutex
	ready      map[uuid.UUID]Task
	processing map[uuid.UUID]inflight
	dead       []Task
	visibility time.Duration
	now        func() time.Time
}

type inflight struct {
	task     Task
	deadline time.Time
}

func NewMemoryQueue(visibility time.Duration) *MemoryQueue {
	return &MemoryQueue{
		ready:      make(map[uuid.UUID]Task),
		processing: make(map[uuid.UUID]inflight),
		visibility: visibility,
		now:        time.Now,
	}
}

var _ Queue = (*MemoryQueue)(nil)

func (q *MemoryQueue) Enqueue(_ context.Context, t Task) error {
	if t.ID == uuid.Nil {
		return fmt.Errorf("enqueue %s: task without id", t)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.processing, t.ID)
	q.ready[t.ID] = t
	return nil
}

func (q *MemoryQueue) Dequeue(_ context.Context) (Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	var (
		next  Task
		found bool
	)
	for _, t := range q.ready {
		if t.NotBefore.After(now) {
			continue
		}
		if !found || t.NotBefore.Before(next.NotBefore) {
			next, found = t, true
		}
	}
	if !found {
		return Task{}, ErrNoTask
	}
	delete(q.ready, next.ID)
	q.processing[next.ID] = inflight{task: next, deadline: now.Add(q.visibility)}
	return next, nil
}

func (q *MemoryQueue) Ack(_ context.Context, t Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.processing, t.ID)
	return nil
}

func (q *MemoryQueue) Bury(_ context.Context, t Task, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.processing, t.ID)
	delete(q.ready, t.ID)
	t.LastError = reason
	q.dead = append(q.dead, t)
	return nil
}

func (q *MemoryQueue) Requeue(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	n := 0
	for id, f := range q.processing {
		if f.deadline.After(now) {
			continue
		}
		delete(q.processing, id)
		f.task.NotBefore = now
		q.ready[id] = f.task
		n++
	}
	return n, nil
}

// Len reports how many tasks are waiting and in flight.
func (q *MemoryQueue) Len() (ready, processing int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready), len(q.processing)
}

// Dead returns a copy of the buried tasks in burial order.
func (q *MemoryQueue) Dead() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Task(nil), q.dead...)
}
