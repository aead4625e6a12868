package drafts

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/terra-clan/apply-wizard/internal/models"
)

// DefaultWriteTimeout bounds a single queued store operation
const DefaultWriteTimeout = 5 * time.Second

type opKind int

const (
	opSave opKind = iota
	opClear
	opFlush
)

type queuedOp struct {
	kind opKind
	snap models.DraftSnapshot
	done chan struct{}
}

// Autosaver writes drafts in the background. Save and Clear return
// immediately; queued operations are applied in order by a single
// goroutine, so a Clear is never overtaken by an earlier Save.
// Failures are logged and counted, never returned.
type Autosaver struct {
	adapter *Adapter
	timeout time.Duration

	mu     sync.Mutex
	queue  []queuedOp
	closed bool

	wake     chan struct{}
	stopped  chan struct{}
	failures atomic.Int64
}

// NewAutosaver starts the write goroutine for adapter. Close must be
// called to stop it.
func NewAutosaver(adapter *Adapter, timeout time.Duration) *Autosaver {
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	a := &Autosaver{
		adapter: adapter,
		timeout: timeout,
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go a.run()
	return a
}

// Save queues a write of snap. A save still waiting in the queue is
// replaced by a newer one.
func (a *Autosaver) Save(snap models.DraftSnapshot) {
	a.enqueue(queuedOp{kind: opSave, snap: snap})
}

// Clear queues removal of the draft
func (a *Autosaver) Clear() {
	a.enqueue(queuedOp{kind: opClear})
}

// Flush waits until every operation queued before the call has been applied
func (a *Autosaver) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if !a.enqueue(queuedOp{kind: opFlush, done: done}) {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Failures returns how many store operations have failed
func (a *Autosaver) Failures() int64 {
	return a.failures.Load()
}

// Close applies the remaining queue and stops the write goroutine.
// Save and Clear are ignored afterwards.
func (a *Autosaver) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		<-a.stopped
		return
	}
	a.closed = true
	a.mu.Unlock()

	a.signal()
	<-a.stopped
}

func (a *Autosaver) enqueue(op queuedOp) bool {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return false
	}
	if n := len(a.queue); op.kind == opSave && n > 0 && a.queue[n-1].kind == opSave {
		a.queue[n-1] = op
	} else {
		a.queue = append(a.queue, op)
	}
	a.mu.Unlock()

	a.signal()
	return true
}

func (a *Autosaver) signal() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

func (a *Autosaver) run() {
	defer close(a.stopped)

	for range a.wake {
		for {
			a.mu.Lock()
			if len(a.queue) == 0 {
				closed := a.closed
				a.mu.Unlock()
				if closed {
					return
				}
				break
			}
			op := a.queue[0]
			a.queue = a.queue[1:]
			a.mu.Unlock()

			a.apply(op)
		}
	}
}

func (a *Autosaver) apply(op queuedOp) {
	if op.kind == opFlush {
		close(op.done)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	var err error
	switch op.kind {
	case opSave:
		err = a.adapter.Autosave(ctx, op.snap)
	case opClear:
		err = a.adapter.Clear(ctx)
	}
	if err != nil {
		a.failures.Add(1)
		slog.Warn("failed to persist draft", "key", a.adapter.Key(), "error", err)
	}
}
