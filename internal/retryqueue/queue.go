// Package retryqueue implements an in-memory background worker that
// re-attempts best-effort compensation tasks with bounded retries. Tasks do
// not survive a process restart.
package retryqueue

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/oklog/ulid/v2"

	"github.com/carrental/gateway/internal/observability"
)

// Action is a deferred unit of work the retry queue re-attempts. A tagged
// variant is used instead of a raw closure so that tasks are easier to
// inspect and log; ReleaseCarAction and CancelPaymentAction in actions.go are
// the two variants the saga and cancel/finish flows submit.
type Action interface {
	// Apply re-invokes the compensation. A non-nil error counts as a failed attempt.
	Apply(ctx context.Context) error
	// Kind names the action for logging (e.g. "release_car", "cancel_payment").
	Kind() string
}

// task is the retry queue's internal bookkeeping record.
type task struct {
	id          string
	action      Action
	attempts    int
	maxAttempts int
	createdAt   time.Time
}

// Queue is the background worker plus its pending-task map. It is started
// once at process start and stopped once at shutdown.
type Queue struct {
	interval    time.Duration
	maxAttempts int

	mu    sync.Mutex
	tasks map[string]*task

	signal  chan string
	running atomic.Bool
	done    chan struct{}
}

// New constructs a retry queue with the given wake-up interval and default
// max attempts per task.
func New(interval time.Duration, maxAttempts int) *Queue {
	return &Queue{
		interval:    interval,
		maxAttempts: maxAttempts,
		tasks:       make(map[string]*task),
		signal:      make(chan string, 4096),
		done:        make(chan struct{}),
	}
}

// Submit enqueues action for deferred execution and returns its task id.
// Submit never blocks the caller.
func (q *Queue) Submit(action Action) string {
	id := newTaskID()
	t := &task{
		id:          id,
		action:      action,
		maxAttempts: q.maxAttempts,
		createdAt:   time.Now(),
	}

	q.mu.Lock()
	q.tasks[id] = t
	depth := len(q.tasks)
	q.mu.Unlock()
	observability.RetryQueueDepth.Set(float64(depth))

	q.enqueueSignal(id)
	return id
}

// Len reports the number of pending tasks, exposed for introspection/metrics.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *Queue) enqueueSignal(id string) {
	select {
	case q.signal <- id:
	default:
		// Buffer momentarily full; deliver asynchronously so Submit never blocks.
		go func() { q.signal <- id }()
	}
}

// Run drains the queue until ctx is canceled or Stop is called. Run is
// intended to be launched once, in its own goroutine, at process start.
func (q *Queue) Run(ctx context.Context) {
	q.running.Store(true)
	defer q.running.Store(false)

	for {
		if !q.running.Load() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-q.done:
			return
		case id := <-q.signal:
			q.process(ctx, id)
		case <-time.After(q.interval):
			// Idle wake-up; nothing queued. Loop back and check is_running again.
		}
	}
}

// Stop cooperatively stops the worker; in-flight task processing completes
// before Run returns.
func (q *Queue) Stop() {
	q.running.Store(false)
	close(q.done)
}

func (q *Queue) process(ctx context.Context, id string) {
	q.mu.Lock()
	t, ok := q.tasks[id]
	q.mu.Unlock()
	if !ok {
		return // already evicted by a prior successful or exhausted attempt
	}

	if err := t.action.Apply(ctx); err == nil {
		q.remove(id)
		return
	} else {
		slog.Warn("retry task attempt failed",
			slog.String("task_id", id),
			slog.String("kind", t.action.Kind()),
			slog.Int("attempt", t.attempts+1),
			slog.Any("error", err))
	}

	q.mu.Lock()
	t.attempts++
	exhausted := t.attempts >= t.maxAttempts
	q.mu.Unlock()

	if exhausted {
		slog.Error("retry task exhausted, giving up",
			slog.String("task_id", id),
			slog.String("kind", t.action.Kind()),
			slog.Int("attempts", t.attempts))
		observability.RetryQueueExhaustedTotal.Inc()
		q.remove(id)
		return
	}

	go q.scheduleRetry(id)
}

// scheduleRetry waits the configured interval, via a constant backoff policy,
// before re-signaling the task for another attempt.
func (q *Queue) scheduleRetry(id string) {
	bo := backoff.NewConstantBackOff(q.interval)
	time.Sleep(bo.NextBackOff())
	if !q.running.Load() {
		return
	}
	q.enqueueSignal(id)
}

func (q *Queue) remove(id string) {
	q.mu.Lock()
	delete(q.tasks, id)
	depth := len(q.tasks)
	q.mu.Unlock()
	observability.RetryQueueDepth.Set(float64(depth))
}

func newTaskID() string {
	return ulid.Make().String()
}
