// Package scheduler runs the interceptor's deferred work. Every task body, and
// every function passed to Exclusive, runs under one execution lock, so at
// most one of them is active at a time regardless of which timer fired it.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/alem-hub/scorm-interceptor/pkg/timeutil"
)

// TaskResult describes one finished task.
type TaskResult struct {
	Name     string
	Duration time.Duration
	Err      error
}

// QueueConfig contains configuration for the Queue.
type QueueConfig struct {
	// Logger for structured logging.
	Logger *slog.Logger

	// Clock drives task delays (default: timeutil.Real()).
	Clock timeutil.Clock

	// OnTaskDone is called after every task that ran, panicking ones included.
	OnTaskDone func(result TaskResult)
}

// Queue schedules delayed, cancellable tasks and runs them one at a time.
type Queue struct {
	logger *slog.Logger
	clock  timeutil.Clock
	onDone func(TaskResult)

	// exec serializes task bodies.
	exec sync.Mutex

	mu      sync.Mutex
	seq     uint64
	pending map[uint64]*Task
	running int
	idle    chan struct{}
	closed  bool
}

// Task is a handle to a scheduled function.
type Task struct {
	id    uint64
	name  string
	fn    func()
	queue *Queue
	timer timeutil.Timer
}

// NewQueue creates a Queue with the given configuration.
func NewQueue(config QueueConfig) *Queue {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Clock == nil {
		config.Clock = timeutil.Real()
	}

	idle := make(chan struct{})
	close(idle)

	return &Queue{
		logger:  config.Logger,
		clock:   config.Clock,
		onDone:  config.OnTaskDone,
		pending: make(map[uint64]*Task),
		idle:    idle,
	}
}

// Schedule runs fn once delay has elapsed. It never runs fn inline, even for
// a zero delay. After Close the returned task is already cancelled.
func (q *Queue) Schedule(delay time.Duration, name string, fn func()) *Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	t := &Task{id: q.seq, name: name, fn: fn, queue: q}
	if q.closed {
		q.logger.Debug("task dropped, queue closed", "task", name)
		return t
	}

	if q.outstanding() == 0 {
		q.idle = make(chan struct{})
	}
	q.pending[t.id] = t
	t.timer = q.clock.AfterFunc(delay, func() { q.run(t) })

	return t
}

// Defer schedules fn without keeping the task handle.
func (q *Queue) Defer(delay time.Duration, name string, fn func()) {
	q.Schedule(delay, name, fn)
}

// Exclusive runs fn under the execution lock, recovering panics.
// fn must not call Exclusive itself.
func (q *Queue) Exclusive(fn func()) {
	q.exec.Lock()
	defer q.exec.Unlock()

	_ = q.safeCall("exclusive", fn)
}

// Pending returns the number of tasks that are scheduled and not yet started.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Wait blocks until no task is pending or running, or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels every pending task and rejects new ones. Running tasks are
// not interrupted.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true

	for id, t := range q.pending {
		if t.timer != nil {
			t.timer.Stop()
		}
		delete(q.pending, id)
	}
	q.signalIfIdle()

	q.logger.Debug("task queue closed")
}

func (q *Queue) run(t *Task) {
	q.mu.Lock()
	if _, ok := q.pending[t.id]; !ok {
		q.mu.Unlock()
		return
	}
	delete(q.pending, t.id)
	q.running++
	q.mu.Unlock()

	q.exec.Lock()
	start := q.clock.Now()
	err := q.safeCall(t.name, t.fn)
	duration := q.clock.Now().Sub(start)
	q.exec.Unlock()

	q.mu.Lock()
	q.running--
	q.signalIfIdle()
	q.mu.Unlock()

	if q.onDone != nil {
		q.onDone(TaskResult{Name: t.name, Duration: duration, Err: err})
	}
}

// safeCall recovers a panicking task so it cannot take down the caller.
func (q *Queue) safeCall(name string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("task panic recovered",
				"task", name,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("task %s panic: %v", name, r)
		}
	}()

	fn()
	return nil
}

func (q *Queue) outstanding() int {
	return len(q.pending) + q.running
}

// signalIfIdle must be called with q.mu held.
func (q *Queue) signalIfIdle() {
	if q.outstanding() != 0 {
		return
	}
	select {
	case <-q.idle:
	default:
		close(q.idle)
	}
}

// Name returns the task name.
func (t *Task) Name() string {
	return t.name
}

// Cancel prevents the task from running. It returns false if the task already
// started, already finished or was already cancelled.
func (t *Task) Cancel() bool {
	q := t.queue
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.pending[t.id]; !ok {
		return false
	}
	delete(q.pending, t.id)
	if t.timer != nil {
		t.timer.Stop()
	}
	q.signalIfIdle()
	return true
}
