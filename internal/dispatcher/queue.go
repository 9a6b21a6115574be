// Package dispatcher serializes every state-touching operation onto a single
// worker. Callers enqueue tasks and return immediately; tasks run in order.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/thisdougb/telemetry/internal/config"
	"github.com/thisdougb/telemetry/internal/diag"
	"github.com/thisdougb/telemetry/internal/worker"
)

var (
	ErrAlreadyStarted   = errors.New("dispatcher: already started")
	ErrShutdown         = errors.New("dispatcher: shut down")
	ErrNotStarted       = errors.New("dispatcher: not started")
	ErrOverflow         = errors.New("dispatcher: pre-init buffer full")
	ErrDeadlineExceeded = errors.New("dispatcher: shutdown deadline exceeded")
)

// State of the queue. It only moves forward.
type State int

const (
	Uninitialized State = iota
	Buffering
	Draining
	Live
	ShuttingDown
	Stopped
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Buffering:
		return "buffering"
	case Draining:
		return "draining"
	case Live:
		return "live"
	case ShuttingDown:
		return "shutting_down"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Task is a named unit of work executed on the worker against the execution
// context C.
type Task[C any] interface {
	Op() string
	Execute(ctx context.Context, c C) error
}

// Queue is a FIFO of tasks with a single consumer. Before Start, tasks are
// buffered up to a fixed limit; later ones are dropped and counted.
type Queue[C any] struct {
	mu          sync.Mutex
	state       State
	tasks       []Task[C]
	maxPreInit  int
	overflowed  int
	outstanding int
	idle        chan struct{} // closed whenever outstanding is zero
	wake        chan struct{}
	quit        chan struct{}
	done        chan struct{}
	execCtx     C
}

// New returns a queue in the Buffering state.
func New[C any](maxPreInit int) *Queue[C] {
	idle := make(chan struct{})
	close(idle)
	return &Queue[C]{
		state:      Buffering,
		maxPreInit: maxPreInit,
		idle:       idle,
		wake:       make(chan struct{}, 1),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// State returns the current state.
func (q *Queue[C]) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Overflowed returns how many tasks were dropped while buffering.
func (q *Queue[C]) Overflowed() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.overflowed
}

// Pending returns the number of tasks enqueued but not yet finished.
func (q *Queue[C]) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.outstanding
}

// Enqueue adds a task without blocking.
func (q *Queue[C]) Enqueue(task Task[C]) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch q.state {
	case Buffering:
		if len(q.tasks) >= q.maxPreInit {
			q.overflowed++
			diag.DispatcherOverflow.Inc()
			return ErrOverflow
		}
	case Draining, Live:
	default:
		diag.DispatcherRejected.Inc()
		return fmt.Errorf("%s: %w", task.Op(), ErrShutdown)
	}

	q.tasks = append(q.tasks, task)
	if q.outstanding == 0 {
		q.idle = make(chan struct{})
	}
	q.outstanding++

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Start hands the execution context to a new worker, which drains the
// buffered tasks in order before accepting live ones. If the worker cannot
// be created the queue stays Buffering.
func (q *Queue[C]) Start(execCtx C, spawner worker.Spawner) error {
	q.mu.Lock()
	switch q.state {
	case Buffering:
	case ShuttingDown, Stopped:
		q.mu.Unlock()
		return ErrShutdown
	default:
		q.mu.Unlock()
		return ErrAlreadyStarted
	}
	q.execCtx = execCtx
	q.state = Draining
	q.mu.Unlock()

	if err := spawner.Spawn("telemetry.dispatcher", q.run); err != nil {
		q.mu.Lock()
		q.state = Buffering
		q.mu.Unlock()
		return fmt.Errorf("failed to start dispatcher worker: %w", err)
	}
	return nil
}

// BlockUntilIdle waits until every task enqueued so far has finished.
func (q *Queue[C]) BlockUntilIdle(ctx context.Context) error {
	q.mu.Lock()
	switch q.state {
	case Draining, Live, ShuttingDown:
	default:
		q.mu.Unlock()
		return ErrNotStarted
	}
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting tasks and waits up to timeout for the queued ones
// to finish. Whatever is still queued at the deadline is abandoned.
func (q *Queue[C]) Shutdown(timeout time.Duration) error {
	q.mu.Lock()
	switch q.state {
	case ShuttingDown, Stopped:
		q.mu.Unlock()
		return nil
	case Buffering:
		abandoned := len(q.tasks)
		q.abandonLocked()
		q.mu.Unlock()
		if abandoned > 0 {
			config.LogWarn(context.Background(), "dispatcher stopped before start, tasks abandoned",
				zap.Int("tasks", abandoned))
		}
		return nil
	}
	q.state = ShuttingDown
	idle := q.idle
	q.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var err error
	select {
	case <-idle:
	case <-timer.C:
		err = ErrDeadlineExceeded
	}

	close(q.quit)
	if err == nil {
		<-q.done
	}

	q.mu.Lock()
	abandoned := len(q.tasks)
	q.abandonLocked()
	q.mu.Unlock()

	if err != nil {
		config.LogWarn(context.Background(), "dispatcher shutdown timed out",
			zap.Duration("timeout", timeout), zap.Int("abandoned", abandoned))
	}
	return err
}

// abandonLocked assumes the lock is held
func (q *Queue[C]) abandonLocked() {
	q.state = Stopped
	q.tasks = nil
}

func (q *Queue[C]) run() {
	defer close(q.done)

	for {
		task, ok := q.next()
		if !ok {
			return
		}
		q.execute(task)
		q.finish()
	}
}

func (q *Queue[C]) next() (Task[C], bool) {
	for {
		select {
		case <-q.quit:
			return nil, false
		default:
		}

		q.mu.Lock()
		if len(q.tasks) > 0 {
			task := q.tasks[0]
			q.tasks[0] = nil
			q.tasks = q.tasks[1:]
			q.mu.Unlock()
			return task, true
		}
		if q.state == Draining {
			q.state = Live
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-q.quit:
			return nil, false
		}
	}
}

func (q *Queue[C]) finish() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.outstanding--
	if q.outstanding == 0 {
		close(q.idle)
	}
}

// execute runs one task, containing its errors and panics.
func (q *Queue[C]) execute(task Task[C]) {
	ctx := config.SetContextCorrelationId(context.Background(), "task-"+task.Op())

	defer func() {
		if r := recover(); r != nil {
			diag.TaskFailures.WithLabelValues(task.Op()).Inc()
			config.LogError(ctx, "task panicked", zap.String("op", task.Op()), zap.Any("panic", r))
		}
	}()

	if err := task.Execute(ctx, q.execCtx); err != nil {
		diag.TaskFailures.WithLabelValues(task.Op()).Inc()
		config.LogError(ctx, "task failed", zap.String("op", task.Op()), zap.Error(err))
	}
}
