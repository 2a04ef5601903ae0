package contentcache

import (
	"context"
	"sync"

	"github.com/sourcegraph/conc/panics"

	"github.com/Iron-Ham/backlog/internal/errors"
	"github.com/Iron-Ham/backlog/internal/logging"
)

// unit is one serialized piece of cache work.
type unit func(ctx context.Context) error

type job struct {
	name string
	fn   unit
	done chan error // nil for fire-and-forget jobs
}

// workQueue runs units one at a time in FIFO order on a single goroutine.
// It is the only writer of cache state. Enqueueing never blocks, so
// watcher goroutines can hand off raw notifications without waiting on a
// slow filesystem.
type workQueue struct {
	logger *logging.Logger

	mu      sync.Mutex
	pending []job
	closed  bool

	wake   chan struct{}
	stop   chan struct{}
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	// onError observes unit failures after they are logged. Tests use it.
	onError func(name string, err error)
}

func newWorkQueue(logger *logging.Logger) *workQueue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &workQueue{
		logger: logger,
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	go q.loop()
	return q
}

// Enqueue appends a fire-and-forget unit. It reports false if the queue is
// closed.
func (q *workQueue) Enqueue(name string, fn unit) bool {
	return q.push(job{name: name, fn: fn})
}

// Do appends a unit and waits for it to finish, returning its error. The
// wait ends early if ctx is canceled; the unit still runs.
func (q *workQueue) Do(ctx context.Context, name string, fn unit) error {
	j := job{name: name, fn: fn, done: make(chan error, 1)}
	if !q.push(j) {
		return errors.ErrCacheDisposed
	}
	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *workQueue) push(j job) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.pending = append(q.pending, j)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// Len returns the number of units waiting to run.
func (q *workQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close stops the queue. The unit currently running finishes; pending
// units are dropped and their waiters receive ErrCacheDisposed. Close does
// not wait for the running unit, so it is safe to call from inside one.
func (q *workQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	dropped := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, j := range dropped {
		if j.done != nil {
			j.done <- errors.ErrCacheDisposed
		}
	}
	close(q.stop)
}

// Wait blocks until the queue goroutine has exited.
func (q *workQueue) Wait() {
	<-q.done
}

func (q *workQueue) loop() {
	defer close(q.done)
	defer q.cancel()

	for {
		select {
		case <-q.stop:
			return
		case <-q.wake:
		}

		for {
			q.mu.Lock()
			if q.closed || len(q.pending) == 0 {
				q.mu.Unlock()
				break
			}
			j := q.pending[0]
			q.pending[0] = job{}
			q.pending = q.pending[1:]
			q.mu.Unlock()

			err := q.run(j)
			if j.done != nil {
				j.done <- err
			}
		}
	}
}

// run executes one unit. A failing or panicking unit is logged and the
// queue moves on.
func (q *workQueue) run(j job) error {
	var err error
	var pc panics.Catcher
	pc.Try(func() { err = j.fn(q.ctx) })
	if r := pc.Recovered(); r != nil {
		err = r.AsError()
		q.logger.Error("queued unit panicked", "unit", j.name, "panic", r.Value, "stack", string(r.Stack))
	} else if err != nil {
		q.logger.Warn("queued unit failed", "unit", j.name, "error", err)
	}
	if err != nil && q.onError != nil {
		q.onError(j.name, err)
	}
	return err
}
