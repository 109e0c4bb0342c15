package wallet

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brojonat/solgate/service/metrics"
)

const (
	jobQueued int32 = iota
	jobRunning
	jobAbandoned
)

// job is one unit of signer-bound work.
type job struct {
	ctx      context.Context
	run      func(ctx context.Context) error
	done     chan error // buffered, receives exactly one value
	enqueued time.Time

	// state moves from jobQueued to either jobRunning (worker) or
	// jobAbandoned (caller), never both.
	state atomic.Int32
}

// submitQueue runs jobs one at a time, in the order they were enqueued.
// Everything that reads chain state to decide what to sign, signs, and
// submits goes through here, so two transfers never interleave.
type submitQueue struct {
	jobs    chan *job
	quit    chan struct{}
	stopped chan struct{}
	once    sync.Once

	metrics *metrics.Metrics
	logger  *slog.Logger
}

func newSubmitQueue(size int, m *metrics.Metrics, logger *slog.Logger) *submitQueue {
	if size < 1 {
		size = 1
	}
	q := &submitQueue{
		jobs:    make(chan *job, size),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
		metrics: m,
		logger:  logger,
	}
	go q.loop()
	return q
}

// do enqueues fn and waits for its result. It blocks while the queue is full.
// ctx bounds both the wait and fn itself. Once fn has started, do returns
// fn's result even when ctx ends first.
func (q *submitQueue) do(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case <-q.quit:
		return ErrServiceClosed
	default:
	}

	j := &job{
		ctx:      ctx,
		run:      fn,
		done:     make(chan error, 1),
		enqueued: time.Now(),
	}

	select {
	case q.jobs <- j:
		q.setDepth()
	case <-ctx.Done():
		return ctx.Err()
	case <-q.quit:
		return ErrServiceClosed
	}

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		if j.state.CompareAndSwap(jobQueued, jobAbandoned) {
			return ctx.Err()
		}
		// fn already started and may have submitted transactions; report
		// its own result. fn runs under ctx too.
		return <-j.done
	case <-q.stopped:
		select {
		case err := <-j.done:
			return err
		default:
			return ErrServiceClosed
		}
	}
}

func (q *submitQueue) loop() {
	defer close(q.stopped)
	for {
		select {
		case <-q.quit:
			q.drain()
			return
		case j := <-q.jobs:
			q.setDepth()
			select {
			case <-q.quit:
				j.done <- ErrServiceClosed
				q.drain()
				return
			default:
			}
			q.run(j)
		}
	}
}

func (q *submitQueue) run(j *job) {
	if q.metrics != nil {
		q.metrics.RecordQueueWait(time.Since(j.enqueued).Seconds())
	}
	// the caller gave up while the job was queued
	if err := j.ctx.Err(); err != nil || !j.state.CompareAndSwap(jobQueued, jobRunning) {
		if err == nil {
			err = context.Canceled
		}
		j.done <- err
		return
	}

	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("submission job panicked", "panic", r)
			j.done <- newError(KindSubmission, "submit", errPanicked)
		}
	}()
	j.done <- j.run(j.ctx)
}

// drain fails every job still buffered.
func (q *submitQueue) drain() {
	for {
		select {
		case j := <-q.jobs:
			j.done <- ErrServiceClosed
		default:
			q.setDepth()
			return
		}
	}
}

func (q *submitQueue) setDepth() {
	if q.metrics != nil {
		q.metrics.SetQueueDepth(len(q.jobs))
	}
}

// close stops the worker after the running job, if any, finishes.
func (q *submitQueue) close() {
	q.once.Do(func() {
		close(q.quit)
	})
	<-q.stopped
}
