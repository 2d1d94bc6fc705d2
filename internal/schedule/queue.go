package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type LastError struct {
	Job   string    `json:"job"`
	Error string    `json:"error"`
	Time  time.Time `json:"time"`
}

type QueueStatus struct {
	Pending   int        `json:"pending"`
	Running   string     `json:"running,omitempty"`
	LastRun   time.Time  `json:"last_run"`
	LastError *LastError `json:"last_error,omitempty"`
}

// Queue is a bounded job queue drained by a single worker, so queued jobs
// never run concurrently with each other. Failures are logged and kept as
// the last error; jobs are never retried.
type Queue struct {
	jobs    chan Job
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]struct{}
	running string
	lastRun time.Time
	lastErr *LastError
	started bool
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewQueue(size int, timeout time.Duration) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{
		jobs:    make(chan Job, size),
		timeout: timeout,
		pending: make(map[string]struct{}),
		done:    make(chan struct{}),
	}
}

func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.stopped {
		return
	}
	q.started = true
	q.ctx, q.cancel = context.WithCancel(ctx)
	go q.loop()
}

// Enqueue hands job to the worker without blocking. A job whose name is
// already waiting is coalesced into the waiting one. It returns false when
// the queue is full or stopped.
func (q *Queue) Enqueue(job Job) bool {
	logger := logutil.GetLogger(context.Background()).With(zap.String("job", job.Name()))
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return false
	}
	if _, ok := q.pending[job.Name()]; ok {
		logger.Debug("job already pending, coalesced")
		return true
	}
	select {
	case q.jobs <- job:
		q.pending[job.Name()] = struct{}{}
		return true
	default:
		logger.Warn("reindex queue full, job dropped", zap.Int("capacity", cap(q.jobs)))
		return false
	}
}

// Stop cancels the running job, drops pending ones and waits for the worker.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	started := q.started
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Unlock()
	if started {
		<-q.done
	}
}

func (q *Queue) Status() QueueStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	st := QueueStatus{
		Pending: len(q.pending),
		Running: q.running,
		LastRun: q.lastRun,
	}
	if q.lastErr != nil {
		e := *q.lastErr
		st.LastError = &e
	}
	return st
}

func (q *Queue) LastError() *LastError {
	return q.Status().LastError
}

func (q *Queue) loop() {
	defer close(q.done)
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			q.mu.Lock()
			delete(q.pending, job.Name())
			q.running = job.Name()
			q.mu.Unlock()

			err := q.run(job)

			q.mu.Lock()
			q.running = ""
			q.lastRun = time.Now()
			if err != nil {
				q.lastErr = &LastError{Job: job.Name(), Error: err.Error(), Time: q.lastRun}
			}
			q.mu.Unlock()
		}
	}
}

func (q *Queue) run(job Job) (err error) {
	ctx := q.ctx
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}
	logger := logutil.GetLogger(ctx).With(zap.String("job", job.Name()))
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panic: %v", r)
			logger.Error("job panicked", zap.Any("panic", r))
		}
	}()
	start := time.Now()
	logger.Info("job started")
	err = job.Run(ctx)
	if err != nil {
		logger.Warn("job failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return err
	}
	logger.Info("job finished", zap.Duration("duration", time.Since(start)))
	return nil
}

type enqueuedJob struct {
	queue *Queue
	inner Job
}

// Enqueued wraps inner so that running it only hands it to q. Cron specs use
// this to route work through the single worker.
func Enqueued(q *Queue, inner Job) Job {
	return &enqueuedJob{queue: q, inner: inner}
}

func (e *enqueuedJob) Name() string {
	return e.inner.Name()
}

func (e *enqueuedJob) Run(_ context.Context) error {
	if !e.queue.Enqueue(e.inner) {
		return fmt.Errorf("enqueue %s: queue full or stopped", e.inner.Name())
	}
	return nil
}
