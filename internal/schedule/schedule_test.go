package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcJob struct {
	name string
	fn   func(ctx context.Context) error
}

func (f *funcJob) Name() string                  { return f.name }
func (f *funcJob) Run(ctx context.Context) error { return f.fn(ctx) }

// blockingJob parks the worker until release is closed.
func blockingJob(started chan<- struct{}, release <-chan struct{}) *funcJob {
	return &funcJob{name: "block", fn: func(ctx context.Context) error {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}}
}

func TestQueueRunsJobsInOrder(t *testing.T) {
	q := NewQueue(4, time.Second)
	q.Start(context.Background())
	defer q.Stop()

	var order []string
	done := make(chan struct{})
	for _, name := range []string{"a", "b"} {
		name := name
		require.True(t, q.Enqueue(&funcJob{name: name, fn: func(context.Context) error {
			order = append(order, name)
			if name == "b" {
				close(done)
			}
			return nil
		}}))
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("jobs did not run")
	}
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestQueueFullDropsWithoutBlocking(t *testing.T) {
	q := NewQueue(1, time.Second)
	q.Start(context.Background())
	defer q.Stop()

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	require.True(t, q.Enqueue(blockingJob(started, release)))
	<-started

	noop := func(context.Context) error { return nil }
	assert.True(t, q.Enqueue(&funcJob{name: "x", fn: noop}))
	assert.False(t, q.Enqueue(&funcJob{name: "y", fn: noop}))
	assert.Equal(t, 1, q.Status().Pending)
	assert.Equal(t, "block", q.Status().Running)
}

func TestQueueCoalescesPendingJobs(t *testing.T) {
	q := NewQueue(4, time.Second)
	q.Start(context.Background())
	defer q.Stop()

	started := make(chan struct{})
	release := make(chan struct{})
	require.True(t, q.Enqueue(blockingJob(started, release)))
	<-started

	var runs int32
	finished := make(chan struct{}, 4)
	job := &funcJob{name: "journal_reindex", fn: func(context.Context) error {
		atomic.AddInt32(&runs, 1)
		finished <- struct{}{}
		return nil
	}}
	assert.True(t, q.Enqueue(job))
	assert.True(t, q.Enqueue(job))
	assert.True(t, q.Enqueue(job))
	assert.Equal(t, 1, q.Status().Pending)
	close(release)

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
}

func TestQueueRecordsLastErrorAndTimeout(t *testing.T) {
	q := NewQueue(4, 20*time.Millisecond)
	q.Start(context.Background())
	defer q.Stop()

	done := make(chan struct{})
	require.True(t, q.Enqueue(&funcJob{name: "slow", fn: func(ctx context.Context) error {
		defer close(done)
		<-ctx.Done()
		return ctx.Err()
	}}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout was not applied")
	}
	require.Eventually(t, func() bool { return q.LastError() != nil }, time.Second, 5*time.Millisecond)
	last := q.LastError()
	assert.Equal(t, "slow", last.Job)
	assert.Contains(t, last.Error, context.DeadlineExceeded.Error())
}

func TestQueueSurvivesPanic(t *testing.T) {
	q := NewQueue(4, time.Second)
	q.Start(context.Background())
	defer q.Stop()

	ran := make(chan struct{})
	require.True(t, q.Enqueue(&funcJob{name: "boom", fn: func(context.Context) error { panic("bad") }}))
	require.True(t, q.Enqueue(&funcJob{name: "after", fn: func(context.Context) error { close(ran); return nil }}))
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("worker died after panic")
	}
	require.Eventually(t, func() bool { return q.LastError() != nil }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "boom", q.LastError().Job)
}

func TestQueueStopCancelsRunningJob(t *testing.T) {
	q := NewQueue(4, time.Minute)
	q.Start(context.Background())
	started := make(chan struct{})
	cancelled := make(chan struct{})
	require.True(t, q.Enqueue(&funcJob{name: "long", fn: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	}}))
	<-started
	q.Stop()
	select {
	case <-cancelled:
	default:
		t.Fatal("running job was not cancelled")
	}
	assert.False(t, q.Enqueue(&funcJob{name: "late", fn: func(context.Context) error { return nil }}))
}

func TestEnqueuedJobRoutesThroughQueue(t *testing.T) {
	q := NewQueue(1, time.Second)
	inner := &funcJob{name: "full_reindex", fn: func(context.Context) error { return errors.New("unused") }}
	wrapped := Enqueued(q, inner)
	assert.Equal(t, "full_reindex", wrapped.Name())
	require.NoError(t, wrapped.Run(context.Background()))
	assert.Equal(t, 1, q.Status().Pending)
	require.Error(t, Enqueued(q, &funcJob{name: "other", fn: inner.fn}).Run(context.Background()))
}

func TestCronSchedulerAddJob(t *testing.T) {
	c := NewCronScheduler()
	noop := &funcJob{name: "noop", fn: func(context.Context) error { return nil }}
	require.NoError(t, c.AddJob(noop, ""))
	assert.Equal(t, 0, c.Len())
	require.Error(t, c.AddJob(noop, "not a spec"))
	require.NoError(t, c.AddJob(noop, "*/5 * * * *"))
	assert.Equal(t, 1, c.Len())
	c.Start(context.Background())
	defer c.Stop()
	require.Eventually(t, func() bool { return !c.Next("noop").IsZero() }, time.Second, 10*time.Millisecond)
}
