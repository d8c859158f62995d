package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRetriesFailedJobs(t *testing.T) {
	var attempts int32
	done := make(chan struct{})
	q := NewQueue("audit", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("db down")
		}
		close(done)
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: 5 * time.Millisecond})

	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "1", Type: "bulk_action"}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried to success")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("audit", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{ID: "1"}))
	assert.Error(t, q.TryEnqueue(Job{ID: "1"}))
}

func TestTryEnqueueReportsFullBuffer(t *testing.T) {
	release := make(chan struct{})
	q := NewQueue("audit", func(ctx context.Context, job Job) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer q.Stop()
	defer close(release)

	var full error
	for i := 0; i < 5 && full == nil; i++ {
		full = q.TryEnqueue(Job{ID: "x"})
	}
	assert.ErrorIs(t, full, ErrQueueFull)
}

func TestStopDrainsBufferedJobs(t *testing.T) {
	var handled int32
	started := make(chan struct{})
	release := make(chan struct{})
	q := NewQueue("audit", func(ctx context.Context, job Job) error {
		if job.ID == "1" {
			close(started)
			<-release
		}
		atomic.AddInt32(&handled, 1)
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 4})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "1"}))
	<-started
	require.NoError(t, q.TryEnqueue(Job{ID: "2"}))
	require.NoError(t, q.TryEnqueue(Job{ID: "3"}))

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()
	q.Stop()

	assert.Equal(t, int32(3), atomic.LoadInt32(&handled))
}

func TestEnqueueAfterStopIsRejected(t *testing.T) {
	q := NewQueue("audit", func(context.Context, Job) error { return nil }, QueueConfig{})
	q.Start(context.Background())
	q.Stop()
	q.Stop()

	assert.ErrorIs(t, q.Enqueue(Job{ID: "late"}), ErrQueueStopped)
	assert.ErrorIs(t, q.TryEnqueue(Job{ID: "late"}), ErrQueueStopped)
}
