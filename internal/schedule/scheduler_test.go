package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type blockingJob struct {
	runs    atomic.Int32
	release chan struct{}
	started chan struct{}
}

func (j *blockingJob) Name() string { return "blocking" }

func (j *blockingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	j.started <- struct{}{}
	select {
	case <-j.release:
	case <-ctx.Done():
	}
	return nil
}

func TestAddJobRejectsBadSpec(t *testing.T) {
	s := NewCronScheduler()
	require.Error(t, s.AddJob(&blockingJob{}, "every minute"))
	require.Error(t, s.AddJob(&blockingJob{}, "* * * * * *"))
	require.NoError(t, s.AddJob(&blockingJob{}, "*/10 * * * *"))
	require.NoError(t, s.AddJob(&blockingJob{}, "@every 5m"))
}

func TestOverlappingRunIsSkipped(t *testing.T) {
	s := NewCronScheduler()
	job := &blockingJob{release: make(chan struct{}), started: make(chan struct{}, 2)}
	run := s.wrap(job, "@every 1m")

	go run()
	<-job.started

	run() // returns immediately while the first run is blocked
	require.EqualValues(t, 1, job.runs.Load())

	close(job.release)
	require.Eventually(t, func() bool {
		run()
		return job.runs.Load() == 2
	}, time.Second, 10*time.Millisecond)
}

func TestStopCancelsRunningJobs(t *testing.T) {
	s := NewCronScheduler()
	s.Start(context.Background())
	job := &blockingJob{release: make(chan struct{}), started: make(chan struct{}, 1)}
	run := s.wrap(job, "@every 1m")

	done := make(chan struct{})
	go func() {
		run()
		close(done)
	}()
	<-job.started

	s.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job did not observe cancellation")
	}
}
