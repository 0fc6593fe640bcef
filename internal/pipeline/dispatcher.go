package pipeline

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"tubesum/internal/store"
)

// Runner executes one job to completion.
type Runner interface {
	Run(ctx context.Context, jobID string) error
}

// LocalDispatcher runs each job in its own goroutine, at most concurrency at a time.
type LocalDispatcher struct {
	runner Runner
	slots  chan struct{}
	wg     sync.WaitGroup
}

var _ store.JobClient = (*LocalDispatcher)(nil)

// NewLocalDispatcher creates an in-process pool. concurrency < 1 means 1.
func NewLocalDispatcher(r Runner, concurrency int) *LocalDispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &LocalDispatcher{runner: r, slots: make(chan struct{}, concurrency)}
}

// Dispatch starts the job without waiting for a free slot.
func (d *LocalDispatcher) Dispatch(ctx context.Context, jobID string) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.slots <- struct{}{}
		defer func() { <-d.slots }()

		if err := d.runner.Run(context.Background(), jobID); err != nil {
			log.WithField("job_id", jobID).Errorf("Job run failed: %v", err)
		}
	}()
	return nil
}

// Wait blocks until all dispatched jobs have returned.
func (d *LocalDispatcher) Wait() { d.wg.Wait() }

// Close waits for running jobs.
func (d *LocalDispatcher) Close() error {
	d.Wait()
	return nil
}
