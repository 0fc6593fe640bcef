package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"tubesum/internal/store"
	"tubesum/internal/tasks"
)

// HandleSummarizeTask runs the job named in a video:summarize task.
// Undecodable payloads and unknown jobs are not retried.
func HandleSummarizeTask(r Runner) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, t *asynq.Task) error {
		p, err := tasks.DecodeSummarizeVideo(t.Payload())
		if err != nil {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		log.WithField("job_id", p.JobID).Debug("Processing summarize task")

		if err := r.Run(ctx, p.JobID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("job %s: %v: %w", p.JobID, err, asynq.SkipRetry)
			}
			return fmt.Errorf("run job %s: %w", p.JobID, err)
		}
		return nil
	}
}

// RegisterHandlers wires the pipeline task handlers into mux.
func RegisterHandlers(mux *asynq.ServeMux, r Runner) {
	log.Infof("Registering %s handler", tasks.TypeSummarizeVideo)
	mux.HandleFunc(tasks.TypeSummarizeVideo, HandleSummarizeTask(r))
}

// WorkerOptions sizes an asynq worker server.
type WorkerOptions struct {
	Redis       store.RedisOptions
	Concurrency int
	Queues      map[string]int
}

// NewWorkerServer builds an asynq server that logs through logrus.
func NewWorkerServer(opts WorkerOptions) *asynq.Server {
	queues := opts.Queues
	if len(queues) == 0 {
		queues = map[string]int{tasks.QueueSummaries: 1}
	}
	return asynq.NewServer(
		opts.Redis.ClientOpt(),
		asynq.Config{
			Concurrency: opts.Concurrency,
			Queues:      queues,
			Logger:      log.StandardLogger(),
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.WithFields(log.Fields{
					"task_type": task.Type(),
					"payload":   string(task.Payload()),
				}).Errorf("Asynq task failed: %v", err)
			}),
		},
	)
}
