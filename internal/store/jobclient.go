package store

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"tubesum/internal/tasks"
)

// AsynqJobClient is a concrete JobClient.
// It enqueues summarize tasks on Redis; a worker (embedded in serve, or the
// standalone worker command) picks them up.
type AsynqJobClient struct {
	client *asynq.Client
	queue  string
}

// Ensure it implements JobClient
var _ JobClient = (*AsynqJobClient)(nil)

// RedisOptions holds the connection settings shared by client and server.
type RedisOptions struct {
	Address  string
	Password string
	DB       int
}

// ClientOpt converts to asynq's connection option.
func (o RedisOptions) ClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     o.Address,
		Password: o.Password,
		DB:       o.DB,
	}
}

func NewAsynqJobClient(opts RedisOptions) (*AsynqJobClient, error) {
	if opts.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty for AsynqJobClient")
	}
	cli := asynq.NewClient(opts.ClientOpt())
	return &AsynqJobClient{client: cli, queue: tasks.QueueSummaries}, nil
}

func (jc *AsynqJobClient) Close() error {
	return jc.client.Close()
}

// Dispatch enqueues one summarize task for jobID. Tasks are never retried:
// a failed job stays failed.
func (jc *AsynqJobClient) Dispatch(ctx context.Context, jobID string) error {
	if jc.client == nil {
		return fmt.Errorf("AsynqJobClient internal client is not initialized")
	}
	payload, err := tasks.EncodeSummarizeVideo(jobID)
	if err != nil {
		return err
	}
	task := asynq.NewTask(tasks.TypeSummarizeVideo, payload)
	info, err := jc.client.EnqueueContext(ctx, task,
		asynq.Queue(jc.queue),
		asynq.MaxRetry(0),
		asynq.TaskID(jobID),
	)
	if err != nil {
		return fmt.Errorf("enqueue summarize task for job %s: %w", jobID, err)
	}
	log.WithFields(log.Fields{"job_id": jobID, "task_id": info.ID, "queue": info.Queue}).Debug("Enqueued summarize task")
	return nil
}
