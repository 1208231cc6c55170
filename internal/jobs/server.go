package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
)

// Worker wraps the Asynq server that drains the batch-match queue.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisAddr   string
	RedisDB     int
	Concurrency int
	Handler     *BatchMatchHandler
}

// NewWorker constructs a Worker bound to the batch-match queue.
func NewWorker(cfg WorkerConfig) *Worker {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				QueueBatchMatch: 1,
			},
		},
	)
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeBatchMatch, cfg.Handler.HandleBatchMatchTask)
	return &Worker{server: srv, mux: mux}
}

// Run starts processing jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Client submits batch-match jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client against redisAddr.
func NewClient(redisAddr string, redisDB int) *Client {
	return &Client{client: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr, DB: redisDB})}
}

// EnqueueBatchMatch submits a batch-match job for an already-persisted run.
func (c *Client) EnqueueBatchMatch(ctx context.Context, payload BatchMatchPayload) (*asynq.TaskInfo, error) {
	task, err := NewBatchMatchTask(payload)
	if err != nil {
		return nil, err
	}
	info, err := c.client.EnqueueContext(ctx, task, asynq.Queue(QueueBatchMatch))
	if err != nil {
		return nil, fmt.Errorf("jobs: enqueueing batch match: %w", err)
	}
	return info, nil
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
