package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"chatstream/internal/observability"
)

// Handler runs one job kind
type Handler interface {
	Handle(ctx context.Context, payload json.RawMessage) error
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

func (f HandlerFunc) Handle(ctx context.Context, payload json.RawMessage) error {
	return f(ctx, payload)
}

// WorkerConfig tunes retries
type WorkerConfig struct {
	MaxAttempts int
	JobTimeout  time.Duration
}

// Worker polls a Queue and dispatches jobs by kind
type Worker struct {
	queue    Queue
	handlers map[string]Handler
	metrics  *observability.Metrics
	cfg      WorkerConfig
	logger   *slog.Logger

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// NewWorker creates a worker; register handlers before calling Run
func NewWorker(queue Queue, metrics *observability.Metrics, cfg WorkerConfig, logger *slog.Logger) *Worker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = time.Minute
	}
	return &Worker{
		queue:     queue,
		handlers:  make(map[string]Handler),
		metrics:   metrics,
		cfg:       cfg,
		logger:    logger,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Register binds a handler to a job kind
func (w *Worker) Register(kind string, h Handler) {
	w.handlers[kind] = h
}

// Run processes jobs until ctx is done or Stop is called
func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	w.logger.InfoContext(ctx, "job worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			w.logger.InfoContext(ctx, "job worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.logger.ErrorContext(ctx, "job batch error", "error", err)
				// Brief backoff on error
				time.Sleep(time.Second)
			}
		}
	}
}

// Stop asks Run to return and waits for it
func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	jobs, err := w.queue.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading jobs: %w", err)
	}
	for _, job := range jobs {
		w.process(ctx, job)
	}
	return nil
}

// process runs one job and settles it: ack, requeue, or dead-letter
func (w *Worker) process(ctx context.Context, job Job) {
	err := w.runSafe(ctx, job)
	w.metrics.RecordJob(job.Kind, err)

	if err == nil {
		if ackErr := w.queue.Ack(ctx, job); ackErr != nil {
			w.logger.WarnContext(ctx, "failed to ack job", "error", ackErr, "job_id", job.ID)
		}
		return
	}

	w.logger.ErrorContext(ctx, "job failed",
		"error", err,
		"kind", job.Kind,
		"job_id", job.ID,
		"attempt", job.Attempt)

	if IsPermanent(err) || job.Attempt >= w.cfg.MaxAttempts {
		if dlqErr := w.queue.DeadLetter(ctx, job, err.Error()); dlqErr != nil {
			w.logger.ErrorContext(ctx, "failed to dead-letter job", "error", dlqErr, "job_id", job.ID)
		}
		return
	}
	if reqErr := w.queue.Requeue(ctx, job, err.Error()); reqErr != nil {
		w.logger.ErrorContext(ctx, "failed to requeue job", "error", reqErr, "job_id", job.ID)
	}
}

func (w *Worker) runSafe(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.ErrorContext(ctx, "panic recovered in job", "panic", r, "kind", job.Kind)
			err = Permanent(fmt.Errorf("panic: %v", r))
		}
	}()

	h, ok := w.handlers[job.Kind]
	if !ok {
		return Permanent(fmt.Errorf("no handler for job kind %q", job.Kind))
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()
	return h.Handle(jobCtx, job.Payload)
}
