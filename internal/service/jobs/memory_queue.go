package jobs

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"
)

// MemoryQueue is an in-process Queue used when no Redis URL is configured.
// Jobs are lost on restart.
type MemoryQueue struct {
	ch     chan Job
	seq    atomic.Int64
	block  time.Duration
	logger *slog.Logger
}

// NewMemoryQueue creates a queue holding up to capacity pending jobs
func NewMemoryQueue(capacity int, block time.Duration, logger *slog.Logger) *MemoryQueue {
	return &MemoryQueue{
		ch:     make(chan Job, capacity),
		block:  block,
		logger: logger,
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, kind string, payload any) error {
	data, err := encodePayload(payload)
	if err != nil {
		return err
	}
	return q.push(ctx, Job{Kind: kind, Payload: data, Attempt: 1})
}

func (q *MemoryQueue) push(ctx context.Context, job Job) error {
	job.ID = strconv.FormatInt(q.seq.Add(1), 10)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Read(ctx context.Context) ([]Job, error) {
	timer := time.NewTimer(q.block)
	defer timer.Stop()

	select {
	case job := <-q.ch:
		jobs := []Job{job}
		// Drain whatever else is already waiting
		for {
			select {
			case more := <-q.ch:
				jobs = append(jobs, more)
			default:
				return jobs, nil
			}
		}
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemoryQueue) Ack(ctx context.Context, job Job) error {
	return nil
}

func (q *MemoryQueue) Requeue(ctx context.Context, job Job, errMsg string) error {
	job.Attempt++
	return q.push(ctx, job)
}

func (q *MemoryQueue) DeadLetter(ctx context.Context, job Job, errMsg string) error {
	q.logger.ErrorContext(ctx, "dropping job after final attempt",
		"kind", job.Kind,
		"attempt", job.Attempt,
		"error", errMsg)
	return nil
}

func (q *MemoryQueue) Close() error {
	return nil
}
