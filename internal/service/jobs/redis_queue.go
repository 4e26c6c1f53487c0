package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueueConfig names the stream and consumer group a worker reads from
type RedisQueueConfig struct {
	Stream    string        // Redis stream name
	Group     string        // Consumer group name
	Consumer  string        // Consumer name within the group
	DLQStream string        // Stream receiving jobs that exhausted their attempts
	BatchSize int64         // Jobs read per poll
	Block     time.Duration // How long one read blocks waiting for jobs
}

// DefaultRedisQueueConfig returns the stream layout used by the server
func DefaultRedisQueueConfig(consumer string) RedisQueueConfig {
	return RedisQueueConfig{
		Stream:    "chatstream_jobs",
		Group:     "chatstream_workers",
		Consumer:  consumer,
		DLQStream: "chatstream_jobs_dlq",
		BatchSize: 10,
		Block:     5 * time.Second,
	}
}

// RedisQueue is a Queue on a Redis stream with one consumer group
type RedisQueue struct {
	client *redis.Client
	cfg    RedisQueueConfig
	logger *slog.Logger
}

// NewRedisQueue creates the consumer group if needed
func NewRedisQueue(ctx context.Context, client *redis.Client, cfg RedisQueueConfig, logger *slog.Logger) (*RedisQueue, error) {
	q := &RedisQueue{client: client, cfg: cfg, logger: logger}

	// Start at "0" so jobs added before the group existed are not skipped
	err := client.XGroupCreateMkStream(ctx, cfg.Stream, cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("creating consumer group: %w", err)
	}
	return q, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, kind string, payload any) error {
	data, err := encodePayload(payload)
	if err != nil {
		return err
	}
	if err := q.add(ctx, q.cfg.Stream, kind, string(data), 1, ""); err != nil {
		return fmt.Errorf("enqueue %s job: %w", kind, err)
	}
	q.logger.DebugContext(ctx, "enqueued job", "kind", kind, "stream", q.cfg.Stream)
	return nil
}

func (q *RedisQueue) Read(ctx context.Context) ([]Job, error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.cfg.Group,
		Consumer: q.cfg.Consumer,
		Streams:  []string{q.cfg.Stream, ">"},
		Count:    q.cfg.BatchSize,
		Block:    q.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	var jobs []Job
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			job, parseErr := parseJob(msg)
			if parseErr != nil {
				q.logger.ErrorContext(ctx, "dropping unparseable job",
					"error", parseErr,
					"raw_message_id", msg.ID)
				_ = q.Ack(ctx, Job{ID: msg.ID})
				continue
			}
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

func (q *RedisQueue) Ack(ctx context.Context, job Job) error {
	if err := q.client.XAck(ctx, q.cfg.Stream, q.cfg.Group, job.ID).Err(); err != nil {
		return fmt.Errorf("xack (stream=%s): %w", q.cfg.Stream, err)
	}
	return nil
}

// Requeue acks job and appends it again with the next attempt number
func (q *RedisQueue) Requeue(ctx context.Context, job Job, errMsg string) error {
	if err := q.Ack(ctx, job); err != nil {
		return fmt.Errorf("acking job for requeue: %w", err)
	}
	if err := q.add(ctx, q.cfg.Stream, job.Kind, string(job.Payload), job.Attempt+1, errMsg); err != nil {
		return fmt.Errorf("xadd requeue: %w", err)
	}
	return nil
}

// DeadLetter acks job and parks it on the DLQ stream
func (q *RedisQueue) DeadLetter(ctx context.Context, job Job, errMsg string) error {
	if err := q.Ack(ctx, job); err != nil {
		return fmt.Errorf("acking job for dlq: %w", err)
	}
	if err := q.add(ctx, q.cfg.DLQStream, job.Kind, string(job.Payload), job.Attempt, errMsg); err != nil {
		return fmt.Errorf("xadd dlq (stream=%s): %w", q.cfg.DLQStream, err)
	}
	return nil
}

func (q *RedisQueue) Close() error {
	return nil
}

func (q *RedisQueue) add(ctx context.Context, stream, kind, payload string, attempt int, errMsg string) error {
	values := map[string]any{
		"kind":    kind,
		"payload": payload,
		"attempt": attempt,
	}
	if errMsg != "" {
		values["last_error"] = errMsg
	}
	return q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}).Err()
}

func parseJob(msg redis.XMessage) (Job, error) {
	kind, _ := msg.Values["kind"].(string)
	if kind == "" {
		return Job{}, fmt.Errorf("missing kind")
	}
	payload, _ := msg.Values["payload"].(string)
	if payload == "" {
		return Job{}, fmt.Errorf("missing payload")
	}

	attempt := 1
	if raw, ok := msg.Values["attempt"].(string); ok && raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Job{}, fmt.Errorf("invalid attempt %q: %w", raw, err)
		}
		if n > 0 {
			attempt = n
		}
	}

	return Job{
		ID:      msg.ID,
		Kind:    kind,
		Payload: []byte(payload),
		Attempt: attempt,
	}, nil
}
