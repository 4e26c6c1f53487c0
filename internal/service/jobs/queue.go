// Package jobs runs background work scheduled by turns: conversation titles
// and attachment token annotation.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Job is one queued unit of work
type Job struct {
	ID      string
	Kind    string
	Payload json.RawMessage
	Attempt int
}

// Queue moves jobs from schedulers to workers.
// Read blocks for at most the queue's poll interval and may return no jobs.
type Queue interface {
	Enqueue(ctx context.Context, kind string, payload any) error
	Read(ctx context.Context) ([]Job, error)
	Ack(ctx context.Context, job Job) error
	Requeue(ctx context.Context, job Job, errMsg string) error
	DeadLetter(ctx context.Context, job Job, errMsg string) error
	Close() error
}

// permanentError marks a failure that retrying cannot fix
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the worker does not retry the job
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

func encodePayload(payload any) (json.RawMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode job payload: %w", err)
	}
	return data, nil
}
