package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Queue stores tasks for at-least-once execution. A reserved job whose lease
// expires before it is completed, retried or failed is handed out again.
//
// Extend, Complete, Retry and Fail only act on the reservation described by
// job (its id and attempt); once the job has been handed out again they
// return ErrLeaseLost.
type Queue interface {
	Push(ctx context.Context, task string, payload any) (snowflake.ID, error)
	Reserve(ctx context.Context, limit int) ([]Job, error)
	Extend(ctx context.Context, job Job, until time.Time) error
	Complete(ctx context.Context, job Job) error
	Retry(ctx context.Context, job Job, at time.Time, cause error) error
	Fail(ctx context.Context, job Job, cause error) error
}

// Executor runs every job of one task.
type Executor interface {
	Task() string
	Execute(ctx context.Context, payload []byte) error
}

// Locker guards work that must not overlap across processes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}
