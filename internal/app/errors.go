package service

import "errors"

var (
	// ErrDataIntegrity marks a score delivery that matches no score request.
	// It is never retried.
	ErrDataIntegrity = errors.New("score delivery does not match a score request")

	// ErrNoStore is returned by New without a store.
	ErrNoStore = errors.New("service requires a store")

	// ErrNotStarted is returned by enqueue helpers before Start.
	ErrNotStarted = errors.New("service not started")

	// ErrQueueFull is returned when a task queue refuses a task.
	ErrQueueFull = errors.New("task queue full")

	// ErrUnknownAction is returned for an unsupported manual moderation action.
	ErrUnknownAction = errors.New("unknown moderation action")

	// ErrInvalidRule is returned for a rule without a tag or with an
	// inverted threshold range.
	ErrInvalidRule = errors.New("invalid moderation rule")

	// ErrInvalidTask is returned for a task that cannot be handled.
	ErrInvalidTask = errors.New("invalid task")
)
