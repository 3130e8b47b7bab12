package model

import "time"

// TaskKind names a unit of work handled by its own sequential worker.
type TaskKind string

// Task kinds.
const (
	TaskScore     TaskKind = "score"
	TaskIngest    TaskKind = "ingest"
	TaskHeartbeat TaskKind = "heartbeat"
	TaskResolve   TaskKind = "resolve"
)

// Task is a unit of work for the at-least-once runner.
type Task struct {
	ID         string
	Kind       TaskKind
	CommentID  string
	RequestID  string     // ingest: score request correlator
	Data       *ScoreData // ingest: delivered payload
	Tick       int        // heartbeat: tick counter
	Attempt    int
	EnqueuedAt time.Time
}
