package queue

import "errors"

// ErrRejected is returned by callers that translate a refused Enqueue
// into an error.
var ErrRejected = errors.New("queue rejected task")
