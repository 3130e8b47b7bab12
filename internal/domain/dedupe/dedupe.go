// Package dedupe tracks delivery ids so repeated webhook deliveries of the
// same score payload are acknowledged without being processed twice.
package dedupe

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMaxSize = 50_000

// Deduper records seen delivery ids.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so a failed delivery can be retried.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// lruDeduper keeps the most recently recorded ids and evicts the oldest
// once maxSize is reached.
type lruDeduper struct {
	mu      sync.Mutex
	seen    *lru.Cache[string, struct{}]
	maxSize int
}

// NewInMemoryDeduper creates a bounded in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &lruDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	if d.maxSize <= 0 {
		d.maxSize = defaultMaxSize
	}
	// lru.New only fails on a non-positive size.
	d.seen, _ = lru.New[string, struct{}](d.maxSize)
	return d
}

// SeenAndRecord atomically checks if id was seen and records it if not.
func (d *lruDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.seen.Contains(id) {
		return true
	}
	d.seen.Add(id, struct{}{})
	return false
}

// Unrecord forgets id.
func (d *lruDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen.Remove(id)
}

// Size returns the number of ids currently remembered.
func (d *lruDeduper) Size() int64 {
	return int64(d.seen.Len())
}
