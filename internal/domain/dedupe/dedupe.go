// Package dedupe tracks pipeline delivery ids so each result is stored once.
package dedupe

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/okian/devhistory/internal/domain/record"
)

// Deduper records seen delivery ids to ensure at-most-once ingest.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so a delivery that failed to enqueue can be
	// submitted again.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// DeliveryID derives an idempotency key for a delivery that did not carry
// one. A status change of the same run yields a new key.
func DeliveryID(userID string, r record.AnalysisRecord) string {
	return strings.Join([]string{
		userID,
		r.ID,
		string(r.Status),
		r.CompletedAt.UTC().Format(time.RFC3339Nano),
	}, ":")
}

// inMemoryDeduper keeps ids in a map. When bounded, a ring of insertion
// order evicts the oldest id once the capacity is reached.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]int // id -> slot in ring, -1 when unbounded
	ring    []slot         // insertion order
	next    int            // slot the next id is written to
	maxSize int            // 0 or negative means unbounded
}

type slot struct {
	id   string
	used bool
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]int)
	if d.maxSize > 0 {
		d.ring = make([]slot, d.maxSize)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	if d.maxSize <= 0 {
		d.seen[id] = -1
		return false
	}

	if old := d.ring[d.next]; old.used {
		delete(d.seen, old.id)
	}
	d.ring[d.next] = slot{id: id, used: true}
	d.seen[id] = d.next
	d.next = (d.next + 1) % d.maxSize
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	at, ok := d.seen[id]
	if !ok {
		return
	}
	delete(d.seen, id)
	if at >= 0 {
		d.ring[at] = slot{}
	}
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
