package repository

import (
	"context"
	"fmt"
	"hash/fnv"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/devhistory/internal/domain/record"
	"github.com/okian/devhistory/pkg/metrics"
)

type shard struct {
	mu    sync.RWMutex
	users map[string]map[string]record.AnalysisRecord
	size  int
}

// MemoryStore keeps histories in sharded maps. Users hash to a shard so
// writers of different users rarely contend.
type MemoryStore struct {
	shardCount int
	shards     []*shard
	total      atomic.Int64
}

// NewMemoryStore creates a MemoryStore with configuration options.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{shardCount: defaultShardCount}
	for _, opt := range opts {
		opt(s)
	}
	s.shards = make([]*shard, s.shardCount)
	for i := range s.shards {
		s.shards[i] = &shard{users: make(map[string]map[string]record.AnalysisRecord)}
	}
	metrics.UpdateStoreRecordsTotal(0)
	return s
}

func (s *MemoryStore) shardFor(userID string) (*shard, int) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	i := int(h.Sum32() % uint32(s.shardCount)) //nolint:gosec // shardCount is positive
	return s.shards[i], i
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}

// Put inserts or replaces a record.
func (s *MemoryStore) Put(_ context.Context, userID string, r record.AnalysisRecord) error {
	defer observe("put", time.Now())
	if userID == "" || r.ID == "" {
		return fmt.Errorf("%w: user and record id are required", ErrInvalidInput)
	}

	sh, idx := s.shardFor(userID)
	sh.mu.Lock()
	history, ok := sh.users[userID]
	if !ok {
		history = make(map[string]record.AnalysisRecord)
		sh.users[userID] = history
	}
	_, existed := history[r.ID]
	history[r.ID] = r.Clone()
	if !existed {
		sh.size++
	}
	size := sh.size
	sh.mu.Unlock()

	if !existed {
		metrics.UpdateStoreRecordsTotal(int(s.total.Add(1)))
	}
	metrics.UpdateStoreRecordsPerShard(strconv.Itoa(idx), size)
	return nil
}

// Get returns one record.
func (s *MemoryStore) Get(_ context.Context, userID, recordID string) (record.AnalysisRecord, error) {
	defer observe("get", time.Now())
	sh, _ := s.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	r, ok := sh.users[userID][recordID]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return record.AnalysisRecord{}, fmt.Errorf("%w: %s/%s", ErrNotFound, userID, recordID)
	}
	return r.Clone(), nil
}

// List returns a copy of the user's history.
func (s *MemoryStore) List(_ context.Context, userID string) ([]record.AnalysisRecord, error) {
	defer observe("list", time.Now())
	sh, _ := s.shardFor(userID)
	sh.mu.RLock()
	history := sh.users[userID]
	out := make([]record.AnalysisRecord, 0, len(history))
	for _, r := range history {
		out = append(out, r.Clone())
	}
	sh.mu.RUnlock()

	sortHistory(out)
	return out, nil
}

// Delete removes one record.
func (s *MemoryStore) Delete(_ context.Context, userID, recordID string) error {
	defer observe("delete", time.Now())
	sh, idx := s.shardFor(userID)
	sh.mu.Lock()
	history, ok := sh.users[userID]
	if _, found := history[recordID]; !ok || !found {
		sh.mu.Unlock()
		metrics.RecordErrorByComponent("repository", "not_found")
		return fmt.Errorf("%w: %s/%s", ErrNotFound, userID, recordID)
	}
	delete(history, recordID)
	if len(history) == 0 {
		delete(sh.users, userID)
	}
	sh.size--
	size := sh.size
	sh.mu.Unlock()

	metrics.UpdateStoreRecordsTotal(int(s.total.Add(-1)))
	metrics.UpdateStoreRecordsPerShard(strconv.Itoa(idx), size)
	return nil
}

// Count returns the number of stored records.
func (s *MemoryStore) Count(_ context.Context) int {
	return int(s.total.Load())
}

// Users returns every user with records.
func (s *MemoryStore) Users(_ context.Context) ([]string, error) {
	var out []string
	for _, sh := range s.shards {
		sh.mu.RLock()
		for u := range sh.users {
			out = append(out, u)
		}
		sh.mu.RUnlock()
	}
	slices.Sort(out)
	metrics.UpdateStoreUsersTotal(len(out))
	return out, nil
}

// Close releases nothing; it exists to satisfy Store.
func (s *MemoryStore) Close() error {
	return nil
}
