// Package service wires the history engine to the ingest pipeline and the
// record store, and implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	ingestqueue "github.com/okian/devhistory/internal/adapters/mq/queue"
	workerpool "github.com/okian/devhistory/internal/adapters/mq/worker"
	repository "github.com/okian/devhistory/internal/adapters/repository"
	"github.com/okian/devhistory/internal/domain/dedupe"
	"github.com/okian/devhistory/internal/domain/export"
	"github.com/okian/devhistory/internal/domain/history"
	"github.com/okian/devhistory/internal/domain/model"
	"github.com/okian/devhistory/internal/domain/query"
	"github.com/okian/devhistory/internal/domain/record"
	"github.com/okian/devhistory/internal/domain/scoring"
	"github.com/okian/devhistory/internal/domain/types"
	"github.com/okian/devhistory/pkg/logger"
	"github.com/okian/devhistory/pkg/metrics"
)

const (
	defaultQueueSize  = 10_000
	defaultDedupeSize = 100_000
	defaultShardCount = 16
	exportPrefix      = "analysis-history"
)

// Service implements the API dependencies for the history system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	ownedStore bool
	deduper    dedupe.Deduper
	queue      *ingestqueue.InMemoryQueue
	scorer     scoring.Scorer
	workerPool *workerpool.Pool
	engine     *history.Engine

	// Configuration
	workerCount   int
	queueSize     int
	dedupeSize    int
	shardCount    int
	sourceWeights map[string]float64
	exportOpts    []export.Option
	now           func() time.Time
	newID         func() string

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the ingest queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithShardCount sets the shard count of the default in-memory store.
func WithShardCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// WithStore uses an externally owned store. The service does not close it.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSourceWeights sets the weights used to derive missing overall scores.
func WithSourceWeights(weights map[string]float64) Option {
	return func(s *Service) {
		s.sourceWeights = weights
	}
}

// WithExportOptions configures CSV/JSON exports.
func WithExportOptions(opts ...export.Option) Option {
	return func(s *Service) {
		s.exportOpts = append(s.exportOpts, opts...)
	}
}

// WithClock sets the time source for streaks, receipts and retries.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU() * 2,
		queueSize:   defaultQueueSize,
		dedupeSize:  defaultDedupeSize,
		shardCount:  defaultShardCount,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine = history.New(
		history.WithClock(s.now),
		history.WithExportOptions(s.exportOpts...),
	)
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting history service...")

	if s.store == nil || s.ownedStore {
		s.store = repository.NewMemoryStore(repository.WithShardCount(s.shardCount))
		s.ownedStore = true
		s.logger.Info(ctx, "using in-memory store", logger.Int("shards", s.shardCount))
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = ingestqueue.NewInMemoryQueue(ingestqueue.WithCapacity(s.queueSize))
	s.scorer = scoring.NewCompositeScorer(scoring.WithSourceWeightsFromConfig(s.sourceWeights))

	s.workerPool = workerpool.NewPool(s.workerCount, s.queue, s.scorer, s.store,
		workerpool.WithFailureHandler(s.release),
	)
	// Workers outlive ctx; only Stop ends them, after draining the queue.
	s.workerPool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "history service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains the ingest queue and shuts the service down.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping history service...")

	if s.workerPool != nil {
		if err := s.workerPool.Shutdown(ctx); err != nil {
			s.logger.Error(ctx, "worker pool shutdown failed", logger.Error(err))
		}
	}

	if s.ownedStore && s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error(ctx, "store close failed", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "history service stopped")
}

// release forgets the delivery id of a submission the workers could not
// store, so the pipeline may deliver it again.
func (s *Service) release(ctx context.Context, sub model.Submission, _ error) { //nolint:gocritic // hugeParam: matches worker.FailureHandler
	s.deduper.Unrecord(ctx, sub.Key())
}

// running returns the live components or ErrNotStarted.
func (s *Service) running() (repository.Store, error) {
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

// Submit accepts one pipeline result for asynchronous storage. A delivery
// seen before is acknowledged as a duplicate and not stored again.
func (s *Service) Submit(ctx context.Context, sub model.Submission) (types.SubmitResponse, error) { //nolint:gocritic // hugeParam: submission is copied into the queue anyway
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return types.SubmitResponse{}, ErrNotStarted
	}
	sub, err := s.normalize(sub)
	if err != nil {
		metrics.RecordSubmissionRejected("invalid")
		return types.SubmitResponse{}, err
	}

	key := sub.Key()
	sub.DeliveryID = key
	if s.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordSubmissionDuplicate()
		s.logger.Debug(ctx, "duplicate delivery skipped",
			logger.String("deliveryId", key),
			logger.String("user", sub.UserID),
		)
		return types.SubmitResponse{Status: types.SubmitDuplicate, DeliveryID: key, Duplicate: true}, nil
	}

	if err := s.queue.Enqueue(ctx, sub); err != nil {
		s.deduper.Unrecord(ctx, key)
		reason := "queue_full"
		if errors.Is(err, ingestqueue.ErrClosed) {
			reason = "queue_closed"
		}
		metrics.RecordSubmissionRejected(reason)
		return types.SubmitResponse{}, fmt.Errorf("%w: %w", ErrOverloaded, err)
	}

	metrics.RecordSubmissionAccepted()
	s.logger.Debug(ctx, "submission enqueued",
		logger.String("deliveryId", key),
		logger.String("user", sub.UserID),
		logger.String("record", sub.Record.ID),
	)
	return types.SubmitResponse{Status: types.SubmitAccepted, DeliveryID: key}, nil
}

// normalize fills server-side defaults and rejects submissions the workers
// could never store. Score ranges are left to the scorer, which clamps.
func (s *Service) normalize(sub model.Submission) (model.Submission, error) { //nolint:gocritic // hugeParam: value semantics intended
	sub.UserID = strings.TrimSpace(sub.UserID)
	if sub.UserID == "" {
		return sub, fmt.Errorf("%w: missing user id", ErrInvalidSubmission)
	}
	if _, err := record.ParseStatus(string(sub.Record.Status)); err != nil {
		return sub, fmt.Errorf("%w: %w", ErrInvalidSubmission, err)
	}
	if d, ok := sub.Record.Duration(); ok && d < 0 {
		return sub, fmt.Errorf("%w: negative duration %d", ErrInvalidSubmission, d)
	}
	now := s.now()
	if strings.TrimSpace(sub.Record.ID) == "" {
		sub.Record.ID = s.newID()
	}
	if sub.Record.CompletedAt.IsZero() {
		sub.Record.CompletedAt = now
	}
	sub.ReceivedAt = now
	return sub, nil
}

// History returns a user's records filtered and sorted for display.
func (s *Service) History(ctx context.Context, userID string, filter query.FilterSpec, sort query.SortSpec) (types.HistoryView, error) {
	records, err := s.list(ctx, userID)
	if err != nil {
		return types.HistoryView{}, err
	}
	start := time.Now()
	view, err := s.engine.View(records, filter, sort)
	observe("view", start)
	if err != nil {
		return types.HistoryView{}, err
	}
	return types.NewHistoryView(userID, len(records), view), nil
}

// Record returns one stored record.
func (s *Service) Record(ctx context.Context, userID, recordID string) (record.AnalysisRecord, error) {
	s.mu.RLock()
	store, err := s.running()
	s.mu.RUnlock()
	if err != nil {
		return record.AnalysisRecord{}, err
	}
	return store.Get(ctx, userID, recordID)
}

// Metrics summarizes a user's whole history.
func (s *Service) Metrics(ctx context.Context, userID string) (types.MetricsResponse, error) {
	records, err := s.list(ctx, userID)
	if err != nil {
		return types.MetricsResponse{}, err
	}
	start := time.Now()
	snap := s.engine.Metrics(records)
	observe("metrics", start)
	return types.MetricsResponse{UserID: userID, Snapshot: snap}, nil
}

// Export serializes the selected view of a user's history and names the
// download.
func (s *Service) Export(ctx context.Context, userID string, filter query.FilterSpec, sort query.SortSpec, format export.Format) (export.Payload, string, error) {
	if _, err := export.ParseFormat(string(format)); err != nil {
		return export.Payload{}, "", err
	}
	records, err := s.list(ctx, userID)
	if err != nil {
		return export.Payload{}, "", err
	}
	start := time.Now()
	payload, err := s.engine.Export(records, filter, sort, format)
	observe("export", start)
	if err != nil {
		return export.Payload{}, "", err
	}
	metrics.RecordExport(string(format), len(payload.Data))
	return payload, s.engine.FileName(exportPrefix, format), nil
}

// Delete removes one record.
func (s *Service) Delete(ctx context.Context, userID, recordID string) error {
	s.mu.RLock()
	store, err := s.running()
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, userID, recordID); err != nil {
		return err
	}
	s.logger.Info(ctx, "record deleted", logger.String("user", userID), logger.String("record", recordID))
	return nil
}

// Retry starts a new run for a failed one. The failed record is kept; the
// new in-progress record gets a fresh id and is returned.
func (s *Service) Retry(ctx context.Context, userID, recordID string) (record.AnalysisRecord, error) {
	s.mu.RLock()
	store, err := s.running()
	s.mu.RUnlock()
	if err != nil {
		return record.AnalysisRecord{}, err
	}

	failed, err := store.Get(ctx, userID, recordID)
	if err != nil {
		return record.AnalysisRecord{}, err
	}
	if failed.Status != record.StatusFailed {
		return record.AnalysisRecord{}, fmt.Errorf("%w: %s is %s", ErrNotRetryable, recordID, failed.Status)
	}

	retry := failed.WithStatus(record.StatusInProgress, s.now())
	retry.ID = s.newID()
	retry.SkillScores = nil
	retry.Achievements = nil
	retry.DurationSeconds = nil
	if err := store.Put(ctx, userID, retry); err != nil {
		return record.AnalysisRecord{}, err
	}
	metrics.RecordRecordStored(string(retry.Status))
	s.logger.Info(ctx, "analysis retried",
		logger.String("user", userID),
		logger.String("failed", recordID),
		logger.String("record", retry.ID),
	)
	return retry, nil
}

// Users returns the ids of users with stored history.
func (s *Service) Users(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	store, err := s.running()
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return store.Users(ctx)
}

func (s *Service) list(ctx context.Context, userID string) ([]record.AnalysisRecord, error) {
	s.mu.RLock()
	store, err := s.running()
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return store.List(ctx, userID)
}

func observe(op string, start time.Time) {
	metrics.RecordEngineLatency(op, float64(time.Since(start).Microseconds())/1000)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		totalRecords := s.store.Count(ctx)
		users, err := s.store.Users(ctx)
		if err != nil {
			s.logger.Warn(ctx, "listing users failed", logger.Error(err))
		}

		stats["queueLength"] = queueLen
		stats["totalRecords"] = totalRecords
		stats["totalUsers"] = len(users)
		stats["processed"] = s.workerPool.Processed()
		stats["failed"] = s.workerPool.Failed()
		stats["dedupeEntries"] = s.deduper.Size()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateStoreRecordsTotal(totalRecords)
		metrics.UpdateStoreUsersTotal(len(users))
		metrics.UpdateWorkerCount(s.workerPool.Size())
	}

	return stats
}
