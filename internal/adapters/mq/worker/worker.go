// Package worker drains the ingest queue: it normalizes each submission and
// writes it to the record store.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/devhistory/internal/domain/model"
	"github.com/okian/devhistory/internal/domain/record"
	"github.com/okian/devhistory/internal/domain/scoring"
	"github.com/okian/devhistory/pkg/logger"
	"github.com/okian/devhistory/pkg/metrics"
)

const (
	defaultWorkerMultiplier = 2
	poolShutdownTimeout     = 30 * time.Second
)

// Store persists normalized records.
type Store interface {
	Put(ctx context.Context, userID string, r record.AnalysisRecord) error
}

// Queue defines how workers receive submissions.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Submission
	Len(ctx context.Context) int
}

// FailureHandler observes submissions a worker gave up on.
type FailureHandler func(ctx context.Context, s model.Submission, err error)

// InMemoryWorker processes submissions from a queue.
type InMemoryWorker struct {
	queue     Queue
	scorer    scoring.Scorer
	store     Store
	name      string
	onFailure FailureHandler
	logger    logger.Logger

	active    *atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	done      chan struct{}
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, scorer scoring.Scorer, store Store, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		scorer:    scorer,
		store:     store,
		name:      "worker",
		onFailure: func(context.Context, model.Submission, error) {},
		logger:    logger.Get().Named("worker"),
		active:    &atomic.Int64{},
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run processes submissions until the queue is closed and drained or ctx
// is cancelled.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	ch := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-ch:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			metrics.UpdateQueueSize(w.queue.Len(ctx))
			if err := w.process(ctx, s); err != nil {
				w.onFailure(ctx, s, err)
				w.failed.Add(1)
				w.logger.Error(ctx, "submission not stored",
					logger.String("user", s.UserID),
					logger.String("record", s.Record.ID),
					logger.Error(err),
				)
				continue
			}
			w.processed.Add(1)
		}
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

func (w *InMemoryWorker) process(ctx context.Context, s model.Submission) error { //nolint:gocritic // hugeParam: received by value from the channel
	start := time.Now()
	n := w.active.Add(1)
	metrics.UpdateWorkerActiveCount(int(n))
	defer func() {
		metrics.UpdateWorkerActiveCount(int(w.active.Add(-1)))
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()
	if !s.ReceivedAt.IsZero() {
		metrics.RecordQueueProcessingLatency(float64(start.Sub(s.ReceivedAt).Microseconds()) / 1000)
	}

	res, err := w.scorer.Score(ctx, scoring.Input{Record: s.Record, HasOverall: s.HasOverall})
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "scoring_error")
		return fmt.Errorf("score %s: %w", s.Record.ID, err)
	}
	if res.Derived {
		metrics.RecordScoreDerived()
	}
	if res.Clamped {
		metrics.RecordScoreClamped()
		w.logger.Warn(ctx, "scores clamped into range",
			logger.String("user", s.UserID),
			logger.String("record", s.Record.ID),
		)
	}

	if err := w.store.Put(ctx, s.UserID, res.Record); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "store_error")
		metrics.RecordErrorByType("store_error", "high")
		return fmt.Errorf("store %s: %w", s.Record.ID, err)
	}
	metrics.RecordRecordStored(string(res.Record.Status))
	w.logger.Debug(ctx, "record stored",
		logger.String("user", s.UserID),
		logger.String("record", res.Record.ID),
		logger.String("status", string(res.Record.Status)),
	)
	return nil
}

// Pool manages multiple workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	cancel  context.CancelFunc
	logger  logger.Logger
}

// NewPool creates a worker pool. A non-positive count defaults to a
// multiple of the CPU count. Options apply to every worker; names are
// assigned per worker.
func NewPool(workerCount int, q Queue, scorer scoring.Scorer, store Store, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	active := &atomic.Int64{}
	for i := range p.workers {
		wopts := append(append([]Option{}, opts...), WithName("worker-"+strconv.Itoa(i)))
		w := NewInMemoryWorker(q, scorer, store, wopts...)
		w.active = active
		p.workers[i] = w
	}
	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start starts all workers.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Processed returns how many submissions were stored.
func (p *Pool) Processed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.processed.Load()
	}
	return n
}

// Failed returns how many submissions could not be stored.
func (p *Pool) Failed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.failed.Load()
	}
	return n
}

// Shutdown closes the queue and lets workers drain it. Workers still busy
// when ctx (or the pool timeout) expires are cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-waitCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
		if timedOut {
			break
		}
	}
	if p.cancel != nil {
		p.cancel()
	}
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", waitCtx.Err())
	}
	return nil
}
