package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/devhistory/internal/adapters/mq/queue"
	worker "github.com/okian/devhistory/internal/adapters/mq/worker"
	model "github.com/okian/devhistory/internal/domain/model"
	"github.com/okian/devhistory/internal/domain/record"
	"github.com/okian/devhistory/internal/domain/scoring"
	logging "github.com/okian/devhistory/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockStore struct {
	mu      sync.Mutex
	records map[string]record.AnalysisRecord
	errors  map[string]error
}

func newMockStore() *mockStore {
	return &mockStore{records: make(map[string]record.AnalysisRecord), errors: make(map[string]error)}
}

func (m *mockStore) Put(_ context.Context, userID string, r record.AnalysisRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.errors[r.ID]; ok {
		return err
	}
	m.records[userID+"/"+r.ID] = r
	return nil
}

func (m *mockStore) get(key string) (record.AnalysisRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[key]
	return r, ok
}

func (m *mockStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type failingScorer struct{}

func (failingScorer) Score(context.Context, scoring.Input) (scoring.Result, error) {
	return scoring.Result{}, errors.New("scoring unavailable")
}

func submission(user, id string, a, b int) model.Submission {
	return model.Submission{
		UserID: user,
		Record: record.AnalysisRecord{
			ID:           id,
			CompletedAt:  time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
			SourceScoreA: a,
			SourceScoreB: b,
			Status:       record.StatusComplete,
		},
		ReceivedAt: time.Now(),
	}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker reading from a queue", t, func() {
		_ = logging.Init()
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		store := newMockStore()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		convey.Convey("When a submission without overall score arrives", func() {
			w := worker.NewInMemoryWorker(q, scoring.NewCompositeScorer(), store, worker.WithName("test-worker"))
			go w.Run(ctx)
			convey.So(q.Enqueue(ctx, submission("alice", "run-1", 60, 81)), convey.ShouldBeNil)
			_ = q.Close()
			<-w.Done()

			convey.Convey("Then the normalized record is stored", func() {
				r, ok := store.get("alice/run-1")
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(r.OverallScore, convey.ShouldEqual, 71)
			})
		})

		convey.Convey("When storing fails", func() {
			store.errors["run-2"] = errors.New("disk full")
			var (
				mu     sync.Mutex
				failed []string
			)
			w := worker.NewInMemoryWorker(q, scoring.NewCompositeScorer(), store,
				worker.WithFailureHandler(func(_ context.Context, s model.Submission, err error) {
					mu.Lock()
					defer mu.Unlock()
					failed = append(failed, s.Record.ID+": "+err.Error())
				}),
			)
			go w.Run(ctx)
			_ = q.Enqueue(ctx, submission("alice", "run-2", 50, 50))
			_ = q.Enqueue(ctx, submission("alice", "run-3", 50, 50))
			_ = q.Close()
			<-w.Done()

			convey.Convey("Then the failure handler sees it and later submissions continue", func() {
				mu.Lock()
				defer mu.Unlock()
				convey.So(failed, convey.ShouldResemble, []string{"run-2: store run-2: disk full"})
				_, ok := store.get("alice/run-3")
				convey.So(ok, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When scoring fails", func() {
			w := worker.NewInMemoryWorker(q, failingScorer{}, store)
			go w.Run(ctx)
			_ = q.Enqueue(ctx, submission("alice", "run-4", 50, 50))
			_ = q.Close()
			<-w.Done()

			convey.Convey("Then nothing is stored", func() {
				convey.So(store.len(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the context is cancelled", func() {
			w := worker.NewInMemoryWorker(q, scoring.NewCompositeScorer(), store)
			go w.Run(ctx)
			cancel()

			convey.Convey("Then the worker stops", func() {
				convey.So(stopped(w.Done()), convey.ShouldBeTrue)
			})
		})
	})
}

func stopped(done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	case <-time.After(time.Second):
		return false
	}
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a pool of workers", t, func() {
		_ = logging.Init()
		q := queue.NewInMemoryQueue(queue.WithCapacity(1000))
		store := newMockStore()
		pool := worker.NewPool(4, q, scoring.NewCompositeScorer(), store)
		convey.So(pool.Size(), convey.ShouldEqual, 4)

		convey.Convey("When submissions are enqueued before shutdown", func() {
			ctx := context.Background()
			for i := 0; i < 200; i++ {
				convey.So(q.Enqueue(ctx, submission(fmt.Sprintf("user-%d", i%7), fmt.Sprintf("run-%d", i), i%100, 50)), convey.ShouldBeNil)
			}
			pool.Start(ctx)
			err := pool.Shutdown(ctx)

			convey.Convey("Then every submission is drained and stored", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(store.len(), convey.ShouldEqual, 200)
				convey.So(pool.Processed(), convey.ShouldEqual, 200)
				convey.So(pool.Failed(), convey.ShouldEqual, 0)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the count is not positive", func() {
			p := worker.NewPool(0, q, scoring.NewCompositeScorer(), store)
			convey.So(p.Size(), convey.ShouldBeGreaterThan, 0)
		})
	})
}
