package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	repository "github.com/okian/devhistory/internal/adapters/repository"
	service "github.com/okian/devhistory/internal/app"
	"github.com/okian/devhistory/internal/domain/model"
	"github.com/okian/devhistory/internal/domain/query"
	"github.com/okian/devhistory/internal/domain/record"
	. "github.com/smartystreets/goconvey/convey"
)

// gatedStore blocks every Put until the gate is opened, and can be told to
// fail writes.
type gatedStore struct {
	repository.Store
	gate chan struct{}
	fail atomic.Bool
}

func newGatedStore() *gatedStore {
	return &gatedStore{Store: repository.NewMemoryStore(), gate: make(chan struct{})}
}

func (g *gatedStore) Put(ctx context.Context, userID string, r record.AnalysisRecord) error {
	<-g.gate
	if g.fail.Load() {
		return errors.New("disk full")
	}
	return g.Store.Put(ctx, userID, r)
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a service backed by SQLite", t, func() {
		ctx := context.Background()
		store, err := repository.NewSQLiteStore(ctx, repository.MemoryDSN)
		So(err, ShouldBeNil)
		svc := started(service.WithStore(store), service.WithSourceWeights(map[string]float64{"sourceA": 3, "sourceB": 1}))

		Convey("When results for several users arrive", func() {
			for u := range 3 {
				for i := range 4 {
					sub := complete(fmt.Sprintf("r%d", i), 0, daysAgo(i*7))
					sub.UserID = fmt.Sprintf("user-%d", u)
					sub.HasOverall = false
					sub.Record.SourceScoreA = 80
					sub.Record.SourceScoreB = 40
					_, err := svc.Submit(ctx, sub)
					So(err, ShouldBeNil)
				}
			}

			Convey("Then every history is stored with weighted overall scores", func() {
				for u := range 3 {
					So(stored(svc, fmt.Sprintf("user-%d", u), 4), ShouldBeTrue)
				}
				m, err := svc.Metrics(ctx, "user-1")
				So(err, ShouldBeNil)
				So(m.AverageScore, ShouldEqual, 70)
				So(m.CurrentStreak, ShouldEqual, 4)

				users, err := svc.Users(ctx)
				So(err, ShouldBeNil)
				So(users, ShouldResemble, []string{"user-0", "user-1", "user-2"})
			})

			Convey("And stopping leaves the injected store open", func() {
				So(stored(svc, "user-2", 4), ShouldBeTrue)
				svc.Stop()
				So(store.Count(ctx), ShouldEqual, 12)
			})
		})

		Reset(func() {
			svc.Stop()
			_ = store.Close()
		})
	})
}

func TestServiceLifecycle(t *testing.T) {
	Convey("Given a service started and stopped multiple times", t, func() {
		svc := service.New(service.WithWorkerCount(1), service.WithClock(clock))
		ctx := context.Background()

		for range 3 {
			So(svc.Start(ctx), ShouldBeNil)
			_, err := svc.Submit(ctx, complete("a", 50, now))
			So(err, ShouldBeNil)
			So(stored(svc, "alice", 1), ShouldBeTrue)
			svc.Stop()
		}

		Convey("Then each start begins with a fresh owned store and deduper", func() {
			So(svc.GetStats()["started"], ShouldEqual, false)
		})
	})

	Convey("Given queued submissions when the service stops", t, func() {
		store := newGatedStore()
		svc := started(service.WithStore(store), service.WithWorkerCount(1))
		ctx := context.Background()
		for i := range 5 {
			_, err := svc.Submit(ctx, complete(fmt.Sprintf("q%d", i), 50, daysAgo(i)))
			So(err, ShouldBeNil)
		}

		Convey("When the store becomes writable during shutdown", func() {
			close(store.gate)
			svc.Stop()

			Convey("Then the queue is drained before Stop returns", func() {
				So(store.Count(ctx), ShouldEqual, 5)
			})
		})
	})
}

func TestServiceStartContext(t *testing.T) {
	Convey("Given a service whose start context is cancelled", t, func() {
		startCtx, cancel := context.WithCancel(context.Background())
		svc := service.New(service.WithWorkerCount(1), service.WithClock(clock))
		So(svc.Start(startCtx), ShouldBeNil)
		defer svc.Stop()
		cancel()
		time.Sleep(20 * time.Millisecond)

		Convey("When a result arrives afterwards", func() {
			resp, err := svc.Submit(context.Background(), complete("late", 70, now))
			So(err, ShouldBeNil)
			So(resp.Status, ShouldEqual, "accepted")

			Convey("Then the workers still store it", func() {
				So(stored(svc, "alice", 1), ShouldBeTrue)
			})
		})
	})

	Convey("Given a queued result when the start context is cancelled", t, func() {
		store := newGatedStore()
		startCtx, cancel := context.WithCancel(context.Background())
		svc := service.New(service.WithStore(store), service.WithWorkerCount(1), service.WithClock(clock))
		So(svc.Start(startCtx), ShouldBeNil)

		_, err := svc.Submit(context.Background(), complete("queued", 70, now))
		So(err, ShouldBeNil)
		cancel()
		time.Sleep(20 * time.Millisecond)

		Convey("Then Stop drains it into the store", func() {
			close(store.gate)
			svc.Stop()
			So(store.Count(context.Background()), ShouldEqual, 1)
		})
	})
}

func TestServiceBackpressure(t *testing.T) {
	Convey("Given a small queue whose only worker is blocked", t, func() {
		store := newGatedStore()
		svc := started(service.WithStore(store), service.WithWorkerCount(1), service.WithQueueSize(2))
		ctx := context.Background()

		Convey("When more results arrive than fit", func() {
			var accepted, rejected int
			var rejectedSubs []model.Submission
			for i := range 10 {
				sub := complete(fmt.Sprintf("b%d", i), 50, daysAgo(i))
				_, err := svc.Submit(ctx, sub)
				switch {
				case err == nil:
					accepted++
				case errors.Is(err, service.ErrOverloaded):
					rejected++
					rejectedSubs = append(rejectedSubs, sub)
				}
			}

			Convey("Then the overflow is rejected", func() {
				So(accepted, ShouldBeBetweenOrEqual, 2, 3)
				So(accepted+rejected, ShouldEqual, 10)
			})

			Convey("And rejected deliveries can be resubmitted once drained", func() {
				close(store.gate)
				So(stored(svc, "alice", accepted), ShouldBeTrue)

				resp, err := svc.Submit(ctx, rejectedSubs[0])
				So(err, ShouldBeNil)
				So(resp.Duplicate, ShouldBeFalse)
			})
		})

		Reset(func() {
			select {
			case <-store.gate:
			default:
				close(store.gate)
			}
			svc.Stop()
		})
	})

	Convey("Given a store that rejects writes", t, func() {
		store := newGatedStore()
		store.fail.Store(true)
		close(store.gate)
		svc := started(service.WithStore(store), service.WithWorkerCount(1))
		ctx := context.Background()

		Convey("When a result cannot be stored", func() {
			_, err := svc.Submit(ctx, complete("lost", 50, now))
			So(err, ShouldBeNil)
			So(waitFor(func() bool { return svc.GetStats()["failed"] == int64(1) }), ShouldBeTrue)

			Convey("Then its delivery id is released for redelivery", func() {
				store.fail.Store(false)
				resp, err := svc.Submit(ctx, complete("lost", 50, now))
				So(err, ShouldBeNil)
				So(resp.Duplicate, ShouldBeFalse)
				So(stored(svc, "alice", 1), ShouldBeTrue)
			})
		})

		Reset(svc.Stop)
	})
}

func TestServiceConcurrency(t *testing.T) {
	Convey("Given a service receiving submissions concurrently", t, func() {
		svc := started(service.WithWorkerCount(4))
		ctx := context.Background()

		const goroutines, perGoroutine = 8, 25
		var wg sync.WaitGroup
		var errCount atomic.Int64
		for g := range goroutines {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range perGoroutine {
					sub := complete(fmt.Sprintf("g%d-%d", g, i), i, daysAgo(i))
					sub.UserID = fmt.Sprintf("user-%d", g%2)
					if _, err := svc.Submit(ctx, sub); err != nil {
						errCount.Add(1)
					}
					// duplicates from a second sender are skipped
					if _, err := svc.Submit(ctx, sub); err != nil {
						errCount.Add(1)
					}
				}
			}()
		}

		Convey("And reading histories at the same time", func() {
			var readers sync.WaitGroup
			for range 4 {
				readers.Add(1)
				go func() {
					defer readers.Done()
					for range 50 {
						if _, err := svc.Metrics(ctx, "user-0"); err != nil {
							errCount.Add(1)
						}
						if _, err := svc.History(ctx, "user-1", query.DefaultFilter(), query.DefaultSort()); err != nil {
							errCount.Add(1)
						}
					}
				}()
			}
			wg.Wait()
			readers.Wait()

			Convey("Then every unique submission is stored exactly once", func() {
				So(errCount.Load(), ShouldEqual, 0)
				So(stored(svc, "user-0", goroutines/2*perGoroutine), ShouldBeTrue)
				So(stored(svc, "user-1", goroutines/2*perGoroutine), ShouldBeTrue)
			})
		})

		Reset(svc.Stop)
	})
}
