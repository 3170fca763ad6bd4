package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.submissionsAccepted.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_unit_submissions_accepted_total")
			})

			Convey("Then const labels are attached", func() {
				manager.exportsTotal.WithLabelValues("csv").Inc()
				So(testutil.CollectAndCount(manager.exportsTotal), ShouldEqual, 1)
				expected := `
# HELP test_unit_exports_total Exports produced
# TYPE test_unit_exports_total counter
test_unit_exports_total{env="test",format="csv"} 1
`
				So(testutil.CollectAndCompare(manager.exportsTotal, strings.NewReader(expected)), ShouldBeNil)
			})
		})

		Convey("When empty options are passed", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithNamespace(""), WithSubsystem(""), WithHistogramBuckets(nil), WithPrometheusRegistry(registry))

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "devhistory")
				So(manager.subsystem, ShouldEqual, "service")
				So(manager.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global recorders", t, func() {
		Convey("When ingest metrics are recorded", func() {
			before := testutil.ToFloat64(globalManager.submissionsAccepted)
			RecordSubmissionAccepted()
			RecordSubmissionDuplicate()
			RecordSubmissionRejected("invalid")
			RecordRecordStored("complete")
			RecordScoreDerived()
			RecordScoreClamped()

			Convey("Then counters move", func() {
				So(testutil.ToFloat64(globalManager.submissionsAccepted), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.recordsStored.WithLabelValues("complete")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When gauges are updated", func() {
			UpdateQueueSize(7)
			UpdateQueueCapacity(100)
			UpdateQueueUtilization(7)
			UpdateWorkerCount(4)
			UpdateWorkerActiveCount(2)
			UpdateStoreRecordsTotal(12)
			UpdateStoreUsersTotal(3)
			UpdateStoreRecordsPerShard("0", 5)
			UpdateSystemMemoryUsage(1024)
			UpdateSystemGoroutineCount(9)

			Convey("Then they hold the last value", func() {
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 7)
				So(testutil.ToFloat64(globalManager.workerCount), ShouldEqual, 4)
				So(testutil.ToFloat64(globalManager.storeRecordsTotal), ShouldEqual, 12)
				So(testutil.ToFloat64(globalManager.storeRecordsPerShard.WithLabelValues("0")), ShouldEqual, 5)
			})
		})

		Convey("When an export is recorded", func() {
			before := testutil.ToFloat64(globalManager.exportBytes.WithLabelValues("json"))
			RecordExport("json", 512)

			Convey("Then its bytes are added", func() {
				So(testutil.ToFloat64(globalManager.exportBytes.WithLabelValues("json")), ShouldEqual, before+512)
			})
		})

		Convey("When latencies and errors are recorded", func() {
			So(func() {
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordQueueProcessingLatency(1.5)
				RecordWorkerProcessingLatency(2.5)
				RecordWorkerError()
				RecordStoreLatency("put", 0.2)
				RecordEngineLatency("metrics", 0.1)
				RecordHTTPRequest("/healthz", "GET", "200")
				RecordHTTPRequestDuration("/healthz", "GET", "200", 0.001)
				RecordErrorByComponent("api", "not_found")
				RecordErrorByType("validation", "warning")
				RecordErrorByEndpoint("/analyses", "POST", "invalid")
				RecordSystemGCPauseTime(0.3)
			}, ShouldNotPanic)
		})

		Convey("Then the registry is the custom one", func() {
			So(GetRegistry(), ShouldEqual, customRegistry)
		})
	})
}
