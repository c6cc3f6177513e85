package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should register every collector", func() {
				So(manager, ShouldNotBeNil)
				manager.workerCount.Set(1)
				manager.casesProcessed.WithLabelValues("eval").Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{0.1, 1}),
				WithErrorBuckets([]float64{1, 10}),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then metric names use the configured namespace", func() {
				manager.evaluationScore.Set(3)
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_unit_evaluation_score")
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording case outcomes", func() {
			before := testutil.ToFloat64(globalManager.casesProcessed.WithLabelValues("batch"))
			RecordCaseProcessed("batch")
			RecordCaseProcessed("batch")
			RecordCaseError("batch", "decode")

			Convey("Then the counters advance", func() {
				So(testutil.ToFloat64(globalManager.casesProcessed.WithLabelValues("batch")), ShouldEqual, before+2)
				So(testutil.ToFloat64(globalManager.caseErrors.WithLabelValues("batch", "decode")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When publishing an evaluation summary", func() {
			UpdateEvaluationSummary(Summary{ExactMatches: 3, CloseMatches: 5, MeanAbsoluteError: 1.5, MaxError: 9, Score: 150.7})
			UpdateWorkerCount(4)

			Convey("Then the gauges reflect it", func() {
				So(testutil.ToFloat64(globalManager.exactMatches), ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.closeMatches), ShouldEqual, 5)
				So(testutil.ToFloat64(globalManager.evaluationScore), ShouldEqual, 150.7)
				So(testutil.ToFloat64(globalManager.workerCount), ShouldEqual, 4)
			})
		})

		Convey("When observing histograms", func() {
			So(func() {
				RecordPredictionLatency(0.2)
				RecordAbsoluteError(12.34)
			}, ShouldNotPanic)
		})
	})
}

func TestWriteTextfile(t *testing.T) {
	Convey("Given recorded metrics", t, func() {
		RecordCaseProcessed("eval")
		path := filepath.Join(t.TempDir(), "reimburse.prom")

		Convey("When writing the textfile", func() {
			err := WriteTextfile(path)

			Convey("Then the exposition is on disk", func() {
				So(err, ShouldBeNil)
				b, readErr := os.ReadFile(path)
				So(readErr, ShouldBeNil)
				So(string(b), ShouldContainSubstring, "reimburse_predictor_cases_processed_total")
			})
		})

		Convey("When the target directory does not exist", func() {
			err := WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom"))

			Convey("Then an export error is returned", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}
