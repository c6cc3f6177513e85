package service_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/reimburse/internal/adapters/repository"
	service "github.com/okian/reimburse/internal/app"
	"github.com/okian/reimburse/internal/config"
	"github.com/okian/reimburse/internal/domain/features"
	"github.com/okian/reimburse/internal/domain/model"
	"github.com/okian/reimburse/internal/domain/scoring"
	"github.com/okian/reimburse/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

const treeModel = `{
  "schema": "poly16",
  "base_score": 0.5,
  "trees": [
    {"nodeid": 0, "split": "trip_duration_days", "split_condition": 5, "yes": 1, "no": 2, "missing": 2,
     "children": [{"nodeid": 1, "leaf": 100}, {"nodeid": 2, "leaf": 200}]},
    {"nodeid": 0, "split": "miles_traveled", "split_condition": 100, "yes": 1, "no": 2, "missing": 1,
     "children": [
       {"nodeid": 1, "leaf": 10},
       {"nodeid": 2, "split": "cents_bug_flag", "split_condition": 0.5, "yes": 3, "no": 4, "missing": 3,
        "children": [{"nodeid": 3, "leaf": 1}, {"nodeid": 4, "leaf": -1}]}
     ]}
  ]
}`

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should carry the reference defaults", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["scorer"], ShouldEqual, config.ScorerTree)
			So(stats["schema"], ShouldEqual, features.Poly16)
			So(stats["workerCount"], ShouldEqual, 1)
			So(svc.RunID(), ShouldBeEmpty)
		})
	})

	Convey("Given a service built from config", t, func() {
		cfg := config.New()
		cfg.Scorer = config.ScorerLinear
		cfg.Schema = features.Linear11
		cfg.WorkerCount = 6
		svc := service.New(service.WithConfig(cfg))

		Convey("Then the config settings are applied", func() {
			stats := svc.GetStats()
			So(stats["scorer"], ShouldEqual, config.ScorerLinear)
			So(stats["schema"], ShouldEqual, features.Linear11)
			So(stats["workerCount"], ShouldEqual, 6)
		})
	})
}

func TestService_Start(t *testing.T) {
	Convey("Given a tree service with a model on disk", t, func() {
		svc := service.New(service.WithModelPath(writeFixture(t, "xgb_model.json", treeModel)))
		defer svc.Stop()
		ctx := context.Background()

		Convey("When starting the service", func() {
			err := svc.Start(ctx)

			Convey("Then it should start with a run id", func() {
				So(err, ShouldBeNil)
				So(svc.GetStats()["started"], ShouldEqual, true)
				So(len(svc.RunID()), ShouldEqual, 36)
			})

			Convey("And starting again is a no-op", func() {
				id := svc.RunID()
				So(svc.Start(ctx), ShouldBeNil)
				So(svc.RunID(), ShouldEqual, id)
			})

			Convey("And predictions walk the trees", func() {
				out, err := svc.Predict(ctx, model.Case{Duration: 3, Miles: 93, Receipts: 10})
				So(err, ShouldBeNil)
				So(out, ShouldEqual, 110.5)
			})
		})
	})

	Convey("Given a tree service without a model", t, func() {
		svc := service.New(service.WithModelPath(filepath.Join(t.TempDir(), "xgb_model.json")))
		err := svc.Start(context.Background())

		Convey("Then start fails with a not-found artifact", func() {
			So(errors.Is(err, service.ErrLoadArtifacts), ShouldBeTrue)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})

	Convey("Given a model trained on another schema", t, func() {
		svc := service.New(
			service.WithSchema(features.Heuristic13),
			service.WithModelPath(writeFixture(t, "xgb_model.json", treeModel)),
		)
		err := svc.Start(context.Background())

		Convey("Then start fails fast with a schema mismatch", func() {
			So(errors.Is(err, scoring.ErrSchemaMismatch), ShouldBeTrue)
		})
	})

	Convey("Given an unknown scorer", t, func() {
		err := service.New(service.WithScorer("forest")).Start(context.Background())
		So(errors.Is(err, service.ErrUnknownScorer), ShouldBeTrue)
	})

	Convey("Given an unknown schema", t, func() {
		err := service.New(service.WithSchema("poly17")).Start(context.Background())
		So(errors.Is(err, features.ErrUnknownSchema), ShouldBeTrue)
	})
}

func TestService_Linear(t *testing.T) {
	Convey("Given a linear service on the embedded coefficients", t, func() {
		svc := service.New(
			service.WithScorer(config.ScorerLinear),
			service.WithSchema(features.Linear11),
		)
		defer svc.Stop()
		So(svc.Start(context.Background()), ShouldBeNil)

		Convey("When predicting the same case twice", func() {
			c := model.Case{Duration: 5, Miles: 250, Receipts: 432.49}
			a, errA := svc.Predict(context.Background(), c)
			b, errB := svc.Predict(context.Background(), c)

			Convey("Then the answer is finite and deterministic", func() {
				So(errA, ShouldBeNil)
				So(errB, ShouldBeNil)
				So(math.IsInf(a, 0) || math.IsNaN(a), ShouldBeFalse)
				So(a, ShouldEqual, b)
			})
		})
	})

	Convey("Given a linear service on a table missing a feature", t, func() {
		path := writeFixture(t, "coefficients.csv", "feature,coefficient\nintercept,1\nr/d,2\n")
		svc := service.New(
			service.WithScorer(config.ScorerLinear),
			service.WithSchema(features.Linear11),
			service.WithCoefficientsPath(path),
		)
		err := svc.Start(context.Background())

		Convey("Then start fails with a coefficient mismatch", func() {
			So(errors.Is(err, scoring.ErrCoefficientMismatch), ShouldBeTrue)
		})
	})
}

func TestService_Stop(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New(service.WithModelPath(writeFixture(t, "xgb_model.json", treeModel)))
		So(svc.Start(context.Background()), ShouldBeNil)

		Convey("When stopping the service", func() {
			svc.Stop()

			Convey("Then it should be marked as stopped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
			})

			Convey("And operations report it is not started", func() {
				_, err := svc.Predict(context.Background(), model.Case{Duration: 1, Miles: 1, Receipts: 1})
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})

			Convey("And stopping twice is safe", func() {
				So(func() { svc.Stop() }, ShouldNotPanic)
			})
		})
	})
}
