package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/reimburse/internal/adapters/repository"
	service "github.com/okian/reimburse/internal/app"
	. "github.com/smartystreets/goconvey/convey"
)

const publicCases = `[
  {"input": {"trip_duration_days": 3, "miles_traveled": 93, "total_receipts_amount": 10}, "expected_output": 110.5},
  {"input": {"trip_duration_days": 6, "miles_traveled": 500, "total_receipts_amount": 19.99}, "expected_output": 200},
  {"input": {"trip_duration_days": "six", "miles_traveled": 500, "total_receipts_amount": 19.50}, "expected_output": 201.5},
  {"input": {"trip_duration_days": 6, "miles_traveled": 500, "total_receipts_amount": 19.50}, "expected_output": 211.5}
]`

const privateCases = `[
  {"trip_duration_days": 3, "miles_traveled": 93, "total_receipts_amount": 10},
  {"trip_duration_days": 6, "miles_traveled": 500},
  {"trip_duration_days": "6", "miles_traveled": "500", "total_receipts_amount": "19.99"}
]`

func TestServiceIntegration(t *testing.T) {
	for _, workers := range []int{1, 3} {
		Convey("Given a started tree service", t, func() {
			svc := service.New(
				service.WithModelPath(writeFixture(t, "xgb_model.json", treeModel)),
				service.WithWorkerCount(workers),
			)
			defer svc.Stop()
			ctx := context.Background()
			So(svc.Start(ctx), ShouldBeNil)

			Convey("When evaluating labeled cases", func() {
				s, err := svc.Evaluate(ctx, writeFixture(t, "public_cases.json", publicCases))

				Convey("Then the summary counts successes and failures", func() {
					So(err, ShouldBeNil)
					So(s.TotalCases, ShouldEqual, 4)
					So(s.Successful, ShouldEqual, 3)
					So(s.ExactMatches, ShouldEqual, 1)
					So(s.CloseMatches, ShouldEqual, 2)
					So(s.MaxError, ShouldEqual, 10)
					So(s.AverageError, ShouldAlmostEqual, 10.5/3, 1e-9)
					So(s.Score, ShouldAlmostEqual, 350+0.3, 1e-9)
					So(s.Errors[0].Case, ShouldEqual, 3)
				})
			})

			Convey("When generating results", func() {
				out := filepath.Join(t.TempDir(), "private_results.txt")
				stats, err := svc.Generate(ctx, writeFixture(t, "private_cases.json", privateCases), out)

				Convey("Then one line is written per case", func() {
					So(err, ShouldBeNil)
					So(stats.Total, ShouldEqual, 3)
					So(stats.Failed, ShouldEqual, 1)
					b, readErr := os.ReadFile(out)
					So(readErr, ShouldBeNil)
					So(strings.Split(strings.TrimSuffix(string(b), "\n"), "\n"), ShouldResemble,
						[]string{"110.50", "ERROR", "199.50"})
				})
			})

			Convey("When the case file is missing", func() {
				out := filepath.Join(t.TempDir(), "private_results.txt")
				_, err := svc.Generate(ctx, filepath.Join(t.TempDir(), "private_cases.json"), out)

				Convey("Then nothing is written", func() {
					So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
					So(repository.Exists(out), ShouldBeFalse)
				})
			})
		})
	}
}
