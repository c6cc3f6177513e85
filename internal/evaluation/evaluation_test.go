package evaluation_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/okian/reimburse/internal/adapters/worker"
	"github.com/okian/reimburse/internal/domain/model"
	"github.com/okian/reimburse/internal/evaluation"
	"github.com/okian/reimburse/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

var errNegative = errors.New("negative duration")

// milesPredictor answers with the miles traveled and fails on negative durations.
type milesPredictor struct{}

func (milesPredictor) Predict(_ context.Context, c model.Case) (float64, error) {
	if c.Duration < 0 {
		return 0, errNegative
	}
	return c.Miles, nil
}

func labeled(d, m, r, expected float64) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"input": {"trip_duration_days": %v, "miles_traveled": %v, "total_receipts_amount": %v}, "expected_output": %v}`,
		d, m, r, expected))
}

func TestCompositeScore(t *testing.T) {
	Convey("Given three synthetic cases", t, func() {
		So(logger.Init(), ShouldBeNil)
		raw := []json.RawMessage{
			labeled(1, 100, 5, 100),
			labeled(2, 200.5, 5, 200),
			labeled(3, 310, 5, 300),
		}

		Convey("When they are evaluated", func() {
			s, err := evaluation.New(milesPredictor{}).Evaluate(context.Background(), raw)

			Convey("Then the aggregate follows the scoring formula", func() {
				So(err, ShouldBeNil)
				So(s.TotalCases, ShouldEqual, 3)
				So(s.Successful, ShouldEqual, 3)
				So(s.ExactMatches, ShouldEqual, 1)
				So(s.CloseMatches, ShouldEqual, 2)
				So(s.AverageError, ShouldAlmostEqual, 3.5, 1e-9)
				So(s.MaxError, ShouldEqual, 10)
				So(s.Score, ShouldAlmostEqual, 350.2, 1e-9)
				So(s.ExactPercent, ShouldAlmostEqual, 100.0/3, 1e-9)
			})

			Convey("Then the highest error case comes first", func() {
				So(s.HighestErrors[0].Case, ShouldEqual, 3)
				So(s.HighestErrors[0].Expected, ShouldEqual, 300)
				So(s.HighestErrors[0].Actual, ShouldEqual, 310)
			})
		})
	})
}

func TestFailureDenominators(t *testing.T) {
	Convey("Given ten cases of which two fail", t, func() {
		So(logger.Init(), ShouldBeNil)
		raw := make([]json.RawMessage, 0, 10)
		for i := 0; i < 8; i++ {
			raw = append(raw, labeled(1, 50, 5, 50))
		}
		raw = append(raw, json.RawMessage(`{"input": {"trip_duration_days": "x"}, "expected_output": 1}`))
		raw = append(raw, labeled(-1, 50, 5, 50))

		s, err := evaluation.New(milesPredictor{}).Evaluate(context.Background(), raw)

		Convey("Then rates use the eight successful cases", func() {
			So(err, ShouldBeNil)
			So(s.TotalCases, ShouldEqual, 10)
			So(s.Successful, ShouldEqual, 8)
			So(s.ExactMatches, ShouldEqual, 8)
			So(s.ExactPercent, ShouldEqual, 100)
			So(s.AverageError, ShouldEqual, 0)
		})

		Convey("Then the score still counts the failed cases as misses", func() {
			So(s.Score, ShouldAlmostEqual, 0.2, 1e-12)
		})

		Convey("Then both failures are reported by case number", func() {
			So(len(s.Errors), ShouldEqual, 2)
			So(s.Errors[0].Case, ShouldEqual, 9)
			So(s.Errors[1].Case, ShouldEqual, 10)
			So(s.Errors[1].String(), ShouldEqual, "Case 10: negative duration")
		})
	})
}

func TestHighestErrors(t *testing.T) {
	Convey("Given cases with tied errors", t, func() {
		So(logger.Init(), ShouldBeNil)
		errs := []float64{1, 5, 5, 3, 0, 2, 4}
		raw := make([]json.RawMessage, len(errs))
		for i, e := range errs {
			raw[i] = labeled(1, 100+e, 1, 100)
		}

		s, err := evaluation.New(milesPredictor{}).Evaluate(context.Background(), raw)

		Convey("Then the top five are sorted descending and ties keep case order", func() {
			So(err, ShouldBeNil)
			cases := make([]int, 0, len(s.HighestErrors))
			for _, r := range s.HighestErrors {
				cases = append(cases, r.Case)
			}
			So(cases, ShouldResemble, []int{2, 3, 7, 4, 6})
		})
	})
}

func TestParallelMatchesSequential(t *testing.T) {
	Convey("Given a mixed batch", t, func() {
		So(logger.Init(), ShouldBeNil)
		raw := make([]json.RawMessage, 0, 250)
		for i := 0; i < 250; i++ {
			if i%17 == 0 {
				raw = append(raw, labeled(-1, 1, 1, 1))
				continue
			}
			raw = append(raw, labeled(float64(i%14+1), float64(i)*1.5, 10, float64(i)))
		}

		seq, err := evaluation.New(milesPredictor{}).Evaluate(context.Background(), raw)
		So(err, ShouldBeNil)
		par, err := evaluation.New(milesPredictor{},
			evaluation.WithPool(worker.NewPool(8)),
			evaluation.WithProgressEvery(50),
		).Evaluate(context.Background(), raw)
		So(err, ShouldBeNil)

		Convey("Then both summaries are identical", func() {
			So(par, ShouldResemble, seq)
		})
	})
}

func TestEvaluateCancelled(t *testing.T) {
	Convey("Given a cancelled context", t, func() {
		So(logger.Init(), ShouldBeNil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := evaluation.New(milesPredictor{}).Evaluate(ctx, []json.RawMessage{labeled(1, 1, 1, 1)})
		So(errors.Is(err, context.Canceled), ShouldBeTrue)
	})
}

func TestFeedbackTiers(t *testing.T) {
	Convey("Given different exact-match counts out of 1000", t, func() {
		So(logger.Init(), ShouldBeNil)
		tier := func(exact int) string {
			results := make([]worker.Result[evaluation.Record], 1000)
			for i := range results {
				results[i].Value = evaluation.Record{Case: i + 1, Error: 5}
				if i < exact {
					results[i].Value.Error = 0
				}
			}
			return evaluation.Summarize(results).Feedback
		}

		So(tier(1000), ShouldStartWith, "PERFECT")
		So(tier(951), ShouldStartWith, "Excellent")
		So(tier(950), ShouldStartWith, "Great")
		So(tier(801), ShouldStartWith, "Great")
		So(tier(501), ShouldStartWith, "Good")
		So(tier(500), ShouldStartWith, "Keep analyzing")
	})
}

func TestRenderText(t *testing.T) {
	Convey("Given a summary with successes and many failures", t, func() {
		So(logger.Init(), ShouldBeNil)
		raw := []json.RawMessage{labeled(1, 120, 19.99, 100)}
		for i := 0; i < 13; i++ {
			raw = append(raw, labeled(-1, 1, 1, 1))
		}
		s, err := evaluation.New(milesPredictor{}).Evaluate(context.Background(), raw)
		So(err, ShouldBeNil)

		var buf bytes.Buffer
		So(evaluation.Render(&buf, s, evaluation.FormatText), ShouldBeNil)
		out := buf.String()

		Convey("Then the summary block is printed", func() {
			So(out, ShouldContainSubstring, "Total test cases: 14")
			So(out, ShouldContainSubstring, "Successful runs:  1")
			So(out, ShouldContainSubstring, "Average error:    $20.00")
			So(out, ShouldContainSubstring, "Score: 2001.40 (lower is better)")
			So(out, ShouldContainSubstring, "Case 1: 1 days, 120 miles, $19.99 receipts")
			So(out, ShouldContainSubstring, "Expected: $100.00, Got: $120.00, Error: $20.00")
		})

		Convey("Then at most ten errors are listed", func() {
			So(strings.Count(out, ": negative duration"), ShouldEqual, 10)
			So(out, ShouldContainSubstring, "  ... and 3 more errors")
		})
	})

	Convey("Given a run without successes", t, func() {
		So(logger.Init(), ShouldBeNil)
		s, err := evaluation.New(milesPredictor{}).Evaluate(context.Background(),
			[]json.RawMessage{json.RawMessage(`"nope"`)})
		So(err, ShouldBeNil)

		var buf bytes.Buffer
		So(evaluation.Render(&buf, s, evaluation.FormatText), ShouldBeNil)

		Convey("Then the report says so and lists the failure", func() {
			So(buf.String(), ShouldContainSubstring, "No successful test cases!")
			So(buf.String(), ShouldContainSubstring, "Case 1: ")
			So(buf.String(), ShouldNotContainSubstring, "Score:")
		})
	})
}

func TestRenderStructured(t *testing.T) {
	Convey("Given a summary", t, func() {
		So(logger.Init(), ShouldBeNil)
		s, err := evaluation.New(milesPredictor{}).Evaluate(context.Background(),
			[]json.RawMessage{labeled(2, 10, 3, 12), labeled(-1, 1, 1, 1)})
		So(err, ShouldBeNil)

		Convey("When it is rendered as JSON", func() {
			var buf bytes.Buffer
			So(evaluation.Render(&buf, s, evaluation.FormatJSON), ShouldBeNil)
			var back map[string]any
			So(json.Unmarshal(buf.Bytes(), &back), ShouldBeNil)

			Convey("Then the keys are snake case", func() {
				So(back["total_cases"], ShouldEqual, float64(2))
				So(back["max_error"], ShouldEqual, float64(2))
				So(back["errors"], ShouldHaveLength, 1)
			})
		})

		Convey("When it is rendered as YAML", func() {
			var buf bytes.Buffer
			So(evaluation.Render(&buf, s, evaluation.FormatYAML), ShouldBeNil)
			var back evaluation.Summary
			So(yaml.Unmarshal(buf.Bytes(), &back), ShouldBeNil)

			Convey("Then it carries the same figures", func() {
				So(back.TotalCases, ShouldEqual, 2)
				So(back.Successful, ShouldEqual, 1)
				So(back.HighestErrors[0].Input.Miles, ShouldEqual, 10)
			})
		})

		Convey("When the format is unknown", func() {
			err := evaluation.Render(&bytes.Buffer{}, s, "xml")
			So(errors.Is(err, evaluation.ErrUnknownFormat), ShouldBeTrue)
		})
	})
}
