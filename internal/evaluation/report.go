package evaluation

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Report formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

const maxListedErrors = 10

// Formats lists the supported report formats.
func Formats() []string {
	return []string{FormatText, FormatJSON, FormatYAML}
}

// Render writes s to w in the given format.
func Render(w io.Writer, s *Summary, format string) error {
	switch format {
	case FormatText, "":
		_, err := io.WriteString(w, renderText(s))
		return err
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func renderText(s *Summary) string {
	var b strings.Builder
	b.WriteString("Reimbursement System Evaluation\n")
	b.WriteString("===============================\n\n")

	if s.Successful == 0 {
		b.WriteString("No successful test cases!\n")
		b.WriteString("Every case either failed to decode or failed to predict.\n")
	} else {
		b.WriteString("Results Summary:\n")
		fmt.Fprintf(&b, "  Total test cases: %d\n", s.TotalCases)
		fmt.Fprintf(&b, "  Successful runs:  %d\n", s.Successful)
		fmt.Fprintf(&b, "  Exact matches (±$0.01): %d (%.1f%%)\n", s.ExactMatches, s.ExactPercent)
		fmt.Fprintf(&b, "  Close matches (±$1.00): %d (%.1f%%)\n", s.CloseMatches, s.ClosePercent)
		fmt.Fprintf(&b, "  Average error:    $%.2f\n", s.AverageError)
		fmt.Fprintf(&b, "  Maximum error:    $%.2f\n\n", s.MaxError)
		fmt.Fprintf(&b, "Score: %.2f (lower is better)\n\n", s.Score)
		b.WriteString(s.Feedback + "\n")

		if s.ExactMatches < s.TotalCases && len(s.HighestErrors) > 0 {
			b.WriteString("\nHighest-error cases:\n")
			for _, r := range s.HighestErrors {
				fmt.Fprintf(&b, "  Case %d: %s days, %s miles, $%s receipts\n",
					r.Case, num(r.Input.Duration), num(r.Input.Miles), num(r.Input.Receipts))
				fmt.Fprintf(&b, "    Expected: $%.2f, Got: $%.2f, Error: $%.2f\n", r.Expected, r.Actual, r.Error)
			}
		}
	}

	if len(s.Errors) > 0 {
		b.WriteString("\nErrors encountered:\n")
		for i, ce := range s.Errors {
			if i >= maxListedErrors {
				fmt.Fprintf(&b, "  ... and %d more errors\n", len(s.Errors)-maxListedErrors)
				break
			}
			b.WriteString("  " + ce.String() + "\n")
		}
	}
	return b.String()
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
