// Package cli holds the pieces shared by the reimbursement commands: exit
// codes, user-facing error lines and the cobra execution wrapper.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// Exit codes.
const (
	ExitSuccess = 0
	ExitFailure = 1
)

// MessageError carries a line meant for the user verbatim.
type MessageError struct {
	Msg string
}

func (e *MessageError) Error() string { return e.Msg }

// Failf returns a MessageError with a formatted line.
func Failf(format string, args ...any) error {
	return &MessageError{Msg: fmt.Sprintf(format, args...)}
}

// Execute runs cmd with exactly args and maps the outcome to an exit code.
// A nil args slice means no arguments; the process arguments are never read.
// Every user-facing message, errors included, goes to stdout.
func Execute(ctx context.Context, cmd *cobra.Command, args []string, stdout io.Writer) int {
	cmd.SetArgs(append([]string{}, args...))
	if err := cmd.ExecuteContext(ctx); err != nil {
		var msg *MessageError
		if errors.As(err, &msg) {
			fmt.Fprintln(stdout, msg.Msg)
		} else {
			fmt.Fprintf(stdout, "Error: %v\n", err)
		}
		return ExitFailure
	}
	return ExitSuccess
}
