// Command calculate-reimbursement prints the predicted reimbursement for one
// trip given on the command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/okian/reimburse/internal/adapters/repository"
	service "github.com/okian/reimburse/internal/app"
	"github.com/okian/reimburse/internal/cli"
	"github.com/okian/reimburse/internal/batch"
	"github.com/okian/reimburse/internal/config"
	"github.com/okian/reimburse/internal/domain/model"
	"github.com/okian/reimburse/pkg/logger"
)

const usageLine = "Usage: calculate-reimbursement <trip_duration_days> <miles_traveled> <total_receipts_amount>"

const numericError = "Error: All inputs must be numeric."

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command and maps its outcome to an exit code. Every
// user-facing message, errors included, goes to stdout; logs go to stderr.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return cli.Execute(ctx, newRootCommand(stdout, stderr), args, stdout)
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calculate-reimbursement <trip_duration_days> <miles_traveled> <total_receipts_amount>",
		Short: "Predict the reimbursement for one trip",
		Long: `Predicts a travel reimbursement from the trip duration in days, the miles
traveled and the total receipt amount, and prints it with two decimals.

Configuration is read from REIMBURSE_* environment variables and the YAML
file named by REIMBURSE_CONFIG.`,
		// Positional values may be negative; nothing here is a flag.
		DisableFlagParsing: true,
		Args:               cobra.ArbitraryArgs,
		SilenceUsage:       true,
		SilenceErrors:      true,
		CompletionOptions:  cobra.CompletionOptions{DisableDefaultCmd: true},
		RunE: func(cmd *cobra.Command, args []string) error {
			return calculate(cmd.Context(), args, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd
}

func calculate(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) != 3 {
		return cli.Failf("%s", usageLine)
	}
	c, err := parseCase(args)
	if err != nil {
		return err
	}

	cfg, err := service.Bootstrap(ctx, stderr)
	if err != nil {
		return err
	}
	log := logger.Named("calculate")

	svc := service.New(service.WithConfig(cfg), service.WithLogger(log))
	if err := svc.Start(ctx); err != nil {
		return artifactError(cfg, err)
	}
	defer svc.Stop()

	out, err := svc.Predict(ctx, c)
	if err != nil {
		return fmt.Errorf("prediction failed: %w", err)
	}
	fmt.Fprintln(stdout, batch.FormatResult(out))

	if err := service.ExportMetrics(cfg); err != nil {
		log.Warn(ctx, "metrics export failed", logger.Error(err))
	}
	return nil
}

// parseCase accepts anything a float literal parser does, surrounding
// whitespace included. Out-of-range values saturate to ±Inf.
func parseCase(args []string) (model.Case, error) {
	var vals [3]float64
	for i, a := range args {
		v, err := strconv.ParseFloat(strings.TrimSpace(a), 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return model.Case{}, cli.Failf("%s", numericError)
		}
		vals[i] = v
	}
	return model.Case{Duration: vals[0], Miles: vals[1], Receipts: vals[2]}, nil
}

func artifactError(cfg *config.Config, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		path := cfg.ModelPath
		kind := "Model"
		if cfg.Scorer == config.ScorerLinear {
			path, kind = cfg.CoefficientsPath, "Coefficient"
		}
		return cli.Failf("Error: %s file '%s' not found. Make sure it's in the same directory.", kind, path)
	}
	return cli.Failf("An error occurred while loading the model: %v", err)
}
