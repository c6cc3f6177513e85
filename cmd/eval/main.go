// Command eval scores the configured predictor against the labeled public
// cases and prints a report.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/okian/reimburse/internal/adapters/repository"
	service "github.com/okian/reimburse/internal/app"
	"github.com/okian/reimburse/internal/cli"
	"github.com/okian/reimburse/internal/evaluation"
	"github.com/okian/reimburse/pkg/logger"
)

type evalOptions struct {
	format  string
	workers int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return cli.Execute(ctx, newRootCommand(stdout, stderr), args, stdout)
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &evalOptions{}
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate the predictor against the public cases",
		Long: `Runs every labeled case in the public case file through the configured
predictor and reports exact matches (within $0.01), close matches (within
$1.00), the average and maximum error and a composite score where lower is
better.`,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return evaluate(cmd.Context(), opts, cmd.Flags().Changed("workers"), stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "Report format: text, json or yaml (default from config)")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Number of cases evaluated at once (default from config)")
	return cmd
}

func evaluate(ctx context.Context, opts *evalOptions, workersSet bool, stdout, stderr io.Writer) error {
	cfg, err := service.Bootstrap(ctx, stderr)
	if err != nil {
		return err
	}
	if opts.format != "" {
		cfg.ReportFormat = opts.format
	}
	if workersSet {
		cfg.WorkerCount = opts.workers
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	for _, f := range service.RequiredFiles(cfg, cfg.PublicCases) {
		if !repository.Exists(f) {
			return cli.Failf("Error: Required file '%s' not found!", f)
		}
	}

	log := logger.Named("eval")
	svc := service.New(service.WithConfig(cfg), service.WithLogger(log))
	if err := svc.Start(ctx); err != nil {
		return cli.Failf("Error during file loading: %v", err)
	}
	defer svc.Stop()

	summary, err := svc.Evaluate(ctx, cfg.PublicCases)
	if err != nil {
		return cli.Failf("Error during evaluation: %v", err)
	}
	if err := evaluation.Render(stdout, summary, cfg.ReportFormat); err != nil {
		return err
	}

	if err := service.ExportMetrics(cfg); err != nil {
		log.Warn(ctx, "metrics export failed", logger.Error(err))
	}
	return nil
}
