// Command generate-results predicts every private case and writes one result
// line per case to the results file.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/okian/reimburse/internal/adapters/repository"
	service "github.com/okian/reimburse/internal/app"
	"github.com/okian/reimburse/internal/cli"
	"github.com/okian/reimburse/pkg/logger"
)

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
	var workers int
	cmd := &cobra.Command{
		Use:   "generate-results",
		Short: "Write predictions for the private cases",
		Long: `Predicts every case in the private case file and writes the results file:
line N holds the prediction for case N with two decimals, or ERROR when that
case could not be predicted. Failures are logged to stderr.`,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var override *int
			if cmd.Flags().Changed("workers") {
				override = &workers
			}
			return generate(cmd.Context(), override, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Number of cases predicted at once (default from config)")
	return cmd
}

func generate(ctx context.Context, workers *int, stdout, stderr io.Writer) error {
	cfg, err := service.Bootstrap(ctx, stderr)
	if err != nil {
		return err
	}
	if workers != nil {
		cfg.WorkerCount = *workers
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	for _, f := range service.RequiredFiles(cfg, cfg.PrivateCases) {
		if !repository.Exists(f) {
			return cli.Failf("Error: Required file '%s' not found!", f)
		}
	}

	log := logger.Named("generate")
	svc := service.New(service.WithConfig(cfg), service.WithLogger(log))
	if err := svc.Start(ctx); err != nil {
		return cli.Failf("Error during file loading: %v", err)
	}
	defer svc.Stop()

	stats, err := svc.Generate(ctx, cfg.PrivateCases, cfg.ResultsPath)
	if err != nil {
		return cli.Failf("Error during generation: %v", err)
	}

	fmt.Fprintf(stdout, "Results generated: %s\n", cfg.ResultsPath)
	fmt.Fprintf(stdout, "Line N holds the result for case N of %s.\n", cfg.PrivateCases)
	fmt.Fprintf(stdout, "Cases: %d, errors: %d\n", stats.Total, stats.Failed)

	if err := service.ExportMetrics(cfg); err != nil {
		log.Warn(ctx, "metrics export failed", logger.Error(err))
	}
	return nil
}
