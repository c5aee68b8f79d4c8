package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mathanim/internal/config"
	"mathanim/internal/logger"
	"mathanim/internal/otel"
)

var (
	cfg       config.Config
	providers *otel.Providers
)

var rootCmd = &cobra.Command{
	Use:           "mathanim",
	Short:         "Turn a natural-language prompt into a rendered math animation.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		c, err := config.Load()
		if err != nil {
			return err
		}
		cfg = c

		p, err := otel.Setup(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("setup telemetry: %w", err)
		}
		providers = p
		logger.Setup(cfg)
		return nil
	},
}

// flush is replaced in tests.
var flush = flushTelemetry

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, rootCmd)
	stop()
	os.Exit(code)
}

// execute runs root and flushes telemetry whether or not the command failed;
// cobra skips post-run hooks on error.
func execute(ctx context.Context, root *cobra.Command) int {
	err := root.ExecuteContext(ctx)
	flush()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func flushTelemetry() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := providers.Shutdown(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "telemetry flush:", err)
	}
}
