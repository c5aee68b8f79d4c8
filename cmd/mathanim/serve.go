package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"mathanim/internal/api"
	"mathanim/internal/config"
	"mathanim/internal/ratelimit"
	"mathanim/internal/render"
	"mathanim/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := render.CheckDependencies(cfg.Render); err != nil {
			return err
		}

		a, err := buildApp(ctx, cfg)
		if err != nil {
			return err
		}
		if n, err := a.orchestrator.SweepWorkspaces(ctx, staleWorkspaceAge(cfg)); err != nil {
			slog.Warn("workspace sweep failed", "error", err)
		} else if n > 0 {
			slog.Info("removed stale job workspaces", "count", n)
		}

		var limiter api.Limiter
		if cfg.RateLimitEnabled() {
			client := redis.NewClient(&redis.Options{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			})
			defer client.Close()
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("connect redis: %w", err)
			}
			limiter = ratelimit.New(client, cfg.RateLimitCapacity, cfg.RateLimitRefill)
			slog.Info("rate limiting enabled", "capacity", cfg.RateLimitCapacity, "refill_per_sec", cfg.RateLimitRefill)
		}

		if cfg.MetricsAddr != "" {
			go func() {
				if err := http.ListenAndServe(cfg.MetricsAddr, telemetry.Handler()); err != nil {
					slog.Error("metrics server stopped", "error", err)
				}
			}()
		}

		server := api.New(a.orchestrator, a.store, limiter, cfg.MaxConcurrentJobs)
		httpServer := &http.Server{
			Addr:              ":" + cfg.HTTPPort,
			Handler:           server.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			slog.Info("api listening", "port", cfg.HTTPPort, "max_concurrent_jobs", cfg.MaxConcurrentJobs)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return fmt.Errorf("listen: %w", err)
		case <-ctx.Done():
		}

		slog.Info("shutting down, waiting for running jobs")
		drainCtx, cancelDrain := jobDrainContext(cfg)
		defer cancelDrain()
		if err := server.Drain(drainCtx); err != nil {
			slog.Error("running jobs did not finish before exit", "error", err)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	},
}

// llmAllowance bounds one generator call when estimating how long a job runs.
const llmAllowance = 5 * time.Minute

// maxJobDuration is the longest a job can run: every render attempt hitting
// its timeout plus plan, code and each repair call. Zero means unbounded.
func maxJobDuration(cfg config.Config) time.Duration {
	if cfg.Render.Timeout <= 0 {
		return 0
	}
	renders := time.Duration(cfg.MaxAttempts) * cfg.Render.Timeout
	generations := time.Duration(cfg.MaxAttempts+1) * llmAllowance
	return renders + generations
}

func jobDrainContext(cfg config.Config) (context.Context, context.CancelFunc) {
	if d := maxJobDuration(cfg); d > 0 {
		return context.WithTimeout(context.Background(), d)
	}
	return context.WithCancel(context.Background())
}

// staleWorkspaceAge is how old a workspace must be before startup removes it.
func staleWorkspaceAge(cfg config.Config) time.Duration {
	if d := maxJobDuration(cfg); d > 0 {
		return d
	}
	return 24 * time.Hour
}

func init() { rootCmd.AddCommand(serveCmd) }
