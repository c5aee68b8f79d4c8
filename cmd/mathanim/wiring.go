package main

import (
	"context"
	"fmt"
	"log/slog"

	"mathanim/internal/config"
	"mathanim/internal/generator"
	"mathanim/internal/llm"
	"mathanim/internal/pipeline"
	"mathanim/internal/render"
	"mathanim/internal/storage"
	"mathanim/internal/thumbnail"
)

// app holds the components shared by serve and render.
type app struct {
	orchestrator *pipeline.Orchestrator
	store        *storage.LocalStore
}

func buildApp(ctx context.Context, cfg config.Config) (*app, error) {
	planner, err := newGenerator(cfg, cfg.PlannerLLM)
	if err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}
	coder, err := newGenerator(cfg, cfg.CoderLLM)
	if err != nil {
		return nil, fmt.Errorf("coder: %w", err)
	}
	debugger, err := newGenerator(cfg, cfg.DebuggerLLM)
	if err != nil {
		return nil, fmt.Errorf("debugger: %w", err)
	}

	var mirror storage.Mirror
	s3m, err := storage.NewS3Mirror(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("s3 mirror: %w", err)
	}
	if s3m != nil {
		mirror = s3m
		slog.Info("s3 mirror enabled", "bucket", cfg.Storage.S3Bucket)
	}
	store := storage.NewLocalStore(cfg.Storage.OutputDir, mirror)

	var thumbs pipeline.Thumbnailer
	if render.DependencyStatus(cfg.Render).FFmpegFound && cfg.Storage.ThumbnailWidth > 0 {
		thumbs = thumbnail.New(cfg.Render.FFmpegBin, cfg.Storage.ThumbnailWidth)
	} else {
		slog.Warn("thumbnails disabled", "ffmpeg", cfg.Render.FFmpegBin)
	}

	loop := pipeline.NewRepairLoop(
		render.NewManimRenderer(cfg.Render),
		generator.NewDebugger(debugger),
		cfg.MaxAttempts,
	)
	orch := pipeline.NewOrchestrator(
		generator.NewPlanner(planner),
		generator.NewCoder(coder),
		loop,
		store,
		thumbs,
		cfg.Render.WorkspaceDir,
	)
	return &app{orchestrator: orch, store: store}, nil
}

func newGenerator(cfg config.Config, role config.LLMConfig) (generator.TextGenerator, error) {
	client, err := llm.New(llm.Config{
		APIKey:     cfg.OpenAI.APIKey,
		BaseURL:    cfg.OpenAI.BaseURL,
		Model:      role.Model,
		MaxRetries: 2,
	})
	if err != nil {
		return nil, err
	}
	return generator.NewLLMGenerator(client, role), nil
}
