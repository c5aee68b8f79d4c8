package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"mathanim/internal/logger"
	"mathanim/internal/models"
	"mathanim/internal/storage"
	"mathanim/internal/telemetry"
)

type Planner interface {
	GeneratePlan(ctx context.Context, prompt string) (string, error)
}

type Coder interface {
	GenerateCode(ctx context.Context, plan string) (string, error)
}

// Publisher moves a finished video into durable storage.
type Publisher interface {
	Publish(ctx context.Context, src string) (storage.Published, error)
}

type Thumbnailer interface {
	Generate(ctx context.Context, videoPath string) (string, error)
}

// Output is the result of a successful job.
type Output struct {
	JobID         string `json:"job_id"`
	VideoPath     string `json:"video_path"`
	VideoName     string `json:"video_name"`
	MirrorURL     string `json:"mirror_url,omitempty"`
	ThumbnailPath string `json:"thumbnail_path,omitempty"`
	Attempts      int    `json:"attempts"`
}

// Orchestrator runs one prompt-to-video job end to end.
type Orchestrator struct {
	planner       Planner
	coder         Coder
	loop          *RepairLoop
	publisher     Publisher
	thumbnails    Thumbnailer
	workspaceRoot string
	newID         func() string
}

// NewOrchestrator wires the generators, repair loop and storage. thumbnails may be nil.
func NewOrchestrator(planner Planner, coder Coder, loop *RepairLoop, publisher Publisher, thumbnails Thumbnailer, workspaceRoot string) *Orchestrator {
	if workspaceRoot == "" {
		workspaceRoot = filepath.Join(os.TempDir(), "mathanim")
	}
	return &Orchestrator{
		planner:       planner,
		coder:         coder,
		loop:          loop,
		publisher:     publisher,
		thumbnails:    thumbnails,
		workspaceRoot: workspaceRoot,
		newID:         uuid.NewString,
	}
}

// Run turns prompt into a video in durable storage. The job workspace is
// removed before Run returns, whatever the outcome.
func (o *Orchestrator) Run(ctx context.Context, prompt string, quality models.Quality) (out Output, err error) {
	if strings.TrimSpace(prompt) == "" {
		return Output{}, ErrEmptyPrompt
	}
	if _, err := quality.Flag(); err != nil {
		return Output{}, err
	}

	job := models.NewJob(o.newID(), prompt, quality)
	ctx = logger.WithLogFields(ctx, logger.LogFields{JobID: logger.Ptr(job.ID), Component: "pipeline.orchestrator"})
	sc := logger.StartSpan(ctx, "pipeline.job",
		attribute.String("job.id", job.ID),
		attribute.String("quality", quality.String()))
	defer sc.End()
	ctx = sc.Context()

	start := time.Now()
	slog.InfoContext(ctx, "job started", "quality", quality.String(), "prompt_chars", len(prompt))
	telemetry.JobsStarted.Inc()
	telemetry.JobsInFlight.Inc()
	defer func() {
		telemetry.JobsInFlight.Dec()
		if r := recover(); r != nil {
			telemetry.JobsFailed.WithLabelValues("panic").Inc()
			slog.ErrorContext(ctx, "job panicked", "panic", r)
			panic(r)
		}
		if err != nil {
			sc.RecordError(err)
			telemetry.JobsFailed.WithLabelValues(failureReason(err)).Inc()
			slog.ErrorContext(ctx, "job failed", "duration_ms", time.Since(start).Milliseconds(), "error", err)
			return
		}
		telemetry.JobsSucceeded.Inc()
		slog.InfoContext(ctx, "job completed", "duration_ms", time.Since(start).Milliseconds(), "video", out.VideoPath, "attempts", out.Attempts)
	}()

	workspace := filepath.Join(o.workspaceRoot, job.ID)
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return Output{}, fmt.Errorf("create workspace: %w", err)
	}
	defer o.removeWorkspace(ctx, workspace)

	plan, err := o.planner.GeneratePlan(logger.WithLogFields(ctx, logger.LogFields{Stage: logger.Ptr(StagePlan)}), prompt)
	if err != nil {
		return Output{}, &GeneratorError{Stage: StagePlan, Err: err}
	}
	if err := job.SetPlan(plan); err != nil {
		return Output{}, err
	}

	code, err := o.coder.GenerateCode(logger.WithLogFields(ctx, logger.LogFields{Stage: logger.Ptr(StageCode)}), job.Plan())
	if err != nil {
		return Output{}, &GeneratorError{Stage: StageCode, Err: err}
	}
	job.Artifact = code

	video, err := o.loop.Run(ctx, job, workspace)
	if err != nil {
		return Output{}, err
	}

	pub, err := o.publisher.Publish(ctx, video)
	if err != nil {
		return Output{}, fmt.Errorf("publish video: %w", err)
	}

	out = Output{
		JobID:     job.ID,
		VideoPath: pub.Path,
		VideoName: pub.Name,
		MirrorURL: pub.MirrorURL,
		Attempts:  job.Attempt,
	}
	if o.thumbnails != nil {
		thumb, err := o.thumbnails.Generate(ctx, pub.Path)
		if err != nil {
			slog.WarnContext(ctx, "thumbnail generation failed", "error", err)
		} else {
			out.ThumbnailPath = thumb
		}
	}
	return out, nil
}

func (o *Orchestrator) removeWorkspace(ctx context.Context, dir string) {
	if err := os.RemoveAll(dir); err != nil {
		slog.WarnContext(ctx, "failed to remove workspace", "workspace", dir, "error", err)
		return
	}
	slog.DebugContext(ctx, "workspace removed", "workspace", dir)
}

// SweepWorkspaces removes job workspaces left behind by a process that exited
// mid-job. Directories modified within olderThan are kept.
func (o *Orchestrator) SweepWorkspaces(ctx context.Context, olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(o.workspaceRoot)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read workspace root: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		dir := filepath.Join(o.workspaceRoot, entry.Name())
		if err := os.RemoveAll(dir); err != nil {
			slog.WarnContext(ctx, "failed to remove stale workspace", "workspace", dir, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

func failureReason(err error) string {
	var genErr *GeneratorError
	var aborted *AbortedError
	switch {
	case errors.As(err, &genErr):
		return "generator_" + genErr.Stage
	case errors.As(err, &aborted):
		return "attempts_exhausted"
	default:
		return "internal"
	}
}
