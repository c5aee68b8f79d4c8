package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"mathanim/internal/logger"
	"mathanim/internal/models"
	"mathanim/internal/render"
	"mathanim/internal/telemetry"
)

// Repairer rewrites a failing script. plan is always the job's original plan.
type Repairer interface {
	RepairCode(ctx context.Context, plan, broken, diagnostic string) (string, error)
}

// RepairLoop renders a job's artifact, feeding each failure back into the
// repairer until a render succeeds or maxAttempts renders have failed.
type RepairLoop struct {
	renderer    render.Renderer
	repairer    Repairer
	maxAttempts int
}

func NewRepairLoop(renderer render.Renderer, repairer Repairer, maxAttempts int) *RepairLoop {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RepairLoop{
		renderer:    renderer,
		repairer:    repairer,
		maxAttempts: maxAttempts,
	}
}

func (l *RepairLoop) MaxAttempts() int {
	return l.maxAttempts
}

// Run starts in Attempting(1) with job.Artifact and returns the rendered video
// path. job.Artifact always holds the script given to the latest render.
func (l *RepairLoop) Run(ctx context.Context, job *models.Job, mediaDir string) (string, error) {
	for attempt := 1; ; attempt++ {
		job.Attempt = attempt
		actx := logger.WithLogFields(ctx, logger.LogFields{Attempt: logger.Ptr(attempt)})

		video, failure, err := l.attempt(actx, job, mediaDir)
		if err != nil {
			return "", err
		}
		if failure == nil {
			slog.InfoContext(actx, "render succeeded", "state", models.StateSucceeded, "video", video)
			return video, nil
		}

		if attempt >= l.maxAttempts {
			slog.ErrorContext(actx, "max render attempts reached, aborting",
				"state", models.StateAborted,
				"failure_kind", failure.Kind,
				"max_attempts", l.maxAttempts)
			return "", &AbortedError{Attempts: attempt, Last: failure}
		}

		slog.WarnContext(actx, "render failed, requesting repair",
			"state", models.StateRepairing,
			"failure_kind", failure.Kind,
			"exit_code", failure.ExitCode)

		fixed, err := l.repair(actx, job, failure)
		if err != nil {
			return "", err
		}
		job.Artifact = fixed
	}
}

// attempt performs one render. A controlled failure is returned as *render.Failure
// with a nil error; any other error ends the loop.
func (l *RepairLoop) attempt(ctx context.Context, job *models.Job, mediaDir string) (string, *render.Failure, error) {
	sc := logger.StartSpan(ctx, "pipeline.render_attempt",
		attribute.Int("attempt", job.Attempt),
		attribute.String("quality", job.Quality.String()))
	defer sc.End()
	ctx = logger.WithLogFields(sc.Context(), logger.LogFields{Stage: logger.Ptr("render")})

	slog.InfoContext(ctx, "render attempt started", "state", models.StateAttempting)
	telemetry.RenderAttempts.Inc()

	video, err := l.renderer.Render(ctx, job.Artifact, job.Quality, mediaDir)
	if err == nil {
		return video, nil, nil
	}
	sc.RecordError(err)

	failure, ok := render.AsFailure(err)
	if !ok {
		return "", nil, fmt.Errorf("render attempt %d: %w", job.Attempt, err)
	}
	telemetry.RenderFailures.WithLabelValues(string(failure.Kind)).Inc()
	return "", failure, nil
}

func (l *RepairLoop) repair(ctx context.Context, job *models.Job, failure *render.Failure) (string, error) {
	sc := logger.StartSpan(ctx, "pipeline.repair", attribute.Int("attempt", job.Attempt))
	defer sc.End()
	ctx = logger.WithLogFields(sc.Context(), logger.LogFields{Stage: logger.Ptr(StageRepair)})

	telemetry.RepairCalls.Inc()
	fixed, err := l.repairer.RepairCode(ctx, job.Plan(), job.Artifact, failure.Diagnostic)
	if err != nil {
		sc.RecordError(err)
		return "", &GeneratorError{Stage: StageRepair, Err: err}
	}
	return fixed, nil
}
