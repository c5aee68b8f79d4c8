package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"mathanim/internal/models"
	"mathanim/internal/render"
)

func failure(diag string) error {
	return &render.Failure{Kind: render.FailureProcess, Diagnostic: diag, ExitCode: 1}
}

// scriptedRenderer returns results[i] for the i-th call; a nil entry (or a
// call past the end) succeeds by writing a small video into mediaDir.
type scriptedRenderer struct {
	results   []error
	panicOn   int
	calls     int
	artifacts []string
	mediaDirs []string
}

func (r *scriptedRenderer) Render(_ context.Context, artifact string, quality models.Quality, mediaDir string) (string, error) {
	r.calls++
	r.artifacts = append(r.artifacts, artifact)
	r.mediaDirs = append(r.mediaDirs, mediaDir)
	if r.panicOn == r.calls {
		panic("renderer crashed")
	}
	if i := r.calls - 1; i < len(r.results) && r.results[i] != nil {
		return "", r.results[i]
	}
	folder, err := quality.Folder()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(mediaDir, "videos", "scene_test", folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "GeneratedScene.mp4")
	if err := os.WriteFile(path, []byte("video-bytes"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

type repairCall struct {
	plan, broken, diagnostic string
}

type recordingRepairer struct {
	calls []repairCall
	err   error
}

func (r *recordingRepairer) RepairCode(_ context.Context, plan, broken, diagnostic string) (string, error) {
	r.calls = append(r.calls, repairCall{plan: plan, broken: broken, diagnostic: diagnostic})
	if r.err != nil {
		return "", r.err
	}
	return fmt.Sprintf("fixed-%d", len(r.calls)), nil
}

type planFunc func(ctx context.Context, prompt string) (string, error)

func (f planFunc) GeneratePlan(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

type codeFunc func(ctx context.Context, plan string) (string, error)

func (f codeFunc) GenerateCode(ctx context.Context, plan string) (string, error) {
	return f(ctx, plan)
}

type stubThumbnailer struct {
	path string
	err  error
}

func (s stubThumbnailer) Generate(context.Context, string) (string, error) {
	return s.path, s.err
}

var errUpstream = errors.New("upstream 503")
