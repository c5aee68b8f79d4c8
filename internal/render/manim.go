package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"mathanim/internal/config"
	"mathanim/internal/models"
	"mathanim/internal/telemetry"
)

// Renderer turns a scene script into a video file under mediaDir.
type Renderer interface {
	Render(ctx context.Context, artifact string, quality models.Quality, mediaDir string) (string, error)
}

// ManimRenderer runs the manim CLI as a subprocess.
type ManimRenderer struct {
	bin       string
	scene     string
	timeout   time.Duration
	scriptDir string

	// run executes the prepared command; replaced in tests.
	run func(cmd *exec.Cmd) error
}

// NewManimRenderer builds a renderer from config. Scripts are written into the
// media dir of each render, so they live inside the job workspace.
func NewManimRenderer(cfg config.RenderConfig) *ManimRenderer {
	bin := cfg.ManimBin
	if bin == "" {
		bin = "manim"
	}
	scene := cfg.SceneName
	if scene == "" {
		scene = "GeneratedScene"
	}
	return &ManimRenderer{
		bin:     bin,
		scene:   scene,
		timeout: cfg.Timeout,
		run:     (*exec.Cmd).Run,
	}
}

// Render writes artifact to a temp script, invokes manim and returns the
// produced video path. Controlled failures are *Failure; anything else is an
// infrastructure error.
func (r *ManimRenderer) Render(ctx context.Context, artifact string, quality models.Quality, mediaDir string) (string, error) {
	flag, err := quality.Flag()
	if err != nil {
		return "", err
	}
	folder, err := quality.Folder()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(mediaDir, 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}

	scriptDir := r.scriptDir
	if scriptDir == "" {
		scriptDir = mediaDir
	}
	scriptPath, err := writeScript(scriptDir, artifact)
	if err != nil {
		return "", err
	}
	defer removeScript(ctx, scriptPath)

	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, r.bin,
		scriptPath, r.scene,
		"--format=mp4",
		flag,
		"--media_dir", mediaDir,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 5 * time.Second

	slog.InfoContext(ctx, "rendering script", "script", scriptPath, "quality", quality.String())
	start := time.Now()
	runErr := r.run(cmd)
	telemetry.RenderDuration.Observe(time.Since(start).Seconds())

	if runErr != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("render interrupted: %w", ctx.Err())
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return "", &Failure{
				Kind:       FailureTimeout,
				Diagnostic: strings.TrimSpace(fmt.Sprintf("render exceeded the %s time limit and was killed.\n%s", r.timeout, stderr.String())),
				ExitCode:   -1,
			}
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return "", &Failure{
				Kind:       FailureProcess,
				Diagnostic: diagnosticText(stderr.String(), stdout.String(), runErr),
				ExitCode:   exitErr.ExitCode(),
			}
		}
		return "", fmt.Errorf("run %s: %w", r.bin, runErr)
	}

	videoDir := filepath.Join(mediaDir, "videos", scriptStem(scriptPath), folder)
	video, err := findVideo(videoDir)
	if err != nil {
		return "", err
	}
	if video == "" {
		return "", &Failure{
			Kind:       FailureNoOutput,
			Diagnostic: fmt.Sprintf("manim exited successfully but did not produce a video file in %s (is the scene class named %s?)", videoDir, r.scene),
		}
	}
	return video, nil
}

func writeScript(dir, artifact string) (string, error) {
	f, err := os.CreateTemp(dir, "scene_*.py")
	if err != nil {
		return "", fmt.Errorf("create script file: %w", err)
	}
	path := f.Name()
	if _, err := f.WriteString(artifact); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write script file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close script file: %w", err)
	}
	return path, nil
}

func removeScript(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.WarnContext(ctx, "failed to remove script file", "script", path, "error", err)
	}
}

func scriptStem(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func findVideo(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.mp4"))
	if err != nil {
		return "", fmt.Errorf("search output dir: %w", err)
	}
	if len(matches) == 0 {
		return "", nil
	}
	sort.Strings(matches)
	return matches[0], nil
}

// diagnosticText prefers stderr, where manim prints tracebacks.
func diagnosticText(stderr, stdout string, runErr error) string {
	if s := strings.TrimSpace(stderr); s != "" {
		return s
	}
	if s := strings.TrimSpace(stdout); s != "" {
		return s
	}
	return runErr.Error()
}

// DependencyReport describes which external binaries are reachable.
type DependencyReport struct {
	ManimFound  bool   `json:"manim_found"`
	ManimPath   string `json:"manim_path,omitempty"`
	FFmpegFound bool   `json:"ffmpeg_found"`
	FFmpegPath  string `json:"ffmpeg_path,omitempty"`
}

func DependencyStatus(cfg config.RenderConfig) DependencyReport {
	report := DependencyReport{}
	if path, err := exec.LookPath(cfg.ManimBin); err == nil {
		report.ManimFound = true
		report.ManimPath = path
	}
	if path, err := exec.LookPath(cfg.FFmpegBin); err == nil {
		report.FFmpegFound = true
		report.FFmpegPath = path
	}
	return report
}

// CheckDependencies fails when manim is missing. ffmpeg only powers thumbnails.
func CheckDependencies(cfg config.RenderConfig) error {
	if !DependencyStatus(cfg).ManimFound {
		return fmt.Errorf("missing dependency: %s is not installed or not on PATH", cfg.ManimBin)
	}
	return nil
}
