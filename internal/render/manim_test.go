package render

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"mathanim/internal/config"
	"mathanim/internal/models"
)

// fakeManim mimics the manim CLI: it reads --media_dir and the quality flag
// and writes a video where manim would. FAKE_MANIM_MODE selects failures.
const fakeManim = `#!/bin/sh
script="$1"
media=""
flag=""
while [ $# -gt 0 ]; do
  case "$1" in
    --media_dir) media="$2"; shift ;;
    -ql|-qm|-qh|-qk) flag="$1" ;;
  esac
  shift
done
printf '%s' "$script" > "$media/last_script"
cp "$script" "$media/last_script_body"
case "$FAKE_MANIM_MODE" in
  fail)
    echo "Traceback (most recent call last):" >&2
    echo "NameError: name 'Circl' is not defined" >&2
    exit 1 ;;
  empty) exit 0 ;;
  hang) exec sleep 5 ;;
esac
case "$flag" in
  -ql) folder=480p15 ;;
  -qm) folder=720p30 ;;
  -qh) folder=1080p60 ;;
  -qk) folder=2160p60 ;;
esac
stem=$(basename "$script" .py)
mkdir -p "$media/videos/$stem/$folder"
printf 'fake mp4 data' > "$media/videos/$stem/$folder/GeneratedScene.mp4"
`

func newFakeRenderer(t *testing.T, timeout time.Duration) (*ManimRenderer, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake manim is a shell script")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "manim")
	if err := os.WriteFile(bin, []byte(fakeManim), 0o755); err != nil {
		t.Fatalf("write fake manim: %v", err)
	}
	r := NewManimRenderer(config.RenderConfig{ManimBin: bin, SceneName: "GeneratedScene", Timeout: timeout})
	r.scriptDir = filepath.Join(dir, "scripts")
	if err := os.MkdirAll(r.scriptDir, 0o755); err != nil {
		t.Fatalf("mkdir scripts: %v", err)
	}
	return r, filepath.Join(dir, "media")
}

func assertNoScripts(t *testing.T, r *ManimRenderer) {
	t.Helper()
	entries, err := os.ReadDir(r.scriptDir)
	if err != nil {
		t.Fatalf("read script dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected temp script removed, found %d file(s)", len(entries))
	}
}

func TestRenderSuccessFindsVideoForEachQuality(t *testing.T) {
	t.Setenv("FAKE_MANIM_MODE", "ok")
	for _, q := range models.Qualities {
		r, media := newFakeRenderer(t, time.Minute)
		video, err := r.Render(context.Background(), "from manim import *\n", q, media)
		if err != nil {
			t.Fatalf("%s: render: %v", q, err)
		}
		folder, _ := q.Folder()
		if filepath.Base(filepath.Dir(video)) != folder {
			t.Fatalf("%s: video %s not in %s", q, video, folder)
		}
		if info, err := os.Stat(video); err != nil || info.Size() == 0 {
			t.Fatalf("%s: video missing or empty: %v", q, err)
		}
		body, _ := os.ReadFile(filepath.Join(media, "last_script_body"))
		if string(body) != "from manim import *\n" {
			t.Fatalf("renderer received %q", body)
		}
		assertNoScripts(t, r)
	}
}

func TestRenderProcessFailureCarriesStderr(t *testing.T) {
	t.Setenv("FAKE_MANIM_MODE", "fail")
	r, media := newFakeRenderer(t, time.Minute)

	_, err := r.Render(context.Background(), "broken", models.Quality480p, media)
	f, ok := AsFailure(err)
	if !ok {
		t.Fatalf("expected *Failure, got %v", err)
	}
	if f.Kind != FailureProcess || f.ExitCode != 1 {
		t.Fatalf("unexpected failure %+v", f)
	}
	if !strings.Contains(f.Diagnostic, "NameError: name 'Circl' is not defined") {
		t.Fatalf("root cause line dropped: %q", f.Diagnostic)
	}
	assertNoScripts(t, r)
}

func TestRenderNoOutputIsDistinct(t *testing.T) {
	t.Setenv("FAKE_MANIM_MODE", "empty")
	r, media := newFakeRenderer(t, time.Minute)

	_, err := r.Render(context.Background(), "from manim import *\n", models.Quality720p, media)
	f, ok := AsFailure(err)
	if !ok || f.Kind != FailureNoOutput {
		t.Fatalf("expected no_output failure, got %v", err)
	}
	if !strings.Contains(f.Diagnostic, "did not produce a video file") {
		t.Fatalf("unexpected diagnostic %q", f.Diagnostic)
	}
	assertNoScripts(t, r)
}

func TestRenderTimeoutKillsProcess(t *testing.T) {
	t.Setenv("FAKE_MANIM_MODE", "hang")
	r, media := newFakeRenderer(t, 200*time.Millisecond)

	start := time.Now()
	_, err := r.Render(context.Background(), "from manim import *\n", models.Quality480p, media)
	f, ok := AsFailure(err)
	if !ok || f.Kind != FailureTimeout {
		t.Fatalf("expected timeout failure, got %v", err)
	}
	if time.Since(start) > 4*time.Second {
		t.Fatalf("timeout did not stop the renderer promptly")
	}
	assertNoScripts(t, r)
}

func TestRenderMissingBinaryIsInfrastructureError(t *testing.T) {
	r, media := newFakeRenderer(t, time.Minute)
	r.bin = filepath.Join(t.TempDir(), "does-not-exist")

	_, err := r.Render(context.Background(), "x", models.Quality480p, media)
	if err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := AsFailure(err); ok {
		t.Fatalf("missing binary must not be a repairable failure: %v", err)
	}
	assertNoScripts(t, r)
}

func TestRenderCleansUpScriptOnPanic(t *testing.T) {
	r, media := newFakeRenderer(t, time.Minute)
	r.run = func(*exec.Cmd) error { panic("renderer exploded") }

	func() {
		defer func() {
			if rec := recover(); rec == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()
		_, _ = r.Render(context.Background(), "x", models.Quality480p, media)
	}()
	assertNoScripts(t, r)
}

func TestRenderWritesScriptInsideMediaDir(t *testing.T) {
	r, media := newFakeRenderer(t, time.Minute)
	r.scriptDir = ""

	if _, err := r.Render(context.Background(), "from manim import *", models.Quality480p, media); err != nil {
		t.Fatalf("render: %v", err)
	}
	used, err := os.ReadFile(filepath.Join(media, "last_script"))
	if err != nil {
		t.Fatalf("read last_script: %v", err)
	}
	if filepath.Dir(string(used)) != media {
		t.Fatalf("script %s written outside media dir %s", used, media)
	}
	if leftovers, _ := filepath.Glob(filepath.Join(media, "scene_*.py")); len(leftovers) != 0 {
		t.Fatalf("script not removed: %v", leftovers)
	}
}

func TestRenderRejectsUnknownQuality(t *testing.T) {
	r, media := newFakeRenderer(t, time.Minute)
	_, err := r.Render(context.Background(), "x", models.Quality("8k"), media)
	if !errors.Is(err, models.ErrUnknownQuality) {
		t.Fatalf("expected ErrUnknownQuality, got %v", err)
	}
}

func TestDiagnosticTextFallbacks(t *testing.T) {
	boom := errors.New("exit status 2")
	if got := diagnosticText("  err line \n", "out", boom); got != "err line" {
		t.Fatalf("stderr should win, got %q", got)
	}
	if got := diagnosticText("", "out only", boom); got != "out only" {
		t.Fatalf("stdout fallback, got %q", got)
	}
	if got := diagnosticText("", "", boom); got != "exit status 2" {
		t.Fatalf("error fallback, got %q", got)
	}
}
