package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// Thumbnailer writes a JPEG poster frame next to a video.
type Thumbnailer struct {
	ffmpeg string
	width  int
}

func New(ffmpegBin string, width int) *Thumbnailer {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	if width <= 0 {
		width = 480
	}
	return &Thumbnailer{ffmpeg: ffmpegBin, width: width}
}

// Generate extracts the first frame of videoPath and returns the thumbnail path.
func (t *Thumbnailer) Generate(ctx context.Context, videoPath string) (string, error) {
	frame, err := os.CreateTemp("", "frame_*.png")
	if err != nil {
		return "", fmt.Errorf("create frame file: %w", err)
	}
	framePath := frame.Name()
	_ = frame.Close()
	defer os.Remove(framePath)

	cmd := exec.CommandContext(ctx, t.ffmpeg,
		"-y", "-loglevel", "error",
		"-i", videoPath,
		"-frames:v", "1",
		framePath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffmpeg failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	dst := strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + ".jpg"
	if err := ResizeFrame(framePath, dst, t.width); err != nil {
		return "", err
	}
	return dst, nil
}

// ResizeFrame scales src down to width (keeping aspect ratio) and saves it as JPEG.
func ResizeFrame(src, dst string, width int) error {
	img, err := imaging.Open(src)
	if err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	if img.Bounds().Dx() == 0 || img.Bounds().Dy() == 0 {
		return errors.New("invalid frame dimensions")
	}
	if img.Bounds().Dx() > width {
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
	}
	if err := imaging.Save(img, dst, imaging.JPEGQuality(85)); err != nil {
		return fmt.Errorf("encode thumbnail: %w", err)
	}
	return nil
}
