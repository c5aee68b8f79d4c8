package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrInvalidName is returned for names that are not a plain file in the store.
var ErrInvalidName = errors.New("invalid file name")

const maxNameAttempts = 16

// Mirror copies a published file to secondary storage.
type Mirror interface {
	Upload(ctx context.Context, key, path, contentType string) (string, error)
}

// Published describes a file placed into durable storage.
type Published struct {
	Path      string `json:"path"`
	Name      string `json:"name"`
	MirrorURL string `json:"mirror_url,omitempty"`
}

// LocalStore is a flat directory of uniquely named output files.
type LocalStore struct {
	dir    string
	mirror Mirror
	now    func() time.Time
}

func NewLocalStore(dir string, mirror Mirror) *LocalStore {
	if dir == "" {
		dir = "./final_videos"
	}
	return &LocalStore{dir: dir, mirror: mirror, now: time.Now}
}

func (s *LocalStore) Dir() string {
	return s.dir
}

// Publish copies src into the store as <stem>_<unix nanos><ext> and returns
// the durable path. The mirror upload is best-effort.
func (s *LocalStore) Publish(ctx context.Context, src string) (Published, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Published{}, fmt.Errorf("create output dir: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return Published{}, fmt.Errorf("open rendered video: %w", err)
	}
	defer in.Close()

	out, dest, err := s.createUnique(src)
	if err != nil {
		return Published{}, err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dest)
		return Published{}, fmt.Errorf("copy video: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dest)
		return Published{}, fmt.Errorf("close video: %w", err)
	}

	pub := Published{Path: dest, Name: filepath.Base(dest)}
	if s.mirror != nil {
		url, err := s.mirror.Upload(ctx, pub.Name, dest, contentTypeFor(pub.Name))
		if err != nil {
			slog.WarnContext(ctx, "mirror upload failed", "name", pub.Name, "error", err)
		} else {
			pub.MirrorURL = url
		}
	}
	return pub, nil
}

func (s *LocalStore) createUnique(src string) (*os.File, string, error) {
	base := filepath.Base(src)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	stamp := s.now().UnixNano()
	for i := 0; i < maxNameAttempts; i++ {
		dest := filepath.Join(s.dir, fmt.Sprintf("%s_%d%s", stem, stamp+int64(i), ext))
		f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, dest, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("create output file: %w", err)
		}
	}
	return nil, "", fmt.Errorf("create output file: no free name for %s after %d attempts", base, maxNameAttempts)
}

// Resolve maps a bare file name to its path inside the store.
func (s *LocalStore) Resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	path := filepath.Join(s.dir, name)
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return path, nil
}

func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp4":
		return "video/mp4"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
