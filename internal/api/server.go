package api

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"mathanim/internal/logger"
	"mathanim/internal/models"
	"mathanim/internal/pipeline"
	"mathanim/internal/ratelimit"
	"mathanim/internal/storage"
	"mathanim/internal/telemetry"
)

const maxRequestBytes = 64 << 10

// Runner executes one prompt-to-video job.
type Runner interface {
	Run(ctx context.Context, prompt string, quality models.Quality) (pipeline.Output, error)
}

// Videos resolves published file names to paths.
type Videos interface {
	Resolve(name string) (string, error)
}

type Limiter interface {
	Allow(ctx context.Context, subject string) (ratelimit.Decision, error)
}

// Server wires HTTP handlers for the video API.
type Server struct {
	runner  Runner
	videos  Videos
	limiter Limiter
	slots   chan struct{}

	mu       sync.Mutex
	draining bool
	jobs     sync.WaitGroup
}

// New constructs the API server. limiter may be nil to disable rate limiting;
// maxConcurrent bounds the number of jobs running at once.
func New(runner Runner, videos Videos, limiter Limiter, maxConcurrent int) *Server {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Server{
		runner:  runner,
		videos:  videos,
		limiter: limiter,
		slots:   make(chan struct{}, maxConcurrent),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Mount("/metrics", telemetry.Handler())

	r.Get("/qualities", s.handleQualities)
	r.Post("/videos", s.handleCreateVideo)
	r.Get("/videos/{name}", s.handleGetVideo)
	return r
}

type createVideoRequest struct {
	Prompt  string `json:"prompt"`
	Quality string `json:"quality"`
}

type createVideoResponse struct {
	JobID     string `json:"job_id"`
	Video     string `json:"video"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Mirror    string `json:"mirror,omitempty"`
	Attempts  int    `json:"attempts"`
}

type qualityInfo struct {
	Name   string `json:"name"`
	Flag   string `json:"flag"`
	Folder string `json:"folder"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleCreateVideo(w http.ResponseWriter, r *http.Request) {
	var req createVideoRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, pipeline.ErrEmptyPrompt.Error())
		return
	}
	if req.Quality == "" {
		req.Quality = string(models.Quality480p)
	}
	quality, err := models.ParseQuality(req.Quality)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.limiter != nil {
		d, err := s.limiter.Allow(r.Context(), clientIP(r))
		if err != nil {
			slog.ErrorContext(r.Context(), "rate limiter unavailable", "error", err)
			writeError(w, http.StatusInternalServerError, "rate limit error")
			return
		}
		if !d.Allowed {
			telemetry.RateLimitRejects.Inc()
			if d.RetryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(d.RetryAfter.Seconds())))
			}
			writeError(w, http.StatusTooManyRequests, "rate limited")
			return
		}
	}

	select {
	case s.slots <- struct{}{}:
	case <-r.Context().Done():
		writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for a render slot")
		return
	}
	defer func() { <-s.slots }()

	if !s.beginJob() {
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}
	defer s.jobs.Done()

	// A job that has started runs to completion so its workspace is always
	// cleaned up by the pipeline, even if the client goes away.
	ctx := logger.WithLogFields(context.WithoutCancel(r.Context()), logger.LogFields{Component: "api"})
	out, err := s.runner.Run(ctx, req.Prompt, quality)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			slog.ErrorContext(ctx, "video job failed", "error", err)
		}
		writeError(w, status, err.Error())
		return
	}

	resp := createVideoResponse{
		JobID:    out.JobID,
		Video:    out.VideoName,
		URL:      "/videos/" + out.VideoName,
		Mirror:   out.MirrorURL,
		Attempts: out.Attempts,
	}
	if out.ThumbnailPath != "" {
		resp.Thumbnail = "/videos/" + filepath.Base(out.ThumbnailPath)
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) beginJob() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draining {
		return false
	}
	s.jobs.Add(1)
	return true
}

// Drain stops accepting new jobs and waits for running ones to finish, so
// their workspaces are removed before the process exits.
func (s *Server) Drain(ctx context.Context) error {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.jobs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	path, err := s.videos.Resolve(name)
	switch {
	case errors.Is(err, storage.ErrInvalidName):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, fs.ErrNotExist):
		writeError(w, http.StatusNotFound, "not found")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to read video")
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) handleQualities(w http.ResponseWriter, _ *http.Request) {
	items := make([]qualityInfo, 0, len(models.Qualities))
	for _, q := range models.Qualities {
		flag, _ := q.Flag()
		folder, _ := q.Folder()
		items = append(items, qualityInfo{Name: q.String(), Flag: flag, Folder: folder})
	}
	writeJSON(w, http.StatusOK, map[string]any{"qualities": items})
}

func statusFor(err error) int {
	var aborted *pipeline.AbortedError
	var genErr *pipeline.GeneratorError
	switch {
	case errors.Is(err, pipeline.ErrEmptyPrompt), errors.Is(err, models.ErrUnknownQuality):
		return http.StatusBadRequest
	case errors.As(err, &aborted), errors.As(err, &genErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
