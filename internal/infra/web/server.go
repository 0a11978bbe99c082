package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"whisper-web/internal/domain"
	"whisper-web/internal/metrics"
)

const maxUploadBytes = 100 * 1024 * 1024

// Submitter is the orchestrator as seen by the transcribe button.
type Submitter interface {
	Submit(ctx context.Context) (string, error)
	Busy() bool
}

// Selector receives files chosen through the page's file input.
type Selector interface {
	Select(file *domain.AudioFile)
}

// Server is the HTTP surface of the transcription UI.
type Server struct {
	addr        string
	server      *http.Server
	mux         *http.ServeMux
	submitter   Submitter
	selector    Selector
	state       *State
	metrics     *metrics.Metrics
	logger      *slog.Logger
	rateLimiter *RateLimiter
	authToken   string
	maxUpload   int64
	upgrader    websocket.Upgrader

	mu      sync.Mutex
	running bool
}

type Options struct {
	Addr      string
	AuthToken string
	// Selector is nil when the configured source is not the upload source.
	Selector Selector
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
	// MaxUploadBytes caps /select bodies; zero means 100 MiB.
	MaxUploadBytes int64
}

func NewServer(opts Options, submitter Submitter, state *State, m *metrics.Metrics, logger *slog.Logger) *Server {
	s := &Server{
		addr:        opts.Addr,
		mux:         http.NewServeMux(),
		submitter:   submitter,
		selector:    opts.Selector,
		state:       state,
		metrics:     m,
		logger:      logger,
		rateLimiter: NewRateLimiter(30, time.Minute), // 30 requests per minute per IP
		authToken:   opts.AuthToken,
		maxUpload:   opts.MaxUploadBytes,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}

	if s.maxUpload <= 0 {
		s.maxUpload = maxUploadBytes
	}

	if s.selector != nil {
		s.mux.HandleFunc("POST /select", s.instrument("/select", s.rateLimiter.Middleware(s.authorize(s.handleSelect))))
	}
	s.mux.HandleFunc("POST /transcribe", s.instrument("/transcribe", s.rateLimiter.Middleware(s.authorize(s.handleTranscribe))))
	s.mux.HandleFunc("GET /transcript", s.instrument("/transcript", s.handleTranscript))
	s.mux.HandleFunc("GET /events", s.handleEvents)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	if opts.MetricsHandler != nil {
		s.mux.Handle("GET /metrics", opts.MetricsHandler)
	}

	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.mux,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	s.running = true
	server := s.server
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server starting", "addr", s.addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sweep := time.NewTicker(5 * time.Minute)
	defer sweep.Stop()

	for {
		select {
		case err, ok := <-errCh:
			s.setRunning(false)
			if ok {
				return fmt.Errorf("serving http: %w", err)
			}
			return nil
		case <-sweep.C:
			s.rateLimiter.Sweep()
		case <-ctx.Done():
			s.setRunning(false)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				s.logger.Warn("graceful shutdown failed, forcing close", "error", err)
				if err := server.Close(); err != nil {
					return fmt.Errorf("closing server: %w", err)
				}
			}
			return ctx.Err()
		}
	}
}

func (s *Server) setRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = running
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxUpload))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.logger.Warn("upload too large", "limit", tooLarge.Limit)
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d bytes", tooLarge.Limit))
			return
		}
		s.logger.Error("reading upload body", "error", err)
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "empty file")
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		name = "upload"
	}

	s.selector.Select(&domain.AudioFile{
		Name:        name,
		ContentType: r.Header.Get("Content-Type"),
		Data:        data,
	})

	s.logger.Info("file selected", "name", name, "bytes", len(data))
	writeJSON(w, http.StatusOK, map[string]any{"status": "selected", "name": name, "bytes": len(data)})
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	id, err := s.submitter.Submit(r.Context())
	if err != nil {
		status := submitStatus(err)
		s.logger.Warn("transcription not dispatched", "error", err, "status", status)
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"status": "dispatched", "request_id": id})
}

func submitStatus(err error) int {
	if errors.Is(err, domain.ErrBusy) {
		return http.StatusConflict
	}

	switch domain.KindOf(err) {
	case domain.KindMissingSource:
		return http.StatusBadRequest
	case domain.KindDecode, domain.KindUnsupportedLayout:
		return http.StatusUnprocessableEntity
	case domain.KindFetch, domain.KindWorker:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleTranscript(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.state.Snapshot())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates, unsubscribe := s.state.Subscribe()
	defer unsubscribe()

	// The page never sends anything; reading only detects the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case snap := <-updates:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(snap); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	status := "ok"
	statusCode := http.StatusOK
	if !running {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, map[string]any{
		"status":  status,
		"running": running,
		"busy":    s.submitter.Busy(),
	})
}

func (s *Server) authorize(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authToken != "" {
			token := r.Header.Get("X-Auth-Token")
			if token == "" {
				token = r.URL.Query().Get("token")
			}
			if token != s.authToken {
				s.logger.Warn("unauthorized request", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		next(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(path string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next(rec, r)
		s.metrics.ObserveHTTP(path, rec.code, time.Since(start))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
