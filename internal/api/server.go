package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/khanhnv2901/seca-posture/internal/api/middleware"
	"github.com/khanhnv2901/seca-posture/internal/domain/posture"
	jobs "github.com/khanhnv2901/seca-posture/internal/infrastructure/api"
	sharedErrors "github.com/khanhnv2901/seca-posture/internal/shared/errors"
	"go.uber.org/zap"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

type HealthService interface {
	Check(ctx context.Context) error
	Ready(ctx context.Context) error
}

// Scanner runs one synchronous scan.
type Scanner interface {
	Scan(ctx context.Context, raw string) (*posture.Report, error)
}

type JobService interface {
	StartJob(ctx context.Context, req jobs.JobRequest) (*jobs.Job, error)
	GetJob(ctx context.Context, id string) (*jobs.Job, error)
	ListJobs(ctx context.Context, limit int) ([]jobs.Job, error)
	Subscribe() (chan jobs.Job, func())
}

type Config struct {
	Scanner     Scanner
	Health      HealthService
	Jobs        JobService
	AuthToken   string
	Logger      *zap.Logger
	CORSOrigins []string // Allowed CORS origins (empty = allow all)
}

// ScanRequest is the body of POST /scans. Industry and Employees are
// optional; when Industry is set the response carries a loss estimate.
type ScanRequest struct {
	Domain    string `json:"domain"`
	Industry  string `json:"industry,omitempty"`
	Employees int    `json:"employees,omitempty"`
}

type ScanResponse struct {
	Report        *posture.Report `json:"report"`
	Advisory      string          `json:"advisory"`
	EstimatedLoss *int64          `json:"estimated_loss,omitempty"`
}

type EstimateRequest struct {
	Industry  string `json:"industry"`
	Employees int    `json:"employees"`
	Score     int    `json:"score"`
}

type EstimateResponse struct {
	Industry      string `json:"industry"`
	Employees     int    `json:"employees"`
	Score         int    `json:"score"`
	EstimatedLoss int64  `json:"estimated_loss"`
}

type Server struct {
	cfg    Config
	router chi.Router

	// closing ends open event streams; see CloseStreams.
	closing   chan struct{}
	closeOnce sync.Once
}

func NewServer(cfg Config) *Server {
	srv := &Server{cfg: cfg, closing: make(chan struct{})}
	srv.routes()
	return srv
}

// CloseStreams ends every open /jobs-stream response. http.Server.Shutdown
// does not interrupt active handlers, so register this with
// RegisterOnShutdown. Safe to call more than once.
func (s *Server) CloseStreams() {
	s.closeOnce.Do(func() {
		if s.closing != nil {
			close(s.closing)
		}
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	// RequestID -> Logging -> CORS -> Auth -> Handler
	r.Use(middleware.RequestID, s.withLogging, s.withCORS)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusNotFound, errors.New("not found"))
	})
	r.MethodNotAllowed(s.methodNotAllowed)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.withAuth)

		r.Get("/health", s.handleHealth)
		r.Get("/ready", s.handleReady)
		r.Post("/scans", s.handleScan)
		r.Post("/estimate", s.handleEstimate)
		r.Get("/advisories/{platform}", s.handleAdvisory)
		r.Get("/jobs", s.handleListJobs)
		r.Post("/jobs", s.handleCreateJob)
		r.Get("/jobs/{id}", s.handleJobByID)
		r.Get("/jobs-stream", s.handleJobStream)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Health != nil {
		if err := s.cfg.Health.Check(r.Context()); err != nil {
			s.writeError(w, r, http.StatusInternalServerError, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Health != nil {
		if err := s.cfg.Health.Ready(r.Context()); err != nil {
			s.writeError(w, r, http.StatusServiceUnavailable, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Scanner == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("scanner not available"))
		return
	}

	var req ScanRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	var industry posture.Industry
	if req.Industry != "" {
		parsed, err := posture.ParseIndustry(req.Industry)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, err)
			return
		}
		if req.Employees < 0 {
			s.writeError(w, r, http.StatusBadRequest, sharedErrors.ErrInvalidHeadcount)
			return
		}
		industry = parsed
	}

	report, err := s.cfg.Scanner.Scan(r.Context(), req.Domain)
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}

	platform, ok := report.CMS()
	if !ok {
		platform = posture.UnknownPlatform
	}
	resp := ScanResponse{Report: report, Advisory: posture.Advisory(platform)}

	if industry != "" {
		loss, err := posture.EstimateLoss(industry, req.Employees, report.Score())
		if err != nil {
			s.writeError(w, r, statusFor(err), err)
			return
		}
		resp.EstimatedLoss = &loss
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req EstimateRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	industry, err := posture.ParseIndustry(req.Industry)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	loss, err := posture.EstimateLoss(industry, req.Employees, req.Score)
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, EstimateResponse{
		Industry:      string(industry),
		Employees:     req.Employees,
		Score:         req.Score,
		EstimatedLoss: loss,
	})
}

func (s *Server) handleAdvisory(w http.ResponseWriter, r *http.Request) {
	platform := chi.URLParam(r, "platform")
	writeJSON(w, http.StatusOK, map[string]string{
		"platform": platform,
		"advisory": posture.Advisory(platform),
	})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Jobs == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("job service not available"))
		return
	}
	limit := 25
	if q := r.URL.Query().Get("limit"); q != "" {
		if parsed, err := strconv.Atoi(q); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	items, err := s.cfg.Jobs.ListJobs(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Jobs == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("job service not available"))
		return
	}
	var req jobs.JobRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	job, err := s.cfg.Jobs.StartJob(r.Context(), req)
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Jobs == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("job service not available"))
		return
	}
	job, err := s.cfg.Jobs.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil || job == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("job not found"))
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Jobs == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("job service not available"))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, r, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	updates, unsubscribe := s.cfg.Jobs.Subscribe()
	defer unsubscribe()
	ctx := r.Context()
	for {
		select {
		case job, ok := <-updates:
			if !ok {
				return
			}
			payload, err := json.Marshal(job)
			if err != nil {
				s.requestLogger(r).Error("failed to marshal job", zap.Error(err))
				continue
			}
			if !s.writeStreamChunk(w, []byte("event: job\n")) {
				return
			}
			if !s.writeStreamChunk(w, []byte("data: ")) {
				return
			}
			if !s.writeStreamChunk(w, payload) {
				return
			}
			if !s.writeStreamChunk(w, []byte("\n\n")) {
				return
			}
			flusher.Flush()
		case <-ctx.Done():
			return
		case <-s.closing:
			return
		}
	}
}

// decodeJSON reads a bounded JSON body into dst, writing a 400 on failure.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, r, http.StatusBadRequest, errors.New("invalid JSON body"))
		return false
	}
	return true
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, sharedErrors.ErrInvalidDomain),
		errors.Is(err, sharedErrors.ErrEmptyTarget),
		errors.Is(err, sharedErrors.ErrUnknownIndustry),
		errors.Is(err, sharedErrors.ErrInvalidScore),
		errors.Is(err, sharedErrors.ErrInvalidHeadcount),
		errors.Is(err, sharedErrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, sharedErrors.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowOrigin := "*"
		if len(s.cfg.CORSOrigins) > 0 {
			allowOrigin = ""
			for _, allowedOrigin := range s.cfg.CORSOrigins {
				if allowedOrigin == origin {
					allowOrigin = origin
					break
				}
			}
		}

		if allowOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Auth-Token, X-Request-ID")
			w.Header().Set("Access-Control-Max-Age", "3600")
		}

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, r)

		if s.cfg.Logger != nil {
			s.cfg.Logger.Info("http_request",
				zap.String("request_id", middleware.GetRequestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Int("status", lrw.statusCode),
				zap.Duration("duration", time.Since(start)),
				zap.Int64("bytes", lrw.bytesWritten),
			)
		}
	})
}

func (s *Server) withAuth(next http.Handler) http.Handler {
	if s.cfg.AuthToken == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Auth-Token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AuthToken)) != 1 {
			s.writeError(w, r, http.StatusUnauthorized, errors.New("unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingResponseWriter wraps http.ResponseWriter to capture status code and bytes written
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	n, err := lrw.ResponseWriter.Write(b)
	lrw.bytesWritten += int64(n)
	return n, err
}

// Flush lets the job stream push events through the wrapper.
func (lrw *loggingResponseWriter) Flush() {
	if f, ok := lrw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	msg := err.Error()

	// For 5xx errors, return generic message and log details server-side
	if status >= 500 {
		s.requestLogger(r).Error("internal_server_error",
			zap.Error(err),
			zap.Int("status", status),
		)
		msg = "internal server error"
	}

	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger creates a logger with request context (request ID, method, path)
func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	if s.cfg.Logger == nil {
		return zap.NewNop()
	}

	return s.cfg.Logger.With(
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	)
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func (s *Server) writeStreamChunk(w http.ResponseWriter, data []byte) bool {
	if _, err := w.Write(data); err != nil {
		if s.cfg.Logger != nil {
			s.cfg.Logger.Error("failed to write stream chunk", zap.Error(err))
		}
		return false
	}
	return true
}
