package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/khanhnv2901/seca-posture/internal/checker"
	"github.com/khanhnv2901/seca-posture/internal/domain/posture"
	jobs "github.com/khanhnv2901/seca-posture/internal/infrastructure/api"
	sharedErrors "github.com/khanhnv2901/seca-posture/internal/shared/errors"
	"go.uber.org/zap/zaptest"
)

// fakeScanner normalizes like the real orchestrator and returns a fixed report.
type fakeScanner struct {
	score int
	cms   string
}

func (f fakeScanner) Scan(ctx context.Context, raw string) (*posture.Report, error) {
	domain, err := checker.NormalizeDomain(raw)
	if err != nil {
		return nil, fmt.Errorf("normalize domain: %w", err)
	}
	return posture.NewReport(domain.String(), f.score, []string{"No DMARC record"}, []string{"HSTS enabled"}, f.cms,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 2*time.Second), nil
}

type failingHealth struct{}

func (failingHealth) Check(context.Context) error { return errors.New("disk on fire") }
func (failingHealth) Ready(context.Context) error { return errors.New("warming up") }

func newTestServer(t *testing.T, cfg Config) (*Server, *jobs.ScanJobs) {
	t.Helper()
	if cfg.Scanner == nil {
		cfg.Scanner = fakeScanner{score: 45, cms: "wordpress"}
	}
	cfg.Logger = zaptest.NewLogger(t)
	jobService := jobs.NewScanJobs(context.Background(), jobs.NewJobManager(), cfg.Scanner, cfg.Logger)
	if cfg.Jobs == nil {
		cfg.Jobs = jobService
	}
	return NewServer(cfg), jobService
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJSON(rr, http.StatusCreated, map[string]string{"status": "ok"})

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected application/json content-type, got %s", got)
	}
	if !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}

func TestWriteErrorInternal(t *testing.T) {
	s := &Server{cfg: Config{Logger: zaptest.NewLogger(t)}}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	s.writeError(rr, req, http.StatusInternalServerError, errors.New("boom"))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "internal server error") || strings.Contains(rr.Body.String(), "boom") {
		t.Fatalf("expected sanitized message, got %s", rr.Body.String())
	}
}

func TestWriteErrorClient(t *testing.T) {
	s := &Server{}
	rr := httptest.NewRecorder()
	s.writeError(rr, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusBadRequest, errors.New("bad input"))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "bad input") {
		t.Fatalf("expected original error message, got %s", rr.Body.String())
	}
}

func TestWriteStreamChunk(t *testing.T) {
	s := &Server{}
	rr := httptest.NewRecorder()
	if !s.writeStreamChunk(rr, []byte("hello")) {
		t.Fatal("expected writeStreamChunk to succeed")
	}
	if rr.Body.String() != "hello" {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}

	if s.writeStreamChunk(&failingWriter{}, []byte("fail")) {
		t.Fatalf("expected writeStreamChunk to fail")
	}
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	rr := do(t, srv, http.MethodGet, "/api/v1/health", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Errorf("health: %d %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID on every response")
	}

	rr = do(t, srv, http.MethodGet, "/api/v1/ready", "")
	if rr.Code != http.StatusOK {
		t.Errorf("ready: %d", rr.Code)
	}

	failing, _ := newTestServer(t, Config{Health: failingHealth{}})
	if rr := do(t, failing, http.MethodGet, "/api/v1/health", ""); rr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 from failing health, got %d", rr.Code)
	}
	if rr := do(t, failing, http.MethodGet, "/api/v1/ready", ""); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 from failing ready, got %d", rr.Code)
	}
}

func TestHandleScan(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	rr := do(t, srv, http.MethodPost, "/api/v1/scans", `{"domain":"https://www.Example.com/about","industry":"finance","employees":5}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Report struct {
			Domain string  `json:"domain"`
			Score  int     `json:"score"`
			CMS    *string `json:"cms"`
		} `json:"report"`
		Advisory      string `json:"advisory"`
		EstimatedLoss *int64 `json:"estimated_loss"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Report.Domain != "example.com" || resp.Report.Score != 45 {
		t.Errorf("unexpected report %+v", resp.Report)
	}
	if resp.Report.CMS == nil || *resp.Report.CMS != "wordpress" {
		t.Errorf("expected cms wordpress, got %v", resp.Report.CMS)
	}
	if resp.Advisory != posture.Advisory("wordpress") {
		t.Errorf("unexpected advisory %q", resp.Advisory)
	}
	if resp.EstimatedLoss == nil || *resp.EstimatedLoss != 6200 {
		t.Errorf("expected estimated loss 6200, got %v", resp.EstimatedLoss)
	}
}

func TestHandleScan_WithoutIndustry(t *testing.T) {
	srv, _ := newTestServer(t, Config{Scanner: fakeScanner{score: 90}})

	rr := do(t, srv, http.MethodPost, "/api/v1/scans", `{"domain":"example.com"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if strings.Contains(body, "estimated_loss") {
		t.Errorf("expected no estimate without industry: %s", body)
	}
	if !strings.Contains(body, `"cms":null`) {
		t.Errorf("expected null cms: %s", body)
	}
}

func TestHandleScan_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	tests := []struct {
		name string
		body string
	}{
		{"empty domain", `{"domain":""}`},
		{"scheme only", `{"domain":"https://"}`},
		{"unknown industry", `{"domain":"example.com","industry":"aerospace"}`},
		{"negative headcount", `{"domain":"example.com","industry":"retail","employees":-3}`},
		{"malformed JSON", `{"domain":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/v1/scans", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
			if !strings.Contains(rr.Body.String(), `"error"`) {
				t.Errorf("expected error body, got %s", rr.Body.String())
			}
		})
	}
}

func TestHandleEstimate(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	rr := do(t, srv, http.MethodPost, "/api/v1/estimate", `{"industry":"Finance","employees":5,"score":45}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp EstimateResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.EstimatedLoss != 6200 || resp.Industry != "finance" {
		t.Errorf("unexpected estimate %+v", resp)
	}

	if rr := do(t, srv, http.MethodPost, "/api/v1/estimate", `{"industry":"finance","employees":5,"score":140}`); rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for out of range score, got %d", rr.Code)
	}
}

func TestHandleAdvisory(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	rr := do(t, srv, http.MethodGet, "/api/v1/advisories/drupal", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Drupal") {
		t.Errorf("unexpected advisory response %d %s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodGet, "/api/v1/advisories/ghost", "")
	var resp map[string]string
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp["advisory"] != posture.Advisory(posture.UnknownPlatform) {
		t.Errorf("expected unknown advisory fallback, got %q", resp["advisory"])
	}
}

func TestRouting_MethodNotAllowedAndNotFound(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	if rr := do(t, srv, http.MethodGet, "/api/v1/scans", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/api/v1/nothing", ""); rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}

func TestAuth(t *testing.T) {
	srv, _ := newTestServer(t, Config{AuthToken: "s3cret"})

	if rr := do(t, srv, http.MethodGet, "/api/v1/health", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Auth-Token", "s3cret")
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", rr.Code)
	}
}

func TestCORS(t *testing.T) {
	srv, _ := newTestServer(t, Config{CORSOrigins: []string{"https://app.example"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/scans", nil)
	req.Header.Set("Origin", "https://app.example")
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Errorf("expected 204 preflight, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "https://app.example" {
		t.Errorf("unexpected allow origin %q", rr.Header().Get("Access-Control-Allow-Origin"))
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("expected no CORS headers for unlisted origin")
	}
}

func TestJobsEndpoints(t *testing.T) {
	srv, jobService := newTestServer(t, Config{})

	rr := do(t, srv, http.MethodPost, "/api/v1/jobs", `{"domain":"Example.com"}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
	var created jobs.Job
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	jobService.Wait()

	rr = do(t, srv, http.MethodGet, "/api/v1/jobs/"+created.ID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var fetched struct {
		Status string `json:"status"`
		Report struct {
			Score int `json:"score"`
		} `json:"report"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fetched.Status != jobs.StatusDone || fetched.Report.Score != 45 {
		t.Errorf("unexpected job %+v", fetched)
	}

	rr = do(t, srv, http.MethodGet, "/api/v1/jobs?limit=5", "")
	var list []jobs.Job
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil || len(list) != 1 {
		t.Errorf("expected one job listed, got %d (%v)", len(list), err)
	}

	if rr := do(t, srv, http.MethodGet, "/api/v1/jobs/job_missing", ""); rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodPost, "/api/v1/jobs", `{"domain":"  "}`); rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid domain, got %d", rr.Code)
	}
}

func TestJobStream(t *testing.T) {
	srv, jobService := newTestServer(t, Config{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/jobs-stream", nil)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	// The handler subscribes right after flushing headers; give it a moment.
	time.Sleep(50 * time.Millisecond)
	if _, err := jobService.StartJob(ctx, jobs.JobRequest{Domain: "example.com"}); err != nil {
		t.Fatalf("StartJob: %v", err)
	}

	reader := bufio.NewReader(resp.Body)
	sawEvent := false
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if line == "event: job\n" {
			sawEvent = true
			continue
		}
		if sawEvent && strings.HasPrefix(line, "data: ") {
			var job jobs.Job
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &job); err != nil {
				t.Fatalf("decode event: %v", err)
			}
			if job.Domain != "example.com" {
				t.Errorf("unexpected job in stream %+v", job)
			}
			break
		}
	}
	jobService.Wait()
}

type failingWriter struct{}

func (f *failingWriter) Header() http.Header { return http.Header{} }
func (f *failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("write failed")
}
func (f *failingWriter) WriteHeader(statusCode int) {}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "invalid domain", err: fmt.Errorf("normalize domain: %w", sharedErrors.ErrInvalidDomain), want: http.StatusBadRequest},
		{name: "unknown job", err: sharedErrors.ErrJobNotFound, want: http.StatusNotFound},
		{name: "scan deadline", err: fmt.Errorf("scan example.com interrupted: %w", context.DeadlineExceeded), want: http.StatusGatewayTimeout},
		{name: "scan cancelled", err: fmt.Errorf("scan example.com interrupted: %w", context.Canceled), want: http.StatusServiceUnavailable},
		{name: "other", err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

// interruptedScanner fails the way the orchestrator does when the request
// context ends mid-scan.
type interruptedScanner struct{}

func (interruptedScanner) Scan(ctx context.Context, raw string) (*posture.Report, error) {
	return nil, fmt.Errorf("scan %s interrupted: %w", raw, context.DeadlineExceeded)
}

func TestHandleScan_InterruptedScanIsNotAReport(t *testing.T) {
	srv, _ := newTestServer(t, Config{Scanner: interruptedScanner{}})
	rr := do(t, srv, http.MethodPost, "/api/v1/scans", `{"domain":"example.com"}`)

	if rr.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d: %s", rr.Code, rr.Body.String())
	}
	if strings.Contains(rr.Body.String(), `"score"`) {
		t.Fatalf("interrupted scan must not return a report: %s", rr.Body.String())
	}
}

func TestJobStream_ClosedOnShutdown(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	ts := httptest.NewUnstartedServer(srv)
	ts.Config.RegisterOnShutdown(srv.CloseStreams)
	ts.Start()
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/v1/jobs-stream")
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()

	shutdownDone := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		shutdownDone <- ts.Config.Shutdown(ctx)
	}()

	readDone := make(chan error, 1)
	go func() {
		_, err := io.Copy(io.Discard, resp.Body)
		readDone <- err
	}()

	select {
	case <-readDone:
	case <-time.After(2 * time.Second):
		t.Fatal("stream stayed open after shutdown began")
	}
	if err := <-shutdownDone; err != nil {
		t.Fatalf("shutdown did not complete: %v", err)
	}
}
