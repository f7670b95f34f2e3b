package checker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	consts "github.com/khanhnv2901/seca-posture/internal/shared/constants"
	"go.uber.org/zap"
)

// HTTPAudit is what one successful landing-page fetch yields.
type HTTPAudit struct {
	Headers    HeaderAuditState `json:"headers"`
	StatusCode int              `json:"status_code"`
	FinalURL   string           `json:"final_url"`
	Platform   string           `json:"platform,omitempty"`
	Body       string           `json:"-"`
}

// HTTPAuditProbe fetches https://<domain>/ once and audits the response.
type HTTPAuditProbe struct {
	Timeout   time.Duration
	UserAgent string
	// Transport overrides the default transport (tests point it at httptest servers).
	Transport http.RoundTripper
	Logger    *zap.Logger
}

// Probe issues exactly one GET, following redirects. Any transport failure
// yields a failure outcome; the caller decides how to report it.
func (h *HTTPAuditProbe) Probe(ctx context.Context, host string) Outcome[HTTPAudit] {
	timeout := h.Timeout
	if timeout == 0 {
		timeout = consts.HTTPProbeTimeout
	}
	userAgent := h.UserAgent
	if userAgent == "" {
		userAgent = consts.BrowserUserAgent
	}
	log := logger(h.Logger)

	transport := h.Transport
	if transport == nil {
		// One connection per probe, released when the response is closed.
		transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DisableKeepAlives:   true,
			TLSHandshakeTimeout: timeout,
		}
	}

	client := &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= consts.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", consts.MaxRedirects)
			}
			return nil
		},
	}

	target := "https://" + host + "/"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Failed[HTTPAudit](fmt.Sprintf("create request: %v", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		log.Debug("http_audit_failed", zap.String("url", target), zap.Error(err))
		return fromError[HTTPAudit](err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, consts.HTTPBodyLimitBytes))
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		// Headers are already in hand; a partial body still fingerprints.
		log.Debug("http_body_read_failed", zap.String("url", target), zap.Error(err))
	}

	bodyLower := strings.ToLower(string(body))
	audit := HTTPAudit{
		Headers:    AnalyzeSecurityHeaders(resp.Header),
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
		Body:       string(body),
	}
	if platform, ok := IdentifyPlatform(bodyLower, resp.Header); ok {
		audit.Platform = platform
	}

	return Succeeded(audit)
}
