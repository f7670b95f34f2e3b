package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/khanhnv2901/seca-posture/internal/checker"
	"github.com/khanhnv2901/seca-posture/internal/domain/posture"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

// PortScanner probes a port catalog and returns findings in catalog order.
type PortScanner interface {
	ScanCatalog(ctx context.Context, host string, catalog []checker.PortSpec) []checker.PortFinding
}

// CertificateProbe inspects the certificate served on 443.
type CertificateProbe interface {
	Probe(ctx context.Context, host string) checker.Outcome[checker.CertificateSummary]
}

// EmailPolicyProbe evaluates SPF and DMARC.
type EmailPolicyProbe interface {
	Probe(ctx context.Context, host string) checker.Outcome[checker.DNSPolicyState]
}

// WebAuditProbe audits the landing page response.
type WebAuditProbe interface {
	Probe(ctx context.Context, host string) checker.Outcome[checker.HTTPAudit]
}

// Orchestrator coordinates the probes of a scan and folds their outcomes
// into a report. It holds no per-scan state and is safe for concurrent use.
type Orchestrator struct {
	ports   PortScanner
	catalog []checker.PortSpec
	tls     CertificateProbe
	dns     EmailPolicyProbe
	web     WebAuditProbe
	logger  *zap.Logger
	now     func() time.Time
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides the clock used for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithPortCatalog replaces the default five-port catalog.
func WithPortCatalog(catalog []checker.PortSpec) Option {
	return func(o *Orchestrator) {
		o.catalog = append([]checker.PortSpec(nil), catalog...)
	}
}

// NewOrchestrator creates a new scan orchestrator
func NewOrchestrator(ports PortScanner, tls CertificateProbe, dns EmailPolicyProbe, web WebAuditProbe, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		ports:   ports,
		catalog: checker.DefaultPortCatalog(),
		tls:     tls,
		dns:     dns,
		web:     web,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Scan runs every probe against raw and returns the report. Probe failures
// are folded into the report. Errors are an invalid domain, or ctx ending
// before every probe settled: probes that ran against a dead context report
// closed ports and failed lookups, so no report is produced from them.
func (o *Orchestrator) Scan(ctx context.Context, raw string) (*posture.Report, error) {
	domain, err := checker.NormalizeDomain(raw)
	if err != nil {
		return nil, fmt.Errorf("normalize domain: %w", err)
	}
	host := domain.String()
	startedAt := o.now()

	outcomes := o.collect(ctx, host)
	if err := ctx.Err(); err != nil {
		o.logger.Warn("scan_interrupted", zap.String("domain", host), zap.Error(err))
		return nil, fmt.Errorf("scan %s interrupted: %w", host, err)
	}
	tally := Score(host, outcomes)
	duration := o.now().Sub(startedAt)

	o.logger.Info("scan_completed",
		zap.String("domain", host),
		zap.Int("score", tally.Score),
		zap.Int("issues", len(tally.Issues)),
		zap.Int("passes", len(tally.Passes)),
		zap.String("tls", outcomes.TLS.Kind.String()),
		zap.String("dns", outcomes.DNS.Kind.String()),
		zap.String("http", outcomes.HTTP.Kind.String()),
		zap.Duration("duration", duration),
	)

	return posture.NewReport(host, tally.Score, tally.Issues, tally.Passes, tally.CMS, startedAt, duration), nil
}

// collect fans out all probe groups and joins once every one has settled.
// Each branch writes only its own field; no branch cancels another.
func (o *Orchestrator) collect(ctx context.Context, host string) Outcomes {
	var (
		out Outcomes
		wg  conc.WaitGroup
	)

	wg.Go(func() {
		out.Ports = o.ports.ScanCatalog(ctx, host, o.catalog)
	})
	wg.Go(func() {
		out.TLS = o.tls.Probe(ctx, host)
	})
	wg.Go(func() {
		out.DNS = o.dns.Probe(ctx, host)
	})
	wg.Go(func() {
		out.HTTP = o.web.Probe(ctx, host)
	})
	wg.Wait()

	return out
}
