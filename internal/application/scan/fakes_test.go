package scan

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/khanhnv2901/seca-posture/internal/checker"
)

type fakePorts struct {
	open map[int]bool
}

func (f fakePorts) ScanCatalog(ctx context.Context, host string, catalog []checker.PortSpec) []checker.PortFinding {
	findings := make([]checker.PortFinding, 0, len(catalog))
	for _, spec := range catalog {
		findings = append(findings, checker.PortFinding{Port: spec.Port, Service: spec.Service, Risk: spec.Risk, Open: f.open[spec.Port]})
	}
	return findings
}

type fakeTLS struct {
	outcome checker.Outcome[checker.CertificateSummary]
}

func (f fakeTLS) Probe(ctx context.Context, host string) checker.Outcome[checker.CertificateSummary] {
	return f.outcome
}

type fakeDNS struct {
	outcome checker.Outcome[checker.DNSPolicyState]
}

func (f fakeDNS) Probe(ctx context.Context, host string) checker.Outcome[checker.DNSPolicyState] {
	return f.outcome
}

type fakeWeb struct {
	outcome checker.Outcome[checker.HTTPAudit]

	mu    sync.Mutex
	hosts []string
}

func (f *fakeWeb) Probe(ctx context.Context, host string) checker.Outcome[checker.HTTPAudit] {
	f.mu.Lock()
	f.hosts = append(f.hosts, host)
	f.mu.Unlock()
	return f.outcome
}

func healthyCert() checker.Outcome[checker.CertificateSummary] {
	return checker.Succeeded(checker.CertificateSummary{DaysRemaining: 90, Valid: true, IssuerOrganization: "Let's Encrypt"})
}

func strongEmail() checker.Outcome[checker.DNSPolicyState] {
	return checker.Succeeded(checker.DNSPolicyState{SPFPresent: true, DMARCPresent: true})
}

func hardenedSite(platform string) checker.Outcome[checker.HTTPAudit] {
	return checker.Succeeded(checker.HTTPAudit{
		Headers:    checker.HeaderAuditState{HSTSPresent: true, NoSniffPresent: true, FrameProtected: true},
		StatusCode: 200,
		Platform:   platform,
	})
}

// staggeredDialer completes port dials after per-port delays; listed ports
// connect, the rest are refused.
type staggeredDialer struct {
	delays map[string]time.Duration
	open   map[string]bool
}

func (d staggeredDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	_, port, _ := net.SplitHostPort(address)
	select {
	case <-time.After(d.delays[port]):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if !d.open[port] {
		return nil, &net.OpError{Op: "dial", Net: network, Err: errRefused}
	}
	client, server := net.Pipe()
	_ = server.Close()
	return client, nil
}

var errRefused = errors.New("connection refused")
