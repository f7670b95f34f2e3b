package checker

import (
	"context"
	"net"
	"strconv"
	"time"

	consts "github.com/khanhnv2901/seca-posture/internal/shared/constants"
	"github.com/sourcegraph/conc/iter"
	"go.uber.org/zap"
)

// RiskTier classifies how dangerous an exposed service is.
type RiskTier string

const (
	RiskMedium   RiskTier = "medium"
	RiskHigh     RiskTier = "high"
	RiskCritical RiskTier = "critical"
)

// PortSpec describes one catalog entry.
type PortSpec struct {
	Port    int
	Service string
	Risk    RiskTier
}

// PortFinding is the per-port result of a scan.
type PortFinding struct {
	Port    int      `json:"port"`
	Service string   `json:"service"`
	Risk    RiskTier `json:"risk"`
	Open    bool     `json:"open"`
}

// DefaultPortCatalog returns the ports every scan probes, in reporting order.
func DefaultPortCatalog() []PortSpec {
	return []PortSpec{
		{Port: 21, Service: "FTP", Risk: RiskHigh},
		{Port: 22, Service: "SSH", Risk: RiskMedium},
		{Port: 3389, Service: "RDP", Risk: RiskCritical},
		{Port: 3306, Service: "MySQL", Risk: RiskCritical},
		{Port: 5432, Service: "PostgreSQL", Risk: RiskCritical},
	}
}

// ContextDialer is satisfied by *net.Dialer.
type ContextDialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// PortProbe tests TCP reachability of single ports.
type PortProbe struct {
	Timeout time.Duration
	Dialer  ContextDialer
	Logger  *zap.Logger
}

// Probe reports whether host:port accepted a TCP connection. Refused,
// filtered and timed out connections all count as closed; there is no retry.
func (p *PortProbe) Probe(ctx context.Context, host string, port int) bool {
	timeout := p.Timeout
	if timeout == 0 {
		timeout = consts.PortProbeTimeout
	}

	dialer := p.Dialer
	if dialer == nil {
		dialer = &net.Dialer{}
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	address := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := dialer.DialContext(dialCtx, "tcp", address)
	if err != nil {
		logger(p.Logger).Debug("port_closed",
			zap.String("address", address),
			zap.Bool("timeout", isTimeout(err)),
			zap.Error(err),
		)
		return false
	}
	_ = conn.Close()
	return true
}

// ScanCatalog probes every catalog entry concurrently. Findings come back in
// catalog order no matter which dial finishes first.
func (p *PortProbe) ScanCatalog(ctx context.Context, host string, catalog []PortSpec) []PortFinding {
	if len(catalog) == 0 {
		return []PortFinding{}
	}

	mapper := iter.Mapper[PortSpec, PortFinding]{MaxGoroutines: len(catalog)}
	return mapper.Map(catalog, func(spec *PortSpec) PortFinding {
		return PortFinding{
			Port:    spec.Port,
			Service: spec.Service,
			Risk:    spec.Risk,
			Open:    p.Probe(ctx, host, spec.Port),
		}
	})
}

func logger(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
