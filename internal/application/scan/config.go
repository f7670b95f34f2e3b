package scan

import (
	"time"

	"github.com/khanhnv2901/seca-posture/internal/checker"
	"go.uber.org/zap"
)

// Config holds probe settings. Zero values fall back to package defaults.
type Config struct {
	PortTimeout       time.Duration
	TLSTimeout        time.Duration
	DNSTimeout        time.Duration
	HTTPTimeout       time.Duration
	Nameservers       []string
	UseSystemResolver bool
	UserAgent         string
}

// NewDefault wires the real network probes.
func NewDefault(cfg Config, logger *zap.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}

	var resolver checker.TXTResolver
	if cfg.UseSystemResolver {
		sys := &checker.SystemResolver{Timeout: cfg.DNSTimeout}
		if len(cfg.Nameservers) > 0 {
			sys.NameServer = cfg.Nameservers[0]
		}
		resolver = sys
	} else {
		resolver = checker.NewDNSClientResolver(cfg.Nameservers, cfg.DNSTimeout)
	}

	ports := &checker.PortProbe{Timeout: cfg.PortTimeout, Logger: logger}
	tls := &checker.TLSProbe{Timeout: cfg.TLSTimeout, Logger: logger}
	dns := &checker.DNSPolicyProbe{Timeout: cfg.DNSTimeout, Resolver: resolver, Logger: logger}
	web := &checker.HTTPAuditProbe{Timeout: cfg.HTTPTimeout, UserAgent: cfg.UserAgent, Logger: logger}

	return NewOrchestrator(ports, tls, dns, web, append([]Option{WithLogger(logger)}, opts...)...)
}
