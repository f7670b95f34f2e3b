package checker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	consts "github.com/khanhnv2901/seca-posture/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-posture/internal/shared/errors"
	"github.com/miekg/dns"
)

// TXTResolver returns the TXT values published at name. A name that exists
// but has no TXT data yields an empty slice and a nil error.
type TXTResolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// DNSClientResolver talks to nameservers directly so NXDOMAIN can be told
// apart from an empty answer.
type DNSClientResolver struct {
	Nameservers []string // host:port
	Timeout     time.Duration
}

// NewDNSClientResolver uses the given nameservers, or the system resolv.conf
// when none are provided.
func NewDNSClientResolver(nameservers []string, timeout time.Duration) *DNSClientResolver {
	servers := make([]string, 0, len(nameservers))
	for _, ns := range nameservers {
		if ns == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(ns); err != nil {
			ns = net.JoinHostPort(ns, "53")
		}
		servers = append(servers, ns)
	}

	if len(servers) == 0 {
		if cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf"); err == nil {
			for _, s := range cfg.Servers {
				servers = append(servers, net.JoinHostPort(s, cfg.Port))
			}
		}
	}
	if len(servers) == 0 {
		servers = []string{consts.FallbackNameserver}
	}

	return &DNSClientResolver{Nameservers: servers, Timeout: timeout}
}

// LookupTXT queries each nameserver in turn until one gives an authoritative
// answer (NOERROR or NXDOMAIN).
func (r *DNSClientResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), dns.TypeTXT)
	msg.RecursionDesired = true

	lastErr := fmt.Errorf("no nameservers configured")
	for _, server := range r.Nameservers {
		resp, err := r.exchange(ctx, msg, server)
		if err != nil {
			lastErr = fmt.Errorf("query %s via %s: %w", name, server, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		switch resp.Rcode {
		case dns.RcodeSuccess:
			return txtValues(resp), nil
		case dns.RcodeNameError:
			return nil, fmt.Errorf("%s: %w", name, sharedErrors.ErrNXDomain)
		default:
			lastErr = fmt.Errorf("query %s via %s: %s", name, server, dns.RcodeToString[resp.Rcode])
		}
	}

	return nil, lastErr
}

func (r *DNSClientResolver) exchange(ctx context.Context, msg *dns.Msg, server string) (*dns.Msg, error) {
	timeout := r.Timeout
	if timeout == 0 {
		timeout = consts.DNSProbeTimeout
	}

	client := &dns.Client{Timeout: timeout}
	resp, _, err := client.ExchangeContext(ctx, msg, server)
	if err != nil {
		return nil, err
	}

	// Large SPF/verification TXT sets often exceed 512 bytes.
	if resp.Truncated {
		tcpClient := &dns.Client{Net: "tcp", Timeout: timeout}
		resp, _, err = tcpClient.ExchangeContext(ctx, msg, server)
		if err != nil {
			return nil, err
		}
	}

	return resp, nil
}

func txtValues(resp *dns.Msg) []string {
	values := make([]string, 0, len(resp.Answer))
	for _, rr := range resp.Answer {
		if txt, ok := rr.(*dns.TXT); ok {
			// Character-strings of one record are concatenated without a separator.
			values = append(values, strings.Join(txt.Txt, ""))
		}
	}
	return values
}

// SystemResolver wraps net.Resolver. net.Resolver reports NXDOMAIN and an
// empty TXT answer the same way, so a not-found TXT lookup is followed by
// existence checks (A/AAAA, MX, NS). A name that owns none of those is
// treated as NXDOMAIN.
type SystemResolver struct {
	Timeout    time.Duration
	NameServer string // Optional custom nameserver
}

// LookupTXT implements TXTResolver.
func (s *SystemResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	resolver := s.resolver()
	// Fully qualified so the resolv.conf search list is never applied.
	fqdn := dns.Fqdn(name)

	records, err := resolver.LookupTXT(ctx, fqdn)
	if err == nil {
		return records, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	exists, err := nameExists(ctx, resolver, fqdn)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", name, sharedErrors.ErrNXDomain)
	}
	return []string{}, nil
}

func (s *SystemResolver) resolver() *net.Resolver {
	resolver := &net.Resolver{
		PreferGo: true,
	}

	// If custom nameserver provided, use it
	if s.NameServer != "" {
		dialer := &net.Dialer{
			Timeout: s.Timeout,
		}
		nameserver := s.NameServer
		if _, _, err := net.SplitHostPort(nameserver); err != nil {
			nameserver = net.JoinHostPort(nameserver, "53")
		}
		resolver.Dial = func(ctx context.Context, network, address string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, nameserver)
		}
	}
	return resolver
}

// nameExists reports whether fqdn owns an address, MX or NS record. A lookup
// error other than not-found is returned when no lookup proved existence.
func nameExists(ctx context.Context, resolver *net.Resolver, fqdn string) (bool, error) {
	lookups := []func() error{
		func() error { _, err := resolver.LookupHost(ctx, fqdn); return err },
		func() error { _, err := resolver.LookupMX(ctx, fqdn); return err },
		func() error { _, err := resolver.LookupNS(ctx, fqdn); return err },
	}

	var lastErr error
	for _, lookup := range lookups {
		err := lookup()
		if err == nil {
			return true, nil
		}
		if !isNotFound(err) {
			lastErr = err
		}
	}
	if lastErr != nil {
		return false, lastErr
	}
	return false, nil
}

func isNotFound(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}
