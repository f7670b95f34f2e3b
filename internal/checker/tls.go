package checker

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"math"
	"net"
	"strconv"
	"time"

	consts "github.com/khanhnv2901/seca-posture/internal/shared/constants"
	"go.uber.org/zap"
)

// CertificateSummary describes the leaf certificate served on port 443.
type CertificateSummary struct {
	DaysRemaining      int       `json:"days_remaining"`
	Valid              bool      `json:"valid"`
	IssuerOrganization string    `json:"issuer_organization,omitempty"`
	NotAfter           time.Time `json:"not_after"`
}

// TLSProbe inspects certificate health. Verification is disabled on purpose:
// expired and self-signed certificates must still be readable so they can be
// reported.
type TLSProbe struct {
	Timeout time.Duration
	Port    int
	Now     func() time.Time
	Logger  *zap.Logger
}

// Probe performs one TLS handshake against host using host as SNI.
func (p *TLSProbe) Probe(ctx context.Context, host string) Outcome[CertificateSummary] {
	timeout := p.Timeout
	if timeout == 0 {
		timeout = consts.TLSProbeTimeout
	}
	port := p.Port
	if port == 0 {
		port = 443
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config: &tls.Config{
			ServerName:         host,
			InsecureSkipVerify: true, //nolint:gosec // certificate health is reported, not enforced
		},
	}

	address := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := dialer.DialContext(dialCtx, "tcp", address)
	if err != nil {
		logger(p.Logger).Debug("tls_handshake_failed", zap.String("address", address), zap.Error(err))
		return fromError[CertificateSummary](err)
	}
	defer conn.Close()

	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return Failed[CertificateSummary]("unexpected connection type")
	}

	certs := tlsConn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return Failed[CertificateSummary]("no certificate presented")
	}

	return Succeeded(summarizeCertificate(certs[0], p.now()))
}

func (p *TLSProbe) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func summarizeCertificate(cert *x509.Certificate, now time.Time) CertificateSummary {
	days := int(math.Floor(cert.NotAfter.Sub(now).Hours() / 24))

	issuer := cert.Issuer.CommonName
	if len(cert.Issuer.Organization) > 0 {
		issuer = cert.Issuer.Organization[0]
	}

	return CertificateSummary{
		DaysRemaining:      days,
		Valid:              days > 0,
		IssuerOrganization: issuer,
		NotAfter:           cert.NotAfter,
	}
}
