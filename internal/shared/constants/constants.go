package constants

import (
	"io/fs"
	"time"
)

const (
	// DefaultFilePerm is the default permission used when creating files.
	DefaultFilePerm fs.FileMode = 0o644
)

const (
	// PortProbeTimeout bounds a single TCP connect attempt.
	PortProbeTimeout = 2500 * time.Millisecond
	// TLSProbeTimeout bounds the TLS handshake on port 443.
	TLSProbeTimeout = 4 * time.Second
	// DNSProbeTimeout bounds each TXT lookup.
	DNSProbeTimeout = 5 * time.Second
	// HTTPProbeTimeout bounds the whole audit GET, redirects included.
	HTTPProbeTimeout = 10 * time.Second
)

const (
	// TLSSoonExpiryDays flags certificates expiring inside this many days.
	TLSSoonExpiryDays = 14
	// HTTPBodyLimitBytes caps how much of the landing page we keep for fingerprinting.
	HTTPBodyLimitBytes = 2 << 20
	// MaxRedirects caps redirect chains followed by the HTTP audit.
	MaxRedirects = 10
	// BrowserUserAgent is sent by the HTTP audit; many edge firewalls drop unlabeled clients.
	BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	// FallbackNameserver is used when no resolv.conf is available.
	FallbackNameserver = "8.8.8.8:53"
)
