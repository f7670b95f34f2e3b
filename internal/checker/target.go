package checker

import (
	"fmt"
	"net"
	"strings"

	sharedErrors "github.com/khanhnv2901/seca-posture/internal/shared/errors"
	"golang.org/x/net/idna"
)

// Domain is a normalized hostname: no scheme, no leading www., no path or
// port, lowercase ASCII. Every probe resolves against it.
type Domain string

func (d Domain) String() string {
	return string(d)
}

// NormalizeDomain turns raw user input into a Domain.
// This handles various input formats:
//   - example.com
//   - https://www.example.com/pricing
//   - HTTP://Example.com:8443/?q=1
//   - bücher.example
func NormalizeDomain(raw string) (Domain, error) {
	host := strings.TrimSpace(raw)

	// Remove common protocols
	host = trimPrefixFold(host, "https://")
	host = trimPrefixFold(host, "http://")
	host = trimPrefixFold(host, "www.")

	// Remove path, query and fragment
	if idx := strings.IndexAny(host, "/?#"); idx >= 0 {
		host = host[:idx]
	}

	// Remove port
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return "", fmt.Errorf("%w: %q has no hostname", sharedErrors.ErrInvalidDomain, raw)
	}

	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", sharedErrors.ErrInvalidDomain, raw, err)
	}
	if ascii == "" {
		return "", fmt.Errorf("%w: %q has no hostname", sharedErrors.ErrInvalidDomain, raw)
	}

	return Domain(ascii), nil
}

func trimPrefixFold(s, prefix string) string {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):]
	}
	return s
}
