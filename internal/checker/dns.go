package checker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	consts "github.com/khanhnv2901/seca-posture/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-posture/internal/shared/errors"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

// DNSPolicyState captures the email authentication posture of a domain.
type DNSPolicyState struct {
	SPFPresent       bool   `json:"spf_present"`
	SPFPermissive    bool   `json:"spf_permissive"`
	DMARCPresent     bool   `json:"dmarc_present"`
	DMARCMonitorOnly bool   `json:"dmarc_monitor_only"`
	SPFRecord        string `json:"spf_record,omitempty"`
	DMARCRecord      string `json:"dmarc_record,omitempty"`
}

// DNSPolicyProbe resolves SPF at the apex and DMARC at _dmarc.<domain>.
type DNSPolicyProbe struct {
	Timeout  time.Duration
	Resolver TXTResolver
	Logger   *zap.Logger
}

// Probe looks up both records concurrently. Negative answers mean "record
// absent"; only a failure at the apex fails the probe.
func (p *DNSPolicyProbe) Probe(ctx context.Context, host string) Outcome[DNSPolicyState] {
	timeout := p.Timeout
	if timeout == 0 {
		timeout = consts.DNSProbeTimeout
	}
	resolver := p.Resolver
	if resolver == nil {
		resolver = NewDNSClientResolver(nil, timeout)
	}
	log := logger(p.Logger)

	var (
		apexRecords, dmarcRecords []string
		apexErr, dmarcErr         error
		wg                        conc.WaitGroup
	)

	wg.Go(func() {
		lookupCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		apexRecords, apexErr = resolver.LookupTXT(lookupCtx, host)
	})
	wg.Go(func() {
		lookupCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		dmarcRecords, dmarcErr = resolver.LookupTXT(lookupCtx, "_dmarc."+host)
	})
	wg.Wait()

	if apexErr != nil {
		log.Debug("dns_apex_lookup_failed", zap.String("host", host), zap.Error(apexErr))
		if errors.Is(apexErr, sharedErrors.ErrNXDomain) {
			return Failed[DNSPolicyState](fmt.Sprintf("%s does not resolve", host))
		}
		return fromError[DNSPolicyState](apexErr)
	}
	if dmarcErr != nil {
		// NXDOMAIN at _dmarc is the common case for domains without DMARC.
		log.Debug("dns_dmarc_lookup_failed", zap.String("host", host), zap.Error(dmarcErr))
		dmarcRecords = nil
	}

	return Succeeded(EvaluateEmailPolicy(apexRecords, dmarcRecords))
}

// EvaluateEmailPolicy applies the SPF and DMARC rules to raw TXT values.
func EvaluateEmailPolicy(apexTXT, dmarcTXT []string) DNSPolicyState {
	state := DNSPolicyState{}

	for _, txt := range apexTXT {
		value := strings.ToLower(txt)
		if !strings.Contains(value, "v=spf1") {
			continue
		}
		state.SPFPresent = true
		state.SPFRecord = txt
		if strings.Contains(value, "+all") {
			state.SPFPermissive = true
			break
		}
	}

	for _, txt := range dmarcTXT {
		value := strings.ToLower(txt)
		if !strings.Contains(value, "v=dmarc1") {
			continue
		}
		state.DMARCPresent = true
		state.DMARCRecord = txt
		state.DMARCMonitorOnly = strings.Contains(value, "p=none")
		break
	}

	return state
}
