package scan

import (
	"fmt"
	"strings"

	"github.com/khanhnv2901/seca-posture/internal/checker"
	"github.com/khanhnv2901/seca-posture/internal/domain/posture"
	consts "github.com/khanhnv2901/seca-posture/internal/shared/constants"
)

// Deductions applied by the scoring rules.
const (
	DeductCriticalPort   = 20
	DeductExposedPort    = 10
	DeductTLSMissing     = 20
	DeductTLSExpiring    = 10
	DeductSPFMissing     = 20
	DeductSPFPermissive  = 20
	DeductDMARCMissing   = 30
	DeductDMARCMonitor   = 10
	DeductHSTSMissing    = 10
	DeductNoSniffMissing = 5
	DeductFrameMissing   = 5
)

// Outcomes holds every probe result of one scan.
type Outcomes struct {
	Ports []checker.PortFinding
	TLS   checker.Outcome[checker.CertificateSummary]
	DNS   checker.Outcome[checker.DNSPolicyState]
	HTTP  checker.Outcome[checker.HTTPAudit]
}

// Finding is one scored line. Pass lines carry no deduction.
type Finding struct {
	Line      string
	Pass      bool
	Deduction int
}

func issue(deduction int, format string, args ...any) Finding {
	return Finding{Line: fmt.Sprintf(format, args...), Deduction: deduction}
}

func pass(format string, args ...any) Finding {
	return Finding{Line: fmt.Sprintf(format, args...), Pass: true}
}

// Rule turns the outcomes of one phase into findings.
type Rule func(domain string, o Outcomes) []Finding

// scoringRules run in reporting order: ports, TLS, DNS, HTTP.
var scoringRules = []Rule{
	portRule,
	tlsRule,
	emailRule,
	webRule,
}

// Tally is the folded result of all rules.
type Tally struct {
	Score  int
	Issues []string
	Passes []string
	CMS    string
}

// Score folds the ordered rules over the outcomes, starting at 100 and
// clamping the total into [0, 100].
func Score(domain string, o Outcomes) Tally {
	tally := Tally{
		Score:  posture.MaxScore,
		Issues: []string{},
		Passes: []string{},
	}

	for _, rule := range scoringRules {
		for _, f := range rule(domain, o) {
			if f.Pass {
				tally.Passes = append(tally.Passes, f.Line)
				continue
			}
			tally.Issues = append(tally.Issues, f.Line)
			tally.Score -= f.Deduction
		}
	}

	if o.HTTP.OK() {
		tally.CMS = o.HTTP.Value.Platform
	}
	tally.Score = posture.ClampScore(tally.Score)
	return tally
}

func portRule(_ string, o Outcomes) []Finding {
	var findings []Finding
	services := make([]string, 0, len(o.Ports))

	for _, p := range o.Ports {
		services = append(services, p.Service)
		if !p.Open {
			continue
		}
		if p.Risk == checker.RiskCritical {
			findings = append(findings, issue(DeductCriticalPort,
				"Port %d (%s) is open to the internet (critical risk)", p.Port, p.Service))
			continue
		}
		findings = append(findings, issue(DeductExposedPort,
			"Port %d (%s) is open to the internet (%s risk)", p.Port, p.Service, p.Risk))
	}

	if len(findings) == 0 {
		findings = append(findings, pass("No risky ports exposed (%s)", strings.Join(services, ", ")))
	}
	return findings
}

func tlsRule(_ string, o Outcomes) []Finding {
	if !o.TLS.OK() {
		return []Finding{issue(DeductTLSMissing, "No SSL/TLS certificate could be retrieved on port 443")}
	}

	cert := o.TLS.Value
	switch {
	case !cert.Valid:
		return []Finding{issue(DeductTLSMissing, "SSL/TLS certificate has expired")}
	case cert.DaysRemaining <= consts.TLSSoonExpiryDays:
		return []Finding{issue(DeductTLSExpiring, "SSL/TLS certificate expires in %d days", cert.DaysRemaining)}
	}

	if cert.IssuerOrganization != "" {
		return []Finding{pass("SSL/TLS certificate valid for %d more days (issued by %s)", cert.DaysRemaining, cert.IssuerOrganization)}
	}
	return []Finding{pass("SSL/TLS certificate valid for %d more days", cert.DaysRemaining)}
}

func emailRule(domain string, o Outcomes) []Finding {
	if !o.DNS.OK() {
		return []Finding{issue(0, "DNS lookup failed for %s: email security records could not be checked", domain)}
	}

	state := o.DNS.Value
	findings := make([]Finding, 0, 2)

	// +all overrides presence; a single line and deduction either way.
	switch {
	case state.SPFPermissive:
		findings = append(findings, issue(DeductSPFPermissive,
			"SPF record is permissive (+all): any server may send mail as this domain"))
	case !state.SPFPresent:
		findings = append(findings, issue(DeductSPFMissing,
			"No SPF record: any server can send mail pretending to be this domain"))
	default:
		findings = append(findings, pass("SPF record configured"))
	}

	switch {
	case !state.DMARCPresent:
		findings = append(findings, issue(DeductDMARCMissing,
			"No DMARC record: spoofed mail from this domain will be delivered"))
	case state.DMARCMonitorOnly:
		findings = append(findings, issue(DeductDMARCMonitor,
			"DMARC policy is monitor-only (p=none): spoofed mail is reported but not blocked"))
	default:
		findings = append(findings, pass("DMARC policy enforced"))
	}

	return findings
}

func webRule(domain string, o Outcomes) []Finding {
	if !o.HTTP.OK() {
		return []Finding{issue(0, "Web security audit failed: https://%s could not be reached", domain)}
	}

	headers := o.HTTP.Value.Headers
	findings := make([]Finding, 0, 3)

	if headers.HSTSPresent {
		findings = append(findings, pass("HSTS enabled"))
	} else {
		findings = append(findings, issue(DeductHSTSMissing,
			"Missing HSTS header (Strict-Transport-Security): browsers may connect over plain HTTP"))
	}

	if headers.NoSniffPresent {
		findings = append(findings, pass("MIME-sniffing protection enabled (X-Content-Type-Options)"))
	} else {
		findings = append(findings, issue(DeductNoSniffMissing,
			"Missing X-Content-Type-Options header: browsers may MIME-sniff responses"))
	}

	if headers.FrameProtected {
		findings = append(findings, pass("Clickjacking protection enabled"))
	} else {
		findings = append(findings, issue(DeductFrameMissing,
			"Missing clickjacking protection (X-Frame-Options or CSP frame-ancestors)"))
	}

	return findings
}
