package checker

import (
	"net/http"
	"strings"
)

// HeaderAuditState records which transport, content and frame protections a
// response carries.
type HeaderAuditState struct {
	HSTSPresent    bool `json:"hsts_present"`
	NoSniffPresent bool `json:"nosniff_present"`
	FrameProtected bool `json:"frame_protected"`
}

// AnalyzeSecurityHeaders checks header presence only; values are not graded.
func AnalyzeSecurityHeaders(headers http.Header) HeaderAuditState {
	return HeaderAuditState{
		HSTSPresent:    headers.Get("Strict-Transport-Security") != "",
		NoSniffPresent: headers.Get("X-Content-Type-Options") != "",
		FrameProtected: headers.Get("X-Frame-Options") != "" || hasFrameAncestors(headers),
	}
}

// hasFrameAncestors reports whether any CSP header sets frame-ancestors.
func hasFrameAncestors(headers http.Header) bool {
	for _, csp := range headers.Values("Content-Security-Policy") {
		for _, directive := range strings.Split(csp, ";") {
			fields := strings.Fields(directive)
			if len(fields) > 0 && strings.EqualFold(fields[0], "frame-ancestors") {
				return true
			}
		}
	}
	return false
}
