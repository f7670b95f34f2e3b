package posture

import "strings"

// UnknownPlatform keys the advisory shown when no platform was detected.
const UnknownPlatform = "unknown"

var advisories = map[string]string{
	"wordpress": "WordPress sites are the most targeted platform on the web. Most compromises come from outdated plugins and themes rather than core. " +
		"Keep core, plugins and themes on automatic updates, remove anything unused, and put the login page behind MFA and a web application firewall.",
	"shopify": "Shopify manages hosting and platform patching, so risk concentrates in third-party apps and staff accounts. " +
		"Review installed apps and their permissions regularly and enforce two-step authentication for every staff login.",
	"squarespace": "Squarespace handles infrastructure security, leaving account takeover as the main exposure. " +
		"Enable two-factor authentication for all contributors and audit any injected code blocks or third-party scripts.",
	"wix": "Wix operates the hosting stack, so attackers target site owner credentials and installed apps. " +
		"Turn on two-step verification, limit collaborator roles, and review Velo code and marketplace apps for data exposure.",
	"joomla": "Joomla installations are frequently exploited through unpatched extensions. " +
		"Apply security releases promptly, remove unused extensions and templates, and restrict access to the administrator directory.",
	"drupal": "Drupal has a history of critical remote code execution advisories that are exploited within hours of release. " +
		"Subscribe to security advisories, patch core and contributed modules immediately, and keep file permissions locked down.",
	UnknownPlatform: "No common content management platform was identified. Custom or headless stacks still need dependency patching, " +
		"hardened server configuration and regular external testing to stay ahead of opportunistic attacks.",
}

// Advisory returns guidance text for a platform identifier. Unrecognized or
// empty identifiers fall back to the unknown-platform advice.
func Advisory(platform string) string {
	key := strings.ToLower(strings.TrimSpace(platform))
	if text, ok := advisories[key]; ok {
		return text
	}
	return advisories[UnknownPlatform]
}
