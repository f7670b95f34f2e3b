package checker

import (
	"net/http"
	"strings"
)

// Platform identifiers returned by IdentifyPlatform.
const (
	PlatformWordPress   = "wordpress"
	PlatformShopify     = "shopify"
	PlatformSquarespace = "squarespace"
	PlatformWix         = "wix"
	PlatformJoomla      = "joomla"
	PlatformDrupal      = "drupal"
)

type platformSignature struct {
	platform    string
	bodyMarkers []string
	headerMatch func(http.Header) bool
}

// platformSignatures is evaluated in order; the first match wins.
var platformSignatures = []platformSignature{
	{
		platform:    PlatformWordPress,
		bodyMarkers: []string{"/wp-content/", "/wp-includes/", "wp-json", "wp-block-", "wpadminbar"},
		headerMatch: func(h http.Header) bool {
			return strings.Contains(strings.ToLower(h.Get("X-Powered-By")), "wp engine")
		},
	},
	{
		platform:    PlatformShopify,
		bodyMarkers: []string{"cdn.shopify.com", "shopify.theme", "shopify-section"},
	},
	{
		platform:    PlatformSquarespace,
		bodyMarkers: []string{"static1.squarespace.com", "squarespace-core"},
		headerMatch: func(h http.Header) bool {
			return strings.EqualFold(strings.TrimSpace(h.Get("Server")), "Squarespace")
		},
	},
	{
		platform:    PlatformWix,
		bodyMarkers: []string{"wixstatic.com", "wix.com", "wix-warmup-data"},
		headerMatch: func(h http.Header) bool {
			return h.Get("X-Wix-Request-Id") != ""
		},
	},
	{
		platform:    PlatformJoomla,
		bodyMarkers: []string{"joomla", "/media/system/css/"},
	},
	{
		platform:    PlatformDrupal,
		bodyMarkers: []string{"drupal", "/sites/default/files"},
	},
}

// IdentifyPlatform maps a lowercased HTML body and the response headers to a
// platform identifier. It is passive and side-effect free.
func IdentifyPlatform(htmlLower string, headers http.Header) (string, bool) {
	if headers == nil {
		headers = http.Header{}
	}

	for _, sig := range platformSignatures {
		for _, marker := range sig.bodyMarkers {
			if strings.Contains(htmlLower, marker) {
				return sig.platform, true
			}
		}
		if sig.headerMatch != nil && sig.headerMatch(headers) {
			return sig.platform, true
		}
	}

	return "", false
}
