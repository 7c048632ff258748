// Package device turns raw User-Agent strings into short display names for
// activity metadata, so the history view can show "Chrome on Mac OS X"
// instead of a full UA string.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// ParseUserAgent returns a human-readable "Browser on Platform" label.
// Unparseable input still yields a non-empty label rather than an error;
// metadata enrichment is never worth failing a request over.
func ParseUserAgent(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "Unknown Device"
	}

	ua := useragent.New(raw)
	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}

	platform := ua.OS()
	if platform == "" {
		platform = ua.Platform()
	}
	if platform == "" {
		platform = "Unknown Platform"
	}

	return strings.TrimSpace(browser + " on " + platform)
}
