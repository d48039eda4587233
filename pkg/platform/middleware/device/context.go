// Package device turns raw User-Agent strings into short labels for the activity log.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

const unknownDevice = "Unknown Device"

// ParseUserAgent returns "<Browser> on <OS>", e.g. "Chrome on Windows 10".
func ParseUserAgent(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return unknownDevice
	}

	ua := useragent.New(raw)
	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}
	if ua.Bot() {
		browser = "Bot " + browser
	}

	os := ua.OSInfo().Name
	if os == "" {
		os = ua.Platform()
	}
	if os == "" {
		os = "Unknown OS"
	}
	if ua.Mobile() && !strings.Contains(os, ua.Platform()) && ua.Platform() != "" {
		os = os + " (" + ua.Platform() + ")"
	}

	return strings.Join(strings.Fields(browser+" on "+os), " ")
}
