package utils

import (
	"fmt"

	"github.com/mssola/user_agent"
)

// SummarizeUserAgent condenses a raw User-Agent header into a short
// human-readable description for audit rows, e.g. "Chrome 120 on Linux"
// or "MoMo IPN client". The raw header is kept elsewhere when needed.
func SummarizeUserAgent(rawUA string) string {
	if rawUA == "" {
		return "Unknown"
	}

	ua := user_agent.New(rawUA)

	if ua.Bot() {
		name, _ := ua.Browser()
		if name != "" {
			return name + " (bot)"
		}
		return "Bot"
	}

	name, version := ua.Browser()
	os := ua.OS()

	switch {
	case name != "" && os != "":
		if version != "" {
			return fmt.Sprintf("%s %s on %s", name, version, os)
		}
		return fmt.Sprintf("%s on %s", name, os)
	case name != "":
		return name
	case os != "":
		return os
	default:
		// Gateway IPN callers and curl-style clients often have opaque
		// UA strings; keep them as-is but bounded.
		if len(rawUA) > 120 {
			return rawUA[:120]
		}
		return rawUA
	}
}
