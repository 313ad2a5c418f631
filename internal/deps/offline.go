package deps

import "strings"

// offlineMarkers are the error fragments that indicate the host has no
// usable network path: DNS failures, unreachable or refused
// connections, and broken proxies. Matching is case-insensitive.
var offlineMarkers = []string{
	"name or service not known",
	"temporary failure in name resolution",
	"failed to establish a new connection",
	"no such host is known",
	"nodename nor servname provided",
	"network is unreachable",
	"proxy connection failed",
}

const (
	offlineMessage = "no network connection reachable, installation was skipped"
	timeoutMessage = "network timeout, check the connection and try again later"
)

// offlineHint classifies the captured error text. It returns a canned,
// action-free hint when the failure looks network-related, a distinct
// hint for timeouts, and "" otherwise.
func offlineHint(text string) string {
	lowered := strings.ToLower(text)
	for _, marker := range offlineMarkers {
		if strings.Contains(lowered, marker) {
			return offlineMessage
		}
	}
	if strings.Contains(lowered, "connection timed out") || strings.Contains(lowered, "timed out") {
		return timeoutMessage
	}
	return ""
}
