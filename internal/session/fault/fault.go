// Package fault maps raw session failures onto a small set of actionable
// categories. Every classified fault is terminal: the session tears down and
// the caller may start a new one.
package fault

import "strings"

// Kind names one failure category.
type Kind string

const (
	KindPermissionDenied  Kind = "permission-denied"
	KindDeviceMissing     Kind = "device-missing"
	KindInvalidCredential Kind = "invalid-credential"
	KindQuotaExceeded     Kind = "quota-exceeded"
	KindTimeout           Kind = "timeout"
	KindServerFault       Kind = "server-fault"
	KindUnknown           Kind = "unknown"
)

// Fault is one classified session failure with a ready-to-display message.
type Fault struct {
	Kind     Kind   `json:"kind"`
	Message  string `json:"message"`
	Detail   string `json:"detail,omitempty"`
	Terminal bool   `json:"terminal"`
}

// rules are evaluated in precedence order: device signals first, then
// credential, quota, timeout, and server markers. First match wins.
var rules = []struct {
	kind    Kind
	message string
	markers []string
}{
	{
		kind:    KindPermissionDenied,
		message: "Microphone access was denied. Grant audio permission and start again.",
		markers: []string{"permission denied", "access denied", "not permitted"},
	},
	{
		kind:    KindDeviceMissing,
		message: "No usable audio device was found. Connect one and start again.",
		markers: []string{"no default input", "no default output", "no such device", "device unavailable", "device not found", "no device"},
	},
	{
		kind:    KindInvalidCredential,
		message: "The voice gateway rejected the credentials. Check the access token and configured model.",
		markers: []string{"401", "unauthorized", "api key", "403", "forbidden", "not found", "invalid token"},
	},
	{
		kind:    KindQuotaExceeded,
		message: "The voice service quota is exhausted. Try again later.",
		markers: []string{"429", "quota", "rate limit", "resource exhausted", "too many requests"},
	},
	{
		kind:    KindTimeout,
		message: "The connection timed out. Check the network and start again.",
		markers: []string{"timeout", "timed out", "deadline exceeded"},
	},
	{
		kind:    KindServerFault,
		message: "The voice service reported an internal fault. Try again later.",
		markers: []string{"500", "502", "503", "504", "internal", "unavailable", "server error", "bad gateway"},
	},
}

// Classify maps a raw failure onto its category. The diagnostic text is
// carried through unchanged.
func Classify(err error) Fault {
	if err == nil {
		return Fault{
			Kind:     KindUnknown,
			Message:  "The session ended unexpectedly.",
			Terminal: true,
		}
	}

	detail := err.Error()
	needle := strings.ToLower(detail)
	for _, rule := range rules {
		for _, marker := range rule.markers {
			if strings.Contains(needle, marker) {
				return Fault{
					Kind:     rule.kind,
					Message:  rule.message,
					Detail:   detail,
					Terminal: true,
				}
			}
		}
	}
	return Fault{
		Kind:     KindUnknown,
		Message:  "The session ended unexpectedly.",
		Detail:   detail,
		Terminal: true,
	}
}
