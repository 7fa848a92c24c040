// Package protocol defines the JSON envelopes the control plane speaks.
package protocol

// Event is one frame on the /events stream. It keeps a single flat shape so
// UI clients can switch on type without per-type decoding.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	State     string `json:"state,omitempty"`
	Role      string `json:"role,omitempty"`
	Text      string `json:"text,omitempty"`
	Final     bool   `json:"final,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Event type values.
const (
	EventSessionState = "session-state"
	EventSessionFault = "session-fault"
	EventTranscript   = "transcript"
)

// StartRequest is the body of POST /api/session/start.
type StartRequest struct {
	Character string `json:"character,omitempty"`
}
