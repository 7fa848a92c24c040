package voicelink

import (
	"encoding/json"
	"time"
)

// AudioParams represents a audioParams.
type AudioParams struct {
	Format           string
	OutputFormat     string
	SampleRate       int
	OutputSampleRate int
	Channels         int
	FrameDuration    int
}

// ToolDecl declares a function the gateway may invoke during a session.
type ToolDecl struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ToolCall is a gateway request to invoke a declared function.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Transcript carries recognized user speech or synthesized assistant text.
type Transcript struct {
	Role  string
	Text  string
	Final bool
}

// AudioFrame represents a audioFrame.
type AudioFrame struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

// Config represents a config.
type Config struct {
	GatewayURL      string
	ProtocolVersion int
	AudioParams     AudioParams
	DeviceID        string
	ClientID        string
	AccessToken     string
	Voice           string
	Instructions    string
	Tools           []ToolDecl
	HelloTimeout    time.Duration
}

// ServerError is a fatal error event reported by the gateway.
type ServerError struct {
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	if e.Code == "" {
		return "voicelink server error: " + e.Message
	}
	return "voicelink server error " + e.Code + ": " + e.Message
}

// Callbacks represents a callbacks.
type Callbacks struct {
	OnAudio       func(frame AudioFrame)
	OnInterrupted func()
	OnToolCall    func(call ToolCall)
	OnTranscript  func(tr Transcript)
	OnGoodbye     func()
	OnClosed      func(err error)
	OnError       func(err error)
}
