// Package voicelink provides a duplex websocket client for the VoiceLink
// conversational audio gateway.
//
// It supports VoiceLink protocol v1/v2/v3 binary framing, hello/session
// negotiation, tool invocation round-trips, and downstream audio decoding.
package voicelink
