package voicelink

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aveline-ai/companiond/internal/transport/voicelink/codec"
)

func TestInitialDownstreamAudioUsesOutputFormat(t *testing.T) {
	params := AudioParams{
		Format:           "pcm_s16le",
		OutputFormat:     "wav",
		SampleRate:       16000,
		OutputSampleRate: 24000,
		Channels:         1,
	}

	downstream := initialDownstreamAudio(params)
	if downstream.Format != "wav" {
		t.Fatalf("downstream format=%q, want %q", downstream.Format, "wav")
	}
	if downstream.SampleRate != 24000 {
		t.Fatalf("downstream sample_rate=%d, want 24000", downstream.SampleRate)
	}
	if downstream.OutputFormat != "" {
		t.Fatalf("downstream output_format=%q, want empty", downstream.OutputFormat)
	}
}

func TestNormalizeAudioFormat(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "PCM16", want: "pcm_s16le"},
		{in: " pcm ", want: "pcm_s16le"},
		{in: "opus", want: "opus"},
		{in: "WAV", want: "wav"},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		if got := normalizeAudioFormat(tt.in); got != tt.want {
			t.Fatalf("normalizeAudioFormat(%q)=%q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSendAudioBeforeConnectFails(t *testing.T) {
	client := NewClient(Config{GatewayURL: "ws://127.0.0.1:1/ws"}, Callbacks{}, zap.NewNop())
	if err := client.SendAudio(context.Background(), []byte{0x00, 0x01}); err == nil {
		t.Fatal("SendAudio before connect error=nil, want non-nil")
	}
}

func TestConnectNegotiatesHelloAndRoutesEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	serverConn := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		var hello map[string]any
		if err := conn.ReadJSON(&hello); err != nil {
			t.Errorf("read hello failed: %v", err)
			return
		}
		if hello["type"] != "hello" {
			t.Errorf("first message type=%v, want hello", hello["type"])
		}
		if _, ok := hello["audio_params"]; !ok {
			t.Errorf("hello missing audio_params")
		}
		ack := map[string]any{
			"type":       "hello",
			"session_id": "sess-1",
			"version":    2,
			"audio_params": map[string]any{
				"format":      "pcm_s16le",
				"sample_rate": 24000,
				"channels":    1,
			},
		}
		if err := conn.WriteJSON(ack); err != nil {
			t.Errorf("write ack failed: %v", err)
			return
		}
		serverConn <- conn
	}))
	defer srv.Close()

	audioCh := make(chan AudioFrame, 1)
	toolCh := make(chan ToolCall, 1)
	transcriptCh := make(chan Transcript, 1)

	cfg := Config{
		GatewayURL:   "ws" + strings.TrimPrefix(srv.URL, "http"),
		HelloTimeout: 2 * time.Second,
	}
	client := NewClient(cfg, Callbacks{
		OnAudio:      func(f AudioFrame) { audioCh <- f },
		OnToolCall:   func(c ToolCall) { toolCh <- c },
		OnTranscript: func(tr Transcript) { transcriptCh <- tr },
	}, zap.NewNop())
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	if got := client.SessionID(); got != "sess-1" {
		t.Fatalf("SessionID=%q, want %q", got, "sess-1")
	}
	if got := client.getProtocolVersion(); got != 2 {
		t.Fatalf("protocol version=%d, want 2", got)
	}

	conn := <-serverConn

	call := map[string]any{"type": "tool_call", "id": "t1", "name": "set_ambience", "arguments": map[string]any{"action": "play"}}
	if err := conn.WriteJSON(call); err != nil {
		t.Fatalf("write tool_call failed: %v", err)
	}
	select {
	case got := <-toolCh:
		if got.Name != "set_ambience" || got.ID != "t1" {
			t.Fatalf("tool call=%+v, want name set_ambience id t1", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tool call not delivered")
	}

	pcm := []byte{0x01, 0x00, 0x02, 0x00}
	if err := conn.WriteMessage(websocket.BinaryMessage, codec.Pack(codec.Version2, pcm)); err != nil {
		t.Fatalf("write audio frame failed: %v", err)
	}
	select {
	case frame := <-audioCh:
		if string(frame.PCM) != string(pcm) {
			t.Fatalf("audio pcm=%v, want %v", frame.PCM, pcm)
		}
		if frame.SampleRate != 24000 {
			t.Fatalf("audio sample_rate=%d, want 24000", frame.SampleRate)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("audio frame not delivered")
	}

	tr := map[string]any{"type": "transcript", "role": "assistant", "text": "hello there", "final": true}
	if err := conn.WriteJSON(tr); err != nil {
		t.Fatalf("write transcript failed: %v", err)
	}
	select {
	case got := <-transcriptCh:
		if got.Role != "assistant" || got.Text != "hello there" || !got.Final {
			t.Fatalf("transcript=%+v, want final assistant text", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("transcript not delivered")
	}

	if err := client.SendAudio(ctx, pcm); err != nil {
		t.Fatalf("SendAudio returned error: %v", err)
	}
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("server read failed: %v", err)
	}
	if msgType != websocket.BinaryMessage {
		t.Fatalf("server got message type %d, want binary", msgType)
	}
	payload, kind, err := codec.Decode(codec.Version2, data)
	if err != nil {
		t.Fatalf("server decode failed: %v", err)
	}
	if kind != codec.PayloadKindAudio {
		t.Fatalf("server payload kind=%v, want audio", kind)
	}
	if string(payload) != string(pcm) {
		t.Fatalf("server payload=%v, want %v", payload, pcm)
	}
}

func TestConnectHelloTimeout(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// Swallow the hello and never acknowledge.
		_, _, _ = conn.ReadMessage()
		time.Sleep(time.Second)
		_ = conn.Close()
	}))
	defer srv.Close()

	cfg := Config{
		GatewayURL:   "ws" + strings.TrimPrefix(srv.URL, "http"),
		HelloTimeout: 100 * time.Millisecond,
	}
	client := NewClient(cfg, Callbacks{}, zap.NewNop())
	defer client.Close()

	err := client.Connect(context.Background())
	if err == nil {
		t.Fatal("Connect error=nil, want hello timeout")
	}
}
