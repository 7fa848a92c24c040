package voicelink

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	godepsopus "github.com/godeps/opus"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aveline-ai/companiond/internal/transport/voicelink/codec"
	"github.com/aveline-ai/companiond/pkg/audio"
)

const (
	opusMaxFrameDurationMs = 120
	defaultHelloTimeout    = 5 * time.Second
)

// Client represents a client. A client drives exactly one gateway session:
// Connect is called once, and after the connection ends the client is done.
type Client struct {
	cfg       Config
	logger    *zap.Logger
	callbacks Callbacks

	mu sync.Mutex

	conn      *websocket.Conn
	closed    bool
	sessionID string

	protocolVersion int
	helloReady      bool
	helloCh         chan struct{}

	downstream AudioParams
	decoder    *godepsopus.Decoder
	decoderSR  int
	decoderCH  int

	encoder       *audio.OpusEncoder
	encodeScratch []int16
	writeMu       sync.Mutex
}

// NewClient executes the newClient function.
func NewClient(cfg Config, callbacks Callbacks, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg.ProtocolVersion = codec.NormalizeVersion(cfg.ProtocolVersion)
	cfg.AudioParams = normalizeAudioParams(cfg.AudioParams)
	if cfg.HelloTimeout <= 0 {
		cfg.HelloTimeout = defaultHelloTimeout
	}

	var encoder *audio.OpusEncoder
	var encodeScratch []int16
	if cfg.AudioParams.Format == "opus" {
		enc, err := audio.AcquireOpusEncoder(cfg.AudioParams.SampleRate, cfg.AudioParams.Channels, cfg.AudioParams.FrameDuration)
		if err != nil {
			logger.Warn("opus encoder init failed", zap.Error(err))
		} else {
			encoder = enc
			encodeScratch = make([]int16, enc.GetFrameSize()*cfg.AudioParams.Channels)
		}
	}

	client := &Client{
		cfg:             cfg,
		logger:          logger,
		callbacks:       callbacks,
		protocolVersion: cfg.ProtocolVersion,
		helloCh:         make(chan struct{}),
		downstream:      initialDownstreamAudio(cfg.AudioParams),
		encoder:         encoder,
		encodeScratch:   encodeScratch,
	}
	if client.downstream.Format == "opus" {
		if err := client.ensureDecoderLocked(client.downstream.SampleRate, client.downstream.Channels); err != nil {
			logger.Warn("opus decoder init failed", zap.Error(err))
		}
	}
	return client
}

// Connect dials the gateway, performs the hello exchange, and blocks until
// the gateway acknowledges the session or ctx/timeout expires. There is no
// reconnect: a failed or lost connection ends the session.
func (c *Client) Connect(ctx context.Context) error {
	if c.cfg.GatewayURL == "" {
		return errors.New("voicelink gateway url is empty")
	}

	version := c.getProtocolVersion()
	headers := http.Header{}
	headers.Set("Protocol-Version", intToString(version))
	headers.Set("Client-Id", c.cfg.ClientID)
	headers.Set("Device-Id", c.cfg.DeviceID)
	if c.cfg.AccessToken != "" {
		headers.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	}

	c.logger.Info("voicelink connecting",
		zap.String("gateway_url", c.cfg.GatewayURL),
		zap.String("device_id", c.cfg.DeviceID),
		zap.String("client_id", c.cfg.ClientID),
	)

	dialer := websocket.Dialer{}
	conn, _, err := dialer.DialContext(ctx, c.cfg.GatewayURL, headers)
	if err != nil {
		return err
	}
	conn.SetPingHandler(func(appData string) error {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return errors.New("voicelink client closed")
	}
	c.conn = conn
	c.mu.Unlock()

	if err := c.sendHello(ctx); err != nil {
		c.Close()
		return err
	}

	go c.readLoop(conn)

	timer := time.NewTimer(c.cfg.HelloTimeout)
	defer timer.Stop()
	select {
	case <-c.helloCh:
	case <-ctx.Done():
		c.Close()
		return ctx.Err()
	case <-timer.C:
		c.Close()
		return errors.New("voicelink hello not acknowledged")
	}

	c.logger.Info("voicelink connected",
		zap.String("gateway_url", c.cfg.GatewayURL),
		zap.String("session_id", c.SessionID()),
		zap.Int("protocol_version", c.getProtocolVersion()),
	)
	return nil
}

// Close executes the close method.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	encoder := c.encoder
	c.encoder = nil
	c.encodeScratch = nil
	c.mu.Unlock()
	if encoder != nil {
		audio.ReleaseOpusEncoder(encoder)
	}
}

// SendAudio sends one uplink frame of PCM16 audio at the configured rate.
// When the uplink format is opus the frame is encoded before framing.
func (c *Client) SendAudio(ctx context.Context, pcm []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.ready(); err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	version := c.protocolVersion
	encoder := c.encoder
	scratch := c.encodeScratch
	c.mu.Unlock()
	if conn == nil {
		return errors.New("voicelink connection not ready")
	}

	payload := pcm
	if encoder != nil {
		encoded, err := encoder.EncodeWithScratch(pcm, scratch)
		if err != nil {
			return err
		}
		if len(encoded) == 0 {
			return nil
		}
		payload = encoded
	}

	frame := codec.Pack(version, payload)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.BinaryMessage, frame)
}

// SendToolResult acknowledges a tool invocation with its outcome.
func (c *Client) SendToolResult(ctx context.Context, callID string, name string, result string) error {
	if err := c.ready(); err != nil {
		return err
	}
	payload := map[string]any{
		"type":   "tool_result",
		"id":     callID,
		"name":   name,
		"result": result,
	}
	c.attachSessionID(payload)
	return c.sendJSON(ctx, payload)
}

// SendAbort asks the gateway to stop the in-progress response.
func (c *Client) SendAbort(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	payload := map[string]any{
		"type":   "abort",
		"reason": "user_interrupt",
	}
	c.attachSessionID(payload)
	return c.sendJSON(ctx, payload)
}

func (c *Client) sendJSON(ctx context.Context, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("voicelink connection not ready")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(payload)
}

func (c *Client) ready() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("voicelink client closed")
	}
	if c.conn == nil {
		return errors.New("voicelink connection not ready")
	}
	if !c.helloReady {
		return errors.New("voicelink hello not acknowledged")
	}
	return nil
}

func (c *Client) sendHello(ctx context.Context) error {
	audioParams := map[string]any{
		"format":         c.cfg.AudioParams.Format,
		"sample_rate":    c.cfg.AudioParams.SampleRate,
		"channels":       c.cfg.AudioParams.Channels,
		"frame_duration": c.cfg.AudioParams.FrameDuration,
	}
	if c.cfg.AudioParams.OutputFormat != "" {
		audioParams["output_format"] = c.cfg.AudioParams.OutputFormat
	}
	if c.cfg.AudioParams.OutputSampleRate > 0 {
		audioParams["output_sample_rate"] = c.cfg.AudioParams.OutputSampleRate
	}

	payload := map[string]any{
		"type":         "hello",
		"device_id":    c.cfg.DeviceID,
		"version":      c.getProtocolVersion(),
		"transport":    "websocket",
		"audio_params": audioParams,
	}
	if c.cfg.Voice != "" {
		payload["voice"] = c.cfg.Voice
	}
	if c.cfg.Instructions != "" {
		payload["instructions"] = c.cfg.Instructions
	}
	if len(c.cfg.Tools) > 0 {
		payload["tools"] = c.cfg.Tools
	}
	return c.sendJSON(ctx, payload)
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			if c.conn == conn {
				_ = c.conn.Close()
				c.conn = nil
			}
			c.mu.Unlock()
			if closed {
				return
			}
			if c.callbacks.OnClosed != nil {
				c.callbacks.OnClosed(err)
			}
			return
		}

		switch msgType {
		case websocket.TextMessage:
			c.handleTextMessage(data)
		case websocket.BinaryMessage:
			payload, kind, decodeErr := codec.Decode(c.getProtocolVersion(), data)
			if decodeErr != nil {
				c.reportError(decodeErr)
				continue
			}
			if len(payload) == 0 {
				continue
			}
			if kind == codec.PayloadKindCommand {
				c.handleTextMessage(payload)
				continue
			}
			c.handleBinaryFrame(payload)
		}
	}
}

func (c *Client) handleTextMessage(data []byte) {
	var envelope struct {
		Type      string `json:"type"`
		SessionID string `json:"session_id,omitempty"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.reportError(err)
		return
	}
	if envelope.SessionID != "" {
		c.setSessionID(envelope.SessionID)
	}

	switch envelope.Type {
	case "hello":
		c.handleHelloMessage(data)
		return
	}

	var payload struct {
		Type      string          `json:"type"`
		Data      string          `json:"data"`
		Role      string          `json:"role"`
		Text      string          `json:"text"`
		Final     bool            `json:"final"`
		ID        string          `json:"id"`
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
		Code      string          `json:"code"`
		Message   string          `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		c.reportError(err)
		return
	}

	switch payload.Type {
	case "audio":
		raw, err := audio.DecodeTransport(payload.Data)
		if err != nil {
			c.reportError(err)
			return
		}
		if len(raw) == 0 {
			return
		}
		c.handleBinaryFrame(raw)
	case "interrupted":
		if c.callbacks.OnInterrupted != nil {
			c.callbacks.OnInterrupted()
		}
	case "tool_call":
		if payload.Name != "" && c.callbacks.OnToolCall != nil {
			c.callbacks.OnToolCall(ToolCall{ID: payload.ID, Name: payload.Name, Arguments: payload.Arguments})
		}
	case "transcript":
		if payload.Text != "" && c.callbacks.OnTranscript != nil {
			c.callbacks.OnTranscript(Transcript{Role: payload.Role, Text: payload.Text, Final: payload.Final})
		}
	case "goodbye":
		if c.callbacks.OnGoodbye != nil {
			c.callbacks.OnGoodbye()
		}
	case "error":
		c.reportError(&ServerError{Code: payload.Code, Message: payload.Message})
	}
}

func (c *Client) handleHelloMessage(data []byte) {
	var payload struct {
		Type      string `json:"type"`
		SessionID string `json:"session_id,omitempty"`
		Version   int    `json:"version,omitempty"`
		Audio     struct {
			Format       string `json:"format,omitempty"`
			OutputFormat string `json:"output_format,omitempty"`
			SampleRate   int    `json:"sample_rate,omitempty"`
			Channels     int    `json:"channels,omitempty"`
			FrameMs      int    `json:"frame_duration,omitempty"`
		} `json:"audio_params,omitempty"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		c.reportError(err)
		return
	}

	if payload.SessionID != "" {
		c.setSessionID(payload.SessionID)
	}
	if payload.Version > 0 {
		c.setProtocolVersion(payload.Version)
	}

	if payload.Audio.Format != "" || payload.Audio.OutputFormat != "" || payload.Audio.SampleRate > 0 || payload.Audio.Channels > 0 || payload.Audio.FrameMs > 0 {
		c.updateDownstreamAudio(payload.Audio.Format, payload.Audio.OutputFormat, payload.Audio.SampleRate, payload.Audio.Channels, payload.Audio.FrameMs)
	}

	format, sampleRate, channels, frameMs := c.downstreamSnapshot()
	c.logger.Info("voicelink hello acknowledged",
		zap.String("session_id", c.SessionID()),
		zap.Int("protocol_version", c.getProtocolVersion()),
		zap.String("downstream_format", format),
		zap.Int("downstream_sample_rate", sampleRate),
		zap.Int("downstream_channels", channels),
		zap.Int("downstream_frame_duration", frameMs),
	)

	c.markHelloReady()
}

func (c *Client) handleBinaryFrame(frame []byte) {
	if len(frame) == 0 || c.callbacks.OnAudio == nil {
		return
	}

	format, sampleRate, channels, _ := c.downstreamSnapshot()
	switch format {
	case "opus":
		pcm, err := c.decodeOpus(frame, sampleRate, channels)
		if err != nil {
			c.reportError(err)
			return
		}
		if len(pcm) == 0 {
			return
		}
		c.callbacks.OnAudio(AudioFrame{PCM: pcm, SampleRate: sampleRate, Channels: channels})
	case "pcm_s16le", "pcm16", "pcm":
		c.callbacks.OnAudio(AudioFrame{PCM: frame, SampleRate: sampleRate, Channels: channels})
	case "wav":
		samples, sr, ch, err := audio.DecodeWAV(frame)
		if err != nil {
			c.reportError(err)
			return
		}
		c.callbacks.OnAudio(AudioFrame{PCM: audio.Int16SliceToBytesInto(nil, samples), SampleRate: sr, Channels: ch})
	default:
		c.reportError(errors.New("unsupported voicelink audio format: " + format))
	}
}

func (c *Client) decodeOpus(frame []byte, sampleRate int, channels int) ([]byte, error) {
	if sampleRate <= 0 {
		sampleRate = 24000
	}
	if channels <= 0 {
		channels = 1
	}

	c.mu.Lock()
	if err := c.ensureDecoderLocked(sampleRate, channels); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	decoder := c.decoder
	c.mu.Unlock()
	if decoder == nil {
		return nil, errors.New("opus decoder is not initialized")
	}

	maxSamples := sampleRate * opusMaxFrameDurationMs / 1000
	if maxSamples <= 0 {
		maxSamples = 5760
	}
	pcm := make([]int16, maxSamples*channels)
	samplesDecoded, err := decoder.Decode(frame, pcm)
	if err != nil {
		return nil, err
	}
	if samplesDecoded <= 0 {
		return nil, nil
	}
	return audio.Int16SliceToBytesInto(nil, pcm[:samplesDecoded*channels]), nil
}

func (c *Client) attachSessionID(payload map[string]any) {
	if payload == nil {
		return
	}
	sessionID := c.SessionID()
	if sessionID == "" {
		return
	}
	payload["session_id"] = sessionID
}

// SessionID returns the gateway-assigned session identifier, if negotiated.
func (c *Client) SessionID() string {
	c.mu.Lock()
	sessionID := c.sessionID
	c.mu.Unlock()
	return sessionID
}

func (c *Client) setSessionID(sessionID string) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return
	}
	c.mu.Lock()
	c.sessionID = sessionID
	c.mu.Unlock()
}

func (c *Client) getProtocolVersion() int {
	c.mu.Lock()
	version := c.protocolVersion
	c.mu.Unlock()
	return version
}

func (c *Client) setProtocolVersion(version int) {
	normalized := codec.NormalizeVersion(version)
	c.mu.Lock()
	changed := c.protocolVersion != normalized
	c.protocolVersion = normalized
	c.mu.Unlock()
	if changed {
		c.logger.Info("voicelink negotiated protocol version updated", zap.Int("protocol_version", normalized))
	}
}

func (c *Client) markHelloReady() {
	c.mu.Lock()
	if c.helloReady {
		c.mu.Unlock()
		return
	}
	c.helloReady = true
	c.mu.Unlock()
	close(c.helloCh)
}

func (c *Client) updateDownstreamAudio(format string, outputFormat string, sampleRate int, channels int, frameDuration int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resolvedFormat := normalizeAudioFormat(outputFormat)
	if resolvedFormat == "" {
		resolvedFormat = normalizeAudioFormat(format)
	}
	if resolvedFormat == "" {
		resolvedFormat = c.downstream.Format
	}
	if resolvedFormat == "" {
		resolvedFormat = "pcm_s16le"
	}

	if sampleRate <= 0 {
		sampleRate = c.downstream.SampleRate
	}
	if sampleRate <= 0 {
		sampleRate = 24000
	}
	if channels <= 0 {
		channels = c.downstream.Channels
	}
	if channels <= 0 {
		channels = 1
	}
	if frameDuration <= 0 {
		frameDuration = c.downstream.FrameDuration
	}
	if frameDuration <= 0 {
		frameDuration = 20
	}

	c.downstream.Format = resolvedFormat
	c.downstream.SampleRate = sampleRate
	c.downstream.Channels = channels
	c.downstream.FrameDuration = frameDuration

	if resolvedFormat == "opus" {
		if err := c.ensureDecoderLocked(sampleRate, channels); err != nil {
			c.logger.Warn("opus decoder re-init failed", zap.Error(err))
		}
	} else {
		c.decoder = nil
		c.decoderSR = 0
		c.decoderCH = 0
	}
}

func (c *Client) downstreamSnapshot() (format string, sampleRate int, channels int, frameDuration int) {
	c.mu.Lock()
	format = c.downstream.Format
	sampleRate = c.downstream.SampleRate
	channels = c.downstream.Channels
	frameDuration = c.downstream.FrameDuration
	c.mu.Unlock()
	if format == "" {
		format = "pcm_s16le"
	}
	if sampleRate <= 0 {
		sampleRate = 24000
	}
	if channels <= 0 {
		channels = 1
	}
	if frameDuration <= 0 {
		frameDuration = 20
	}
	return format, sampleRate, channels, frameDuration
}

func (c *Client) ensureDecoderLocked(sampleRate int, channels int) error {
	if sampleRate <= 0 {
		sampleRate = 24000
	}
	if channels <= 0 {
		channels = 1
	}
	if c.decoder != nil && c.decoderSR == sampleRate && c.decoderCH == channels {
		return nil
	}
	decoder, err := godepsopus.NewDecoder(sampleRate, channels)
	if err != nil {
		return err
	}
	c.decoder = decoder
	c.decoderSR = sampleRate
	c.decoderCH = channels
	return nil
}

func normalizeAudioParams(params AudioParams) AudioParams {
	params.Format = normalizeAudioFormat(params.Format)
	if params.Format == "" {
		params.Format = "pcm_s16le"
	}
	params.OutputFormat = normalizeAudioFormat(params.OutputFormat)
	if params.SampleRate <= 0 {
		params.SampleRate = 16000
	}
	if params.OutputSampleRate <= 0 {
		params.OutputSampleRate = 24000
	}
	if params.Channels <= 0 {
		params.Channels = 1
	}
	if params.FrameDuration <= 0 {
		params.FrameDuration = 20
	}
	return params
}

func initialDownstreamAudio(params AudioParams) AudioParams {
	downstream := normalizeAudioParams(params)
	if downstream.OutputFormat != "" {
		downstream.Format = downstream.OutputFormat
	}
	downstream.SampleRate = downstream.OutputSampleRate
	downstream.OutputFormat = ""
	downstream.OutputSampleRate = 0
	return downstream
}

func normalizeAudioFormat(format string) string {
	switch strings.TrimSpace(strings.ToLower(format)) {
	case "":
		return ""
	case "opus":
		return "opus"
	case "pcm", "pcm16", "pcm_s16le":
		return "pcm_s16le"
	case "wav":
		return "wav"
	default:
		return strings.TrimSpace(strings.ToLower(format))
	}
}

// IsNormalClose reports whether err is an orderly websocket close from the peer.
func IsNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

func (c *Client) reportError(err error) {
	if c.callbacks.OnError != nil {
		c.callbacks.OnError(err)
	}
}

func intToString(value int) string {
	if value == 0 {
		return "0"
	}
	buf := [20]byte{}
	i := len(buf)
	for value > 0 {
		i--
		buf[i] = byte('0' + value%10)
		value /= 10
	}
	return string(buf[i:])
}
