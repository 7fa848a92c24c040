// Package session owns one live voice conversation: microphone capture in,
// synthesized speech out, remote tool effects, and the lifecycle state the
// rest of the process observes.
package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aveline-ai/companiond/internal/ambient"
	"github.com/aveline-ai/companiond/internal/session/fault"
	"github.com/aveline-ai/companiond/internal/session/fsm"
	"github.com/aveline-ai/companiond/internal/tools"
	"github.com/aveline-ai/companiond/pkg/voicelink"
)

// Link is the duplex gateway channel one session owns.
type Link interface {
	Connect(ctx context.Context) error
	SendAudio(ctx context.Context, pcm []byte) error
	SendToolResult(ctx context.Context, callID string, name string, result string) error
	SendAbort(ctx context.Context) error
	SessionID() string
	Close()
}

// LinkFactory builds the gateway channel with the session's event callbacks
// wired in.
type LinkFactory func(cb voicelink.Callbacks) Link

// Microphone is the capture surface.
type Microphone interface {
	Start(ctx context.Context) error
	Stop()
}

// Speaker is the synthesized-speech playback surface.
type Speaker interface {
	Start(ctx context.Context) error
	Enqueue(pcm []byte, sampleRate int, channels int)
	Interrupt()
	Shutdown()
}

// Ambience is the soundscape surface.
type Ambience interface {
	Start(ctx context.Context) error
	Play(key string, volume int)
	NowPlaying() (ambient.Track, bool)
	Shutdown()
}

// Toolbox applies remote invocations.
type Toolbox interface {
	Dispatch(call voicelink.ToolCall) (tools.Result, bool)
}

// Recorder persists finished dialogue turns.
type Recorder interface {
	Append(role string, text string) error
}

// Notifier fans session events out to observers.
type Notifier interface {
	SessionState(sessionID string, state fsm.State)
	SessionFault(sessionID string, f fault.Fault)
	Transcript(sessionID string, role string, text string, final bool)
}

// Params carries the per-conversation settings a session needs beyond its
// collaborators.
type Params struct {
	CharacterID   string
	DefaultSound  string
	DefaultVolume int
}

// Deps bundles the collaborators one session instance owns or drives.
type Deps struct {
	Microphone Microphone
	Speaker    Speaker
	Ambience   Ambience
	Toolbox    Toolbox
	Recorder   Recorder
	Notifier   Notifier
	NewLink    LinkFactory
}

// Status is an observable snapshot of one session.
type Status struct {
	SessionID   string       `json:"session_id"`
	CharacterID string       `json:"character_id"`
	State       fsm.State    `json:"state"`
	Fault       *fault.Fault `json:"fault,omitempty"`
	Ambience    string       `json:"ambience,omitempty"`
}

// Session is a single-use conversation instance. Closed and error are
// terminal; callers start a new instance to talk again.
type Session struct {
	id     string
	params Params
	logger *zap.Logger

	machine  *fsm.Machine
	mic      Microphone
	speaker  Speaker
	ambience Ambience
	toolbox  Toolbox
	recorder Recorder
	notifier Notifier
	newLink  LinkFactory

	mu     sync.Mutex
	link   Link
	fault  *fault.Fault
	cancel context.CancelFunc

	teardownOnce sync.Once
}

// New creates an idle session.
func New(params Params, deps Deps, logger *zap.Logger) *Session {
	if params.DefaultVolume <= 0 {
		params.DefaultVolume = 50
	}
	return &Session{
		id:       uuid.NewString(),
		params:   params,
		logger:   logger,
		machine:  fsm.New(),
		mic:      deps.Microphone,
		speaker:  deps.Speaker,
		ambience: deps.Ambience,
		toolbox:  deps.Toolbox,
		recorder: deps.Recorder,
		notifier: deps.Notifier,
		newLink:  deps.NewLink,
	}
}

// ID returns the session instance identifier.
func (s *Session) ID() string {
	return s.id
}

// Start acquires the audio devices, connects the gateway, and begins routing
// events. It is a guarded no-op when the session already started, and safe to
// race with Stop: whichever side loses still leaves everything released.
func (s *Session) Start(ctx context.Context) error {
	if !s.machine.TryStart() {
		s.logger.Debug("session start ignored",
			zap.String("session_id", s.id),
			zap.String("state", string(s.machine.State())),
		)
		return nil
	}
	s.notifyState(fsm.StateConnecting)

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	if err := s.speaker.Start(ctx); err != nil {
		return s.failStart(err)
	}
	if err := s.ambience.Start(ctx); err != nil {
		return s.failStart(err)
	}
	if err := s.mic.Start(ctx); err != nil {
		return s.failStart(err)
	}

	link := s.newLink(s.callbacks())
	s.mu.Lock()
	s.link = link
	s.mu.Unlock()

	if err := link.Connect(ctx); err != nil {
		if s.machine.Terminal() {
			// Teardown was requested mid-connect; the connect failure is just
			// the cancellation surfacing. Close here too in case teardown ran
			// before the link existed.
			link.Close()
			s.teardown()
			return nil
		}
		return s.failStart(err)
	}
	if !s.machine.MarkConnected() {
		link.Close()
		s.teardown()
		return nil
	}
	s.notifyState(fsm.StateConnected)

	s.logger.Info("session connected",
		zap.String("session_id", s.id),
		zap.String("character_id", s.params.CharacterID),
		zap.String("gateway_session_id", link.SessionID()),
	)

	if s.params.DefaultSound != "" {
		s.ambience.Play(s.params.DefaultSound, s.params.DefaultVolume)
	}
	return nil
}

// ForwardAudio pushes one captured frame upstream. Frames arriving outside
// the connected state are dropped.
func (s *Session) ForwardAudio(pcm []byte) {
	if s.machine.State() != fsm.StateConnected {
		return
	}
	link := s.currentLink()
	if link == nil {
		return
	}
	if err := link.SendAudio(context.Background(), pcm); err != nil {
		s.logger.Debug("uplink frame dropped", zap.Error(err))
	}
}

// Interrupt flushes local playback and tells the gateway to stop speaking.
func (s *Session) Interrupt() {
	s.speaker.Interrupt()
	if link := s.currentLink(); link != nil {
		if err := link.SendAbort(context.Background()); err != nil {
			s.logger.Warn("abort send failed", zap.Error(err))
		}
	}
	s.logger.Info("session interrupted", zap.String("session_id", s.id))
}

// Stop ends the session and releases every resource. Valid from any state,
// idempotent, and safe to race with an in-progress Start. The terminal state
// is recorded before the connect context is canceled so the start path always
// observes it.
func (s *Session) Stop() {
	closed := s.machine.MarkClosed()

	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	if closed {
		s.notifyState(fsm.StateClosed)
	}
	s.teardown()
}

// Fail classifies an unrecoverable error, records it on the status, and runs
// the same teardown as Stop. Only the first fault wins; the session never
// retries.
func (s *Session) Fail(err error) {
	if !s.machine.MarkError() {
		s.logger.Debug("error after session end", zap.Error(err))
		s.teardown()
		return
	}

	f := fault.Classify(err)
	s.mu.Lock()
	s.fault = &f
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	s.logger.Error("session failed",
		zap.String("session_id", s.id),
		zap.String("kind", string(f.Kind)),
		zap.String("detail", f.Detail),
	)
	s.notifyFault(f)
	s.notifyState(fsm.StateError)
	s.teardown()
}

// Status returns an observable snapshot.
func (s *Session) Status() Status {
	st := Status{
		SessionID:   s.id,
		CharacterID: s.params.CharacterID,
		State:       s.machine.State(),
	}
	s.mu.Lock()
	if s.fault != nil {
		f := *s.fault
		st.Fault = &f
	}
	s.mu.Unlock()
	if tr, ok := s.ambience.NowPlaying(); ok {
		st.Ambience = tr.Description
	}
	return st
}

func (s *Session) callbacks() voicelink.Callbacks {
	return voicelink.Callbacks{
		OnAudio: func(frame voicelink.AudioFrame) {
			s.speaker.Enqueue(frame.PCM, frame.SampleRate, frame.Channels)
		},
		OnInterrupted: func() {
			s.speaker.Interrupt()
		},
		OnToolCall: func(call voicelink.ToolCall) {
			s.handleToolCall(call)
		},
		OnTranscript: func(tr voicelink.Transcript) {
			s.handleTranscript(tr)
		},
		OnGoodbye: func() {
			s.logger.Info("gateway ended the conversation", zap.String("session_id", s.id))
			s.Stop()
		},
		OnClosed: func(err error) {
			s.handleClosed(err)
		},
		OnError: func(err error) {
			s.Fail(err)
		},
	}
}

func (s *Session) handleToolCall(call voicelink.ToolCall) {
	res, ok := s.toolbox.Dispatch(call)
	if !ok {
		return
	}
	link := s.currentLink()
	if link == nil {
		return
	}
	if err := link.SendToolResult(context.Background(), res.ID, res.Name, res.Output); err != nil {
		s.logger.Warn("tool result send failed",
			zap.String("session_id", s.id),
			zap.String("call_id", res.ID),
			zap.Error(err),
		)
	}
}

func (s *Session) handleTranscript(tr voicelink.Transcript) {
	if tr.Final && s.recorder != nil {
		if err := s.recorder.Append(tr.Role, tr.Text); err != nil {
			s.logger.Warn("history append failed", zap.Error(err))
		}
	}
	s.notifyTranscript(tr.Role, tr.Text, tr.Final)
}

func (s *Session) handleClosed(err error) {
	if err == nil || voicelink.IsNormalClose(err) || s.machine.Terminal() {
		s.Stop()
		return
	}
	s.Fail(err)
}

func (s *Session) failStart(err error) error {
	if s.machine.Terminal() {
		// Stop won the race; the acquisition failure is the cancellation.
		s.teardown()
		return nil
	}
	s.Fail(err)
	return err
}

// teardown releases capture, playback, mixer, and channel, in that order.
// Each component swallows and logs its own release failures, so one stuck
// resource never blocks the rest.
func (s *Session) teardown() {
	s.teardownOnce.Do(func() {
		s.mic.Stop()
		s.speaker.Shutdown()
		s.ambience.Shutdown()
		if link := s.currentLink(); link != nil {
			link.Close()
		}
		s.logger.Info("session released", zap.String("session_id", s.id))
	})
}

func (s *Session) currentLink() Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.link
}

func (s *Session) notifyState(state fsm.State) {
	if s.notifier != nil {
		s.notifier.SessionState(s.id, state)
	}
}

func (s *Session) notifyFault(f fault.Fault) {
	if s.notifier != nil {
		s.notifier.SessionFault(s.id, f)
	}
}

func (s *Session) notifyTranscript(role string, text string, final bool) {
	if s.notifier != nil {
		s.notifier.Transcript(s.id, role, text, final)
	}
}
