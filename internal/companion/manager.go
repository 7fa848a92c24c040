// Package companion hosts the conversational contexts the daemon can speak
// as and guards the single live session across them.
package companion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aveline-ai/companiond/internal/ambient"
	"github.com/aveline-ai/companiond/internal/capture"
	"github.com/aveline-ai/companiond/internal/character"
	"github.com/aveline-ai/companiond/internal/config"
	"github.com/aveline-ai/companiond/internal/device"
	"github.com/aveline-ai/companiond/internal/playback"
	"github.com/aveline-ai/companiond/internal/session"
	"github.com/aveline-ai/companiond/internal/storage"
	"github.com/aveline-ai/companiond/internal/tools"
	"github.com/aveline-ai/companiond/pkg/voicelink"
)

// ErrSessionActive reports a start attempt while a conversation is live.
var ErrSessionActive = errors.New("a session is already running")

// ErrUnknownCharacter reports a start attempt for a character id that has no
// card on disk.
var ErrUnknownCharacter = errors.New("unknown character")

// Status describes the manager's current conversation, if any.
type Status struct {
	Active  bool            `json:"active"`
	Session *session.Status `json:"session,omitempty"`
}

// Manager represents a manager.
type Manager struct {
	cfg      config.Config
	logger   *zap.Logger
	backend  device.Backend
	notifier session.Notifier
	catalog  *character.Catalog

	// linkBuilder is swapped for a scripted gateway in tests.
	linkBuilder func(cfg voicelink.Config, cb voicelink.Callbacks) session.Link

	mu    sync.Mutex
	cards []character.Card
	byID  map[string]character.Card
	sess  *session.Session
}

// NewManager scans the character cards and the ambience catalog and prepares
// the session wiring. Missing cards or catalog leave the manager running
// with an empty set so the control plane can still report the problem.
func NewManager(cfg config.Config, backend device.Backend, notifier session.Notifier, logger *zap.Logger) *Manager {
	cards := character.ScanCards(cfg.CharactersDir)
	byID := make(map[string]character.Card, len(cards))
	for _, card := range cards {
		byID[card.ID] = card
	}
	if len(cards) == 0 {
		logger.Warn("no character cards found", zap.String("dir", cfg.CharactersDir))
	}

	catalog, err := character.LoadCatalog(cfg.AmbienceCatalogPath)
	if err != nil {
		logger.Warn("ambience catalog unavailable",
			zap.String("path", cfg.AmbienceCatalogPath),
			zap.Error(err),
		)
		catalog = &character.Catalog{}
	}

	return &Manager{
		cfg:      cfg,
		logger:   logger,
		backend:  backend,
		notifier: notifier,
		catalog:  catalog,
		linkBuilder: func(linkCfg voicelink.Config, cb voicelink.Callbacks) session.Link {
			return voicelink.NewClient(linkCfg, cb, logger)
		},
		cards: cards,
		byID:  byID,
	}
}

// Characters returns the known character cards, sorted by id.
func (m *Manager) Characters() []character.Card {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]character.Card, len(m.cards))
	copy(out, m.cards)
	return out
}

// Tracks returns the ambience catalog entries, sorted by key.
func (m *Manager) Tracks() []ambient.Track {
	return m.catalog.Tracks()
}

// StartSession begins a conversation with the given character. Empty id
// falls back to the configured default, then to the first card. Only one
// session runs at a time; starting over a live one fails with
// ErrSessionActive.
func (m *Manager) StartSession(characterID string) (string, error) {
	m.mu.Lock()
	if m.sess != nil && !m.sess.Status().State.Terminal() {
		m.mu.Unlock()
		return "", ErrSessionActive
	}

	card, err := m.resolveCard(characterID)
	if err != nil {
		m.mu.Unlock()
		return "", err
	}

	sess := m.buildSession(card)
	m.sess = sess
	m.mu.Unlock()

	m.logger.Info("starting session",
		zap.String("session_id", sess.ID()),
		zap.String("character", card.ID),
	)

	go func() {
		if err := sess.Start(context.Background()); err != nil {
			m.logger.Warn("session start failed",
				zap.String("session_id", sess.ID()),
				zap.Error(err),
			)
		}
	}()

	return sess.ID(), nil
}

// StopSession ends the current conversation. It reports false when none is
// running.
func (m *Manager) StopSession() bool {
	sess := m.current()
	if sess == nil {
		return false
	}
	sess.Stop()
	return true
}

// InterruptSession cuts the character off mid-sentence. It reports false
// when no conversation is running.
func (m *Manager) InterruptSession() bool {
	sess := m.current()
	if sess == nil || sess.Status().State.Terminal() {
		return false
	}
	sess.Interrupt()
	return true
}

// SessionStatus executes the sessionStatus method. The last finished
// session stays visible until the next start so the control plane can show
// its outcome.
func (m *Manager) SessionStatus() Status {
	sess := m.current()
	if sess == nil {
		return Status{}
	}
	st := sess.Status()
	return Status{
		Active:  !st.State.Terminal(),
		Session: &st,
	}
}

// Shutdown ends any live conversation.
func (m *Manager) Shutdown() {
	if m.StopSession() {
		m.logger.Info("session stopped for shutdown")
	}
}

func (m *Manager) current() *session.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess
}

func (m *Manager) resolveCard(characterID string) (character.Card, error) {
	id := characterID
	if id == "" {
		id = m.cfg.DefaultCharacter
	}
	if id == "" && len(m.cards) > 0 {
		return m.cards[0], nil
	}
	card, ok := m.byID[id]
	if !ok {
		return character.Card{}, fmt.Errorf("%w: %q", ErrUnknownCharacter, id)
	}
	return card, nil
}

func (m *Manager) buildSession(card character.Card) *session.Session {
	speaker := playback.New(playback.Config{
		SampleRate:    m.cfg.GatewayOutputSampleRate,
		Channels:      m.cfg.GatewayChannels,
		FrameDuration: m.cfg.GatewayFrameDuration,
	}, m.backend, m.logger)

	mixer := ambient.New(ambient.Config{
		SampleRate:    m.cfg.AmbienceSampleRate,
		Channels:      1,
		FrameDuration: m.cfg.GatewayFrameDuration,
		CrossfadeMs:   m.cfg.AmbienceCrossfadeMs,
	}, m.catalog, m.backend, m.logger)

	recent := m.recentDialogue(card.ID)
	recorder := m.newRecorder(card)

	var sess *session.Session
	mic := capture.New(capture.Config{
		SampleRate:    m.cfg.GatewaySampleRate,
		Channels:      m.cfg.GatewayChannels,
		FrameDuration: m.cfg.GatewayFrameDuration,
	}, m.backend, func(pcm []byte) {
		sess.ForwardAudio(pcm)
	}, m.logger)

	newLink := func(cb voicelink.Callbacks) session.Link {
		return m.linkBuilder(m.linkConfig(card, recent), cb)
	}

	sess = session.New(session.Params{
		CharacterID:   card.ID,
		DefaultSound:  card.DefaultSound,
		DefaultVolume: card.DefaultVolume,
	}, session.Deps{
		Microphone: mic,
		Speaker:    speaker,
		Ambience:   mixer,
		Toolbox:    tools.NewDispatcher(mixer, m.logger),
		Recorder:   recorder,
		Notifier:   m.notifier,
		NewLink:    newLink,
	}, m.logger)

	return sess
}

func (m *Manager) linkConfig(card character.Card, recent []character.Dialogue) voicelink.Config {
	return voicelink.Config{
		GatewayURL:      m.cfg.GatewayURL,
		ProtocolVersion: m.cfg.GatewayProtocolVersion,
		AudioParams: voicelink.AudioParams{
			Format:           m.cfg.GatewayAudioFormat,
			OutputFormat:     m.cfg.GatewayAudioFormat,
			SampleRate:       m.cfg.GatewaySampleRate,
			OutputSampleRate: m.cfg.GatewayOutputSampleRate,
			Channels:         m.cfg.GatewayChannels,
			FrameDuration:    m.cfg.GatewayFrameDuration,
		},
		DeviceID:     fallbackID(m.cfg.GatewayDeviceID, "companiond-"+card.ID),
		ClientID:     fallbackID(m.cfg.GatewayClientID, uuid.NewString()),
		AccessToken:  m.cfg.GatewayAccessToken,
		Voice:        card.Voice,
		Instructions: character.BuildInstructions(card, recent),
		Tools:        tools.Declarations(m.catalog.Keys()),
		HelloTimeout: time.Duration(m.cfg.GatewayHelloTimeoutMs) * time.Millisecond,
	}
}

// newRecorder opens a fresh history log for the conversation. Sessions keep
// running without persistence when the log cannot be created.
func (m *Manager) newRecorder(card character.Card) session.Recorder {
	historyUID, err := storage.CreateHistory(m.cfg.ChatHistoryDir, card.ID)
	if err != nil {
		m.logger.Warn("chat history unavailable",
			zap.String("character", card.ID),
			zap.Error(err),
		)
		return nil
	}
	return &historyRecorder{
		baseDir:     m.cfg.ChatHistoryDir,
		characterID: card.ID,
		historyUID:  historyUID,
		name:        card.Name,
	}
}

// recentDialogue pulls the tail of the newest finished history so the
// character can pick the conversation back up.
func (m *Manager) recentDialogue(characterID string) []character.Dialogue {
	list := storage.GetHistoryList(m.cfg.ChatHistoryDir, characterID)
	if len(list) == 0 {
		return nil
	}
	messages, err := storage.GetHistory(m.cfg.ChatHistoryDir, characterID, list[0].UID)
	if err != nil {
		return nil
	}
	out := make([]character.Dialogue, 0, len(messages))
	for _, msg := range messages {
		out = append(out, character.Dialogue{Role: msg.Role, Text: msg.Content})
	}
	return out
}

type historyRecorder struct {
	baseDir     string
	characterID string
	historyUID  string
	name        string
}

func (r *historyRecorder) Append(role string, text string) error {
	msg := storage.HistoryMessage{Role: role, Content: text}
	if role == "assistant" {
		msg.Name = r.name
	}
	return storage.AppendMessage(r.baseDir, r.characterID, r.historyUID, msg)
}

func fallbackID(configured string, generated string) string {
	if configured != "" {
		return configured
	}
	return generated
}
