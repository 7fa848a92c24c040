// Package ambient keeps looping background soundscapes under the
// conversation, swapping tracks with linear crossfades so a remote tool call
// never produces an audible cut.
package ambient

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/aveline-ai/companiond/internal/device"
)

const (
	defaultSampleRate    = 44100
	defaultChannels      = 1
	defaultFrameDuration = 20
	defaultCrossfadeMs   = 1200
)

// Config configures the soundscape output and fade behavior. The ramp tick
// equals the frame duration.
type Config struct {
	SampleRate    int
	Channels      int
	FrameDuration int
	CrossfadeMs   int
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = defaultSampleRate
	}
	if c.Channels <= 0 {
		c.Channels = defaultChannels
	}
	if c.FrameDuration <= 0 {
		c.FrameDuration = defaultFrameDuration
	}
	if c.CrossfadeMs <= 0 {
		c.CrossfadeMs = defaultCrossfadeMs
	}
	return c
}

// Mixer renders two crossfading ambience lanes to the output device. Track
// control is cosmetic: every failure is logged and swallowed, never fatal to
// the conversation.
type Mixer struct {
	cfg     Config
	backend device.Backend
	library Library
	logger  *zap.Logger

	eng    *engine
	loader *loader

	mu          sync.Mutex
	running     bool
	stopped     bool
	initialized bool
	stream      device.OutputStream
	done        chan struct{}
	current     Track
}

// New creates a stopped mixer over the given track library and device
// backend.
func New(cfg Config, library Library, backend device.Backend, logger *zap.Logger) *Mixer {
	cfg = cfg.withDefaults()
	return &Mixer{
		cfg:     cfg,
		backend: backend,
		library: library,
		logger:  logger,
		eng:     newEngine(cfg.CrossfadeMs / cfg.FrameDuration),
		loader:  newLoader(cfg.SampleRate),
	}
}

// Start opens the ambience output device and begins rendering silence.
func (m *Mixer) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return fmt.Errorf("ambient mixer stopped")
	}
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if err := m.backend.Initialize(); err != nil {
		return fmt.Errorf("initialize audio backend: %w", err)
	}

	frameSamples := m.cfg.SampleRate * m.cfg.FrameDuration / 1000
	stream, err := m.backend.OpenOutput(m.cfg.SampleRate, m.cfg.Channels, frameSamples)
	if err != nil {
		_ = m.backend.Terminate()
		return fmt.Errorf("open ambience device: %w", err)
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		_ = stream.Close()
		_ = m.backend.Terminate()
		return fmt.Errorf("ambient mixer stopped")
	}
	m.stream = stream
	m.running = true
	m.initialized = true
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	m.logger.Info("ambient mixer started",
		zap.Int("sample_rate", m.cfg.SampleRate),
		zap.Int("crossfade_ms", m.cfg.CrossfadeMs),
	)

	go m.pump(stream, frameSamples, done)
	return nil
}

// Play crossfades to the named track at the given volume percentage. The
// track already on the active lane only re-ramps. Unknown keys warn and leave
// the mixer untouched.
func (m *Mixer) Play(key string, volume int) {
	tr, ok := m.library.Lookup(key)
	if !ok {
		m.logger.Warn("unknown ambience track", zap.String("sound", key))
		return
	}
	samples, err := m.loader.load(tr)
	if err != nil {
		m.logger.Warn("ambience track load failed",
			zap.String("sound", key),
			zap.Error(err),
		)
		return
	}

	volume = clampVolume(volume)
	m.eng.play(key, samples, float64(volume)/100)

	m.mu.Lock()
	m.current = tr
	m.mu.Unlock()

	m.logger.Info("ambience playing",
		zap.String("sound", key),
		zap.Int("volume", volume),
	)
}

// AdjustVolume ramps the active lane to the given percentage.
func (m *Mixer) AdjustVolume(volume int) {
	volume = clampVolume(volume)
	m.eng.setGain(float64(volume) / 100)
	m.logger.Info("ambience volume", zap.Int("volume", volume))
}

// Stop fades the current track out. The output device stays open.
func (m *Mixer) Stop() {
	m.eng.stop()

	m.mu.Lock()
	m.current = Track{}
	m.mu.Unlock()

	m.logger.Info("ambience stopped")
}

// NowPlaying reports the current track, if any.
func (m *Mixer) NowPlaying() (Track, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, m.current.Key != ""
}

// Shutdown stops rendering and releases the output device. Idempotent.
func (m *Mixer) Shutdown() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.running = false
	stream := m.stream
	m.stream = nil
	initialized := m.initialized
	m.initialized = false
	done := m.done
	m.current = Track{}
	m.mu.Unlock()

	if stream != nil {
		_ = stream.Close()
	}
	if done != nil {
		<-done
	}
	if initialized {
		if err := m.backend.Terminate(); err != nil {
			m.logger.Warn("audio backend terminate failed", zap.Error(err))
		}
	}
	m.logger.Info("ambient mixer shut down")
}

func (m *Mixer) pump(stream device.OutputStream, frameSamples int, done chan struct{}) {
	defer close(done)

	frame := make([]int16, frameSamples)
	for {
		if !m.isRunning() {
			return
		}
		m.eng.mix(frame)
		if err := stream.Write(frame); err != nil {
			if m.isRunning() {
				m.logger.Warn("ambience write failed", zap.Error(err))
			}
			return
		}
	}
}

func (m *Mixer) isRunning() bool {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	return running
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
