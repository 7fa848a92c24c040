// Package playback schedules synthesized speech for gapless output on the
// speaker. Chunks are placed back to back on a sample clock; interruption
// drops everything in flight and resets the schedule.
package playback

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/aveline-ai/companiond/internal/device"
	"github.com/aveline-ai/companiond/pkg/audio"
)

// Config represents a config.
type Config struct {
	SampleRate    int
	Channels      int
	FrameDuration int
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = 24000
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
	if c.FrameDuration <= 0 {
		c.FrameDuration = 20
	}
	return c
}

// Scheduler owns the voice output device for the lifetime of one session.
type Scheduler struct {
	cfg     Config
	backend device.Backend
	logger  *zap.Logger

	clock *audio.Clock
	tl    timeline

	mu          sync.Mutex
	running     bool
	stopped     bool
	initialized bool
	stream      device.OutputStream
	done        chan struct{}

	resampler     *audio.StreamResampler
	resamplerRate int
}

// New executes the new function.
func New(cfg Config, backend device.Backend, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Scheduler{
		cfg:     cfg,
		backend: backend,
		logger:  logger,
		clock:   audio.NewClock(cfg.SampleRate),
	}
}

// Start acquires the speaker and begins the render loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("playback scheduler stopped")
	}
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.backend.Initialize(); err != nil {
		return fmt.Errorf("initialize audio backend: %w", err)
	}

	frameSamples := s.cfg.SampleRate * s.cfg.FrameDuration / 1000
	stream, err := s.backend.OpenOutput(s.cfg.SampleRate, s.cfg.Channels, frameSamples)
	if err != nil {
		_ = s.backend.Terminate()
		return fmt.Errorf("open output device: %w", err)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		_ = stream.Close()
		_ = s.backend.Terminate()
		return fmt.Errorf("playback scheduler stopped")
	}
	s.stream = stream
	s.running = true
	s.initialized = true
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	s.logger.Info("playback started",
		zap.Int("sample_rate", s.cfg.SampleRate),
		zap.Int("channels", s.cfg.Channels),
		zap.Int("frame_duration", s.cfg.FrameDuration),
	)

	go s.pump(stream, frameSamples, done)
	return nil
}

// Enqueue decodes one audio event and schedules it seamlessly after the
// chunk currently in flight. Frames at a foreign sample rate are adapted to
// the playback rate first.
func (s *Scheduler) Enqueue(pcm []byte, sampleRate int, channels int) {
	if len(pcm) == 0 {
		return
	}
	samples := audio.BytesToInt16Slice(pcm)
	if channels > 1 {
		samples = audio.DownmixMono(samples, channels)
	}
	if sampleRate > 0 && sampleRate != s.cfg.SampleRate {
		s.enqueueResampled(samples, sampleRate)
		return
	}
	s.tl.schedule(samples, s.clock.Now())
}

func (s *Scheduler) enqueueResampled(samples []int16, sampleRate int) {
	s.mu.Lock()
	if s.resampler == nil || s.resamplerRate != sampleRate {
		if s.resampler != nil {
			s.resampler.Close()
		}
		r, err := audio.NewStreamResampler(sampleRate, s.cfg.SampleRate)
		if err != nil {
			s.mu.Unlock()
			s.logger.Warn("playback resampler init failed", zap.Error(err))
			return
		}
		s.resampler = r
		s.resamplerRate = sampleRate
		s.logger.Info("playback adapting sample rate",
			zap.Int("frame_rate", sampleRate),
			zap.Int("playback_rate", s.cfg.SampleRate),
		)
	}
	resampler := s.resampler
	if err := resampler.AppendPCM(samples); err != nil {
		s.mu.Unlock()
		s.logger.Warn("playback resample failed", zap.Error(err))
		return
	}
	frameSamples := s.cfg.SampleRate * s.cfg.FrameDuration / 1000
	var blocks [][]int16
	for {
		block, ok := resampler.PopFrame(frameSamples)
		if !ok {
			break
		}
		blocks = append(blocks, block)
	}
	s.mu.Unlock()

	for _, block := range blocks {
		copied := make([]int16, len(block))
		copy(copied, block)
		audio.ReleaseInt16(block)
		s.tl.schedule(copied, s.clock.Now())
	}
}

// Interrupt drops all speech in flight and resets the schedule so the next
// chunk starts immediately. Already-rendered audio is not recalled.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	if s.resampler != nil {
		s.resampler.Close()
		s.resampler = nil
		s.resamplerRate = 0
	}
	s.mu.Unlock()

	s.tl.interrupt(s.clock.Now())
	s.logger.Info("playback interrupted")
}

// Pending reports how many chunks are still scheduled.
func (s *Scheduler) Pending() int {
	return s.tl.pending()
}

// Shutdown stops rendering and releases the speaker. Idempotent.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.running = false
	stream := s.stream
	s.stream = nil
	initialized := s.initialized
	s.initialized = false
	done := s.done
	resampler := s.resampler
	s.resampler = nil
	s.mu.Unlock()

	s.tl.interrupt(s.clock.Now())
	if resampler != nil {
		resampler.Close()
	}
	if stream != nil {
		_ = stream.Close()
	}
	if done != nil {
		<-done
	}
	if initialized {
		if err := s.backend.Terminate(); err != nil {
			s.logger.Warn("audio backend terminate failed", zap.Error(err))
		}
	}
	s.logger.Info("playback stopped")
}

func (s *Scheduler) pump(stream device.OutputStream, frameSamples int, done chan struct{}) {
	defer close(done)

	frame := make([]int16, frameSamples)
	for {
		if !s.isRunning() {
			return
		}
		from := s.clock.Now()
		s.tl.render(frame, from)
		if err := stream.Write(frame); err != nil {
			if s.isRunning() {
				s.logger.Warn("playback write failed", zap.Error(err))
			}
			return
		}
		s.clock.Advance(frameSamples)
	}
}

func (s *Scheduler) isRunning() bool {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	return running
}
