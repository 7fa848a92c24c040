// Package capture reads microphone audio and forwards fixed-duration PCM16
// frames to a sink, in order, without buffering.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/aveline-ai/companiond/internal/device"
	"github.com/aveline-ai/companiond/pkg/audio"
)

// fallbackDeviceRate is tried when the device rejects the uplink rate.
const fallbackDeviceRate = 48000

// Sink receives one uplink frame per call. The slice is reused and only
// valid until the sink returns.
type Sink func(pcm []byte)

// Config represents a config.
type Config struct {
	SampleRate    int
	Channels      int
	FrameDuration int
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
	if c.FrameDuration <= 0 {
		c.FrameDuration = 20
	}
	return c
}

// Pipeline owns the input device for the lifetime of one session.
type Pipeline struct {
	cfg     Config
	backend device.Backend
	sink    Sink
	logger  *zap.Logger

	mu          sync.Mutex
	running     bool
	stopped     bool
	initialized bool
	stream      device.InputStream
	done        chan struct{}

	scratch []byte
}

// New executes the new function.
func New(cfg Config, backend device.Backend, sink Sink, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:     cfg.withDefaults(),
		backend: backend,
		sink:    sink,
		logger:  logger,
	}
}

// Start acquires the microphone and begins the read loop. It either owns an
// open device on success or holds nothing on failure.
func (p *Pipeline) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return errors.New("capture pipeline stopped")
	}
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if err := p.backend.Initialize(); err != nil {
		return fmt.Errorf("initialize audio backend: %w", err)
	}

	frameSamples := p.cfg.SampleRate * p.cfg.FrameDuration / 1000
	stream, resampler, err := p.openInput(frameSamples)
	if err != nil {
		_ = p.backend.Terminate()
		return err
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		_ = stream.Close()
		if resampler != nil {
			resampler.Close()
		}
		_ = p.backend.Terminate()
		return errors.New("capture pipeline stopped")
	}
	p.stream = stream
	p.running = true
	p.initialized = true
	p.done = make(chan struct{})
	done := p.done
	p.mu.Unlock()

	p.logger.Info("capture started",
		zap.Int("sample_rate", p.cfg.SampleRate),
		zap.Int("channels", p.cfg.Channels),
		zap.Int("frame_duration", p.cfg.FrameDuration),
		zap.Bool("resampling", resampler != nil),
	)

	go p.loop(ctx, stream, resampler, frameSamples, done)
	return nil
}

// Stop releases the microphone. It is idempotent, safe to call before or
// during Start, and returns only after the read loop has exited.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.running = false
	stream := p.stream
	p.stream = nil
	initialized := p.initialized
	p.initialized = false
	done := p.done
	p.mu.Unlock()

	if stream != nil {
		_ = stream.Close()
	}
	if done != nil {
		<-done
	}
	if initialized {
		if err := p.backend.Terminate(); err != nil {
			p.logger.Warn("audio backend terminate failed", zap.Error(err))
		}
	}
	p.logger.Info("capture stopped")
}

func (p *Pipeline) openInput(frameSamples int) (device.InputStream, *audio.StreamResampler, error) {
	stream, err := p.backend.OpenInput(p.cfg.SampleRate, p.cfg.Channels, frameSamples)
	if err == nil {
		return stream, nil, nil
	}
	openErr := err

	fallbackFrames := fallbackDeviceRate * p.cfg.FrameDuration / 1000
	stream, fallbackErr := p.backend.OpenInput(fallbackDeviceRate, p.cfg.Channels, fallbackFrames)
	if fallbackErr != nil {
		return nil, nil, fmt.Errorf("open input device: %w", openErr)
	}
	resampler, err := audio.NewStreamResampler(fallbackDeviceRate, p.cfg.SampleRate)
	if err != nil {
		_ = stream.Close()
		return nil, nil, fmt.Errorf("create capture resampler: %w", err)
	}
	p.logger.Info("capture device rate fallback",
		zap.Int("device_rate", fallbackDeviceRate),
		zap.Int("uplink_rate", p.cfg.SampleRate),
		zap.Error(openErr),
	)
	return stream, resampler, nil
}

func (p *Pipeline) loop(ctx context.Context, stream device.InputStream, resampler *audio.StreamResampler, frameSamples int, done chan struct{}) {
	defer close(done)
	defer func() {
		if resampler != nil {
			resampler.Close()
		}
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		if !p.isRunning() {
			return
		}

		frame, err := stream.Read()
		if err != nil {
			if p.isRunning() {
				p.logger.Warn("capture read failed", zap.Error(err))
			}
			return
		}

		if resampler == nil {
			p.emit(frame)
			continue
		}
		if err := resampler.AppendPCM(frame); err != nil {
			p.logger.Warn("capture resample failed", zap.Error(err))
			return
		}
		for {
			out, ok := resampler.PopFrame(frameSamples)
			if !ok {
				break
			}
			p.emit(out)
			audio.ReleaseInt16(out)
		}
	}
}

func (p *Pipeline) emit(samples []int16) {
	if p.sink == nil {
		return
	}
	p.scratch = audio.Int16SliceToBytesInto(p.scratch, samples)
	p.sink(p.scratch)
}

func (p *Pipeline) isRunning() bool {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()
	return running
}
