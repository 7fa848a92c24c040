//go:build cgo

package device

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudio is the hardware backend used outside of tests. Initialize and
// Terminate are reference counted so independent streams can share it.
type PortAudio struct {
	mu   sync.Mutex
	refs int
}

// NewPortAudio executes the newPortAudio function.
func NewPortAudio() *PortAudio {
	return &PortAudio{}
}

// Initialize executes the initialize method.
func (p *PortAudio) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refs == 0 {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("initialize portaudio: %w", err)
		}
	}
	p.refs++
	return nil
}

// Terminate executes the terminate method.
func (p *PortAudio) Terminate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refs == 0 {
		return nil
	}
	p.refs--
	if p.refs == 0 {
		if err := portaudio.Terminate(); err != nil {
			return fmt.Errorf("terminate portaudio: %w", err)
		}
	}
	return nil
}

// OpenInput opens the default microphone at the requested rate.
func (p *PortAudio) OpenInput(sampleRate, channels, framesPerBuffer int) (InputStream, error) {
	buf := make([]int16, framesPerBuffer*channels)
	stream, err := portaudio.OpenDefaultStream(channels, 0, float64(sampleRate), framesPerBuffer, buf)
	if err != nil {
		return nil, fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("start input stream: %w", err)
	}
	return &paInput{stream: stream, buf: buf}, nil
}

// OpenOutput opens the default speaker at the requested rate.
func (p *PortAudio) OpenOutput(sampleRate, channels, framesPerBuffer int) (OutputStream, error) {
	buf := make([]int16, framesPerBuffer*channels)
	stream, err := portaudio.OpenDefaultStream(0, channels, float64(sampleRate), framesPerBuffer, buf)
	if err != nil {
		return nil, fmt.Errorf("open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("start output stream: %w", err)
	}
	return &paOutput{stream: stream, buf: buf}, nil
}

type paInput struct {
	mu     sync.Mutex
	stream *portaudio.Stream
	buf    []int16
}

func (s *paInput) Read() ([]int16, error) {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()
	if stream == nil {
		return nil, errors.New("input stream closed")
	}
	if err := stream.Read(); err != nil {
		return nil, err
	}
	return s.buf, nil
}

func (s *paInput) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return nil
	}
	_ = s.stream.Stop()
	err := s.stream.Close()
	s.stream = nil
	return err
}

type paOutput struct {
	mu     sync.Mutex
	stream *portaudio.Stream
	buf    []int16
}

func (s *paOutput) Write(frame []int16) error {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()
	if stream == nil {
		return errors.New("output stream closed")
	}
	if len(frame) != len(s.buf) {
		return fmt.Errorf("output frame has %d samples, want %d", len(frame), len(s.buf))
	}
	copy(s.buf, frame)
	return stream.Write()
}

func (s *paOutput) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return nil
	}
	_ = s.stream.Stop()
	err := s.stream.Close()
	s.stream = nil
	return err
}
