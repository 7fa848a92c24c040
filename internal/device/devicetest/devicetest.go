// Package devicetest provides an in-memory audio backend for tests.
// Streams pace themselves like real hardware: reads of synthetic silence and
// writes sleep for the frame's duration so render loops do not spin hot.
package devicetest

import (
	"errors"
	"sync"
	"time"

	"github.com/aveline-ai/companiond/internal/device"
)

// Backend is a scripted stand-in for the hardware backend.
type Backend struct {
	mu sync.Mutex

	InitErr       error
	OpenInputErr  error
	OpenOutputErr error

	// FailFirstInput, when set, fails only the first OpenInput call.
	// Later calls succeed, which exercises rate-fallback paths.
	FailFirstInput error

	// InputFrames are returned one per Read call; after they run out Read
	// returns silence frames until the stream is closed.
	InputFrames [][]int16

	inits   int
	terms   int
	inputs  []*Input
	outputs []*Output
}

// Input is a scripted microphone stream.
type Input struct {
	mu     sync.Mutex
	frames [][]int16
	size   int
	pace   time.Duration
	closed bool
	reads  int
}

// Output records every frame written to it.
type Output struct {
	mu     sync.Mutex
	size   int
	rate   int
	closed bool
	frames [][]int16
}

// Initialize executes the initialize method.
func (b *Backend) Initialize() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.InitErr != nil {
		return b.InitErr
	}
	b.inits++
	return nil
}

// Terminate executes the terminate method.
func (b *Backend) Terminate() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.terms++
	return nil
}

// OpenInput returns a scripted input stream or the configured error.
func (b *Backend) OpenInput(sampleRate, channels, framesPerBuffer int) (device.InputStream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.OpenInputErr != nil {
		return nil, b.OpenInputErr
	}
	if b.FailFirstInput != nil {
		err := b.FailFirstInput
		b.FailFirstInput = nil
		return nil, err
	}
	pace := time.Duration(0)
	if sampleRate > 0 {
		pace = time.Duration(framesPerBuffer) * time.Second / time.Duration(sampleRate)
	}
	in := &Input{frames: b.InputFrames, size: framesPerBuffer * channels, pace: pace}
	b.inputs = append(b.inputs, in)
	return in, nil
}

// OpenOutput returns a recording output stream or the configured error.
func (b *Backend) OpenOutput(sampleRate, channels, framesPerBuffer int) (device.OutputStream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.OpenOutputErr != nil {
		return nil, b.OpenOutputErr
	}
	out := &Output{size: framesPerBuffer * channels, rate: sampleRate}
	b.outputs = append(b.outputs, out)
	return out, nil
}

// Inputs returns every input stream opened so far.
func (b *Backend) Inputs() []*Input {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Input(nil), b.inputs...)
}

// Outputs returns every output stream opened so far.
func (b *Backend) Outputs() []*Output {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Output(nil), b.outputs...)
}

// OpenStreams reports how many opened streams are not yet closed.
func (b *Backend) OpenStreams() int {
	open := 0
	for _, in := range b.Inputs() {
		if !in.Closed() {
			open++
		}
	}
	for _, out := range b.Outputs() {
		if !out.Closed() {
			open++
		}
	}
	return open
}

// Terminations reports how many times Terminate was called.
func (b *Backend) Terminations() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.terms
}

// Read returns the next scripted frame, or silence once the script is done.
// Silence reads sleep for one frame duration to emulate hardware pacing.
func (s *Input) Read() ([]int16, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errors.New("input stream closed")
	}
	if s.reads < len(s.frames) {
		frame := s.frames[s.reads]
		s.reads++
		s.mu.Unlock()
		return frame, nil
	}
	s.reads++
	size := s.size
	pace := s.pace
	s.mu.Unlock()

	time.Sleep(pace)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("input stream closed")
	}
	return make([]int16, size), nil
}

// Close executes the close method.
func (s *Input) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether the stream was closed.
func (s *Input) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Write records the frame after sleeping for its playback duration.
func (s *Output) Write(frame []int16) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("output stream closed")
	}
	rate := s.rate
	s.mu.Unlock()

	if rate > 0 {
		time.Sleep(time.Duration(len(frame)) * time.Second / time.Duration(rate))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("output stream closed")
	}
	copied := make([]int16, len(frame))
	copy(copied, frame)
	s.frames = append(s.frames, copied)
	return nil
}

// Close executes the close method.
func (s *Output) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether the stream was closed.
func (s *Output) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Written returns a snapshot of all frames written so far.
func (s *Output) Written() [][]int16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]int16(nil), s.frames...)
}
