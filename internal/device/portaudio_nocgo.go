//go:build !cgo

package device

import "errors"

// errNoCgo reports that the hardware backend is compiled out. The PortAudio
// bindings require cgo; builds with CGO_ENABLED=0 keep the exported surface
// so consumers compile, but opening streams is unavailable.
var errNoCgo = errors.New("portaudio backend unavailable: built without cgo")

// PortAudio is the hardware backend used outside of tests. In builds without
// cgo the PortAudio bindings cannot be compiled, so all stream operations
// return an error.
type PortAudio struct{}

// NewPortAudio executes the newPortAudio function.
func NewPortAudio() *PortAudio {
	return &PortAudio{}
}

// Initialize executes the initialize method.
func (p *PortAudio) Initialize() error {
	return errNoCgo
}

// Terminate executes the terminate method.
func (p *PortAudio) Terminate() error {
	return nil
}

// OpenInput opens the default microphone at the requested rate.
func (p *PortAudio) OpenInput(sampleRate, channels, framesPerBuffer int) (InputStream, error) {
	return nil, errNoCgo
}

// OpenOutput opens the default speaker at the requested rate.
func (p *PortAudio) OpenOutput(sampleRate, channels, framesPerBuffer int) (OutputStream, error) {
	return nil, errNoCgo
}
