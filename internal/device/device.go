// Package device abstracts audio hardware access so the capture and playback
// paths can run against fakes in tests.
package device

// Backend opens audio streams on the host. Initialize must be called before
// opening streams and balanced with Terminate.
type Backend interface {
	Initialize() error
	Terminate() error
	OpenInput(sampleRate, channels, framesPerBuffer int) (InputStream, error)
	OpenOutput(sampleRate, channels, framesPerBuffer int) (OutputStream, error)
}

// InputStream is a blocking microphone stream. Read returns the next frame;
// the returned slice is reused between calls.
type InputStream interface {
	Read() ([]int16, error)
	Close() error
}

// OutputStream is a blocking speaker stream. Write expects exactly
// framesPerBuffer*channels samples per call.
type OutputStream interface {
	Write(frame []int16) error
	Close() error
}
