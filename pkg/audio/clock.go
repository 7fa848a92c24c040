package audio

import (
	"sync"
	"time"
)

// Clock is a monotonic playback clock counted in samples at a fixed rate.
// It only moves forward: the render loop advances it by the number of
// samples it has written to the device.
type Clock struct {
	mu   sync.Mutex
	rate int
	pos  int64
}

// NewClock creates a clock at the given sample rate.
func NewClock(sampleRate int) *Clock {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &Clock{rate: sampleRate}
}

// Rate returns the clock's sample rate.
func (c *Clock) Rate() int {
	return c.rate
}

// Now returns the current position in samples since the clock started.
func (c *Clock) Now() int64 {
	c.mu.Lock()
	pos := c.pos
	c.mu.Unlock()
	return pos
}

// Advance moves the clock forward by n samples. Negative values are ignored.
func (c *Clock) Advance(n int) {
	if n <= 0 {
		return
	}
	c.mu.Lock()
	c.pos += int64(n)
	c.mu.Unlock()
}

// SamplesToDuration converts a sample count at rate to a duration.
func SamplesToDuration(samples int64, rate int) time.Duration {
	if rate <= 0 || samples <= 0 {
		return 0
	}
	return time.Duration(samples) * time.Second / time.Duration(rate)
}

// DurationToSamples converts a duration to a sample count at rate.
func DurationToSamples(d time.Duration, rate int) int64 {
	if rate <= 0 || d <= 0 {
		return 0
	}
	return int64(d) * int64(rate) / int64(time.Second)
}
