package ambient

import (
	"fmt"
	"os"
	"sync"

	"github.com/aveline-ai/companiond/pkg/audio"
)

// Track is one catalog entry backed by a WAV file on disk.
type Track struct {
	Key         string `json:"key"`
	Path        string `json:"path"`
	Description string `json:"description,omitempty"`
}

// Library resolves ambience keys to tracks. The conversational context
// supplies the catalog; the mixer never owns it.
type Library interface {
	Lookup(key string) (Track, bool)
}

// loader decodes track files to mono PCM at the mixer rate and caches the
// result per key.
type loader struct {
	mu    sync.Mutex
	rate  int
	cache map[string][]int16
}

func newLoader(rate int) *loader {
	return &loader{rate: rate, cache: make(map[string][]int16)}
}

func (l *loader) load(tr Track) ([]int16, error) {
	l.mu.Lock()
	if samples, ok := l.cache[tr.Key]; ok {
		l.mu.Unlock()
		return samples, nil
	}
	l.mu.Unlock()

	data, err := os.ReadFile(tr.Path)
	if err != nil {
		return nil, fmt.Errorf("read track %s: %w", tr.Key, err)
	}
	samples, rate, channels, err := audio.DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("decode track %s: %w", tr.Key, err)
	}
	if channels > 1 {
		samples = audio.DownmixMono(samples, channels)
	}
	if rate != l.rate {
		samples, err = resampleAll(samples, rate, l.rate)
		if err != nil {
			return nil, fmt.Errorf("resample track %s: %w", tr.Key, err)
		}
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("track %s: no audio", tr.Key)
	}

	l.mu.Lock()
	l.cache[tr.Key] = samples
	l.mu.Unlock()
	return samples, nil
}

// resampleAll converts a whole clip in one pass. The output is trimmed to the
// expected length so the loop seam stays free of padding.
func resampleAll(samples []int16, inRate, outRate int) ([]int16, error) {
	r, err := audio.NewStreamResampler(inRate, outRate)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	if err := r.AppendPCM(samples); err != nil {
		return nil, err
	}
	if err := r.Flush(); err != nil {
		return nil, err
	}

	const block = 4096
	var out []int16
	for {
		frame, ok := r.PopFrame(block)
		if !ok {
			break
		}
		out = append(out, frame...)
		audio.ReleaseInt16(frame)
	}
	if tail := r.PopRemainderPadded(block); tail != nil {
		out = append(out, tail...)
		audio.ReleaseInt16(tail)
	}

	want := int(int64(len(samples)) * int64(outRate) / int64(inRate))
	if len(out) > want {
		out = out[:want]
	}
	return out, nil
}
