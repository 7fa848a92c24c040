package ambient

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/aveline-ai/companiond/internal/device/devicetest"
)

type mapLibrary map[string]Track

func (m mapLibrary) Lookup(key string) (Track, bool) {
	tr, ok := m[key]
	return tr, ok
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func writeWAV(t *testing.T, rate, channels, frames int, value int16) string {
	t.Helper()
	dataLen := frames * channels * 2
	buf := []byte("RIFF")
	buf = binary.LittleEndian.AppendUint32(buf, uint32(36+dataLen))
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = binary.LittleEndian.AppendUint32(buf, 16)
	buf = binary.LittleEndian.AppendUint16(buf, 1)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(channels))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(rate))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(rate*channels*2))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(channels*2))
	buf = binary.LittleEndian.AppendUint16(buf, 16)
	buf = append(buf, "data"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(dataLen))
	for i := 0; i < frames*channels; i++ {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(value))
	}
	path := filepath.Join(t.TempDir(), fmt.Sprintf("%d_%d.wav", rate, channels))
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	return path
}

func TestMixerRendersTrackToDevice(t *testing.T) {
	path := writeWAV(t, 44100, 1, 44100, 1000)
	lib := mapLibrary{"rain": {Key: "rain", Path: path, Description: "steady rain"}}
	backend := &devicetest.Backend{}
	m := New(Config{CrossfadeMs: 100}, lib, backend, zap.NewNop())

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	m.Play("rain", 100)

	if tr, ok := m.NowPlaying(); !ok || tr.Description != "steady rain" {
		t.Fatalf("NowPlaying=%v/%v, want steady rain/true", tr, ok)
	}

	out := backend.Outputs()[0]
	waitFor(t, 3*time.Second, func() bool {
		for _, frame := range out.Written() {
			for _, s := range frame {
				if s > 100 {
					return true
				}
			}
		}
		return false
	})

	m.Shutdown()
	if open := backend.OpenStreams(); open != 0 {
		t.Fatalf("open streams=%d, want 0", open)
	}
	if terms := backend.Terminations(); terms != 1 {
		t.Fatalf("terminations=%d, want 1", terms)
	}
}

func TestMixerUnknownTrackLeavesStateUntouched(t *testing.T) {
	backend := &devicetest.Backend{}
	m := New(Config{}, libWith(t), backend, zap.NewNop())

	m.Play("thunder", 30)

	if _, ok := m.NowPlaying(); ok {
		t.Fatal("NowPlaying=true after unknown track")
	}
	if up, down := m.eng.gains(); up != 0 || down != 0 {
		t.Fatalf("gains=%v/%v, want 0/0", up, down)
	}
}

func TestMixerStopClearsNowPlaying(t *testing.T) {
	path := writeWAV(t, 44100, 1, 4410, 500)
	lib := mapLibrary{"rain": {Key: "rain", Path: path}}
	m := New(Config{}, lib, &devicetest.Backend{}, zap.NewNop())

	m.Play("rain", 40)
	if _, ok := m.NowPlaying(); !ok {
		t.Fatal("NowPlaying=false after play")
	}

	m.Stop()
	if _, ok := m.NowPlaying(); ok {
		t.Fatal("NowPlaying=true after stop")
	}
}

func TestMixerStartFailsWhenDeviceUnavailable(t *testing.T) {
	backend := &devicetest.Backend{OpenOutputErr: fmt.Errorf("no output device")}
	m := New(Config{}, mapLibrary{}, backend, zap.NewNop())

	if err := m.Start(context.Background()); err == nil {
		t.Fatal("Start error=nil, want device error")
	}
	if terms := backend.Terminations(); terms != 1 {
		t.Fatalf("terminations=%d, want 1", terms)
	}
}

func TestLoaderAdaptsAndCaches(t *testing.T) {
	path := writeWAV(t, 22050, 2, 1000, 300)
	l := newLoader(44100)

	samples, err := l.load(Track{Key: "creek", Path: path})
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	// 1000 stereo frames at 22050 Hz come out as roughly 2000 mono samples
	// at the mixer rate.
	if len(samples) < 1900 || len(samples) > 2000 {
		t.Fatalf("len(samples)=%d, want about 2000", len(samples))
	}

	// The decoded track must be served from cache once loaded; removing the
	// file proves the second load never touches disk.
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove wav: %v", err)
	}
	again, err := l.load(Track{Key: "creek", Path: path})
	if err != nil {
		t.Fatalf("cached load returned error: %v", err)
	}
	if len(again) != len(samples) {
		t.Fatalf("cached len=%d, want %d", len(again), len(samples))
	}
}

func libWith(t *testing.T) Library {
	t.Helper()
	path := writeWAV(t, 44100, 1, 441, 100)
	return mapLibrary{"rain": {Key: "rain", Path: path}}
}
