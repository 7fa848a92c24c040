package ambient

import (
	"math"
	"testing"
)

func tick(e *engine, n int) {
	frame := make([]int16, 8)
	for i := 0; i < n; i++ {
		e.mix(frame)
	}
}

func TestCrossfadeConservesVolume(t *testing.T) {
	e := newEngine(10)
	e.play("rain", repeatSamples(100, 64), 0.8)
	tick(e, 10)

	if key, gain := e.current(); key != "rain" || math.Abs(gain-0.8) > 1e-9 {
		t.Fatalf("current=%s/%v, want rain/0.8", key, gain)
	}

	e.play("wind", repeatSamples(200, 64), 0.8)
	for i := 0; i < 10; i++ {
		tick(e, 1)
		up, down := e.gains()
		if sum := up + down; math.Abs(sum-0.8) > 1e-9 {
			t.Fatalf("tick %d: gain sum=%v, want 0.8", i, sum)
		}
	}

	if key, gain := e.current(); key != "wind" || math.Abs(gain-0.8) > 1e-9 {
		t.Fatalf("current=%s/%v, want wind/0.8", key, gain)
	}
	if e.lanes[1-e.active].loaded() {
		t.Fatal("faded lane still loaded after crossfade")
	}
}

func TestSameTrackPlayReRampsWithoutRestart(t *testing.T) {
	e := newEngine(5)
	e.play("rain", repeatSamples(100, 64), 0.8)
	tick(e, 5)

	activeBefore := e.active
	posBefore := e.lanes[e.active].pos

	e.play("rain", repeatSamples(100, 64), 0.2)
	if e.active != activeBefore {
		t.Fatalf("active lane=%d, want %d (no swap)", e.active, activeBefore)
	}
	if e.lanes[e.active].pos != posBefore {
		t.Fatal("playback position reset on same-track play")
	}

	tick(e, 5)
	if _, gain := e.current(); math.Abs(gain-0.2) > 1e-9 {
		t.Fatalf("gain=%v, want 0.2", gain)
	}
}

func TestPlayDuringFadeOutSwapsBack(t *testing.T) {
	e := newEngine(10)
	e.play("rain", repeatSamples(100, 64), 0.8)
	tick(e, 10)
	e.play("wind", repeatSamples(200, 64), 0.8)
	tick(e, 4)

	// rain is mid fade-out on the inactive lane; asking for it again must
	// ramp it back up from where it is, not restart it.
	rainLane := &e.lanes[1-e.active]
	if rainLane.key != "rain" {
		t.Fatalf("inactive lane key=%q, want rain", rainLane.key)
	}
	gainBefore := rainLane.gain
	posBefore := rainLane.pos

	e.play("rain", repeatSamples(100, 64), 0.8)
	act := &e.lanes[e.active]
	if act.key != "rain" {
		t.Fatalf("active lane key=%q, want rain", act.key)
	}
	if act.pos != posBefore {
		t.Fatal("playback position reset on swap back")
	}
	if math.Abs(act.gain-gainBefore) > 1e-9 {
		t.Fatalf("gain jumped from %v to %v on swap back", gainBefore, act.gain)
	}

	tick(e, 10)
	if key, gain := e.current(); key != "rain" || math.Abs(gain-0.8) > 1e-9 {
		t.Fatalf("current=%s/%v, want rain/0.8", key, gain)
	}
	if e.lanes[1-e.active].loaded() {
		t.Fatal("wind lane still loaded after swap back")
	}
}

func TestStopFadesOutAndUnloads(t *testing.T) {
	e := newEngine(5)
	e.play("rain", repeatSamples(100, 64), 1.0)
	tick(e, 5)

	e.stop()
	tick(e, 5)

	if e.lanes[0].loaded() || e.lanes[1].loaded() {
		t.Fatal("lane still loaded after stop fade completed")
	}
	frame := make([]int16, 16)
	e.mix(frame)
	for i, s := range frame {
		if s != 0 {
			t.Fatalf("frame[%d]=%d, want silence", i, s)
		}
	}
}

func TestNewRampReplacesInProgress(t *testing.T) {
	e := newEngine(10)
	e.play("rain", repeatSamples(100, 64), 1.0)
	tick(e, 3)

	e.setGain(0.2)
	tick(e, 10)

	if _, gain := e.current(); math.Abs(gain-0.2) > 1e-9 {
		t.Fatalf("gain=%v, want 0.2 (replacement ramp)", gain)
	}
}

func TestMixLoopsTrack(t *testing.T) {
	e := newEngine(1)
	clip := []int16{10, 20, 30, 40}
	e.play("loop", clip, 1.0)

	// One eight-sample mix walks the four-sample clip twice at gain zero and
	// completes the single-tick ramp, leaving the position back at the start.
	tick(e, 1)
	if pos := e.lanes[e.active].pos; pos != 0 {
		t.Fatalf("pos=%d, want 0", pos)
	}

	frame := make([]int16, 10)
	e.mix(frame)

	want := []int16{10, 20, 30, 40, 10, 20, 30, 40, 10, 20}
	for i := range frame {
		if frame[i] != want[i] {
			t.Fatalf("frame[%d]=%d, want %d", i, frame[i], want[i])
		}
	}
}

func repeatSamples(v int16, n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = v
	}
	return out
}
