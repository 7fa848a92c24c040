package ambient

import "sync"

// lane is one of the two mixer channels.
type lane struct {
	key     string
	samples []int16
	pos     int
	gain    float64
	ramp    *ramp
}

// ramp moves a lane gain linearly toward a target over a fixed number of
// ticks. Starting a new ramp replaces the one in progress.
type ramp struct {
	target float64
	step   float64
	left   int
	unload bool
}

func (ln *lane) loaded() bool {
	return len(ln.samples) > 0
}

func (ln *lane) startRamp(target float64, ticks int, unload bool) {
	if ticks < 1 {
		ticks = 1
	}
	ln.ramp = &ramp{
		target: target,
		step:   (target - ln.gain) / float64(ticks),
		left:   ticks,
		unload: unload,
	}
}

// tick advances the in-progress ramp by one step and unloads the lane when a
// fade-out completes.
func (ln *lane) tick() {
	r := ln.ramp
	if r == nil {
		return
	}
	ln.gain += r.step
	r.left--
	if r.left > 0 {
		return
	}
	ln.gain = r.target
	ln.ramp = nil
	if r.unload {
		ln.clear()
	}
}

func (ln *lane) clear() {
	ln.key = ""
	ln.samples = nil
	ln.pos = 0
	ln.gain = 0
	ln.ramp = nil
}

// engine is the pure two-channel crossfade state. Rendering one frame also
// advances every ramp by one tick, so the ramp tick equals the frame
// duration.
type engine struct {
	mu        sync.Mutex
	lanes     [2]lane
	active    int
	fadeTicks int
	scratch   []int32
}

func newEngine(fadeTicks int) *engine {
	if fadeTicks < 1 {
		fadeTicks = 1
	}
	return &engine{fadeTicks: fadeTicks}
}

// play stages a looped track and starts the crossfade. The same track on the
// active lane only re-ramps its volume, never restarts.
func (e *engine) play(key string, samples []int16, gain float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	act := &e.lanes[e.active]
	if act.key == key && act.loaded() {
		act.startRamp(gain, e.fadeTicks, false)
		return
	}

	next := &e.lanes[1-e.active]
	if next.key != key {
		next.key = key
		next.samples = samples
		next.pos = 0
		next.gain = 0
	}
	next.startRamp(gain, e.fadeTicks, false)
	if act.loaded() {
		act.startRamp(0, e.fadeTicks, true)
	}
	e.active = 1 - e.active
}

// setGain re-ramps the active lane only.
func (e *engine) setGain(gain float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	act := &e.lanes[e.active]
	if !act.loaded() {
		return
	}
	act.startRamp(gain, e.fadeTicks, false)
}

// stop fades the active lane to silence and unloads it on completion.
func (e *engine) stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	act := &e.lanes[e.active]
	if !act.loaded() {
		return
	}
	act.startRamp(0, e.fadeTicks, true)
}

// mix renders one frame of both lanes into out, looping each loaded track,
// then advances the ramps one tick.
func (e *engine) mix(out []int16) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cap(e.scratch) < len(out) {
		e.scratch = make([]int32, len(out))
	}
	acc := e.scratch[:len(out)]
	for i := range acc {
		acc[i] = 0
	}

	for li := range e.lanes {
		ln := &e.lanes[li]
		if !ln.loaded() {
			continue
		}
		for i := range acc {
			acc[i] += int32(float64(ln.samples[ln.pos]) * ln.gain)
			ln.pos++
			if ln.pos >= len(ln.samples) {
				ln.pos = 0
			}
		}
		ln.tick()
	}

	for i := range out {
		v := acc[i]
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i] = int16(v)
	}
}

// current reports the active lane's track key and gain.
func (e *engine) current() (string, float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	act := &e.lanes[e.active]
	return act.key, act.gain
}

// gains reports both lane gains, active lane first.
func (e *engine) gains() (float64, float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lanes[e.active].gain, e.lanes[1-e.active].gain
}
