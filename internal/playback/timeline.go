package playback

import "sync"

// chunk is one scheduled run of synthesized speech samples.
type chunk struct {
	id      uint64
	start   int64
	samples []int16
}

// timeline holds the in-flight chunk set and the gapless schedule. All
// positions are in samples on the playback clock. It is pure state so the
// scheduling rules can be tested without a device.
type timeline struct {
	mu        sync.Mutex
	nextStart int64
	inflight  []chunk
	nextID    uint64
}

// schedule places samples at max(nextStart, now) and extends the schedule by
// the chunk length, keeping consecutive chunks seamless.
func (tl *timeline) schedule(samples []int16, now int64) int64 {
	if len(samples) == 0 {
		return now
	}
	tl.mu.Lock()
	defer tl.mu.Unlock()

	start := tl.nextStart
	if start < now {
		start = now
	}
	tl.nextID++
	tl.inflight = append(tl.inflight, chunk{id: tl.nextID, start: start, samples: samples})
	tl.nextStart = start + int64(len(samples))
	return start
}

// interrupt drops every in-flight chunk and resets the schedule to now, so
// the next chunk starts fresh.
func (tl *timeline) interrupt(now int64) {
	tl.mu.Lock()
	tl.inflight = nil
	tl.nextStart = now
	tl.mu.Unlock()
}

// render fills out with the samples scheduled in [from, from+len(out)) and
// silence elsewhere, and retires chunks that finished before the window.
func (tl *timeline) render(out []int16, from int64) {
	for i := range out {
		out[i] = 0
	}
	windowEnd := from + int64(len(out))

	tl.mu.Lock()
	defer tl.mu.Unlock()

	kept := tl.inflight[:0]
	for _, ck := range tl.inflight {
		end := ck.start + int64(len(ck.samples))
		if end <= from {
			continue
		}
		if ck.start < windowEnd {
			srcFrom := int64(0)
			dstFrom := ck.start - from
			if dstFrom < 0 {
				srcFrom = -dstFrom
				dstFrom = 0
			}
			copy(out[dstFrom:], ck.samples[srcFrom:])
		}
		kept = append(kept, ck)
	}
	tl.inflight = kept
}

// pending reports how many chunks are still in flight.
func (tl *timeline) pending() int {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return len(tl.inflight)
}

// horizon returns the sample position where the schedule currently ends.
func (tl *timeline) horizon() int64 {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.nextStart
}
