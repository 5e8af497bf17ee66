package copa

import "math"

// nProbe is the maximum number of TCP-detection probe records retained.
const nProbe = 40

// maxHistory is the upper bound on how long RTT samples are retained,
// regardless of srtt.
const maxHistory Microseconds = 10_000_000

// probe is a single TCP-detection probe: whether the minimum RTT observed
// during a 2*base_rtt window increased relative to the prior such window,
// and the timestamp the window closed.
type probe struct {
	endTime   Microseconds
	increased bool
}

// RTTWindow is a sliding, time-bounded history of RTT samples. It tracks
// the minimum (base) RTT over the retained history, a smoothed RTT used
// to size the retention window and the TCP-detection horizon, and a
// short history of "did the
// floor move up" probes used to heuristically detect a competing
// loss-based (TCP-like) flow sharing the bottleneck.
type RTTWindow struct {
	rtts  []uint32
	times []Microseconds

	baseRTT        uint32
	baseRTTChanged bool

	srtt float64 // EWMA of raw samples, alpha = 1/16

	maxTime Microseconds

	probes                   []probe
	curMinRTT, prevMinRTT    uint32
	numIncrease, numDecrease uint32
}

// NewRTTWindow returns an empty RTT history window for a new flow.
func NewRTTWindow() *RTTWindow {
	return &RTTWindow{
		baseRTT:    math.MaxUint32,
		curMinRTT:  math.MaxUint32,
		prevMinRTT: 0, // biases the very first probe toward "increased", i.e. toward TCP mode
		maxTime:    maxHistory,
	}
}

// NewSample appends an RTT sample observed at time now (microseconds),
// updates the base RTT, advances the srtt EWMA and probe bookkeeping, and
// evicts samples that have aged out.
func (w *RTTWindow) NewSample(rtt uint32, now Microseconds) {
	w.rtts = append(w.rtts, rtt)
	w.times = append(w.times, now)

	if rtt < w.baseRTT {
		w.baseRTT = rtt
		w.baseRTTChanged = true
	}

	if w.srtt == 0 {
		w.srtt = float64(rtt)
	} else {
		w.srtt = w.srtt/16*15 + float64(rtt)/16
	}

	w.advanceProbe(rtt, now)

	w.maxTime = Microseconds(30 * w.srtt)
	if w.maxTime > maxHistory {
		w.maxTime = maxHistory
	}

	w.evict(now)
}

// advanceProbe closes out the current 2*base_rtt probe window if it has
// elapsed, and folds rtt into the running minimum for the window in
// progress.
func (w *RTTWindow) advanceProbe(rtt uint32, now Microseconds) {
	closeAfter := 2 * Microseconds(w.baseRTT)
	if len(w.probes) == 0 || satSub(now, w.probes[len(w.probes)-1].endTime) >= closeAfter {
		increased := w.curMinRTT > w.prevMinRTT
		w.probes = append(w.probes, probe{endTime: now, increased: increased})
		w.prevMinRTT = w.curMinRTT
		w.curMinRTT = math.MaxUint32
		if increased {
			w.numIncrease++
		} else {
			w.numDecrease++
		}
		for len(w.probes) > nProbe {
			if w.probes[0].increased {
				w.numIncrease--
			} else {
				w.numDecrease--
			}
			w.probes = w.probes[1:]
		}
	}
	if rtt < w.curMinRTT {
		w.curMinRTT = rtt
	}
}

// evict drops samples older than now-maxTime, keeping at least one
// sample, and recomputes baseRTT if an evicted sample held the minimum.
func (w *RTTWindow) evict(now Microseconds) {
	recompute := false
	cut := 0
	for len(w.times)-cut > 1 && w.times[cut] < satSub(now, w.maxTime) {
		if w.rtts[cut] <= w.baseRTT {
			recompute = true
		}
		cut++
	}
	if cut == 0 {
		return
	}
	w.rtts = w.rtts[cut:]
	w.times = w.times[cut:]

	if recompute {
		min := uint32(math.MaxUint32)
		for _, r := range w.rtts {
			if r < min {
				min = r
			}
		}
		if min != w.baseRTT {
			w.baseRTT = min
			w.baseRTTChanged = true
		}
	}
}

// BaseRTT returns the minimum RTT observed over the retained history.
func (w *RTTWindow) BaseRTT() uint32 {
	return w.baseRTT
}

// DidBaseRTTChange reports whether the base RTT changed since the last
// call, clearing the flag on read.
func (w *RTTWindow) DidBaseRTTChange() bool {
	changed := w.baseRTTChanged
	w.baseRTTChanged = false
	return changed
}

// NumTCPDetectSamples returns the number of retained probe records.
func (w *RTTWindow) NumTCPDetectSamples() uint32 {
	return w.numIncrease + w.numDecrease
}

// TCPDetected reports whether a TCP-like, loss-based competitor appears
// to be sharing the bottleneck: the minimum RTT over the last 10*srtt
// stays well above the base RTT, which a pure Copa flow would not allow.
func (w *RTTWindow) TCPDetected() bool {
	if len(w.rtts) == 0 {
		return false
	}

	horizon := satSub(w.times[len(w.times)-1], Microseconds(10*w.srtt))
	min1 := uint32(math.MaxUint32)
	max := uint32(0)
	for i, t := range w.times {
		if t > horizon {
			if w.rtts[i] < min1 {
				min1 = w.rtts[i]
			}
			if w.rtts[i] > max {
				max = w.rtts[i]
			}
		}
	}
	if min1 == math.MaxUint32 {
		return false
	}

	thresh := w.baseRTT + (max-w.baseRTT)/10 + 100
	return min1 > thresh
}

// satSub subtracts b from a, saturating at zero instead of wrapping.
func satSub(a, b Microseconds) Microseconds {
	if b >= a {
		return 0
	}
	return a - b
}
