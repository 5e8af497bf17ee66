package copa

// DeltaModeConfig selects how the DeltaManager is allowed to choose its
// operating mode.
type DeltaModeConfig int

const (
	// DeltaModeNoTCP pins the mode to Default; TCP-cooperative behavior
	// is never entered.
	DeltaModeNoTCP DeltaModeConfig = iota
	// DeltaModeAuto lets the manager switch into TCPCoop when a
	// loss-based competitor is detected (or not enough evidence exists
	// yet to rule one out).
	DeltaModeAuto
)

// DeltaMode is the manager's current operating mode.
type DeltaMode int

const (
	// ModeDefault uses a constant delta.
	ModeDefault DeltaMode = iota
	// ModeTCPCoop emulates TCP's AIMD on 1/delta.
	ModeTCPCoop
	// ModeLoss collapses delta toward defaultDelta aggressively on loss.
	ModeLoss
)

func (m DeltaMode) String() string {
	switch m {
	case ModeDefault:
		return "default"
	case ModeTCPCoop:
		return "tcp-coop"
	case ModeLoss:
		return "loss"
	default:
		return "unknown"
	}
}

// lossRateCycleRTTs is how often (in multiples of base RTT) the rolling
// loss-rate estimate is refreshed.
const lossRateCycleRTTs = 2

// lossModeThreshold is the loss rate at or above which the manager pins
// to ModeLoss regardless of TCP detection.
const lossModeThreshold = 0.10

// DeltaManager chooses Copa's aggressiveness parameter delta between a
// constant-delay mode, a TCP-cooperative mode, and a loss-dominated mode.
type DeltaManager struct {
	switchMode   DeltaModeConfig
	defaultDelta float32

	curMode DeltaMode
	delta   float32

	curAcked, curLosses uint32
	prevLossCycleEnd    Microseconds
	prevLossRate        float32
	prevLossHalvingTime Microseconds
}

// NewDeltaManager constructs a DeltaManager. defaultDelta must be in
// (0, 1]; callers must validate this at configuration time (see
// ErrConfigRange) since this constructor does not return an error.
func NewDeltaManager(defaultDelta float32, mode DeltaModeConfig) *DeltaManager {
	curMode := ModeDefault
	if mode == DeltaModeAuto {
		curMode = ModeTCPCoop
	}
	return &DeltaManager{
		switchMode:   mode,
		defaultDelta: defaultDelta,
		curMode:      curMode,
		delta:        defaultDelta,
	}
}

// ReportMeasurement updates the loss-rate cycle, re-evaluates the current
// mode, and updates delta accordingly.
func (d *DeltaManager) ReportMeasurement(rttWin *RTTWindow, acked, lost uint32, now Microseconds) {
	d.curAcked += acked
	d.curLosses += lost
	if now > d.prevLossCycleEnd+lossRateCycleRTTs*Microseconds(rttWin.BaseRTT()) {
		d.prevLossCycleEnd = now
		if total := d.curLosses + d.curAcked; total > 0 {
			d.prevLossRate = float32(d.curLosses) / float32(total)
		}
		d.curAcked = 0
		d.curLosses = 0
	}

	switch {
	case d.prevLossRate >= lossModeThreshold:
		d.curMode = ModeLoss
	case d.switchMode == DeltaModeAuto && (rttWin.NumTCPDetectSamples() < 10 || rttWin.TCPDetected()):
		d.curMode = ModeTCPCoop
	default:
		d.curMode = ModeDefault
	}

	switch d.curMode {
	case ModeDefault:
		d.delta = d.defaultDelta

	case ModeTCPCoop:
		if lost > 0 {
			if now-Microseconds(rttWin.BaseRTT()) > d.prevLossHalvingTime {
				d.delta *= 2
				d.prevLossHalvingTime = now
			}
		} else {
			d.delta = 1 / (1 + 1/d.delta)
		}
		if d.delta > d.defaultDelta {
			d.delta = d.defaultDelta
		}

	case ModeLoss:
		if lost > 0 {
			d.delta *= 2
		}
		if d.delta >= d.defaultDelta {
			d.delta = d.defaultDelta
		}
	}
}

// GetDelta returns the current aggressiveness parameter.
func (d *DeltaManager) GetDelta() float32 {
	return d.delta
}

// GetMode returns the current operating mode.
func (d *DeltaManager) GetMode() DeltaMode {
	return d.curMode
}

// tcpEquivalentDelta returns the delta a TCPCoop-mode flow would use on
// the decrease branch of congestion avoidance, per the delay-control
// rule's AIMD-equivalent substitution.
func tcpEquivalentDelta(delta float32) float32 {
	return 1 / (1 + 1/delta)
}
