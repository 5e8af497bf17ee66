package copa

import (
	"math"

	"go.uber.org/zap"
)

// Controller is the per-flow Copa congestion controller: slow start, the
// velocity-based window/rate update rule, timeout handling, and report
// dispatch. It owns an RTTWindow, a DeltaManager, and an AggMeasurement,
// and drives a Datapath handle it does not own.
type Controller struct {
	log *zap.Logger
	dp  Datapath

	cwnd     Bytes
	initCWND Bytes

	slowStart bool

	rtt   *RTTWindow
	delta *DeltaManager
	agg   *AggMeasurement

	velocity           uint32
	curDirection       int64
	prevDirection      int64
	timeSinceDirection Microseconds
	prevUpdateRTT      Microseconds

	scope          Scope
	prevReportTime Microseconds
}

// New constructs a Controller, installs the fold program on dp, and
// pushes the initial (cwnd, rate) decision. If cfg is out of range,
// ErrConfigRange is returned and no flow is created. datapathInitCWND is
// used in place of cfg.InitCWND when the latter is zero.
func New(dp Datapath, cfg Config, datapathInitCWND Bytes, log *zap.Logger) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	init := cfg.InitCWND
	if init == 0 {
		init = datapathInitCWND
	}

	c := &Controller{
		log:       log,
		dp:        dp,
		cwnd:      init,
		initCWND:  init,
		slowStart: true,
		rtt:       NewRTTWindow(),
		delta:     NewDeltaManager(cfg.DefaultDelta, cfg.DeltaMode),
		agg:       NewAggMeasurement(0.5),
		velocity:  1,
	}

	scope, err := dp.Install(FoldProgram)
	if err != nil {
		return nil, err
	}
	c.scope = scope

	log.Info("starting copa flow", zap.Uint32("init_cwnd", init))
	c.push()

	return c, nil
}

// OnReport feeds one raw datapath report through the aggregating
// collector and, depending on the gated outcome, updates the controller
// state and pushes a new (cwnd, rate) decision to the datapath.
func (c *Controller) OnReport(raw RawReport) error {
	m := c.agg.Report(raw)

	switch m.Status {
	case UrgentReport:
		if m.Timeout {
			c.handleTimeout()
		}
		c.delta.ReportMeasurement(c.rtt, 0, m.Loss, m.Now)

	case NoReport:
		// nothing to do

	default: // Report
		if m.Acked+m.Loss+m.Sacked == 0 {
			break
		}
		c.rtt.NewSample(m.MinRTT, m.Now)
		if c.rtt.DidBaseRTTChange() {
			if err := c.dp.UpdateField(c.scope, []FieldUpdate{{Name: FieldBaseRTT, Value: c.rtt.BaseRTT()}}); err != nil {
				c.log.Warn("failed to push base_rtt", zap.Error(err))
			}
		}
		c.delta.ReportMeasurement(c.rtt, m.Acked, m.Loss, m.Now)
		c.delayControl(m.MinRTT, m.Acked, m.Now)
	}

	c.push()

	c.log.Debug("got ack",
		zap.Uint32("acked_pkts", m.Acked/windowMSS),
		zap.Uint32("curr_cwnd_pkts", c.cwnd/rateMSS),
		zap.Uint32("loss", m.Loss),
		zap.Uint32("sacked", m.Sacked),
		zap.Float32("delta", c.delta.GetDelta()),
		zap.Uint32("min_rtt", m.MinRTT),
		zap.Uint32("base_rtt", c.rtt.BaseRTT()),
		zap.Uint32("velocity", c.velocity),
		zap.Stringer("mode", c.delta.GetMode()),
		zap.Uint64("report_interval", m.Now-c.prevReportTime),
	)
	c.prevReportTime = m.Now

	return nil
}

// handleTimeout resets the flow to its initial window and re-enters
// slow start, per spec.md §4.4.5.
func (c *Controller) handleTimeout() {
	c.cwnd = c.initCWND
	c.slowStart = true
	c.log.Warn("timeout", zap.Uint32("curr_cwnd_pkts", c.cwnd/windowMSS))
}

// Cwnd returns the controller's current congestion window in bytes.
func (c *Controller) Cwnd() Bytes {
	return c.cwnd
}

// Rate returns the controller's current pacing rate in bytes/sec, the
// same value most recently pushed to the datapath's Rate field.
func (c *Controller) Rate() Bytes {
	return c.rate()
}

// Delta returns the current aggressiveness parameter.
func (c *Controller) Delta() float32 {
	return c.delta.GetDelta()
}

// Velocity returns the current velocity multiplier.
func (c *Controller) Velocity() uint32 {
	return c.velocity
}

// BaseRTT returns the current base (minimum observed) RTT in microseconds.
func (c *Controller) BaseRTT() uint32 {
	return c.rtt.BaseRTT()
}

// rate computes the pacing rate in bytes/sec from the current cwnd and
// base RTT, clamping to uint32 max on overflow rather than wrapping.
func (c *Controller) rate() Bytes {
	base := c.rtt.BaseRTT()
	if base == 0 || base == math.MaxUint32 {
		return math.MaxUint32
	}
	rate := 2 * uint64(c.cwnd) * 1_000_000 / uint64(base)
	if rate > math.MaxUint32 {
		return math.MaxUint32
	}
	return Bytes(rate)
}

// push sends the current (cwnd, rate) decision to the datapath.
func (c *Controller) push() {
	if err := c.dp.UpdateField(c.scope, []FieldUpdate{
		{Name: FieldCwnd, Value: c.cwnd},
		{Name: FieldRate, Value: c.rate()},
	}); err != nil {
		c.log.Warn("failed to push cwnd/rate", zap.Error(err))
	}
}
