package copa

import "math"

// ReportStatus classifies the outcome of feeding a raw datapath report
// through the aggregating collector.
type ReportStatus int

const (
	// NoReport means the report was absorbed into the running
	// aggregates but no decision-relevant event should fire yet.
	NoReport ReportStatus = iota
	// Report means the srtt-scaled reporting interval elapsed; the
	// aggregated fields should be acted on and the aggregates reset.
	Report
	// UrgentReport means a loss or timeout was observed and bypassed the
	// normal gate; the aggregates were not reset.
	UrgentReport
)

// RawReport holds the fields read from a single datapath fold-program
// report, as named in the fold program's Report struct.
type RawReport struct {
	Acked    Bytes
	Sacked   uint32
	Loss     uint32
	Inflight uint32
	Timeout  bool
	RTT      uint32
	Now      Microseconds
	MinRTT   uint32
}

// Measurement is the aggregated, gated result handed to the controller.
type Measurement struct {
	Status   ReportStatus
	Timeout  bool
	Acked    Bytes
	Sacked   uint32
	Loss     uint32
	Inflight uint32
	RTT      uint32
	MinRTT   uint32
	Now      Microseconds
}

// AggMeasurement throttles datapath reports to a smoothed-RTT-scaled
// cadence, accumulating per-packet fields in between, but bypasses the
// throttle for urgent events (loss or timeout).
type AggMeasurement struct {
	reportingInterval float32 // fraction of srtt
	srtt              float32
	lastReportTime    Microseconds
	seeded            bool

	acked  Bytes
	sacked uint32
	rtt    uint32
	minRTT uint32
}

const srttAlpha = 1.0 / 16.0

// NewAggMeasurement returns a collector that reports at the given
// fraction of its internally tracked srtt (e.g. 0.5).
func NewAggMeasurement(reportingInterval float32) *AggMeasurement {
	return &AggMeasurement{
		reportingInterval: reportingInterval,
		minRTT:            math.MaxUint32,
	}
}

// Report folds a raw datapath report into the running aggregates and
// returns the gated Measurement for this call.
func (a *AggMeasurement) Report(raw RawReport) Measurement {
	a.acked += raw.Acked
	a.sacked = raw.Sacked
	if raw.MinRTT < a.minRTT {
		a.minRTT = raw.MinRTT
	}

	if raw.Timeout || raw.Loss > 0 {
		return Measurement{Status: UrgentReport, Timeout: raw.Timeout, Loss: raw.Loss, Now: raw.Now}
	}

	if raw.RTT > 0 {
		a.rtt = raw.RTT
		if a.srtt == 0 {
			a.srtt = float32(raw.RTT)
		} else {
			a.srtt = srttAlpha*float32(raw.RTT) + (1-srttAlpha)*a.srtt
		}
	}

	// The very first report has no meaningful srtt yet; seed it and
	// the report clock instead of firing a degenerate "elapsed > 0"
	// report (see Design Notes, Open Question (b)).
	if !a.seeded {
		a.seeded = true
		a.lastReportTime = raw.Now
		return Measurement{Status: NoReport, Now: raw.Now}
	}

	gate := Microseconds(a.srtt * a.reportingInterval)
	if raw.Now > a.lastReportTime+gate {
		m := Measurement{
			Status:   Report,
			Acked:    a.acked,
			Sacked:   a.sacked,
			Loss:     raw.Loss,
			Inflight: raw.Inflight,
			RTT:      a.rtt,
			MinRTT:   a.minRTT,
			Now:      raw.Now,
		}
		a.lastReportTime = raw.Now
		a.acked = 0
		a.sacked = 0
		a.rtt = 0
		a.minRTT = math.MaxUint32
		return m
	}

	return Measurement{Status: NoReport, Now: raw.Now}
}
