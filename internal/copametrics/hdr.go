// Package copametrics holds this flow's distribution metrics: HDR
// histograms over cwnd, pacing rate, RTT, and velocity, plus the plain
// counters a human watching a live flow cares about.
package copametrics

import (
	"fmt"
	"sync"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// HDRMetrics holds a running set of HDR histograms and counters for one
// Copa flow. All exported methods are safe for concurrent use, since
// reports and a metrics-reading HTTP handler run on different
// goroutines.
type HDRMetrics struct {
	mu sync.RWMutex

	cwndHist     *hdrhistogram.Histogram
	rateHist     *hdrhistogram.Histogram
	rttHist      *hdrhistogram.Histogram
	velocityHist *hdrhistogram.Histogram

	reports       int64
	urgentReports int64
	timeouts      int64
	lossEvents    int64
	bytesAcked    int64
}

// NewHDRMetrics constructs histograms sized for this module's value
// ranges: cwnd/rate in bytes up to ~1GB/s, RTT in microseconds up to
// 10s, and velocity as the small integer multiplier it is.
func NewHDRMetrics() *HDRMetrics {
	return &HDRMetrics{
		cwndHist:     hdrhistogram.New(1, 1_000_000_000, 3),
		rateHist:     hdrhistogram.New(1, 1_000_000_000, 3),
		rttHist:      hdrhistogram.New(1, 10_000_000, 3),
		velocityHist: hdrhistogram.New(1, 1<<16, 2),
	}
}

// RecordCwnd records the current congestion window in bytes.
func (h *HDRMetrics) RecordCwnd(cwnd uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cwnd > 0 {
		h.cwndHist.RecordValue(int64(cwnd))
	}
}

// RecordRate records the current pacing rate in bytes/sec.
func (h *HDRMetrics) RecordRate(rate uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if rate > 0 {
		h.rateHist.RecordValue(int64(rate))
	}
}

// RecordRTT records an observed RTT sample in microseconds.
func (h *HDRMetrics) RecordRTT(rttMicros uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if rttMicros > 0 {
		h.rttHist.RecordValue(int64(rttMicros))
	}
}

// RecordVelocity records the velocity multiplier in effect at an
// update.
func (h *HDRMetrics) RecordVelocity(velocity uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if velocity > 0 {
		h.velocityHist.RecordValue(int64(velocity))
	}
}

// IncrementReports counts one datapath report fed to the controller.
func (h *HDRMetrics) IncrementReports() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reports++
}

// IncrementUrgentReports counts one urgent (loss or timeout) report.
func (h *HDRMetrics) IncrementUrgentReports() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.urgentReports++
}

// IncrementTimeouts counts one TCP-timeout-triggered reset.
func (h *HDRMetrics) IncrementTimeouts() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.timeouts++
}

// AddLoss adds n lost-packet events to the running total.
func (h *HDRMetrics) AddLoss(n uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lossEvents += int64(n)
}

// AddBytesAcked adds n acknowledged bytes to the running total.
func (h *HDRMetrics) AddBytesAcked(n uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bytesAcked += int64(n)
}

// DistributionStats is a standard set of quantiles plus bounds for one
// histogram.
type DistributionStats struct {
	P50, P90, P95, P99, P999 float64
	Min, Max, Mean           float64
	Count                    int64
}

func snapshot(h *hdrhistogram.Histogram) DistributionStats {
	if h.TotalCount() == 0 {
		return DistributionStats{}
	}
	return DistributionStats{
		P50:   float64(h.ValueAtQuantile(50)),
		P90:   float64(h.ValueAtQuantile(90)),
		P95:   float64(h.ValueAtQuantile(95)),
		P99:   float64(h.ValueAtQuantile(99)),
		P999:  float64(h.ValueAtQuantile(99.9)),
		Min:   float64(h.Min()),
		Max:   float64(h.Max()),
		Mean:  h.Mean(),
		Count: h.TotalCount(),
	}
}

// CwndStats returns the current cwnd distribution, in bytes.
func (h *HDRMetrics) CwndStats() DistributionStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return snapshot(h.cwndHist)
}

// RateStats returns the current pacing-rate distribution, in bytes/sec.
func (h *HDRMetrics) RateStats() DistributionStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return snapshot(h.rateHist)
}

// RTTStats returns the current RTT distribution, in microseconds.
func (h *HDRMetrics) RTTStats() DistributionStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return snapshot(h.rttHist)
}

// VelocityStats returns the current velocity-multiplier distribution.
func (h *HDRMetrics) VelocityStats() DistributionStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return snapshot(h.velocityHist)
}

// Counters is a point-in-time snapshot of this flow's event counts.
type Counters struct {
	Reports       int64
	UrgentReports int64
	Timeouts      int64
	LossEvents    int64
	BytesAcked    int64
}

// Snapshot returns the current counters.
func (h *HDRMetrics) Snapshot() Counters {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Counters{
		Reports:       h.reports,
		UrgentReports: h.urgentReports,
		Timeouts:      h.timeouts,
		LossEvents:    h.lossEvents,
		BytesAcked:    h.bytesAcked,
	}
}

// ExportToText renders the current distributions and counters as
// plain key/value text lines, for a --demo summary or a debug log line
// when a full Prometheus scrape endpoint isn't wired up.
func (h *HDRMetrics) ExportToText() map[string]string {
	cwnd := h.CwndStats()
	rate := h.RateStats()
	rtt := h.RTTStats()
	velocity := h.VelocityStats()
	counters := h.Snapshot()

	out := make(map[string]string, 20)
	add := func(prefix string, s DistributionStats) {
		out[prefix+"_p50"] = fmt.Sprintf("%.0f", s.P50)
		out[prefix+"_p99"] = fmt.Sprintf("%.0f", s.P99)
		out[prefix+"_max"] = fmt.Sprintf("%.0f", s.Max)
		out[prefix+"_count"] = fmt.Sprintf("%d", s.Count)
	}
	add("copa_cwnd_bytes", cwnd)
	add("copa_rate_bytes_per_sec", rate)
	add("copa_rtt_micros", rtt)
	add("copa_velocity", velocity)

	out["copa_reports_total"] = fmt.Sprintf("%d", counters.Reports)
	out["copa_urgent_reports_total"] = fmt.Sprintf("%d", counters.UrgentReports)
	out["copa_timeouts_total"] = fmt.Sprintf("%d", counters.Timeouts)
	out["copa_loss_events_total"] = fmt.Sprintf("%d", counters.LossEvents)
	out["copa_bytes_acked_total"] = fmt.Sprintf("%d", counters.BytesAcked)

	return out
}
