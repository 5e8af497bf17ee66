package copametrics

import "github.com/prometheus/client_golang/prometheus"

// PrometheusMetrics exposes one flow's live state as real Prometheus
// collectors: gauges for the values the controller decides on every
// report, and counters for the events that drive those decisions.
type PrometheusMetrics struct {
	cwnd     prometheus.Gauge
	rate     prometheus.Gauge
	delta    prometheus.Gauge
	velocity prometheus.Gauge
	baseRTT  prometheus.Gauge

	rtt prometheus.Histogram

	reports       prometheus.Counter
	urgentReports prometheus.Counter
	timeouts      prometheus.Counter
	lossEvents    prometheus.Counter
	bytesAcked    prometheus.Counter
}

// NewPrometheusMetrics registers a fresh set of collectors against the
// default registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewPrometheusMetricsWithRegistry registers against reg, so a caller
// running multiple flows (or a test) can use independent registries.
func NewPrometheusMetricsWithRegistry(reg prometheus.Registerer) *PrometheusMetrics {
	factory := prometheus.WrapRegistererWithPrefix("copa_", reg)

	m := &PrometheusMetrics{
		cwnd: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cwnd_bytes", Help: "Current congestion window in bytes.",
		}),
		rate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rate_bytes_per_second", Help: "Current pacing rate in bytes/sec.",
		}),
		delta: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "delta", Help: "Current aggressiveness parameter delta.",
		}),
		velocity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "velocity", Help: "Current velocity multiplier.",
		}),
		baseRTT: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "base_rtt_micros", Help: "Current base (minimum observed) RTT in microseconds.",
		}),
		rtt: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rtt_micros",
			Help:    "Observed RTT samples in microseconds.",
			Buckets: prometheus.ExponentialBuckets(500, 2, 16),
		}),
		reports: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reports_total", Help: "Datapath reports fed to the controller.",
		}),
		urgentReports: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "urgent_reports_total", Help: "Urgent (loss or timeout) reports processed.",
		}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timeouts_total", Help: "TCP-timeout-triggered window resets.",
		}),
		lossEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loss_events_total", Help: "Lost-packet events observed.",
		}),
		bytesAcked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bytes_acked_total", Help: "Bytes acknowledged.",
		}),
	}

	factory.MustRegister(
		m.cwnd, m.rate, m.delta, m.velocity, m.baseRTT,
		m.rtt,
		m.reports, m.urgentReports, m.timeouts, m.lossEvents, m.bytesAcked,
	)
	return m
}

func (m *PrometheusMetrics) SetCwnd(cwnd uint32)         { m.cwnd.Set(float64(cwnd)) }
func (m *PrometheusMetrics) SetRate(rate uint32)         { m.rate.Set(float64(rate)) }
func (m *PrometheusMetrics) SetDelta(delta float32)      { m.delta.Set(float64(delta)) }
func (m *PrometheusMetrics) SetVelocity(velocity uint32) { m.velocity.Set(float64(velocity)) }
func (m *PrometheusMetrics) SetBaseRTT(rttMicros uint32) { m.baseRTT.Set(float64(rttMicros)) }

func (m *PrometheusMetrics) ObserveRTT(rttMicros uint32) { m.rtt.Observe(float64(rttMicros)) }

func (m *PrometheusMetrics) IncrementReports()       { m.reports.Inc() }
func (m *PrometheusMetrics) IncrementUrgentReports() { m.urgentReports.Inc() }
func (m *PrometheusMetrics) IncrementTimeouts()      { m.timeouts.Inc() }
func (m *PrometheusMetrics) AddLoss(n uint32)        { m.lossEvents.Add(float64(n)) }
func (m *PrometheusMetrics) AddBytesAcked(n uint32)  { m.bytesAcked.Add(float64(n)) }
