// Package telemetry wires this module's OpenTelemetry tracer and meter
// providers, bridged into a Prometheus registry for scraping and
// optionally exporting traces over OTLP/HTTP.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/instrument"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// TelemetryManager owns the process-wide tracer and meter providers.
type TelemetryManager struct {
	tracer   trace.Tracer
	meter    metric.Meter
	shutdown func(context.Context) error
}

// TelemetryConfig configures the resource identity and optional
// exporters. A zero OTLPEndpoint means traces stay local (no exporter
// attached, so spans end at the in-process provider); a zero
// PrometheusAddr behaves the same way for metrics.
type TelemetryConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	PrometheusAddr string
	SampleRate     float64
}

// NewTelemetryManager constructs the tracer and meter providers
// described by cfg and installs them as the global providers.
func NewTelemetryManager(ctx context.Context, cfg TelemetryConfig) (*TelemetryManager, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: building resource: %w", err)
	}

	var tp *sdktrace.TracerProvider
	if cfg.OTLPEndpoint != "" {
		exporter, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("telemetry: building OTLP exporter: %w", err)
		}
		tp = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRate)),
		)
	} else {
		tp = sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRate)),
		)
	}

	var mp *sdkmetric.MeterProvider
	if cfg.PrometheusAddr != "" {
		exporter, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("telemetry: building Prometheus exporter: %w", err)
		}
		mp = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(exporter),
			sdkmetric.WithResource(res),
		)
	} else {
		mp = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
		)
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tracer := tp.Tracer(cfg.ServiceName)
	meter := mp.Meter(cfg.ServiceName)

	shutdown := func(ctx context.Context) error {
		tpErr := tp.Shutdown(ctx)
		mpErr := mp.Shutdown(ctx)
		if tpErr != nil || mpErr != nil {
			return fmt.Errorf("telemetry shutdown: tracer=%v meter=%v", tpErr, mpErr)
		}
		return nil
	}

	return &TelemetryManager{tracer: tracer, meter: meter, shutdown: shutdown}, nil
}

// StartSpan starts a new span on this manager's tracer.
func (tm *TelemetryManager) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return tm.tracer.Start(ctx, name, opts...)
}

func (tm *TelemetryManager) CreateInt64Counter(name, description string) (instrument.Int64Counter, error) {
	return tm.meter.Int64Counter(name, instrument.WithDescription(description))
}

func (tm *TelemetryManager) CreateFloat64Counter(name, description string) (instrument.Float64Counter, error) {
	return tm.meter.Float64Counter(name, instrument.WithDescription(description))
}

func (tm *TelemetryManager) CreateInt64Histogram(name, description string) (instrument.Int64Histogram, error) {
	return tm.meter.Int64Histogram(name, instrument.WithDescription(description))
}

func (tm *TelemetryManager) CreateFloat64Histogram(name, description string) (instrument.Float64Histogram, error) {
	return tm.meter.Float64Histogram(name, instrument.WithDescription(description))
}

func (tm *TelemetryManager) CreateInt64Gauge(name, description string) (instrument.Int64Gauge, error) {
	return tm.meter.Int64Gauge(name, instrument.WithDescription(description))
}

func (tm *TelemetryManager) CreateFloat64Gauge(name, description string) (instrument.Float64Gauge, error) {
	return tm.meter.Float64Gauge(name, instrument.WithDescription(description))
}

// Shutdown flushes and closes the tracer and meter providers.
func (tm *TelemetryManager) Shutdown(ctx context.Context) error {
	return tm.shutdown(ctx)
}

// CopaMetrics is the OTel-instrument counterpart to copametrics'
// Prometheus collectors: it exists so traces and OTLP-exported metrics
// carry the same flow state, attributable by span/attribute rather than
// only by a bare scrape.
type CopaMetrics struct {
	ReportsTotal       instrument.Int64Counter
	UrgentReportsTotal instrument.Int64Counter
	TimeoutsTotal      instrument.Int64Counter
	LossEventsTotal    instrument.Int64Counter
	BytesAckedTotal    instrument.Int64Counter

	RTTHistogram instrument.Float64Histogram

	CwndGauge     instrument.Int64Gauge
	RateGauge     instrument.Int64Gauge
	DeltaGauge    instrument.Float64Gauge
	VelocityGauge instrument.Int64Gauge
	BaseRTTGauge  instrument.Int64Gauge
}

// NewCopaMetrics builds the OTel instrument set on tm's meter.
func NewCopaMetrics(tm *TelemetryManager) (*CopaMetrics, error) {
	reportsTotal, err := tm.CreateInt64Counter("copa_reports_total", "Datapath reports fed to the controller")
	if err != nil {
		return nil, fmt.Errorf("telemetry: reports counter: %w", err)
	}
	urgentReportsTotal, err := tm.CreateInt64Counter("copa_urgent_reports_total", "Urgent (loss or timeout) reports processed")
	if err != nil {
		return nil, fmt.Errorf("telemetry: urgent reports counter: %w", err)
	}
	timeoutsTotal, err := tm.CreateInt64Counter("copa_timeouts_total", "TCP-timeout-triggered window resets")
	if err != nil {
		return nil, fmt.Errorf("telemetry: timeouts counter: %w", err)
	}
	lossEventsTotal, err := tm.CreateInt64Counter("copa_loss_events_total", "Lost-packet events observed")
	if err != nil {
		return nil, fmt.Errorf("telemetry: loss events counter: %w", err)
	}
	bytesAckedTotal, err := tm.CreateInt64Counter("copa_bytes_acked_total", "Bytes acknowledged")
	if err != nil {
		return nil, fmt.Errorf("telemetry: bytes acked counter: %w", err)
	}

	rttHistogram, err := tm.CreateFloat64Histogram("copa_rtt_micros", "Observed RTT sample distribution, in microseconds")
	if err != nil {
		return nil, fmt.Errorf("telemetry: rtt histogram: %w", err)
	}

	cwndGauge, err := tm.CreateInt64Gauge("copa_cwnd_bytes", "Current congestion window in bytes")
	if err != nil {
		return nil, fmt.Errorf("telemetry: cwnd gauge: %w", err)
	}
	rateGauge, err := tm.CreateInt64Gauge("copa_rate_bytes_per_second", "Current pacing rate in bytes/sec")
	if err != nil {
		return nil, fmt.Errorf("telemetry: rate gauge: %w", err)
	}
	deltaGauge, err := tm.CreateFloat64Gauge("copa_delta", "Current aggressiveness parameter delta")
	if err != nil {
		return nil, fmt.Errorf("telemetry: delta gauge: %w", err)
	}
	velocityGauge, err := tm.CreateInt64Gauge("copa_velocity", "Current velocity multiplier")
	if err != nil {
		return nil, fmt.Errorf("telemetry: velocity gauge: %w", err)
	}
	baseRTTGauge, err := tm.CreateInt64Gauge("copa_base_rtt_micros", "Current base (minimum observed) RTT in microseconds")
	if err != nil {
		return nil, fmt.Errorf("telemetry: base rtt gauge: %w", err)
	}

	return &CopaMetrics{
		ReportsTotal:       reportsTotal,
		UrgentReportsTotal: urgentReportsTotal,
		TimeoutsTotal:      timeoutsTotal,
		LossEventsTotal:    lossEventsTotal,
		BytesAckedTotal:    bytesAckedTotal,
		RTTHistogram:       rttHistogram,
		CwndGauge:          cwndGauge,
		RateGauge:          rateGauge,
		DeltaGauge:         deltaGauge,
		VelocityGauge:      velocityGauge,
		BaseRTTGauge:       baseRTTGauge,
	}, nil
}

func (cm *CopaMetrics) IncrementReports(ctx context.Context, attrs ...attribute.KeyValue) {
	cm.ReportsTotal.Add(ctx, 1, attrs...)
}

func (cm *CopaMetrics) IncrementUrgentReports(ctx context.Context, attrs ...attribute.KeyValue) {
	cm.UrgentReportsTotal.Add(ctx, 1, attrs...)
}

func (cm *CopaMetrics) IncrementTimeouts(ctx context.Context, attrs ...attribute.KeyValue) {
	cm.TimeoutsTotal.Add(ctx, 1, attrs...)
}

func (cm *CopaMetrics) AddLoss(ctx context.Context, n int64, attrs ...attribute.KeyValue) {
	cm.LossEventsTotal.Add(ctx, n, attrs...)
}

func (cm *CopaMetrics) AddBytesAcked(ctx context.Context, n int64, attrs ...attribute.KeyValue) {
	cm.BytesAckedTotal.Add(ctx, n, attrs...)
}

func (cm *CopaMetrics) RecordRTT(ctx context.Context, rttMicros float64, attrs ...attribute.KeyValue) {
	cm.RTTHistogram.Record(ctx, rttMicros, attrs...)
}

func (cm *CopaMetrics) SetCwnd(ctx context.Context, cwnd int64, attrs ...attribute.KeyValue) {
	cm.CwndGauge.Record(ctx, cwnd, attrs...)
}

func (cm *CopaMetrics) SetRate(ctx context.Context, rate int64, attrs ...attribute.KeyValue) {
	cm.RateGauge.Record(ctx, rate, attrs...)
}

func (cm *CopaMetrics) SetDelta(ctx context.Context, delta float64, attrs ...attribute.KeyValue) {
	cm.DeltaGauge.Record(ctx, delta, attrs...)
}

func (cm *CopaMetrics) SetVelocity(ctx context.Context, velocity int64, attrs ...attribute.KeyValue) {
	cm.VelocityGauge.Record(ctx, velocity, attrs...)
}

func (cm *CopaMetrics) SetBaseRTT(ctx context.Context, rttMicros int64, attrs ...attribute.KeyValue) {
	cm.BaseRTTGauge.Record(ctx, rttMicros, attrs...)
}
