// Command copa resolves the Copa congestion-control configuration. With
// --demo, a simulated datapath drives the controller over a configurable
// network model and prints a summary, without requiring a real CCP
// runtime or kernel datapath; without it, no datapath is wired and the
// command waits for a shutdown signal.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/guptarohit/asciigraph"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/ccp-copa/copa/internal/copa"
	"github.com/ccp-copa/copa/internal/copaconfig"
	"github.com/ccp-copa/copa/internal/copahost"
	"github.com/ccp-copa/copa/internal/copalog"
	"github.com/ccp-copa/copa/internal/copametrics"
	"github.com/ccp-copa/copa/internal/copasim"
	"github.com/ccp-copa/copa/internal/telemetry"
)

func main() {
	ipc := flag.String("ipc", "unix", "datapath IPC transport (unix|netlink)")
	initCWND := flag.Uint("init_cwnd", 0, "initial congestion window in bytes (0: use datapath default)")
	defaultDelta := flag.Float64("default_delta", 0.5, "default Copa aggressiveness parameter")
	deltaMode := flag.String("delta_mode", "auto", "delta adaptation mode (auto|notcp)")
	prometheusAddr := flag.String("prometheus-addr", "", "address to serve /metrics on (e.g. :9090); empty disables it")
	otlpEndpoint := flag.String("otlp-endpoint", "", "OTLP/HTTP trace collector endpoint; empty keeps traces local")
	demo := flag.Bool("demo", false, "run against a simulated datapath and print a live summary")
	demoRounds := flag.Int("demo_rounds", 200, "number of simulated RTTs to run in demo mode")
	demoLossRate := flag.Float64("demo_loss_rate", 0.0, "simulated packet loss rate in demo mode")
	demoBaseRTTMs := flag.Int("demo_base_rtt_ms", 20, "simulated base RTT in milliseconds in demo mode")
	flag.Usage = usage
	flag.Parse()

	printBanner()

	cfg, ipcKind, err := copaconfig.Resolve(copaconfig.CLIConfig{
		IPC:          copaconfig.IPCKind(*ipc),
		InitCWND:     uint32(*initCWND),
		DefaultDelta: float32(*defaultDelta),
		DeltaMode:    *deltaMode,
	})
	if err != nil {
		color.Red("configuration error: %v", err)
		os.Exit(1)
	}

	log := copalog.New()
	defer log.Sync() //nolint:errcheck

	var promMetrics *copametrics.PrometheusMetrics
	if *prometheusAddr != "" {
		promMetrics = startPrometheusServer(*prometheusAddr, log)
	}

	var tm *telemetry.TelemetryManager
	var copaMetrics *telemetry.CopaMetrics
	if *otlpEndpoint != "" {
		tm, err = telemetry.NewTelemetryManager(context.Background(), telemetry.TelemetryConfig{
			ServiceName:    "copa",
			ServiceVersion: "dev",
			Environment:    "demo",
			OTLPEndpoint:   *otlpEndpoint,
			SampleRate:     1.0,
		})
		if err != nil {
			color.Red("failed to start telemetry: %v", err)
			os.Exit(1)
		}
		defer tm.Shutdown(context.Background()) //nolint:errcheck

		copaMetrics, err = telemetry.NewCopaMetrics(tm)
		if err != nil {
			color.Red("failed to build telemetry instruments: %v", err)
			os.Exit(1)
		}
	}

	if !*demo {
		fmt.Printf("copa core configured for ipc=%s (no real datapath wired in this build; pass --demo to run a simulation)\n", ipcKind)
		waitForSignal()
		return
	}

	runDemo(cfg, demoOptions{
		rounds:    *demoRounds,
		lossRate:  *demoLossRate,
		baseRTTMs: *demoBaseRTTMs,
	}, log, promMetrics, tm, copaMetrics)
}

func usage() {
	fmt.Fprintln(os.Stderr, "copa: a Copa delay-based congestion control core, runnable as a CCP plug-in or standalone demo")
	fmt.Fprintln(os.Stderr)
	flag.PrintDefaults()
}

func printBanner() {
	banner := color.New(color.FgCyan, color.Bold)
	if term.IsTerminal(int(os.Stdout.Fd())) {
		banner.Println("======================================")
		banner.Println("  Copa delay-based congestion control")
		banner.Println("======================================")
	} else {
		fmt.Println("Copa delay-based congestion control")
	}
}

// startPrometheusServer registers a fresh set of collectors on their own
// registry, serves them on addr, and returns the collectors so the demo
// loop can keep them updated.
func startPrometheusServer(addr string, log *zap.Logger) *copametrics.PrometheusMetrics {
	reg := prometheus.NewRegistry()
	metrics := copametrics.NewPrometheusMetricsWithRegistry(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("prometheus server stopped", zap.Error(err))
		}
	}()
	fmt.Printf("serving /metrics on %s\n", addr)
	return metrics
}

func waitForSignal() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	fmt.Println("\nshutting down")
}

type demoOptions struct {
	rounds    int
	lossRate  float64
	baseRTTMs int
}

func runDemo(cfg copa.Config, opts demoOptions, log *zap.Logger, promMetrics *copametrics.PrometheusMetrics, tm *telemetry.TelemetryManager, copaMetrics *telemetry.CopaMetrics) {
	dp := copasim.New(copasim.NetworkModel{
		BaseRTTMicros: uint32(opts.baseRTTMs) * 1000,
		JitterMicros:  uint32(opts.baseRTTMs) * 50,
		LossRate:      opts.lossRate,
	})
	host := copahost.New(dp, log.Named("datapath"))

	ctrl, err := copa.New(host, cfg, dp.InitCWND(), log.Named("controller"))
	if err != nil {
		color.Red("failed to start flow: %v", err)
		os.Exit(1)
	}

	metrics := copametrics.NewHDRMetrics()
	cwndSeries := make([]float64, 0, opts.rounds)
	ctx := context.Background()

	for i := 0; i < opts.rounds; i++ {
		cwnd, _ := dp.LastDecision()
		raw := dp.Sample(cwnd)

		spanCtx := ctx
		if tm != nil {
			var span trace.Span
			spanCtx, span = tm.StartSpan(ctx, "copa.on_report")
			if err := ctrl.OnReport(raw); err != nil {
				span.RecordError(err)
				span.End()
				color.Red("report error: %v", err)
				break
			}
			span.End()
		} else if err := ctrl.OnReport(raw); err != nil {
			color.Red("report error: %v", err)
			break
		}

		urgent := raw.Loss > 0 || raw.Timeout

		metrics.IncrementReports()
		if urgent {
			metrics.IncrementUrgentReports()
		}
		if raw.Timeout {
			metrics.IncrementTimeouts()
		}

		newCwnd, newRate := dp.LastDecision()
		metrics.RecordCwnd(newCwnd)
		metrics.RecordRate(newRate)
		metrics.RecordRTT(raw.RTT)
		metrics.RecordVelocity(ctrl.Velocity())
		metrics.AddLoss(raw.Loss)
		metrics.AddBytesAcked(uint32(raw.Acked))
		cwndSeries = append(cwndSeries, float64(newCwnd))

		if promMetrics != nil {
			promMetrics.SetCwnd(uint32(ctrl.Cwnd()))
			promMetrics.SetRate(uint32(ctrl.Rate()))
			promMetrics.SetDelta(ctrl.Delta())
			promMetrics.SetVelocity(ctrl.Velocity())
			promMetrics.SetBaseRTT(ctrl.BaseRTT())
			promMetrics.ObserveRTT(raw.RTT)
			promMetrics.IncrementReports()
			if urgent {
				promMetrics.IncrementUrgentReports()
			}
			if raw.Timeout {
				promMetrics.IncrementTimeouts()
			}
			promMetrics.AddLoss(raw.Loss)
			promMetrics.AddBytesAcked(uint32(raw.Acked))
		}

		if copaMetrics != nil {
			copaMetrics.SetCwnd(spanCtx, int64(ctrl.Cwnd()))
			copaMetrics.SetRate(spanCtx, int64(ctrl.Rate()))
			copaMetrics.SetDelta(spanCtx, float64(ctrl.Delta()))
			copaMetrics.SetVelocity(spanCtx, int64(ctrl.Velocity()))
			copaMetrics.SetBaseRTT(spanCtx, int64(ctrl.BaseRTT()))
			copaMetrics.RecordRTT(spanCtx, float64(raw.RTT))
			copaMetrics.IncrementReports(spanCtx)
			if urgent {
				copaMetrics.IncrementUrgentReports(spanCtx)
			}
			if raw.Timeout {
				copaMetrics.IncrementTimeouts(spanCtx)
			}
			copaMetrics.AddLoss(spanCtx, int64(raw.Loss))
			copaMetrics.AddBytesAcked(spanCtx, int64(raw.Acked))
		}

		time.Sleep(time.Microsecond) // yield between simulated rounds
	}

	printSummary(metrics, cwndSeries)
}

func printSummary(metrics *copametrics.HDRMetrics, cwndSeries []float64) {
	if len(cwndSeries) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(cwndSeries, asciigraph.Height(12), asciigraph.Caption("cwnd (bytes)")))
		fmt.Println()
	}

	cwnd := metrics.CwndStats()
	rate := metrics.RateStats()
	rtt := metrics.RTTStats()
	counters := metrics.Snapshot()

	table := tablewriter.NewWriter(os.Stdout)
	table.Append([]string{"metric", "p50", "p99", "max"})
	table.Append([]string{"cwnd (bytes)", fmt.Sprintf("%.0f", cwnd.P50), fmt.Sprintf("%.0f", cwnd.P99), fmt.Sprintf("%.0f", cwnd.Max)})
	table.Append([]string{"rate (bytes/s)", fmt.Sprintf("%.0f", rate.P50), fmt.Sprintf("%.0f", rate.P99), fmt.Sprintf("%.0f", rate.Max)})
	table.Append([]string{"rtt (us)", fmt.Sprintf("%.0f", rtt.P50), fmt.Sprintf("%.0f", rtt.P99), fmt.Sprintf("%.0f", rtt.Max)})
	table.Render() //nolint:errcheck

	fmt.Printf("reports=%d urgent=%d timeouts=%d loss_events=%d bytes_acked=%d\n",
		counters.Reports, counters.UrgentReports, counters.Timeouts, counters.LossEvents, counters.BytesAcked)
}
