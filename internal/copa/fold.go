package copa

// AlgorithmName is the literal the host runtime registers this
// congestion-control plug-in under.
const AlgorithmName = "copa"

// Fold-program field names, bit-exact and order-free per spec.md §6.
const (
	FieldAckBytesAcked      = "Ack.bytes_acked"
	FieldAckPacketsMisorder = "Ack.packets_misordered"
	FieldAckLostPktsSample  = "Ack.lost_pkts_sample"
	FieldAckPacketsInFlight = "Ack.packets_in_flight"
	FieldAckNow             = "Ack.now"
	FieldFlowRTTSampleUs    = "Flow.rtt_sample_us"
	FieldFlowWasTimeout     = "Flow.was_timeout"

	FieldReportAcked    = "Report.acked"
	FieldReportSacked   = "Report.sacked"
	FieldReportLoss     = "Report.loss"
	FieldReportInflight = "Report.inflight"
	FieldReportTimeout  = "Report.timeout"
	FieldReportRTT      = "Report.rtt"
	FieldReportNow      = "Report.now"
	FieldReportMinRTT   = "Report.minrtt"

	// FieldCwnd and FieldRate are the two fields the controller pushes
	// back to the datapath on every update.
	FieldCwnd    = "Cwnd"
	FieldRate    = "Rate"
	FieldBaseRTT = "base_rtt"
)

// FoldProgram is the datapath program installed once per flow. It
// pre-aggregates per-ACK fields into a Report and decides, on the
// datapath's own clock, when that Report is worth sending to the
// control plane: on any loss or timeout, or once basertt/2 microseconds
// have elapsed since the last report. The field names and the two
// trigger conditions are part of the external interface (spec.md §6)
// and must not change independently of it.
const FoldProgram = `(def
    (Report
        (volatile acked 0)
        (volatile sacked 0)
        (volatile loss 0)
        (volatile inflight 0)
        (volatile timeout 0)
        (volatile rtt 0)
        (volatile now 0)
        (volatile minrtt +infinity)
    )
    (basertt +infinity)
)
(when true
    (:= Report.acked (+ Report.acked Ack.bytes_acked))
    (:= Report.inflight Flow.packets_in_flight)
    (:= Report.rtt Flow.rtt_sample_us)
    (:= Report.minrtt (min Report.minrtt Flow.rtt_sample_us))
    (:= basertt (min basertt Flow.rtt_sample_us))
    (:= Report.sacked (+ Report.sacked Ack.packets_misordered))
    (:= Report.loss Ack.lost_pkts_sample)
    (:= Report.timeout Flow.was_timeout)
    (:= Report.now Ack.now)
    (fallthrough)
)
(when (|| Flow.was_timeout (> Report.loss 0))
    (:= Micros 0)
    (report)
)
(when (> Micros (/ basertt 2))
    (:= Micros 0)
    (report)
)`
