// Package copa implements the per-flow Copa delay-based congestion
// control algorithm as a CCP plug-in core: the RTT history window, the
// delta (aggressiveness) mode machine, the aggregating measurement
// collector, and the velocity-based window/rate update rule.
package copa

// Microseconds is a monotonic duration or timestamp as delivered by the
// datapath, in microseconds. The datapath's own counter may be narrower
// than 64 bits and can wrap; this package always receives it widened to
// uint64 by the host and never performs arithmetic that assumes a
// particular native width.
type Microseconds = uint64

// Bytes is a byte count, e.g. a congestion window or ACKed volume.
type Bytes = uint32

const (
	// rateMSS is the segment size used in rate (bytes/sec) arithmetic.
	rateMSS = 1460
	// windowMSS is the segment size used in window (cwnd) arithmetic.
	// The two constants differ intentionally: 1460 is the full segment,
	// 1448 is the TCP payload after a 12-byte options allowance. Both are
	// preserved to reproduce the original algorithm's behavior.
	windowMSS = 1448

	// maxVelocity is the velocity ceiling (u16 max in the original).
	maxVelocity = 0xFFFF
)
