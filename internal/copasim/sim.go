// Package copasim is an in-process, simulated Datapath: it stands in
// for the real CCP runtime's IPC transport and fold interpreter so the
// controller can be driven and demoed without a kernel datapath. It is
// used by cmd/copa's --demo mode and by this package's own tests.
package copasim

import (
	"fmt"
	"math/rand"

	"go.uber.org/multierr"

	"github.com/ccp-copa/copa/internal/copa"
)

// NetworkModel parameterizes the link the simulated datapath emulates:
// a fixed or jittered base RTT and a packet loss rate. It has no timeout
// setting: Sample never reports a timeout.
type NetworkModel struct {
	BaseRTTMicros uint32
	JitterMicros  uint32
	LossRate      float64
	MSS           uint32

	Rand *rand.Rand
}

func (m NetworkModel) mss() uint32 {
	if m.MSS == 0 {
		return 1448
	}
	return m.MSS
}

// Datapath is a single simulated flow: it tracks installed fields and
// produces RawReports by sampling the configured NetworkModel against a
// requested cwnd.
type Datapath struct {
	model  NetworkModel
	fields map[string]uint32
	now    uint64

	// lastCwnd and lastRate mirror the most recently pushed decision,
	// for use by a driving loop or test harness.
	lastCwnd uint32
	lastRate uint32
}

// New returns a simulated datapath for model. Its initial congestion
// window (used to answer the controller's datapathInitCWND argument) is
// derived from the model by InitCWND.
func New(model NetworkModel) *Datapath {
	if model.Rand == nil {
		model.Rand = rand.New(rand.NewSource(1))
	}
	return &Datapath{
		model:  model,
		fields: make(map[string]uint32),
	}
}

// InitCWND is the window the simulated link reports as its datapath
// default, analogous to a kernel's initial cwnd.
func (d *Datapath) InitCWND() copa.Bytes {
	return copa.Bytes(10 * d.model.mss())
}

// Install records that a fold program was installed; the simulated
// datapath does not parse or execute it, since field production here is
// driven directly by Sample rather than by a fold interpreter.
func (d *Datapath) Install(program string) (copa.Scope, error) {
	if program == "" {
		return nil, fmt.Errorf("copasim: empty fold program")
	}
	return struct{}{}, nil
}

// UpdateField applies a batch of field writes. Each field is validated
// independently (known name, in-range value) and every failure is
// joined via multierr so a caller sees the complete set of problems in
// one batch rather than only the first.
func (d *Datapath) UpdateField(scope copa.Scope, updates []copa.FieldUpdate) error {
	var errs error
	for _, u := range updates {
		switch u.Name {
		case copa.FieldCwnd:
			d.fields[u.Name] = u.Value
			d.lastCwnd = u.Value
		case copa.FieldRate:
			d.fields[u.Name] = u.Value
			d.lastRate = u.Value
		case copa.FieldBaseRTT:
			d.fields[u.Name] = u.Value
		default:
			errs = multierr.Append(errs, fmt.Errorf("copasim: unknown field %q", u.Name))
		}
	}
	return errs
}

// LastDecision returns the most recently pushed (cwnd, rate) pair.
func (d *Datapath) LastDecision() (cwnd, rate uint32) {
	return d.lastCwnd, d.lastRate
}

// Sample advances the simulated clock by one RTT and produces a
// RawReport reflecting acked bytes and lost packets for the given
// in-flight window, as a driving loop (demo mode or a test) would
// observe from a real link.
func (d *Datapath) Sample(cwnd uint32) copa.RawReport {
	rtt := d.model.BaseRTTMicros
	if d.model.JitterMicros > 0 {
		rtt += uint32(d.model.Rand.Int63n(int64(d.model.JitterMicros)))
	}
	d.now += uint64(rtt)

	mss := d.model.mss()
	packets := cwnd / mss
	if packets == 0 {
		packets = 1
	}

	var lost uint32
	for i := uint32(0); i < packets; i++ {
		if d.model.LossRate > 0 && d.model.Rand.Float64() < d.model.LossRate {
			lost++
		}
	}
	acked := (packets - lost) * mss

	return copa.RawReport{
		Acked:    copa.Bytes(acked),
		Sacked:   0,
		Loss:     lost,
		Inflight: cwnd,
		Timeout:  false,
		RTT:      rtt,
		Now:      d.now,
		MinRTT:   rtt,
	}
}
