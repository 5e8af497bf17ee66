package copa

import "testing"

func TestDeltaManagerDefaultModeNoTCP(t *testing.T) {
	d := NewDeltaManager(0.5, DeltaModeNoTCP)
	w := NewRTTWindow()
	w.NewSample(20000, 20000)

	d.ReportMeasurement(w, 1000, 0, 20000)
	if got := d.GetMode(); got != ModeDefault {
		t.Errorf("GetMode() = %v, want ModeDefault", got)
	}
	if got := d.GetDelta(); got != 0.5 {
		t.Errorf("GetDelta() = %v, want 0.5", got)
	}
}

func TestDeltaManagerEntersTCPCoopOnInsufficientEvidence(t *testing.T) {
	d := NewDeltaManager(0.5, DeltaModeAuto)
	w := NewRTTWindow()
	w.NewSample(20000, 20000)

	// Fewer than 10 TCP-detect samples: Auto mode defaults to TCPCoop
	// until enough evidence accumulates to rule a competitor out.
	d.ReportMeasurement(w, 1000, 0, 20000)
	if got := d.GetMode(); got != ModeTCPCoop {
		t.Errorf("GetMode() = %v, want ModeTCPCoop", got)
	}
}

func TestDeltaManagerEntersLossModeAboveThreshold(t *testing.T) {
	d := NewDeltaManager(0.5, DeltaModeAuto)
	w := NewRTTWindow()
	now := Microseconds(20000)
	w.NewSample(20000, now)

	// Drive the rolling loss rate above lossModeThreshold (10%) by
	// reporting mostly losses across one loss-rate cycle.
	for i := 0; i < 5; i++ {
		now += 20000
		d.ReportMeasurement(w, 100, 900, now)
	}
	now += 2 * 20000 * lossRateCycleRTTs
	d.ReportMeasurement(w, 0, 1, now)

	if got := d.GetMode(); got != ModeLoss {
		t.Errorf("GetMode() = %v, want ModeLoss", got)
	}
}

func TestTCPEquivalentDelta(t *testing.T) {
	got := tcpEquivalentDelta(0.5)
	want := float32(1.0 / 3.0)
	if diff := got - want; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("tcpEquivalentDelta(0.5) = %v, want ~%v", got, want)
	}
}

func TestDeltaModeStringer(t *testing.T) {
	cases := map[DeltaMode]string{
		ModeDefault: "default",
		ModeTCPCoop: "tcp-coop",
		ModeLoss:    "loss",
	}
	for mode, want := range cases {
		if got := mode.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", mode, got, want)
		}
	}
}
