package copa

import (
	"math"
	"testing"
)

// fakeDatapath is a minimal in-package Datapath fake: it only records
// the most recent field values and never fails, so these tests can
// focus on the controller's decision logic.
type fakeDatapath struct {
	installed string
	fields    map[string]uint32
	failNext  bool
}

func newFakeDatapath() *fakeDatapath {
	return &fakeDatapath{fields: make(map[string]uint32)}
}

func (f *fakeDatapath) Install(program string) (Scope, error) {
	f.installed = program
	return struct{}{}, nil
}

func (f *fakeDatapath) UpdateField(scope Scope, updates []FieldUpdate) error {
	for _, u := range updates {
		f.fields[u.Name] = u.Value
	}
	return nil
}

func newTestController(t *testing.T, cfg Config) (*Controller, *fakeDatapath) {
	t.Helper()
	dp := newFakeDatapath()
	c, err := New(dp, cfg, 10*windowMSS, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c, dp
}

func TestNewInstallsFoldProgramAndPushesInitialDecision(t *testing.T) {
	c, dp := newTestController(t, Config{DefaultDelta: 0.5, DeltaMode: DeltaModeNoTCP})
	if dp.installed == "" {
		t.Fatal("expected fold program to be installed")
	}
	if dp.fields[FieldCwnd] != c.cwnd {
		t.Errorf("initial pushed cwnd = %d, want %d", dp.fields[FieldCwnd], c.cwnd)
	}
	// base_rtt is still unknown at flow creation, so the pushed rate must
	// be the large sentinel the datapath clamps, not a near-zero value
	// from dividing by the raw math.MaxUint32 sentinel.
	if dp.fields[FieldRate] != math.MaxUint32 {
		t.Errorf("initial pushed rate = %d, want sentinel %d", dp.fields[FieldRate], uint32(math.MaxUint32))
	}
}

func TestNewRejectsOutOfRangeDelta(t *testing.T) {
	dp := newFakeDatapath()
	if _, err := New(dp, Config{DefaultDelta: 0}, 10*windowMSS, nil); err == nil {
		t.Fatal("expected error for default_delta == 0")
	}
	if _, err := New(dp, Config{DefaultDelta: 1.5}, 10*windowMSS, nil); err == nil {
		t.Fatal("expected error for default_delta > 1")
	}
}

func TestSlowStartGrowsWindowOnIncrease(t *testing.T) {
	c, dp := newTestController(t, Config{DefaultDelta: 0.5, DeltaMode: DeltaModeNoTCP})
	startCwnd := c.cwnd

	now := Microseconds(20000)
	for i := 0; i < 3; i++ {
		now += 20000
		if err := c.OnReport(RawReport{
			Acked: 10 * windowMSS, RTT: 20000, MinRTT: 20000, Now: now,
		}); err != nil {
			t.Fatalf("OnReport error: %v", err)
		}
	}

	if c.cwnd <= startCwnd {
		t.Errorf("expected cwnd to grow in slow start, got %d (started at %d)", c.cwnd, startCwnd)
	}
	if dp.fields[FieldCwnd] != c.cwnd {
		t.Errorf("pushed cwnd %d does not match controller cwnd %d", dp.fields[FieldCwnd], c.cwnd)
	}
}

func TestTimeoutResetsToInitialWindow(t *testing.T) {
	c, _ := newTestController(t, Config{DefaultDelta: 0.5, DeltaMode: DeltaModeNoTCP})

	now := Microseconds(20000)
	for i := 0; i < 3; i++ {
		now += 20000
		c.OnReport(RawReport{Acked: 10 * windowMSS, RTT: 20000, MinRTT: 20000, Now: now})
	}
	grownCwnd := c.cwnd
	if grownCwnd <= c.initCWND {
		t.Fatalf("expected window to have grown before the timeout test, got %d", grownCwnd)
	}

	now += 20000
	if err := c.OnReport(RawReport{Timeout: true, Now: now}); err != nil {
		t.Fatalf("OnReport error: %v", err)
	}
	if c.cwnd != c.initCWND {
		t.Errorf("cwnd after timeout = %d, want initCWND %d", c.cwnd, c.initCWND)
	}
	if !c.slowStart {
		t.Error("expected slow start to be re-entered after a timeout")
	}
}

func TestBaseRTTDropPushesFieldUpdate(t *testing.T) {
	c, dp := newTestController(t, Config{DefaultDelta: 0.5, DeltaMode: DeltaModeNoTCP})

	now := Microseconds(20000)
	c.OnReport(RawReport{Acked: 1000, RTT: 20000, MinRTT: 20000, Now: now})

	now += 20000
	c.OnReport(RawReport{Acked: 1000, RTT: 10000, MinRTT: 10000, Now: now})

	if dp.fields[FieldBaseRTT] != 10000 {
		t.Errorf("pushed base_rtt = %d, want 10000", dp.fields[FieldBaseRTT])
	}
}

func TestRateReflectsCwndAndBaseRTT(t *testing.T) {
	c, _ := newTestController(t, Config{DefaultDelta: 0.5, DeltaMode: DeltaModeNoTCP})

	// The first report only seeds the collector; the second is the first
	// gated Report, which records a base RTT.
	c.OnReport(RawReport{Acked: 1000, RTT: 20000, MinRTT: 20000, Now: 20000})
	c.OnReport(RawReport{Acked: 1000, RTT: 20000, MinRTT: 20000, Now: 40000})
	if c.rtt.BaseRTT() != 20000 {
		t.Fatalf("BaseRTT() = %d, want 20000", c.rtt.BaseRTT())
	}

	want := uint64(2) * uint64(c.cwnd) * 1_000_000 / uint64(c.rtt.BaseRTT())
	if got := uint64(c.rate()); got != want {
		t.Errorf("rate() = %d, want %d", got, want)
	}
}
