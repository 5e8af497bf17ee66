package copa

import "testing"

func TestRTTWindowTracksBaseRTT(t *testing.T) {
	w := NewRTTWindow()
	var now Microseconds
	for _, rtt := range []uint32{20000, 25000, 18000, 30000} {
		now += Microseconds(rtt)
		w.NewSample(rtt, now)
	}
	if got := w.BaseRTT(); got != 18000 {
		t.Errorf("BaseRTT() = %d, want 18000", got)
	}
}

func TestRTTWindowDidBaseRTTChangeClearsOnRead(t *testing.T) {
	w := NewRTTWindow()
	w.NewSample(20000, 20000)
	if !w.DidBaseRTTChange() {
		t.Fatal("expected base RTT change on first sample")
	}
	if w.DidBaseRTTChange() {
		t.Fatal("DidBaseRTTChange should clear the flag on read")
	}
}

func TestRTTWindowEvictsOldOutlier(t *testing.T) {
	w := NewRTTWindow()
	now := Microseconds(0)

	now += 20000
	w.NewSample(5000, now) // a brief, early low outlier sets base RTT

	for i := 0; i < 80; i++ {
		now += 20000
		w.NewSample(20000, now)
	}
	// Once the outlier ages out of the srtt-scaled retention window, the
	// base RTT should climb back up to the stable value.
	if got := w.BaseRTT(); got != 20000 {
		t.Errorf("BaseRTT() after eviction = %d, want 20000", got)
	}
}

func TestRTTWindowTCPDetection(t *testing.T) {
	w := NewRTTWindow()
	now := Microseconds(0)
	// Persistent queuing: RTT samples stay well above the initial base.
	for i := 0; i < 60; i++ {
		now += 20000
		rtt := uint32(20000)
		if i > 5 {
			rtt = 40000
		}
		w.NewSample(rtt, now)
	}
	if !w.TCPDetected() {
		t.Error("expected TCPDetected() true under persistent queuing")
	}
}

func TestRTTWindowNoTCPDetectionUnderStableRTT(t *testing.T) {
	w := NewRTTWindow()
	now := Microseconds(0)
	for i := 0; i < 60; i++ {
		now += 20000
		w.NewSample(20000, now)
	}
	if w.TCPDetected() {
		t.Error("expected TCPDetected() false under stable RTT")
	}
}
