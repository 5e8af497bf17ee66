package copametrics

import (
	"sync"
	"testing"
)

func TestNewHDRMetrics(t *testing.T) {
	m := NewHDRMetrics()
	if m == nil {
		t.Fatal("NewHDRMetrics() returned nil")
	}
}

func TestRecordCwnd(t *testing.T) {
	m := NewHDRMetrics()
	cwnds := []uint32{14480, 28960, 57920, 115840}
	for _, c := range cwnds {
		m.RecordCwnd(c)
	}

	stats := m.CwndStats()
	if stats.Count != int64(len(cwnds)) {
		t.Errorf("expected count %d, got %d", len(cwnds), stats.Count)
	}
	if stats.P50 <= 0 {
		t.Error("P50 should be positive")
	}
	if stats.P99 < stats.P50 {
		t.Error("P99 should be >= P50")
	}
}

func TestRecordRate(t *testing.T) {
	m := NewHDRMetrics()
	for _, r := range []uint32{1_000_000, 5_000_000, 10_000_000} {
		m.RecordRate(r)
	}
	stats := m.RateStats()
	if stats.Count != 3 {
		t.Errorf("expected count 3, got %d", stats.Count)
	}
}

func TestRecordRTT(t *testing.T) {
	m := NewHDRMetrics()
	for _, rtt := range []uint32{20_000, 25_000, 30_000} {
		m.RecordRTT(rtt)
	}
	stats := m.RTTStats()
	if stats.Count != 3 {
		t.Errorf("expected count 3, got %d", stats.Count)
	}
}

func TestRecordVelocity(t *testing.T) {
	m := NewHDRMetrics()
	for _, v := range []uint32{1, 2, 4, 8} {
		m.RecordVelocity(v)
	}
	stats := m.VelocityStats()
	if stats.Count != 4 {
		t.Errorf("expected count 4, got %d", stats.Count)
	}
}

func TestCounters(t *testing.T) {
	m := NewHDRMetrics()
	m.IncrementReports()
	m.IncrementReports()
	m.IncrementUrgentReports()
	m.IncrementTimeouts()
	m.AddLoss(3)
	m.AddBytesAcked(1500)

	c := m.Snapshot()
	if c.Reports != 2 {
		t.Errorf("expected 2 reports, got %d", c.Reports)
	}
	if c.UrgentReports != 1 {
		t.Errorf("expected 1 urgent report, got %d", c.UrgentReports)
	}
	if c.Timeouts != 1 {
		t.Errorf("expected 1 timeout, got %d", c.Timeouts)
	}
	if c.LossEvents != 3 {
		t.Errorf("expected 3 loss events, got %d", c.LossEvents)
	}
	if c.BytesAcked != 1500 {
		t.Errorf("expected 1500 bytes acked, got %d", c.BytesAcked)
	}
}

func TestExportToText(t *testing.T) {
	m := NewHDRMetrics()
	m.RecordCwnd(28960)
	m.RecordRate(5_000_000)
	m.RecordRTT(25_000)
	m.RecordVelocity(2)
	m.IncrementReports()

	out := m.ExportToText()
	expectedKeys := []string{
		"copa_cwnd_bytes_p50",
		"copa_rate_bytes_per_sec_p50",
		"copa_rtt_micros_p50",
		"copa_velocity_p50",
		"copa_reports_total",
	}
	for _, key := range expectedKeys {
		if _, ok := out[key]; !ok {
			t.Errorf("expected key %q in text export", key)
		}
	}
}

func TestHDRMetricsConcurrentAccess(t *testing.T) {
	m := NewHDRMetrics()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.RecordCwnd(uint32(j + 1))
				m.IncrementReports()
				m.AddBytesAcked(uint32(j))
			}
		}()
	}
	wg.Wait()

	stats := m.CwndStats()
	if stats.Count != 1000 {
		t.Errorf("expected 1000 cwnd samples, got %d", stats.Count)
	}
	counters := m.Snapshot()
	if counters.Reports != 1000 {
		t.Errorf("expected 1000 reports, got %d", counters.Reports)
	}
}

func TestEmptyHistograms(t *testing.T) {
	m := NewHDRMetrics()
	if s := m.CwndStats(); s.Count != 0 {
		t.Error("empty cwnd histogram should have count 0")
	}
	if s := m.RateStats(); s.Count != 0 {
		t.Error("empty rate histogram should have count 0")
	}
	if s := m.RTTStats(); s.Count != 0 {
		t.Error("empty rtt histogram should have count 0")
	}
	if s := m.VelocityStats(); s.Count != 0 {
		t.Error("empty velocity histogram should have count 0")
	}
}
