package copa

import "testing"

func TestAggMeasurementSeedsFirstReport(t *testing.T) {
	a := NewAggMeasurement(0.5)
	m := a.Report(RawReport{Acked: 1448, RTT: 20000, MinRTT: 20000, Now: 20000})
	if m.Status != NoReport {
		t.Errorf("first report Status = %v, want NoReport", m.Status)
	}
}

func TestAggMeasurementGatesUntilIntervalElapses(t *testing.T) {
	a := NewAggMeasurement(0.5)
	a.Report(RawReport{Acked: 1448, RTT: 20000, MinRTT: 20000, Now: 20000})

	m := a.Report(RawReport{Acked: 1448, RTT: 20000, MinRTT: 20000, Now: 21000})
	if m.Status != NoReport {
		t.Errorf("Status before gate elapses = %v, want NoReport", m.Status)
	}

	m = a.Report(RawReport{Acked: 1448, RTT: 20000, MinRTT: 20000, Now: 200000})
	if m.Status != Report {
		t.Errorf("Status after gate elapses = %v, want Report", m.Status)
	}
}

func TestAggMeasurementUrgentOnLoss(t *testing.T) {
	a := NewAggMeasurement(0.5)
	a.Report(RawReport{Acked: 1448, RTT: 20000, MinRTT: 20000, Now: 20000})

	m := a.Report(RawReport{Loss: 1, Now: 21000})
	if m.Status != UrgentReport {
		t.Errorf("Status on loss = %v, want UrgentReport", m.Status)
	}
	if m.Loss != 1 {
		t.Errorf("Loss = %d, want 1", m.Loss)
	}
}

func TestAggMeasurementUrgentOnTimeout(t *testing.T) {
	a := NewAggMeasurement(0.5)
	a.Report(RawReport{Acked: 1448, RTT: 20000, MinRTT: 20000, Now: 20000})

	m := a.Report(RawReport{Timeout: true, Now: 21000})
	if m.Status != UrgentReport || !m.Timeout {
		t.Errorf("expected urgent timeout report, got %+v", m)
	}
}

func TestAggMeasurementAccumulatesAckedBetweenReports(t *testing.T) {
	a := NewAggMeasurement(0.5)
	a.Report(RawReport{Acked: 1448, RTT: 20000, MinRTT: 20000, Now: 20000})
	a.Report(RawReport{Acked: 1448, RTT: 20000, MinRTT: 20000, Now: 21000})
	a.Report(RawReport{Acked: 1448, RTT: 20000, MinRTT: 20000, Now: 22000})

	m := a.Report(RawReport{Acked: 1448, RTT: 20000, MinRTT: 20000, Now: 200000})
	if m.Status != Report {
		t.Fatalf("expected Report status, got %v", m.Status)
	}
	if want := Bytes(4 * 1448); m.Acked != want {
		t.Errorf("Acked = %d, want %d", m.Acked, want)
	}
}
