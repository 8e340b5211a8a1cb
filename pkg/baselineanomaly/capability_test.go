package baselineanomaly

import (
	"testing"

	"github.com/netweaver/flowtelemetry/pkg/flow"
)

func pairRecords(n int, latencyMS float64) []flow.Record {
	out := make([]flow.Record, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, flow.Record{
			Src: "10.0.0.1", Dst: "10.0.0.2",
			SrcPort: uint16(1000 + i), DstPort: 443, Proto: "TCP",
			LatencyMS: latencyMS,
		})
	}
	return out
}

func TestAnalyzeOnceBaselineSeedingThenSpike(t *testing.T) {
	cfg := Config{
		WindowSeconds:    60,
		MinSamplesPerKey: 20,
		Alpha:            0.2,
		ZThreshold:       3.0,
		MinUpdates:       5,
		GroupMode:        GroupPair,
		CooldownSeconds:  0,
		ShiftThreshold:   1.1, // effectively disables shift detection for this test
		ShiftMinTotal:    1_000_000,
	}
	cap := New(cfg)

	baseline := pairRecords(60, 20)
	var lastResult Result
	for i := 0; i < 6; i++ {
		lastResult = cap.AnalyzeOnce(baseline)
		if len(lastResult.Anomalies) != 0 {
			t.Fatalf("pass %d: unexpected anomalies over a stable baseline: %+v", i, lastResult.Anomalies)
		}
	}

	spike := pairRecords(60, 200)
	result := cap.AnalyzeOnce(spike)

	found := false
	for _, a := range result.Anomalies {
		if a.Key == "pair:10.0.0.1->10.0.0.2" && (a.Metric == "p50_ms" || a.Metric == "p95_ms") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an anomaly for pair:10.0.0.1->10.0.0.2 after the spike, got %+v", result.Anomalies)
	}
}

func skewedPairRecords(lows, highs int) []flow.Record {
	out := make([]flow.Record, 0, lows+highs)
	for i := 0; i < lows; i++ {
		out = append(out, flow.Record{Src: "10.0.0.1", Dst: "10.0.0.2", Proto: "TCP", LatencyMS: 10})
	}
	for i := 0; i < highs; i++ {
		out = append(out, flow.Record{Src: "10.0.0.1", Dst: "10.0.0.2", Proto: "TCP", LatencyMS: 500})
	}
	return out
}

// TestAnalyzeOnceP50AndP95TrackIndependentBaselines guards against p50_ms
// and p95_ms collapsing onto a single shared EWMA point: a heavily skewed
// distribution keeps p50 low and p95 high every pass, so if the two metrics
// shared one point its mean would drift toward whichever metric updated it
// last and the seeded baseline would never stabilize.
func TestAnalyzeOnceP50AndP95TrackIndependentBaselines(t *testing.T) {
	cfg := Config{
		WindowSeconds:    60,
		MinSamplesPerKey: 20,
		Alpha:            0.2,
		ZThreshold:       3.0,
		MinUpdates:       5,
		GroupMode:        GroupPair,
		CooldownSeconds:  0,
		ShiftThreshold:   1.1,
		ShiftMinTotal:    1_000_000,
	}
	cap := New(cfg)

	skewed := skewedPairRecords(55, 5)
	var last Result
	for i := 0; i < 8; i++ {
		last = cap.AnalyzeOnce(skewed)
		if len(last.Anomalies) != 0 {
			t.Fatalf("pass %d: unexpected anomalies over a stable skewed baseline: %+v", i, last.Anomalies)
		}
	}

	p50 := cap.model.GetPoint("pair:10.0.0.1->10.0.0.2", "p50_ms")
	p95 := cap.model.GetPoint("pair:10.0.0.1->10.0.0.2", "p95_ms")
	if p50.Mean >= p95.Mean {
		t.Errorf("p50_ms baseline mean (%v) >= p95_ms baseline mean (%v); metrics must not share a point", p50.Mean, p95.Mean)
	}
}

func TestAnalyzeOnceSkipsZeroLatencyRecords(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSamplesPerKey = 1
	cap := New(cfg)

	recs := []flow.Record{{Src: "a", Dst: "b", Proto: "TCP", LatencyMS: 0}}
	result := cap.AnalyzeOnce(recs)
	if result.KeysSeen != 0 {
		t.Errorf("KeysSeen = %d, want 0 (zero-latency records must be skipped)", result.KeysSeen)
	}
}

func TestAnalyzeOnceGroupModes(t *testing.T) {
	r := flow.Record{Src: "10.0.0.1", Dst: "10.0.0.2", Proto: "TCP", Exporter: "9.9.9.9", LatencyMS: 5}

	tests := []struct {
		mode GroupMode
		want string
	}{
		{GroupSrc, "src:10.0.0.1"},
		{GroupDst, "dst:10.0.0.2"},
		{GroupPair, "pair:10.0.0.1->10.0.0.2"},
		{GroupProto, "proto:TCP"},
		{GroupExporter, "exporter:9.9.9.9"},
	}
	for _, tt := range tests {
		if got := groupKey(r, tt.mode); got != tt.want {
			t.Errorf("groupKey(mode=%s) = %q, want %q", tt.mode, got, tt.want)
		}
	}
}

func TestAnalyzeOnceExporterModeFallsBackToUnknown(t *testing.T) {
	r := flow.Record{Src: "10.0.0.1", Dst: "10.0.0.2", Proto: "TCP"}
	if got := groupKey(r, GroupExporter); got != unknownExporter {
		t.Errorf("groupKey with no exporter = %q, want %q", got, unknownExporter)
	}
}

func TestAnalyzeOnceShiftEmittedOnGroupDistributionChange(t *testing.T) {
	cfg := Config{
		WindowSeconds:    60,
		MinSamplesPerKey: 1,
		Alpha:            0.2,
		ZThreshold:       3.0,
		MinUpdates:       1000, // keep baseline anomalies out of the way
		GroupMode:        GroupDst,
		CooldownSeconds:  0,
		ShiftThreshold:   0.3,
		ShiftMinTotal:    10,
	}
	cap := New(cfg)

	window1 := append(pairRecordsTo("10.0.0.2", 50, 5), pairRecordsTo("10.0.0.3", 50, 5)...)
	cap.AnalyzeOnce(window1) // priming pass

	window2 := append(pairRecordsTo("10.0.0.2", 5, 5), pairRecordsTo("10.0.0.3", 95, 5)...)
	result := cap.AnalyzeOnce(window2)

	if result.Shift == nil {
		t.Fatal("expected a shift event after the distribution flipped")
	}
	if result.Shift.L1Distance <= 0 {
		t.Errorf("Shift.L1Distance = %v, want > 0", result.Shift.L1Distance)
	}
}

func pairRecordsTo(dst string, n int, latencyMS float64) []flow.Record {
	out := make([]flow.Record, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, flow.Record{Src: "10.0.0.1", Dst: dst, Proto: "TCP", LatencyMS: latencyMS})
	}
	return out
}
