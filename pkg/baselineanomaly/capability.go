// Package baselineanomaly implements the baseline-anomaly capability:
// per-key EWMA latency baselines with detect-before-update ordering, and
// L1 distribution-shift detection across the same grouping.
package baselineanomaly

import (
	"fmt"
	"time"

	"github.com/netweaver/flowtelemetry/pkg/baseline"
	"github.com/netweaver/flowtelemetry/pkg/dedupe"
	"github.com/netweaver/flowtelemetry/pkg/flow"
	"github.com/netweaver/flowtelemetry/pkg/shift"
)

// GroupMode selects how records are grouped for both the baseline and the
// shift model.
type GroupMode string

const (
	GroupExporter GroupMode = "exporter"
	GroupSrc      GroupMode = "src"
	GroupDst      GroupMode = "dst"
	GroupPair     GroupMode = "pair"
	GroupProto    GroupMode = "proto"
)

const unknownExporter = "exporter:unknown"

// AnomalyEvent reports a detected baseline deviation for one key/metric.
type AnomalyEvent struct {
	Key    string
	Metric string
	Value  float64
	Mean   float64
	Std    float64
	Z      float64
}

// Config holds BaselineAnomalyCapability's runtime-adjustable parameters.
type Config struct {
	WindowSeconds    int
	MinSamplesPerKey int
	Alpha            float64
	ZThreshold       float64
	MinUpdates       int
	GroupMode        GroupMode
	CooldownSeconds  int
	ShiftThreshold   float64
	ShiftMinTotal    int
}

// DefaultConfig mirrors the parameter defaults exercised by the original
// capability.
func DefaultConfig() Config {
	return Config{
		WindowSeconds:    60,
		MinSamplesPerKey: 20,
		Alpha:            0.2,
		ZThreshold:       3.0,
		MinUpdates:       5,
		GroupMode:        GroupPair,
		CooldownSeconds:  300,
		ShiftThreshold:   0.3,
		ShiftMinTotal:    20,
	}
}

// Result is the outcome of one AnalyzeOnce pass.
type Result struct {
	KeysSeen  int
	Anomalies []AnomalyEvent
	Shift     *shift.Event
}

// Capability holds the baseline and shift models plus the deduper gating
// anomaly and shift alerts.
type Capability struct {
	cfg     Config
	model   *baseline.Model
	shifts  *shift.Model
	deduper *dedupe.Deduper
}

// New returns a Capability configured with cfg.
func New(cfg Config) *Capability {
	return &Capability{
		cfg:     cfg,
		model:   baseline.NewModel(),
		shifts:  shift.NewModel(),
		deduper: dedupe.New(time.Duration(cfg.CooldownSeconds) * time.Second),
	}
}

// Configure replaces the capability's runtime parameters.
func (c *Capability) Configure(cfg Config) {
	c.cfg = cfg
	c.deduper.SetCooldown(time.Duration(cfg.CooldownSeconds) * time.Second)
}

// groupKey computes the grouping key for a record under the capability's
// configured GroupMode.
func groupKey(r flow.Record, mode GroupMode) string {
	switch mode {
	case GroupSrc:
		return fmt.Sprintf("src:%s", r.Src)
	case GroupDst:
		return fmt.Sprintf("dst:%s", r.Dst)
	case GroupPair:
		return fmt.Sprintf("pair:%s->%s", r.Src, r.Dst)
	case GroupProto:
		return fmt.Sprintf("proto:%s", r.Proto)
	case GroupExporter:
		if r.Exporter != "" {
			return fmt.Sprintf("exporter:%s", r.Exporter)
		}
		return unknownExporter
	default:
		return unknownExporter
	}
}

// AnalyzeOnce runs a single analysis pass over records (already the result
// of store.Recent(window_seconds)).
func (c *Capability) AnalyzeOnce(records []flow.Record) Result {
	samplesByKey := make(map[string][]float64)
	countByKey := make(map[string]int)

	for _, r := range records {
		if r.LatencyMS == 0 {
			continue
		}
		key := groupKey(r, c.cfg.GroupMode)
		samplesByKey[key] = append(samplesByKey[key], r.LatencyMS)
		countByKey[key]++
	}

	var anomalies []AnomalyEvent
	for key, values := range samplesByKey {
		if len(values) < c.cfg.MinSamplesPerKey {
			continue
		}

		sorted := append([]float64(nil), values...)
		p50 := baseline.Percentile(append([]float64(nil), sorted...), 50)
		p95 := baseline.Percentile(append([]float64(nil), sorted...), 95)

		metrics := []struct {
			name  string
			value float64
		}{
			{"p50_ms", p50},
			{"p95_ms", p95},
		}

		for _, m := range metrics {
			det := c.model.Detect(key, m.name, m.value, c.cfg.ZThreshold, c.cfg.MinUpdates)
			if det.IsAnomaly {
				alertKey := fmt.Sprintf("anomaly:%s:%s", key, m.name)
				if c.deduper.ShouldAlert(alertKey) {
					anomalies = append(anomalies, AnomalyEvent{
						Key:    key,
						Metric: m.name,
						Value:  m.value,
						Mean:   det.Mean,
						Std:    det.Std,
						Z:      det.Z,
					})
				}
			}

			point := c.model.GetPoint(key, m.name)
			point.Update(m.value, c.cfg.Alpha, float64(time.Now().Unix()))
		}
	}

	dimension := fmt.Sprintf("count_by_%s", c.cfg.GroupMode)
	var shiftEvent *shift.Event
	if ev := c.shifts.UpdateAndDetect(dimension, dimension, countByKey, c.cfg.ShiftThreshold, c.cfg.ShiftMinTotal); ev != nil {
		alertKey := fmt.Sprintf("shift:%s", dimension)
		if c.deduper.ShouldAlert(alertKey) {
			shiftEvent = ev
		}
	}

	return Result{
		KeysSeen:  len(samplesByKey),
		Anomalies: anomalies,
		Shift:     shiftEvent,
	}
}
