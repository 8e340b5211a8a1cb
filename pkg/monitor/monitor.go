// Package monitor implements LatencyMonitor: per-flow-key windowed
// percentile computation, threshold-offender detection, and deduplicated
// alert production.
package monitor

import (
	"fmt"
	"sort"
	"time"

	"github.com/netweaver/flowtelemetry/pkg/dedupe"
	"github.com/netweaver/flowtelemetry/pkg/flow"
)

const topN = 50

// GroupStats summarizes one flow key's latency samples within a window.
type GroupStats struct {
	Key     string
	Samples int
	Avg     float64
	P50     float64
	P95     float64
	Max     float64
}

// Analysis is the result of one LatencyMonitor.Analyze call.
type Analysis struct {
	Offenders []GroupStats
	Summary   []GroupStats
}

// Alert is produced for an offender that passed deduplication.
type Alert struct {
	Type      string
	Key       string
	P95       float64
	Threshold float64
	Samples   int
	TS        float64
	Message   string
}

// Monitor holds LatencyMonitor's runtime-adjustable thresholds and its
// alert deduper.
type Monitor struct {
	ThresholdMS     float64
	WindowSeconds   int
	MinSamples      int
	CooldownSeconds int

	deduper *dedupe.Deduper
}

// New returns a Monitor with the given initial thresholds.
func New(thresholdMS float64, windowSeconds, minSamples, cooldownSeconds int) *Monitor {
	return &Monitor{
		ThresholdMS:     thresholdMS,
		WindowSeconds:   windowSeconds,
		MinSamples:      minSamples,
		CooldownSeconds: cooldownSeconds,
		deduper:         dedupe.New(time.Duration(cooldownSeconds) * time.Second),
	}
}

// SetThresholds updates the monitor's runtime parameters. Passing nil for
// any field leaves it unchanged.
func (m *Monitor) SetThresholds(thresholdMS *float64, windowSeconds, minSamples, cooldownSeconds *int) {
	if thresholdMS != nil {
		m.ThresholdMS = *thresholdMS
	}
	if windowSeconds != nil {
		m.WindowSeconds = *windowSeconds
	}
	if minSamples != nil {
		m.MinSamples = *minSamples
	}
	if cooldownSeconds != nil {
		m.CooldownSeconds = *cooldownSeconds
		m.deduper.SetCooldown(time.Duration(*cooldownSeconds) * time.Second)
	}
}

// Analyze groups records by flow key and computes per-group latency
// statistics. Offenders are groups meeting both the minimum-sample-count
// and threshold criteria; both the offender list and the overall summary
// are capped at the top 50 groups by p95, descending.
func (m *Monitor) Analyze(records []flow.Record) Analysis {
	samples := make(map[string][]float64)
	for _, r := range records {
		key := r.Key()
		samples[key] = append(samples[key], r.LatencyMS)
	}

	var all []GroupStats
	for key, values := range samples {
		all = append(all, computeStats(key, values))
	}

	sort.Slice(all, func(i, j int) bool { return all[i].P95 > all[j].P95 })

	var offenders []GroupStats
	for _, s := range all {
		if s.Samples >= m.MinSamples && s.P95 >= m.ThresholdMS {
			offenders = append(offenders, s)
		}
	}

	summary := all
	if len(summary) > topN {
		summary = summary[:topN]
	}
	if len(offenders) > topN {
		offenders = offenders[:topN]
	}

	return Analysis{Offenders: offenders, Summary: summary}
}

// BuildAlerts emits one Alert per offender that passes deduplication.
func (m *Monitor) BuildAlerts(analysis Analysis) []Alert {
	now := float64(time.Now().Unix())

	var alerts []Alert
	for _, o := range analysis.Offenders {
		if !m.deduper.ShouldAlert(o.Key) {
			continue
		}
		alerts = append(alerts, Alert{
			Type:      "latency_threshold",
			Key:       o.Key,
			P95:       o.P95,
			Threshold: m.ThresholdMS,
			Samples:   o.Samples,
			TS:        now,
			Message:   fmt.Sprintf("flow %s: p95 %.2fms >= threshold %.2fms over %d samples", o.Key, o.P95, m.ThresholdMS, o.Samples),
		})
	}
	return alerts
}

func computeStats(key string, values []float64) GroupStats {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	n := len(sorted)
	var sum, max float64
	for i, v := range sorted {
		sum += v
		if i == 0 || v > max {
			max = v
		}
	}

	return GroupStats{
		Key:     key,
		Samples: n,
		Avg:     sum / float64(n),
		P50:     nearestRank(sorted, 0.50),
		P95:     nearestRank(sorted, 0.95),
		Max:     max,
	}
}

// nearestRank returns the p-th (fraction 0-1) percentile of sorted using
// nearest-rank selection: sorted[int(p*(n-1))], no interpolation.
func nearestRank(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(p * float64(n-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}
