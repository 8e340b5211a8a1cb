// Package baseline implements the per-key EWMA latency baseline and
// z-score anomaly detection that underlies the baseline-anomaly capability.
package baseline

import (
	"math"
	"sort"
)

// zeroVarianceEpsilon is the standard-deviation floor below which a baseline
// is treated as having no meaningful spread: any different value is flagged.
const zeroVarianceEpsilon = 1e-9

// Point holds one key's running EWMA mean and variance.
type Point struct {
	Mean           float64
	Var            float64
	N              int
	LastUpdateTS   float64
}

// Std returns the point's standard deviation.
func (p Point) Std() float64 {
	if p.Var <= 0 {
		return 0
	}
	return math.Sqrt(p.Var)
}

// Update folds x into the point's running EWMA mean/variance with smoothing
// factor alpha. The first update seeds mean=x, var=0, n=1; later updates
// follow the standard EWMA mean/variance recurrence.
func (p *Point) Update(x, alpha, ts float64) {
	if p.N == 0 {
		p.Mean = x
		p.Var = 0
		p.N = 1
		p.LastUpdateTS = ts
		return
	}

	residual := x - p.Mean
	p.Mean = alpha*x + (1-alpha)*p.Mean
	p.Var = alpha*residual*residual + (1-alpha)*p.Var
	p.N++
	p.LastUpdateTS = ts
}

// pointKey identifies one baseline point by grouping key and metric name,
// so that e.g. a pair's p50_ms and p95_ms track independent distributions
// instead of sharing a single EWMA point.
type pointKey struct {
	key    string
	metric string
}

// Model tracks one Point per (grouping key, metric) pair.
type Model struct {
	points map[pointKey]*Point
}

// NewModel returns an empty baseline model.
func NewModel() *Model {
	return &Model{points: make(map[pointKey]*Point)}
}

// GetPoint returns the current point for (key, metric), creating it on first
// access. The returned pointer is owned by the model; callers must not
// retain it across calls that might reset the model.
func (m *Model) GetPoint(key, metric string) *Point {
	pk := pointKey{key: key, metric: metric}
	p, ok := m.points[pk]
	if !ok {
		p = &Point{}
		m.points[pk] = p
	}
	return p
}

// Detection is the outcome of comparing a value against a key's baseline.
type Detection struct {
	IsAnomaly bool
	Mean      float64
	Std       float64
	Z         float64
}

// Detect compares x against key's current baseline (without updating it),
// per the detect-before-update ordering required by the baseline-anomaly
// capability: a sample is scored against the baseline as it stood before
// this sample, never including this sample's own contribution.
//
// A key with fewer than minUpdates observations never anomalizes: there is
// not yet enough history to trust the baseline. When the baseline's
// standard deviation is at or below zeroVarianceEpsilon, any value that
// differs from the mean is an anomaly with z = +Inf.
func (m *Model) Detect(key, metric string, x, zThreshold float64, minUpdates int) Detection {
	p, ok := m.points[pointKey{key: key, metric: metric}]
	if !ok || p.N < minUpdates {
		return Detection{}
	}

	std := p.Std()
	if std <= zeroVarianceEpsilon {
		if x == p.Mean {
			return Detection{Mean: p.Mean, Std: std}
		}
		return Detection{IsAnomaly: true, Mean: p.Mean, Std: std, Z: math.Inf(1)}
	}

	z := (x - p.Mean) / std
	return Detection{
		IsAnomaly: math.Abs(z) >= zThreshold,
		Mean:      p.Mean,
		Std:       std,
		Z:         z,
	}
}

// Percentile returns the p-th percentile (0-100) of values using
// linear interpolation between the two nearest ranks, matching the
// distribution-shape statistic the baseline-anomaly capability reports
// alongside Detect. values is sorted in place.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sort.Float64s(values)
	if len(values) == 1 {
		return values[0]
	}

	k := (float64(len(values)-1) * p) / 100
	f := math.Floor(k)
	c := math.Ceil(k)
	if f == c {
		return values[int(k)]
	}

	lower := values[int(f)] * (c - k)
	upper := values[int(c)] * (k - f)
	return lower + upper
}
