// Package shift implements L1 distribution-shift detection: comparing a
// window's distribution over some dimension (e.g. destination, protocol)
// against the prior window's distribution for the same key.
package shift

import "sort"

// Event describes a detected distribution shift for one key.
type Event struct {
	Key        string
	Dimension  string
	L1Distance float64
	TopBefore  []KeyShare
	TopAfter   []KeyShare
}

// KeyShare is one dimension value's normalized share of a window's total.
type KeyShare struct {
	Value string
	Share float64
}

// Model tracks, per grouping key, the most recently observed normalized
// distribution over some dimension.
type Model struct {
	prior map[string]map[string]float64
}

// NewModel returns an empty shift model.
func NewModel() *Model {
	return &Model{prior: make(map[string]map[string]float64)}
}

// UpdateAndDetect compares counts (raw occurrence counts for this window,
// keyed by dimension value) against the stored prior distribution for key.
//
// If the window's total is below minTotal, the model is left untouched and
// nil is returned: too few samples to trust a distribution comparison, and
// not enough to replace the prior either. Otherwise the current window
// always becomes the new prior; if key had no prior yet, this call is a
// priming pass and returns nil without comparing.
func (m *Model) UpdateAndDetect(key, dimension string, counts map[string]int, threshold float64, minTotal int) *Event {
	total := 0
	for _, c := range counts {
		total += c
	}
	if total < minTotal {
		return nil
	}

	shares := normalize(counts, total)

	prior, hadPrior := m.prior[key]
	m.prior[key] = shares

	if !hadPrior {
		return nil
	}

	dist := l1Distance(prior, shares)
	if dist < threshold {
		return nil
	}

	return &Event{
		Key:        key,
		Dimension:  dimension,
		L1Distance: dist,
		TopBefore:  topK(prior, 5),
		TopAfter:   topK(shares, 5),
	}
}

func normalize(counts map[string]int, total int) map[string]float64 {
	shares := make(map[string]float64, len(counts))
	if total <= 0 {
		return shares
	}
	for k, c := range counts {
		shares[k] = float64(c) / float64(total)
	}
	return shares
}

// l1Distance sums |a[k]-b[k]| over the union of keys present in either map.
func l1Distance(a, b map[string]float64) float64 {
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}

	var dist float64
	for k := range seen {
		dist += abs(a[k] - b[k])
	}
	return dist
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// topK returns the k dimension values with the largest share, descending.
func topK(shares map[string]float64, k int) []KeyShare {
	out := make([]KeyShare, 0, len(shares))
	for v, s := range shares {
		out = append(out, KeyShare{Value: v, Share: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Share != out[j].Share {
			return out[i].Share > out[j].Share
		}
		return out[i].Value < out[j].Value
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}
