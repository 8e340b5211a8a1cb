// Package jsonflow decodes the JSON test channel: a convenient,
// protocol-free way to inject synthetic flow.Records for development and
// exercising the analytics pipeline without a binary exporter. See
// cmd/flowgen for a traffic generator that targets this channel.
package jsonflow

import (
	"encoding/json"
	"time"

	"github.com/netweaver/flowtelemetry/pkg/flow"
)

// sample mirrors the JSON shape accepted on the wire: a single object or an
// array of objects, each requiring src, dst and latency_ms.
type sample struct {
	TS        *float64 `json:"ts"`
	Src       *string  `json:"src"`
	Dst       *string  `json:"dst"`
	SrcPort   int      `json:"src_port"`
	DstPort   int      `json:"dst_port"`
	Proto     *string  `json:"proto"`
	LatencyMS *float64 `json:"latency_ms"`
	Bytes     int64    `json:"bytes"`
	Packets   int64    `json:"packets"`
}

func (s sample) toRecord() (flow.Record, bool) {
	if s.Src == nil || s.Dst == nil || s.LatencyMS == nil {
		return flow.Record{}, false
	}

	ts := float64(time.Now().Unix())
	if s.TS != nil {
		ts = *s.TS
	}
	proto := "TCP"
	if s.Proto != nil {
		proto = *s.Proto
	}

	return flow.Record{
		TS:        ts,
		Src:       *s.Src,
		Dst:       *s.Dst,
		SrcPort:   uint16(s.SrcPort),
		DstPort:   uint16(s.DstPort),
		Proto:     proto,
		LatencyMS: *s.LatencyMS,
		Bytes:     uint64(s.Bytes),
		Packets:   uint64(s.Packets),
	}, true
}

// Decode accepts a JSON object or a JSON array of objects. Invalid JSON or
// an object missing a required field yields an empty slice.
func Decode(data []byte) []flow.Record {
	var single sample
	if err := json.Unmarshal(data, &single); err == nil && looksLikeObject(data) {
		if r, ok := single.toRecord(); ok {
			return []flow.Record{r}
		}
		return nil
	}

	var many []sample
	if err := json.Unmarshal(data, &many); err != nil {
		return nil
	}

	flows := make([]flow.Record, 0, len(many))
	for _, s := range many {
		if r, ok := s.toRecord(); ok {
			flows = append(flows, r)
		}
	}
	return flows
}

// looksLikeObject performs a cheap syntactic check so a top-level JSON array
// isn't mistaken for a (zero-valued, field-less) single object.
func looksLikeObject(data []byte) bool {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}
