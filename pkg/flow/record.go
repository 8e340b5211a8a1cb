// Package flow defines the normalized flow record shape that every decoder
// produces and every analyzer consumes. It decouples the analytics layer from
// any single wire protocol.
package flow

import "fmt"

// Record is the normalized unit all capabilities output. Decoders never
// populate a Record unless both Src and Dst are known; ports, proto and
// latency may take their zero value when the source protocol has no way to
// infer them.
type Record struct {
	TS        float64 // unix seconds
	Src       string
	Dst       string
	SrcPort   uint16
	DstPort   uint16
	Proto     string
	LatencyMS float64
	Bytes     uint64
	Packets   uint64

	// Exporter identifies the device that sent this flow, populated by the
	// collector from the UDP peer address at decode time. Empty when unknown.
	Exporter string
}

// Key returns the flow's 5-tuple identity, the key the latency monitor
// groups on. The baseline anomaly capability groups by its own GroupMode
// keys instead.
func (r Record) Key() string {
	return fmt.Sprintf("%s:%d->%s:%d/%s", r.Src, r.SrcPort, r.Dst, r.DstPort, r.Proto)
}
