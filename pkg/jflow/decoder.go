// Package jflow decodes Juniper jFlow datagrams. jFlow is, in practice,
// NetFlow v9 wire-compatible, so this package delegates to pkg/netflow's
// decode path while keeping its own template.Cache instance — the
// distinction is preserved so vendor-specific extensions can diverge later
// without touching the NetFlow decoder (spec.md §4.2).
package jflow

import (
	"github.com/netweaver/flowtelemetry/pkg/flow"
	"github.com/netweaver/flowtelemetry/pkg/netflow"
	"github.com/netweaver/flowtelemetry/pkg/template"
)

// Decode parses a jFlow datagram using the NetFlow v9 wire format.
func Decode(data []byte, exporter string, cache *template.Cache) []flow.Record {
	return netflow.Decode(data, exporter, cache)
}
