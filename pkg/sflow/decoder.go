// Package sflow decodes sFlow v5 datagrams into flow.Record. Only the
// flow_sample / expanded_flow_sample -> sampled_header path is implemented,
// matching spec.md's scope: IPv4 + TCP/UDP only, no VLAN tags, no IPv6.
//
// The inner Ethernet/IPv4/transport frame is parsed with gopacket/layers
// (grounded on pavelkim-tzsp_server/internal/decoder/decoder.go) rather than
// by hand, since that's exactly the kind of frame decode gopacket exists for.
package sflow

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/netweaver/flowtelemetry/pkg/flow"
)

const sflowVersion5 = 5

const (
	addressTypeIPv4 = 1
	addressTypeIPv6 = 2
)

const (
	sampleFormatFlow         = 1
	sampleFormatExpandedFlow = 3
)

const recordFormatSampledHeader = 1

const headerProtocolEthernet = 1

// Decode parses an sFlow v5 datagram. Malformed input at any stage yields an
// empty slice rather than an error.
func Decode(data []byte) []flow.Record {
	off := 0
	if len(data)-off < 4 {
		return nil
	}
	version := binary.BigEndian.Uint32(data[off : off+4])
	off += 4
	if version != sflowVersion5 {
		return nil
	}

	if len(data)-off < 4 {
		return nil
	}
	addrType := binary.BigEndian.Uint32(data[off : off+4])
	off += 4

	switch addrType {
	case addressTypeIPv4:
		if len(data)-off < 4 {
			return nil
		}
		off += 4
	case addressTypeIPv6:
		if len(data)-off < 16 {
			return nil
		}
		off += 16
	default:
		return nil
	}

	// sub-agent-id, sequence, uptime, num-samples: 4 uint32 each.
	if len(data)-off < 16 {
		return nil
	}
	off += 8 // sub-agent-id, sequence
	off += 4 // system uptime
	numSamples := binary.BigEndian.Uint32(data[off : off+4])
	off += 4

	now := float64(time.Now().Unix())
	var flows []flow.Record

	for i := uint32(0); i < numSamples; i++ {
		if len(data)-off < 8 {
			break
		}
		tag := binary.BigEndian.Uint32(data[off : off+4])
		off += 4
		length := int(binary.BigEndian.Uint32(data[off : off+4]))
		off += 4

		if length < 0 || off+length > len(data) {
			break
		}
		body := data[off : off+length]
		off += length

		enterprise := tag >> 12
		format := tag & 0xFFF
		if enterprise != 0 {
			continue
		}

		switch format {
		case sampleFormatFlow:
			flows = append(flows, decodeFlowSample(body, now, 7*4)...)
		case sampleFormatExpandedFlow:
			flows = append(flows, decodeFlowSample(body, now, 10*4)...)
		}
	}

	return flows
}

// decodeFlowSample decodes the record list of a flow_sample or
// expanded_flow_sample body. preambleLen is the number of bytes of
// sample-scoped fields (sequence, source-id, sampling-rate, ...) preceding
// the record-count field, which differs between the standard and expanded
// forms (spec.md §4.2).
func decodeFlowSample(body []byte, ts float64, preambleLen int) []flow.Record {
	if len(body) < preambleLen+4 {
		return nil
	}
	recordCount := int(binary.BigEndian.Uint32(body[preambleLen : preambleLen+4]))
	off := preambleLen + 4

	var flows []flow.Record
	for i := 0; i < recordCount; i++ {
		if len(body)-off < 8 {
			break
		}
		tag := binary.BigEndian.Uint32(body[off : off+4])
		off += 4
		length := int(binary.BigEndian.Uint32(body[off : off+4]))
		off += 4

		if length < 0 || off+length > len(body) {
			break
		}
		rec := body[off : off+length]
		off += length

		enterprise := tag >> 12
		format := tag & 0xFFF
		if enterprise != 0 || format != recordFormatSampledHeader {
			continue
		}

		if r, ok := decodeSampledHeader(rec, ts); ok {
			flows = append(flows, r)
		}
	}
	return flows
}

func decodeSampledHeader(rec []byte, ts float64) (flow.Record, bool) {
	if len(rec) < 16 {
		return flow.Record{}, false
	}

	headerProtocol := binary.BigEndian.Uint32(rec[0:4])
	frameLength := binary.BigEndian.Uint32(rec[4:8])
	headerLength := int(binary.BigEndian.Uint32(rec[12:16]))

	if headerProtocol != headerProtocolEthernet {
		return flow.Record{}, false
	}
	if headerLength < 0 || 16+headerLength > len(rec) {
		return flow.Record{}, false
	}
	header := rec[16 : 16+headerLength]

	src, dst, srcPort, dstPort, proto, ok := parseEthernetIPv4(header)
	if !ok {
		return flow.Record{}, false
	}

	return flow.Record{
		TS:      ts,
		Src:     src,
		Dst:     dst,
		SrcPort: srcPort,
		DstPort: dstPort,
		Proto:   proto,
		Bytes:   uint64(frameLength),
		Packets: 1,
	}, true
}

// parseEthernetIPv4 parses an Ethernet frame carrying IPv4 and (for TCP/UDP)
// transport ports. VLAN-tagged frames and anything other than IPv4 are
// rejected, per spec.md's sFlow non-goals.
func parseEthernetIPv4(header []byte) (src, dst string, srcPort, dstPort uint16, proto string, ok bool) {
	packet := gopacket.NewPacket(header, layers.LayerTypeEthernet, gopacket.NoCopy)

	ethLayer := packet.Layer(layers.LayerTypeEthernet)
	if ethLayer == nil {
		return "", "", 0, 0, "", false
	}
	eth, _ := ethLayer.(*layers.Ethernet)
	if eth.EthernetType != layers.EthernetTypeIPv4 {
		return "", "", 0, 0, "", false
	}

	ipLayer := packet.Layer(layers.LayerTypeIPv4)
	if ipLayer == nil {
		return "", "", 0, 0, "", false
	}
	ip, _ := ipLayer.(*layers.IPv4)
	if ip.Version != 4 {
		return "", "", 0, 0, "", false
	}

	src = ip.SrcIP.String()
	dst = ip.DstIP.String()

	switch ip.Protocol {
	case layers.IPProtocolTCP:
		if tcpLayer := packet.Layer(layers.LayerTypeTCP); tcpLayer != nil {
			tcp, _ := tcpLayer.(*layers.TCP)
			return src, dst, uint16(tcp.SrcPort), uint16(tcp.DstPort), "TCP", true
		}
	case layers.IPProtocolUDP:
		if udpLayer := packet.Layer(layers.LayerTypeUDP); udpLayer != nil {
			udp, _ := udpLayer.(*layers.UDP)
			return src, dst, uint16(udp.SrcPort), uint16(udp.DstPort), "UDP", true
		}
	}

	return src, dst, 0, 0, strconv.Itoa(int(ip.Protocol)), true
}
