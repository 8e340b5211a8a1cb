// Package netflow decodes NetFlow v5 and v9 datagrams into flow.Record.
// v5 is stateless; v9 is template-based and requires a template.Cache scoped
// to the exporter sending the datagram.
package netflow

import (
	"encoding/binary"
	"net"
	"strconv"
	"time"

	"github.com/netweaver/flowtelemetry/pkg/flow"
	"github.com/netweaver/flowtelemetry/pkg/template"
)

const (
	versionV5 = 5
	versionV9 = 9
)

// fieldNames maps the NetFlow v9 field types this decoder understands to the
// semantic name it fills on a parsed record. Only this minimal subset is
// mapped, per spec.md's variable-length-IE non-goal.
var fieldNames = map[int]string{
	8:  "src_ipv4",
	12: "dst_ipv4",
	7:  "src_port",
	11: "dst_port",
	4:  "proto",
	1:  "bytes",
	2:  "packets",
}

// Decode routes a datagram to the v5 or v9 decoder based on its version
// field. exporter identifies the sender for v9 template scoping; cache must
// be non-nil when v9 datagrams are expected. Malformed input never panics:
// it yields an empty slice.
func Decode(data []byte, exporter string, cache *template.Cache) []flow.Record {
	if len(data) < 2 {
		return nil
	}
	version := binary.BigEndian.Uint16(data[0:2])
	switch version {
	case versionV5:
		return decodeV5(data)
	case versionV9:
		if cache == nil {
			return nil
		}
		return decodeV9(data, exporter, cache)
	default:
		return nil
	}
}

func decodeV5(data []byte) []flow.Record {
	const headerSize = 24
	const recordSize = 48

	if len(data) < headerSize {
		return nil
	}

	count := int(binary.BigEndian.Uint16(data[2:4]))
	unixSecs := binary.BigEndian.Uint32(data[8:12])

	ts := float64(unixSecs)
	if unixSecs == 0 {
		ts = float64(time.Now().Unix())
	}

	maxRecords := (len(data) - headerSize) / recordSize
	if count > maxRecords {
		count = maxRecords
	}
	if count <= 0 {
		return nil
	}

	flows := make([]flow.Record, 0, count)
	for i := 0; i < count; i++ {
		off := headerSize + i*recordSize
		rec := data[off : off+recordSize]

		src := ipv4String(rec[0:4])
		dst := ipv4String(rec[4:8])
		dPkts := binary.BigEndian.Uint32(rec[16:20])
		dOctets := binary.BigEndian.Uint32(rec[20:24])
		srcPort := binary.BigEndian.Uint16(rec[32:34])
		dstPort := binary.BigEndian.Uint16(rec[34:36])
		proto := rec[38]

		flows = append(flows, flow.Record{
			TS:      ts,
			Src:     src,
			Dst:     dst,
			SrcPort: srcPort,
			DstPort: dstPort,
			Proto:   strconv.Itoa(int(proto)),
			Bytes:   uint64(dOctets),
			Packets: uint64(dPkts),
		})
	}
	return flows
}

func decodeV9(data []byte, exporter string, cache *template.Cache) []flow.Record {
	const headerSize = 20
	if len(data) < headerSize {
		return nil
	}

	unixSecs := binary.BigEndian.Uint32(data[4:8])
	sourceID := int(binary.BigEndian.Uint32(data[16:20]))

	ts := float64(unixSecs)
	if unixSecs == 0 {
		ts = float64(time.Now().Unix())
	}

	var flows []flow.Record
	offset := headerSize

	for offset+4 <= len(data) {
		flowSetID := int(binary.BigEndian.Uint16(data[offset : offset+2]))
		length := int(binary.BigEndian.Uint16(data[offset+2 : offset+4]))
		if length < 4 {
			break
		}
		end := offset + length
		if end > len(data) {
			break
		}
		body := data[offset+4 : end]

		switch {
		case flowSetID == 0:
			parseV9TemplateSet(body, exporter, sourceID, cache)
		case flowSetID == 1:
			// options template: ignored, per spec.md non-goal.
		default:
			flows = append(flows, parseV9DataSet(body, exporter, sourceID, flowSetID, ts, cache)...)
		}

		offset = end
	}
	return flows
}

func parseV9TemplateSet(body []byte, exporter string, sourceID int, cache *template.Cache) {
	off := 0
	for off+4 <= len(body) {
		templateID := int(binary.BigEndian.Uint16(body[off : off+2]))
		fieldCount := int(binary.BigEndian.Uint16(body[off+2 : off+4]))
		off += 4

		fields := make([]template.Field, 0, fieldCount)
		for i := 0; i < fieldCount; i++ {
			if off+4 > len(body) {
				return
			}
			fType := int(binary.BigEndian.Uint16(body[off : off+2]))
			fLen := int(binary.BigEndian.Uint16(body[off+2 : off+4]))
			off += 4
			fields = append(fields, template.Field{ID: fType, Length: fLen})
		}

		cache.Put(exporter, sourceID, template.Template{ID: templateID, Fields: fields})
	}
}

func parseV9DataSet(body []byte, exporter string, sourceID, templateID int, ts float64, cache *template.Cache) []flow.Record {
	tmpl, ok := cache.Get(exporter, sourceID, templateID)
	if !ok {
		return nil
	}

	recordLen := 0
	for _, f := range tmpl.Fields {
		recordLen += f.Length
	}
	if recordLen <= 0 {
		return nil
	}

	var flows []flow.Record
	off := 0
	for off+recordLen <= len(body) {
		rec := body[off : off+recordLen]
		off += recordLen

		parsed := make(map[string]uint64)
		p := 0
		for _, f := range tmpl.Fields {
			v := rec[p : p+f.Length]
			p += f.Length

			name, known := fieldNames[f.ID]
			if !known {
				continue
			}

			val, decoded := decodeUint(v)
			if !decoded {
				continue
			}
			parsed[name] = val
		}

		srcIP, hasSrc := parsed["src_ipv4"]
		dstIP, hasDst := parsed["dst_ipv4"]
		if !hasSrc || !hasDst {
			continue
		}

		flows = append(flows, flow.Record{
			TS:      ts,
			Src:     ipv4FromUint(srcIP),
			Dst:     ipv4FromUint(dstIP),
			SrcPort: uint16(parsed["src_port"]),
			DstPort: uint16(parsed["dst_port"]),
			Proto:   strconv.FormatUint(parsed["proto"], 10),
			Bytes:   parsed["bytes"],
			Packets: parsed["packets"],
		})
	}
	return flows
}

// decodeUint decodes a big-endian unsigned integer of the widths spec.md
// allows (1, 2, 4, 8 bytes); any other width is not decoded.
func decodeUint(b []byte) (uint64, bool) {
	switch len(b) {
	case 1:
		return uint64(b[0]), true
	case 2:
		return uint64(binary.BigEndian.Uint16(b)), true
	case 4:
		return uint64(binary.BigEndian.Uint32(b)), true
	case 8:
		return binary.BigEndian.Uint64(b), true
	default:
		return 0, false
	}
}

func ipv4String(b []byte) string {
	return net.IPv4(b[0], b[1], b[2], b[3]).String()
}

func ipv4FromUint(v uint64) string {
	return net.IPv4(byte(v>>24), byte(v>>16), byte(v>>8), byte(v)).String()
}
