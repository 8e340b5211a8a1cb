// Package ipfix decodes IPFIX (RFC 7011, NetFlow v10) messages into
// flow.Record. Structurally identical to NetFlow v9 (template/data set
// shape), but with its own set-id numbering and enterprise-bit field
// specifiers, so it gets its own decoder rather than reusing pkg/netflow.
package ipfix

import (
	"encoding/binary"
	"net"
	"strconv"
	"time"

	"github.com/netweaver/flowtelemetry/pkg/flow"
	"github.com/netweaver/flowtelemetry/pkg/template"
)

const ipfixVersion = 10

const (
	setIDTemplate        = 2
	setIDOptionsTemplate = 3
	setIDDataMin         = 256
)

var informationElements = map[int]string{
	8:  "src_ipv4",
	12: "dst_ipv4",
	7:  "src_port",
	11: "dst_port",
	4:  "proto",
	1:  "bytes",
	2:  "packets",
}

// Decode parses an IPFIX message. exporter scopes the template cache
// alongside the observation domain carried in the message header. Malformed
// input yields an empty slice rather than an error.
func Decode(data []byte, exporter string, cache *template.Cache) []flow.Record {
	const headerSize = 16
	if len(data) < headerSize {
		return nil
	}

	version := binary.BigEndian.Uint16(data[0:2])
	if version != ipfixVersion {
		return nil
	}

	length := int(binary.BigEndian.Uint16(data[2:4]))
	exportTime := binary.BigEndian.Uint32(data[4:8])
	obsDomain := int(binary.BigEndian.Uint32(data[12:16]))

	ts := float64(exportTime)
	if exportTime == 0 {
		ts = float64(time.Now().Unix())
	}

	msg := data
	if length >= headerSize && length <= len(data) {
		msg = data[:length]
	}

	var flows []flow.Record
	offset := headerSize
	for offset+4 <= len(msg) {
		setID := int(binary.BigEndian.Uint16(msg[offset : offset+2]))
		setLen := int(binary.BigEndian.Uint16(msg[offset+2 : offset+4]))
		if setLen < 4 {
			break
		}
		end := offset + setLen
		if end > len(msg) {
			break
		}
		body := msg[offset+4 : end]

		switch {
		case setID == setIDTemplate:
			parseTemplateSet(body, exporter, obsDomain, cache)
		case setID == setIDOptionsTemplate:
			// options templates: ignored, per spec.md non-goal.
		case setID >= setIDDataMin:
			flows = append(flows, parseDataSet(body, exporter, obsDomain, setID, ts, cache)...)
		}

		offset = end
	}
	return flows
}

func parseTemplateSet(body []byte, exporter string, obsDomain int, cache *template.Cache) {
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
			rawIE := int(binary.BigEndian.Uint16(body[off : off+2]))
			fLen := int(binary.BigEndian.Uint16(body[off+2 : off+4]))
			off += 4

			ieID := rawIE
			var enterprise *uint32
			if rawIE&0x8000 != 0 {
				ieID = rawIE & 0x7FFF
				if off+4 > len(body) {
					return
				}
				e := binary.BigEndian.Uint32(body[off : off+4])
				off += 4
				enterprise = &e
			}

			fields = append(fields, template.Field{ID: ieID, Length: fLen, Enterprise: enterprise})
		}

		cache.Put(exporter, obsDomain, template.Template{ID: templateID, Fields: fields})
	}
}

func parseDataSet(body []byte, exporter string, obsDomain, templateID int, ts float64, cache *template.Cache) []flow.Record {
	tmpl, ok := cache.Get(exporter, obsDomain, templateID)
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

			name, known := informationElements[f.ID]
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

func ipv4FromUint(v uint64) string {
	return net.IPv4(byte(v>>24), byte(v>>16), byte(v>>8), byte(v)).String()
}
