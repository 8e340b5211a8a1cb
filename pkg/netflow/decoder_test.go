package netflow

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/netweaver/flowtelemetry/pkg/template"
)

// buildV5Packet constructs a 24-byte NetFlow v5 header followed by one
// 48-byte flow record for 10.0.0.1:1234 -> 10.0.0.2:80 proto TCP, matching
// spec.md §8 scenario 3.
func buildV5Packet() []byte {
	pkt := make([]byte, 24+48)
	binary.BigEndian.PutUint16(pkt[0:2], versionV5)
	binary.BigEndian.PutUint16(pkt[2:4], 1) // count
	binary.BigEndian.PutUint32(pkt[8:12], uint32(time.Now().Unix()))

	rec := pkt[24:72]
	copy(rec[0:4], []byte{10, 0, 0, 1})
	copy(rec[4:8], []byte{10, 0, 0, 2})
	binary.BigEndian.PutUint32(rec[16:20], 7)   // dPkts
	binary.BigEndian.PutUint32(rec[20:24], 900) // dOctets
	binary.BigEndian.PutUint16(rec[32:34], 1234)
	binary.BigEndian.PutUint16(rec[34:36], 80)
	rec[38] = 6 // TCP

	return pkt
}

func TestDecodeV5SingleRecord(t *testing.T) {
	flows := Decode(buildV5Packet(), "exporter1", nil)
	if len(flows) != 1 {
		t.Fatalf("Decode() returned %d flows, want 1", len(flows))
	}

	f := flows[0]
	if f.Src != "10.0.0.1" || f.Dst != "10.0.0.2" {
		t.Errorf("Src/Dst = %s/%s, want 10.0.0.1/10.0.0.2", f.Src, f.Dst)
	}
	if f.SrcPort != 1234 || f.DstPort != 80 {
		t.Errorf("SrcPort/DstPort = %d/%d, want 1234/80", f.SrcPort, f.DstPort)
	}
	if f.Proto != "6" {
		t.Errorf("Proto = %q, want %q", f.Proto, "6")
	}
	if f.Packets != 7 {
		t.Errorf("Packets = %d, want 7", f.Packets)
	}
	if f.Bytes != 900 {
		t.Errorf("Bytes = %d, want 900", f.Bytes)
	}
}

func TestDecodeV5TruncatedHeaderYieldsEmpty(t *testing.T) {
	if flows := Decode(make([]byte, 10), "e", nil); len(flows) != 0 {
		t.Errorf("Decode() on truncated header = %d flows, want 0", len(flows))
	}
}

func TestDecodeV5CapsCountAtAvailableRecords(t *testing.T) {
	pkt := buildV5Packet()
	binary.BigEndian.PutUint16(pkt[2:4], 99) // claim 99 records, only 1 present
	flows := Decode(pkt, "e", nil)
	if len(flows) != 1 {
		t.Errorf("Decode() = %d flows, want 1 (capped by actual length)", len(flows))
	}
}

// buildV9TemplateAndData builds a template FlowSet (id 256) for the 7-field
// layout from spec.md §8 scenario 2, followed by one data FlowSet record for
// 10.0.0.1 -> 10.0.0.2:443 proto 6 bytes=1000 packets=10.
func buildV9TemplateAndData() []byte {
	const templateID = 256

	fields := []struct{ id, length int }{
		{8, 4}, {12, 4}, {7, 2}, {11, 2}, {4, 1}, {1, 4}, {2, 4},
	}

	templateBody := make([]byte, 0, 4+len(fields)*4)
	tb := make([]byte, 4)
	binary.BigEndian.PutUint16(tb[0:2], templateID)
	binary.BigEndian.PutUint16(tb[2:4], uint16(len(fields)))
	templateBody = append(templateBody, tb...)
	for _, f := range fields {
		fb := make([]byte, 4)
		binary.BigEndian.PutUint16(fb[0:2], uint16(f.id))
		binary.BigEndian.PutUint16(fb[2:4], uint16(f.length))
		templateBody = append(templateBody, fb...)
	}
	templateFlowSet := flowSet(0, templateBody)

	dataRecord := make([]byte, 0, 4+4+2+2+1+4+4)
	dataRecord = append(dataRecord, []byte{10, 0, 0, 1}...) // src ipv4
	dataRecord = append(dataRecord, []byte{10, 0, 0, 2}...) // dst ipv4
	srcPort := make([]byte, 2)
	binary.BigEndian.PutUint16(srcPort, 50000)
	dataRecord = append(dataRecord, srcPort...)
	dstPort := make([]byte, 2)
	binary.BigEndian.PutUint16(dstPort, 443)
	dataRecord = append(dataRecord, dstPort...)
	dataRecord = append(dataRecord, 6) // proto
	bytesField := make([]byte, 4)
	binary.BigEndian.PutUint32(bytesField, 1000)
	dataRecord = append(dataRecord, bytesField...)
	packetsField := make([]byte, 4)
	binary.BigEndian.PutUint32(packetsField, 10)
	dataRecord = append(dataRecord, packetsField...)

	dataFlowSet := flowSet(templateID, dataRecord)

	header := make([]byte, 20)
	binary.BigEndian.PutUint16(header[0:2], versionV9)
	binary.BigEndian.PutUint16(header[2:4], 1)
	binary.BigEndian.PutUint32(header[4:8], uint32(time.Now().Unix()))

	pkt := append([]byte{}, header...)
	pkt = append(pkt, templateFlowSet...)
	pkt = append(pkt, dataFlowSet...)
	return pkt
}

func flowSet(id int, body []byte) []byte {
	out := make([]byte, 4+len(body))
	binary.BigEndian.PutUint16(out[0:2], uint16(id))
	binary.BigEndian.PutUint16(out[2:4], uint16(4+len(body)))
	copy(out[4:], body)
	return out
}

func TestDecodeV9TemplateThenData(t *testing.T) {
	cache := template.NewCache()
	flows := Decode(buildV9TemplateAndData(), "exporter1", cache)

	if len(flows) != 1 {
		t.Fatalf("Decode() returned %d flows, want 1", len(flows))
	}
	f := flows[0]
	if f.Src != "10.0.0.1" || f.Dst != "10.0.0.2" {
		t.Errorf("Src/Dst = %s/%s, want 10.0.0.1/10.0.0.2", f.Src, f.Dst)
	}
	if f.DstPort != 443 {
		t.Errorf("DstPort = %d, want 443", f.DstPort)
	}
	if f.Proto != "6" {
		t.Errorf("Proto = %q, want %q", f.Proto, "6")
	}
	if f.Bytes != 1000 || f.Packets != 10 {
		t.Errorf("Bytes/Packets = %d/%d, want 1000/10", f.Bytes, f.Packets)
	}
}

func TestDecodeV9DataBeforeTemplateYieldsEmpty(t *testing.T) {
	cache := template.NewCache()
	full := buildV9TemplateAndData()

	// Reorder the message so the data FlowSet comes before its defining
	// template: per spec.md §5, this must not decode.
	header := full[:20]
	rest := full[20:]

	templateLen := int(binary.BigEndian.Uint16(rest[2:4]))
	templateFlowSet := rest[:templateLen]
	dataFlowSet := rest[templateLen:]

	reordered := append([]byte{}, header...)
	reordered = append(reordered, dataFlowSet...)
	reordered = append(reordered, templateFlowSet...)

	flows := Decode(reordered, "exporter1", cache)
	if len(flows) != 0 {
		t.Errorf("Decode() with data before template = %d flows, want 0", len(flows))
	}
}

func TestDecodeV9UnknownVersionYieldsEmpty(t *testing.T) {
	pkt := make([]byte, 20)
	binary.BigEndian.PutUint16(pkt[0:2], 42)
	if flows := Decode(pkt, "e", template.NewCache()); len(flows) != 0 {
		t.Errorf("Decode() on unsupported version = %d flows, want 0", len(flows))
	}
}

func TestDecodeV9MissingTemplateIsSkipped(t *testing.T) {
	cache := template.NewCache()
	_, data := splitV9(buildV9TemplateAndData())

	header := make([]byte, 20)
	binary.BigEndian.PutUint16(header[0:2], versionV9)
	pkt := append([]byte{}, header...)
	pkt = append(pkt, data...)

	flows := Decode(pkt, "exporter-without-template", cache)
	if len(flows) != 0 {
		t.Errorf("Decode() against missing template = %d flows, want 0", len(flows))
	}
}

func splitV9(full []byte) (templateSet, dataSet []byte) {
	rest := full[20:]
	templateLen := int(binary.BigEndian.Uint16(rest[2:4]))
	return rest[:templateLen], rest[templateLen:]
}
