package parser_test

import (
	"encoding/binary"

	"github.com/google/gopacket/layers"

	"tracecap/internal/models"
)

var (
	macDst = []byte{0x00, 0x1b, 0x21, 0x0a, 0x0b, 0x0c}
	macSrc = []byte{0x3c, 0x22, 0xfb, 0x01, 0x02, 0x03}
	ipSrc  = []byte{192, 168, 1, 10}
	ipDst  = []byte{10, 0, 0, 1}
)

func ethernet(etherType uint16) []byte {
	b := append(append([]byte{}, macDst...), macSrc...)
	return binary.BigEndian.AppendUint16(b, etherType)
}

func vlanTag(tpid, tci, etherType uint16) []byte {
	b := binary.BigEndian.AppendUint16(nil, tpid)
	b = binary.BigEndian.AppendUint16(b, tci)
	return binary.BigEndian.AppendUint16(b, etherType)
}

// ipv4 returns a header of ihl words whose total length covers payloadLen
// bytes after it.
func ipv4(proto uint8, ihl int, payloadLen int) []byte {
	h := make([]byte, ihl*4)
	h[0] = 0x40 | byte(ihl)
	binary.BigEndian.PutUint16(h[2:4], uint16(ihl*4+payloadLen))
	binary.BigEndian.PutUint16(h[4:6], 0x1c46)
	binary.BigEndian.PutUint16(h[6:8], 0x4000)
	h[8] = 64
	h[9] = proto
	binary.BigEndian.PutUint16(h[10:12], 0xb1e6)
	copy(h[12:16], ipSrc)
	copy(h[16:20], ipDst)
	return h
}

func ipv6(next uint8, payloadLen int) []byte {
	h := make([]byte, 40)
	binary.BigEndian.PutUint32(h[0:4], 6<<28|0x2a<<20|0x12345)
	binary.BigEndian.PutUint16(h[4:6], uint16(payloadLen))
	h[6] = next
	h[7] = 255
	h[8], h[9], h[23] = 0xfe, 0x80, 0x01
	h[24], h[25], h[39] = 0xff, 0x02, 0x02
	return h
}

func udp(src, dst uint16, payloadLen int) []byte {
	h := make([]byte, 8)
	binary.BigEndian.PutUint16(h[0:2], src)
	binary.BigEndian.PutUint16(h[2:4], dst)
	binary.BigEndian.PutUint16(h[4:6], uint16(8+payloadLen))
	binary.BigEndian.PutUint16(h[6:8], 0xabcd)
	return h
}

func tcp(src, dst uint16, flags uint16) []byte {
	h := make([]byte, 20)
	binary.BigEndian.PutUint16(h[0:2], src)
	binary.BigEndian.PutUint16(h[2:4], dst)
	binary.BigEndian.PutUint32(h[4:8], 1000)
	binary.BigEndian.PutUint32(h[8:12], 2000)
	binary.BigEndian.PutUint16(h[12:14], 5<<12|flags)
	binary.BigEndian.PutUint16(h[14:16], 65535)
	return h
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func ethFrame(data []byte) models.RawFrame {
	return models.RawFrame{Number: 1, LinkType: layers.LinkTypeEthernet, Data: data}
}

// udpFrame is Ethernet + IPv4 + UDP with payload.
func udpFrame(payload []byte) []byte {
	return concat(
		ethernet(0x0800),
		ipv4(17, 5, 8+len(payload)),
		udp(0x1234, 53, len(payload)),
		payload,
	)
}

func tcpFrame(flags uint16, payload []byte) []byte {
	return concat(
		ethernet(0x0800),
		ipv4(6, 5, 20+len(payload)),
		tcp(49152, 443, flags),
		payload,
	)
}

func uintOf(f *models.Field) uint64 {
	if f == nil {
		return 1<<64 - 1
	}
	v, _ := f.Value().Uint64()
	return v
}

// arpRequest asks for ipDst on behalf of ipSrc.
func arpRequest() []byte {
	b := []byte{0x00, 0x01, 0x08, 0x00, 6, 4, 0x00, 0x01}
	return concat(b, macSrc, ipSrc, make([]byte, 6), ipDst)
}

func icmpEcho(id, seq uint16) []byte {
	h := []byte{8, 0, 0xf7, 0xff}
	h = binary.BigEndian.AppendUint16(h, id)
	return binary.BigEndian.AppendUint16(h, seq)
}
