package parser

import (
	"encoding/binary"
	"fmt"

	"tracecap/internal/models"
)

const ipv6HeaderLen = 40

func dissectIPv6(data []byte, off int) (Layer, error) {
	if len(data) < ipv6HeaderLen {
		return Layer{}, truncated(ipv6HeaderLen, len(data))
	}
	version := data[0] >> 4
	if version != 6 {
		return Layer{}, fmt.Errorf("%w: version %d, want 6", ErrBadVersion, version)
	}
	first := binary.BigEndian.Uint32(data[0:4])
	payloadLen := int(binary.BigEndian.Uint16(data[4:6]))
	next := data[6]
	src, dst := models.IP(data[8:24]), models.IP(data[24:40])

	plValue := models.Uint(uint64(payloadLen))
	if payloadLen == 0 {
		// Jumbograms carry their length in a hop-by-hop option.
		payloadLen = -1
	}

	node := models.Branch("IPv6", models.Text(fmt.Sprintf("Src: %s, Dst: %s", src, dst)), models.Span(off, ipv6HeaderLen),
		models.Bits("Version", models.Uint(uint64(version)), models.Span(off, 1), 0xf0),
		models.Bits("Traffic Class", models.Hex(uint64(first>>20&0xff), 2), models.Span(off, 2), 0x0ff0),
		models.Bits("Flow Label", models.Hex(uint64(first&0xfffff), 5), models.Span(off+1, 3), 0x0fffff),
		models.Leaf("Payload Length", plValue, models.Span(off+4, 2)),
		models.Leaf("Next Header", ipProtoValue(next), models.Span(off+6, 1)),
		models.Leaf("Hop Limit", models.Uint(uint64(data[7])), models.Span(off+7, 1)),
		models.Leaf("Source", src, models.Span(off+8, 16)),
		models.Leaf("Destination", dst, models.Span(off+24, 16)),
	)
	return Layer{Node: node, Consumed: ipv6HeaderLen, Next: IPProtoKey(next), PayloadLen: payloadLen}, nil
}
