package parser

import (
	"encoding/binary"
	"fmt"

	"github.com/google/gopacket/layers"

	"tracecap/internal/models"
)

const icmpv4HeaderLen = 8

func dissectICMPv4(data []byte, off int) (Layer, error) {
	if len(data) < icmpv4HeaderLen {
		return Layer{}, truncated(icmpv4HeaderLen, len(data))
	}
	typ, code := data[0], data[1]
	tc := layers.CreateICMPv4TypeCode(typ, code)

	fields := []*models.Field{
		models.Leaf("Type", models.Label(uint64(typ), fmt.Sprintf("%d (%s)", typ, tc)), models.Span(off, 1)),
		models.Leaf("Code", models.Uint(uint64(code)), models.Span(off+1, 1)),
		models.Leaf("Checksum", models.Hex(uint64(binary.BigEndian.Uint16(data[2:4])), 4), models.Span(off+2, 2)),
	}
	switch typ {
	case layers.ICMPv4TypeEchoRequest, layers.ICMPv4TypeEchoReply,
		layers.ICMPv4TypeTimestampRequest, layers.ICMPv4TypeTimestampReply:
		fields = append(fields,
			models.Leaf("Identifier", models.Hex(uint64(binary.BigEndian.Uint16(data[4:6])), 4), models.Span(off+4, 2)),
			models.Leaf("Sequence", models.Uint(uint64(binary.BigEndian.Uint16(data[6:8]))), models.Span(off+6, 2)),
		)
	default:
		fields = append(fields, models.Leaf("Rest of Header", models.Bytes(data[4:8]), models.Span(off+4, 4)))
	}

	node := models.Branch("ICMPv4", models.Text(tc.String()), models.Span(off, icmpv4HeaderLen), fields...)
	return Layer{Node: node, Consumed: icmpv4HeaderLen, Next: Terminal, PayloadLen: -1}, nil
}
