package parser

import (
	"encoding/binary"
	"fmt"

	"tracecap/internal/models"
)

const (
	tcpMinHeaderLen = 20
	udpHeaderLen    = 8
)

var (
	tcpFlagNames = []string{"NS", "CWR", "ECE", "URG", "ACK", "PSH", "RST", "SYN", "FIN"}
	tcpFlagMasks = []uint16{0x100, 0x080, 0x040, 0x020, 0x010, 0x008, 0x004, 0x002, 0x001}
)

func ports(data []byte, off int) (src, dst uint16, fields []*models.Field) {
	src = binary.BigEndian.Uint16(data[0:2])
	dst = binary.BigEndian.Uint16(data[2:4])
	return src, dst, []*models.Field{
		models.Leaf("Source Port", models.Uint(uint64(src)), models.Span(off, 2)),
		models.Leaf("Destination Port", models.Uint(uint64(dst)), models.Span(off+2, 2)),
	}
}

func dissectTCP(data []byte, off int) (Layer, error) {
	if len(data) < tcpMinHeaderLen {
		return Layer{}, truncated(tcpMinHeaderLen, len(data))
	}
	dataOffset := data[12] >> 4
	if dataOffset < 5 {
		return Layer{}, fmt.Errorf("%w: data offset %d words, minimum is 5", ErrBadLength, dataOffset)
	}
	hdrLen := int(dataOffset) * 4
	if hdrLen > len(data) {
		return Layer{}, fmt.Errorf("%w: header length %d exceeds the %d bytes available", ErrBadLength, hdrLen, len(data))
	}

	src, dst, fields := ports(data, off)
	seq := binary.BigEndian.Uint32(data[4:8])
	ack := binary.BigEndian.Uint32(data[8:12])
	flags := binary.BigEndian.Uint16(data[12:14]) & 0x0fff

	flagRange := models.Span(off+12, 2)
	flagFields := []*models.Field{
		models.Bits("Reserved", models.Uint(uint64(flags>>9)), flagRange, 0x0e00),
	}
	for i, name := range tcpFlagNames {
		m := tcpFlagMasks[i]
		flagFields = append(flagFields, models.Bits(name, models.Flag(flags&m != 0), flagRange, uint64(m)))
	}
	flagText := fmt.Sprintf("0x%03x", flags)
	if set := flagNames(flags, tcpFlagNames, tcpFlagMasks); set != "" {
		flagText += " (" + set + ")"
	}

	fields = append(fields,
		models.Leaf("Sequence Number", models.Uint(uint64(seq)), models.Span(off+4, 4)),
		models.Leaf("Acknowledgment Number", models.Uint(uint64(ack)), models.Span(off+8, 4)),
		models.Bits("Header Length", headerLen(dataOffset), models.Span(off+12, 1), 0xf0),
		models.BranchBits("Flags", models.Label(uint64(flags), flagText), flagRange, 0x0fff, flagFields...),
		models.Leaf("Window", models.Uint(uint64(binary.BigEndian.Uint16(data[14:16]))), models.Span(off+14, 2)),
		models.Leaf("Checksum", models.Hex(uint64(binary.BigEndian.Uint16(data[16:18])), 4), models.Span(off+16, 2)),
		models.Leaf("Urgent Pointer", models.Uint(uint64(binary.BigEndian.Uint16(data[18:20]))), models.Span(off+18, 2)),
	)
	if hdrLen > tcpMinHeaderLen {
		fields = append(fields, models.Leaf("Options", models.Bytes(data[tcpMinHeaderLen:hdrLen]),
			models.Span(off+tcpMinHeaderLen, hdrLen-tcpMinHeaderLen)))
	}

	summary := fmt.Sprintf("Src Port: %d, Dst Port: %d, Seq: %d, Ack: %d, Len: %d",
		src, dst, seq, ack, len(data)-hdrLen)
	return Layer{
		Node:       models.Branch("TCP", models.Text(summary), models.Span(off, hdrLen), fields...),
		Consumed:   hdrLen,
		Next:       Terminal,
		PayloadLen: -1,
	}, nil
}

func dissectUDP(data []byte, off int) (Layer, error) {
	if len(data) < udpHeaderLen {
		return Layer{}, truncated(udpHeaderLen, len(data))
	}
	src, dst, fields := ports(data, off)
	length := binary.BigEndian.Uint16(data[4:6])
	payloadLen := -1
	switch {
	case length == 0:
		// Unset on IPv6 jumbograms; the network layer bounds the payload.
	case length < udpHeaderLen:
		return Layer{}, fmt.Errorf("%w: length %d is shorter than the %d byte header", ErrBadLength, length, udpHeaderLen)
	default:
		payloadLen = int(length) - udpHeaderLen
	}

	fields = append(fields,
		models.Leaf("Length", models.Uint(uint64(length)), models.Span(off+4, 2)),
		models.Leaf("Checksum", models.Hex(uint64(binary.BigEndian.Uint16(data[6:8])), 4), models.Span(off+6, 2)),
	)
	summary := fmt.Sprintf("Src Port: %d, Dst Port: %d, Len: %d", src, dst, len(data)-udpHeaderLen)
	return Layer{
		Node:       models.Branch("UDP", models.Text(summary), models.Span(off, udpHeaderLen), fields...),
		Consumed:   udpHeaderLen,
		Next:       Terminal,
		PayloadLen: payloadLen,
	}, nil
}
