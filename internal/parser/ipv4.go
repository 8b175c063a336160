package parser

import (
	"encoding/binary"
	"fmt"

	"tracecap/internal/models"
)

const ipv4MinHeaderLen = 20

func dissectIPv4(data []byte, off int) (Layer, error) {
	if len(data) < ipv4MinHeaderLen {
		return Layer{}, truncated(ipv4MinHeaderLen, len(data))
	}
	version := data[0] >> 4
	ihl := data[0] & 0x0f
	if version != 4 {
		return Layer{}, fmt.Errorf("%w: version %d, want 4", ErrBadVersion, version)
	}
	if ihl < 5 {
		return Layer{}, fmt.Errorf("%w: header length %d words, minimum is 5", ErrBadLength, ihl)
	}
	hdrLen := int(ihl) * 4
	if hdrLen > len(data) {
		return Layer{}, fmt.Errorf("%w: header length %d exceeds the %d bytes available", ErrBadLength, hdrLen, len(data))
	}

	total := binary.BigEndian.Uint16(data[2:4])
	totalValue := models.Uint(uint64(total))
	switch {
	case total == 0:
		// Segmentation offload hands outgoing packets to the capture with
		// the length unset.
		totalValue = models.Label(0, "0 (unset, assuming captured length)")
		total = uint16(min(len(data), 0xffff))
	case int(total) < hdrLen:
		return Layer{}, fmt.Errorf("%w: total length %d is shorter than the %d byte header", ErrBadLength, total, hdrLen)
	}

	frag := binary.BigEndian.Uint16(data[6:8])
	fragOffset := frag & 0x1fff
	proto := data[9]
	src, dst := models.IP(data[12:16]), models.IP(data[16:20])

	flagsRange := models.Span(off+6, 2)
	fields := []*models.Field{
		models.Bits("Version", models.Uint(uint64(version)), models.Span(off, 1), 0xf0),
		models.Bits("Header Length", headerLen(ihl), models.Span(off, 1), 0x0f),
		models.Bits("Differentiated Services", models.Hex(uint64(data[1]>>2), 2), models.Span(off+1, 1), 0xfc),
		models.Bits("Explicit Congestion Notification", models.Uint(uint64(data[1]&0x03)), models.Span(off+1, 1), 0x03),
		models.Leaf("Total Length", totalValue, models.Span(off+2, 2)),
		models.Leaf("Identification", models.Hex(uint64(binary.BigEndian.Uint16(data[4:6])), 4), models.Span(off+4, 2)),
		models.BranchBits("Flags", models.Hex(uint64(frag>>13), 1), flagsRange, 0xe000,
			models.Bits("Reserved", models.Flag(frag&0x8000 != 0), flagsRange, 0x8000),
			models.Bits("Don't Fragment", models.Flag(frag&0x4000 != 0), flagsRange, 0x4000),
			models.Bits("More Fragments", models.Flag(frag&0x2000 != 0), flagsRange, 0x2000),
		),
		models.Bits("Fragment Offset", models.Uint(uint64(fragOffset)*8), flagsRange, 0x1fff),
		models.Leaf("Time to Live", models.Uint(uint64(data[8])), models.Span(off+8, 1)),
		models.Leaf("Protocol", ipProtoValue(proto), models.Span(off+9, 1)),
		models.Leaf("Header Checksum", models.Hex(uint64(binary.BigEndian.Uint16(data[10:12])), 4), models.Span(off+10, 2)),
		models.Leaf("Source", src, models.Span(off+12, 4)),
		models.Leaf("Destination", dst, models.Span(off+16, 4)),
	}
	if hdrLen > ipv4MinHeaderLen {
		fields = append(fields, models.Leaf("Options", models.Bytes(data[ipv4MinHeaderLen:hdrLen]),
			models.Span(off+ipv4MinHeaderLen, hdrLen-ipv4MinHeaderLen)))
	}

	next := IPProtoKey(proto)
	if fragOffset != 0 {
		// Only the first fragment carries the next protocol's header.
		next = Terminal
	}
	summary := fmt.Sprintf("Src: %s, Dst: %s", src, dst)
	return Layer{
		Node:       models.Branch("IPv4", models.Text(summary), models.Span(off, hdrLen), fields...),
		Consumed:   hdrLen,
		Next:       next,
		PayloadLen: int(total) - hdrLen,
	}, nil
}
