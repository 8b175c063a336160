package parser

import (
	"encoding/binary"
	"fmt"

	"github.com/google/gopacket/layers"

	"tracecap/internal/models"
)

const arpFixedLen = 8

func dissectARP(data []byte, off int) (Layer, error) {
	if len(data) < arpFixedLen {
		return Layer{}, truncated(arpFixedLen, len(data))
	}
	hwType := binary.BigEndian.Uint16(data[0:2])
	protoType := binary.BigEndian.Uint16(data[2:4])
	hwLen, protoLen := int(data[4]), int(data[5])
	op := binary.BigEndian.Uint16(data[6:8])
	if hwLen == 0 || protoLen == 0 {
		return Layer{}, fmt.Errorf("%w: address sizes %d/%d", ErrBadLength, hwLen, protoLen)
	}
	total := arpFixedLen + 2*(hwLen+protoLen)
	if len(data) < total {
		return Layer{}, truncated(total, len(data))
	}

	hwName := "Unknown"
	if hwType == uint16(layers.LinkTypeEthernet) {
		hwName = "Ethernet"
	}
	opName := "Unknown"
	switch op {
	case layers.ARPRequest:
		opName = "request"
	case layers.ARPReply:
		opName = "reply"
	}

	pos := arpFixedLen
	addr := func(name string, n int, hw bool) *models.Field {
		b := data[pos : pos+n]
		var v models.Value
		switch {
		case hw && n == 6:
			v = models.HwAddr(b)
		case !hw && (n == 4 || n == 16):
			v = models.IP(b)
		default:
			v = models.Bytes(b)
		}
		f := models.Leaf(name, v, models.Span(off+pos, n))
		pos += n
		return f
	}
	senderHw := addr("Sender MAC", hwLen, true)
	senderIP := addr("Sender IP", protoLen, false)
	targetHw := addr("Target MAC", hwLen, true)
	targetIP := addr("Target IP", protoLen, false)

	var summary string
	switch op {
	case layers.ARPRequest:
		summary = fmt.Sprintf("Who has %s? Tell %s", targetIP.Value(), senderIP.Value())
	case layers.ARPReply:
		summary = fmt.Sprintf("%s is at %s", senderIP.Value(), senderHw.Value())
	default:
		summary = fmt.Sprintf("Opcode %d", op)
	}

	node := models.Branch("ARP", models.Text(summary), models.Span(off, total),
		models.Leaf("Hardware Type", models.Label(uint64(hwType), fmt.Sprintf("%s (%d)", hwName, hwType)), models.Span(off, 2)),
		models.Leaf("Protocol Type", etherTypeValue(protoType), models.Span(off+2, 2)),
		models.Leaf("Hardware Size", models.Uint(uint64(hwLen)), models.Span(off+4, 1)),
		models.Leaf("Protocol Size", models.Uint(uint64(protoLen)), models.Span(off+5, 1)),
		models.Leaf("Opcode", models.Label(uint64(op), fmt.Sprintf("%s (%d)", opName, op)), models.Span(off+6, 2)),
		senderHw, senderIP, targetHw, targetIP,
	)
	// Anything after the addresses is link-layer padding.
	return Layer{Node: node, Consumed: total, Next: Terminal, PayloadLen: 0}, nil
}
