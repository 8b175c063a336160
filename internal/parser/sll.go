package parser

import (
	"encoding/binary"
	"fmt"

	"tracecap/internal/models"
)

const (
	sllHeaderLen  = 16
	sllMaxAddrLen = 8
)

var sllPacketTypes = map[uint16]string{
	0: "Unicast to us",
	1: "Broadcast",
	2: "Multicast",
	3: "Unicast to another host",
	4: "Sent by us",
}

// dissectSLL decodes the Linux "cooked" pseudo header used when capturing on
// the any device.
func dissectSLL(data []byte, off int) (Layer, error) {
	if len(data) < sllHeaderLen {
		return Layer{}, truncated(sllHeaderLen, len(data))
	}
	pktType := binary.BigEndian.Uint16(data[0:2])
	addrType := binary.BigEndian.Uint16(data[2:4])
	addrLen := binary.BigEndian.Uint16(data[4:6])
	if addrLen > sllMaxAddrLen {
		return Layer{}, fmt.Errorf("%w: link-layer address length %d exceeds %d", ErrBadLength, addrLen, sllMaxAddrLen)
	}
	proto := binary.BigEndian.Uint16(data[14:16])

	typeName, ok := sllPacketTypes[pktType]
	if !ok {
		typeName = "Unknown"
	}
	var addr models.Value
	if addrLen == 6 {
		addr = models.HwAddr(data[6:12])
	} else {
		addr = models.Bytes(data[6 : 6+addrLen])
	}

	node := models.Branch("Linux cooked capture", models.Text(typeName), models.Span(off, sllHeaderLen),
		models.Leaf("Packet Type", models.Label(uint64(pktType), fmt.Sprintf("%s (%d)", typeName, pktType)), models.Span(off, 2)),
		models.Leaf("Link-layer Address Type", models.Uint(uint64(addrType)), models.Span(off+2, 2)),
		models.Leaf("Link-layer Address Length", models.Uint(uint64(addrLen)), models.Span(off+4, 2)),
		models.Leaf("Source", addr, models.Span(off+6, 8)),
		models.Leaf("Protocol", etherTypeValue(proto), models.Span(off+14, 2)),
	)
	return Layer{Node: node, Consumed: sllHeaderLen, Next: EtherTypeKey(proto), PayloadLen: -1}, nil
}
