package parser

import (
	"encoding/binary"
	"fmt"

	"github.com/google/gopacket/layers"

	"tracecap/internal/models"
)

const (
	ethHeaderLen = 14
	vlanTagLen   = 4
	// Type field values up to this are an IEEE 802.3 payload length.
	ethMaxLength = 1500
)

func isVLANTPID(et uint16) bool {
	return et == uint16(layers.EthernetTypeDot1Q) || et == uint16(layers.EthernetTypeQinQ)
}

func dissectEthernet(maxTags int) Dissector {
	return func(data []byte, off int) (Layer, error) {
		if len(data) < ethHeaderLen {
			return Layer{}, truncated(ethHeaderLen, len(data))
		}
		fields := []*models.Field{
			models.Leaf("Destination", models.HwAddr(data[0:6]), models.Span(off, 6)),
			models.Leaf("Source", models.HwAddr(data[6:12]), models.Span(off+6, 6)),
		}

		pos := 12
		et := binary.BigEndian.Uint16(data[pos:])
		for tags := 0; isVLANTPID(et); tags++ {
			if tags == maxTags {
				return Layer{}, fmt.Errorf("%w: more than %d stacked VLAN tags", ErrMalformed, maxTags)
			}
			if len(data) < pos+vlanTagLen+2 {
				return Layer{}, truncated(pos+vlanTagLen+2, len(data))
			}
			fields = append(fields, vlanTag(data[pos:pos+vlanTagLen], off+pos))
			pos += vlanTagLen
			et = binary.BigEndian.Uint16(data[pos:])
		}
		hdrLen := pos + 2

		layer := Layer{Consumed: hdrLen, Next: EtherTypeKey(et), PayloadLen: -1}
		if et <= ethMaxLength {
			fields = append(fields, models.Leaf("Length", models.Uint(uint64(et)), models.Span(off+pos, 2)))
			layer.Next = Terminal
			layer.PayloadLen = int(et)
		} else {
			fields = append(fields, models.Leaf("Type", etherTypeValue(et), models.Span(off+pos, 2)))
		}

		summary := fmt.Sprintf("Src: %s, Dst: %s", fields[1].Value(), fields[0].Value())
		layer.Node = models.Branch("Ethernet II", models.Text(summary), models.Span(off, hdrLen), fields...)
		return layer, nil
	}
}

// vlanTag decodes a 4 byte 802.1Q tag: TPID followed by PCP, DEI and VID.
func vlanTag(tag []byte, off int) *models.Field {
	tpid := binary.BigEndian.Uint16(tag[0:2])
	tci := binary.BigEndian.Uint16(tag[2:4])
	tciRange := models.Span(off+2, 2)
	id := tci & 0x0fff

	name := "802.1Q Virtual LAN"
	if tpid == uint16(layers.EthernetTypeQinQ) {
		name = "802.1ad Service VLAN"
	}
	return models.Branch(name, models.Text(fmt.Sprintf("ID: %d", id)), models.Span(off, vlanTagLen),
		models.Leaf("TPID", models.Hex(uint64(tpid), 4), models.Span(off, 2)),
		models.Bits("Priority", models.Uint(uint64(tci>>13)), tciRange, 0xe000),
		models.Bits("Drop Eligible", models.Flag(tci&0x1000 != 0), tciRange, 0x1000),
		models.Bits("ID", models.Uint(uint64(id)), tciRange, 0x0fff),
	)
}
