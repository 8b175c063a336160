package parser

import (
	"fmt"
	"strings"

	"github.com/google/gopacket/layers"

	"tracecap/internal/models"
)

func known(name string) string {
	if name == "" || strings.HasPrefix(name, "Unknown") {
		return "Unknown"
	}
	return name
}

func etherTypeName(et uint16) string { return known(layers.EthernetType(et).String()) }

func ipProtoName(p uint8) string { return known(layers.IPProtocol(p).String()) }

func etherTypeValue(et uint16) models.Value {
	return models.Enum(uint64(et), 4, etherTypeName(et))
}

func ipProtoValue(p uint8) models.Value {
	return models.Enum(uint64(p), 2, ipProtoName(p))
}

// headerLen renders a length counted in 32-bit words, e.g. "20 bytes (5)".
func headerLen(words uint8) models.Value {
	return models.Label(uint64(words), fmt.Sprintf("%d bytes (%d)", int(words)*4, words))
}

// flagNames lists the names of the set bits of v, most significant first.
func flagNames(v uint16, names []string, masks []uint16) string {
	var set []string
	for i, m := range masks {
		if v&m != 0 {
			set = append(set, names[i])
		}
	}
	return strings.Join(set, ", ")
}
