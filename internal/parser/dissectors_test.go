package parser_test

import (
	"errors"
	"testing"

	"github.com/google/gopacket/layers"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"tracecap/internal/models"
	"tracecap/internal/parser"
)

func dissect(t *testing.T, data []byte, opts ...parser.RegistryOption) parser.Outcome {
	t.Helper()
	out := parser.New(parser.DefaultRegistry(opts...)).Dissect(ethFrame(data))
	assert.NilError(t, models.Validate(out.Root, len(data)))
	return out
}

func TestRegistry(t *testing.T) {
	reg := parser.DefaultRegistry()
	assert.Equal(t, reg.Len(), 10)

	e, ok := reg.Lookup(parser.EtherTypeKey(0x0800))
	assert.Assert(t, ok)
	assert.Equal(t, e.Name, "IPv4")

	_, ok = reg.Lookup(parser.IPProtoKey(132))
	assert.Assert(t, !ok)

	noop := func([]byte, int) (parser.Layer, error) { return parser.Layer{}, nil }
	assert.Check(t, is.Panics(func() { reg.Register(parser.IPProtoKey(6), "TCP again", noop) }))
	assert.Check(t, is.Panics(func() { reg.Register(parser.Terminal, "Nothing", noop) }))

	assert.Equal(t, parser.EtherTypeKey(0x86dd).String(), "ethertype 0x86dd")
	assert.Equal(t, parser.Terminal.String(), "terminal")
}

func TestEthernetFields(t *testing.T) {
	out := dissect(t, udpFrame(nil))
	eth := out.Root.Child("Ethernet II")
	assert.Equal(t, eth.Value().String(), "Src: 3c:22:fb:01:02:03, Dst: 00:1b:21:0a:0b:0c")
	assert.Equal(t, eth.Child("Type").Value().String(), "IPv4 (0x0800)")
	assert.Equal(t, eth.Range(), models.Range{Start: 0, End: 14})
}

func TestEthernet8023LengthField(t *testing.T) {
	llc := []byte{0x42, 0x42, 0x03, 0x00, 0x00}
	data := concat(ethernet(uint16(len(llc))), llc)
	out := dissect(t, data)
	assert.Assert(t, out.OK())
	eth := out.Root.Child("Ethernet II")
	assert.Equal(t, uintOf(eth.Child("Length")), uint64(len(llc)))
	assert.DeepEqual(t, out.Root.Child(parser.PayloadField).Value().Raw(), llc)
}

func TestVLANTag(t *testing.T) {
	data := concat(ethernet(0x8100), vlanTag(0x8100, 0x6064, 0x0800)[2:], ipv4(17, 5, 8), udp(1, 2, 0))
	out := dissect(t, data)
	assert.Assert(t, out.OK(), "unexpected error: %v", out.Err)
	assert.DeepEqual(t, childNames(out.Root), []string{"Ethernet II", "IPv4", "UDP"})

	tag := out.Root.Lookup("Ethernet II", "802.1Q Virtual LAN")
	assert.Assert(t, tag != nil)
	assert.Equal(t, uintOf(tag.Child("Priority")), uint64(3))
	assert.Equal(t, uintOf(tag.Child("ID")), uint64(100))
	assert.Equal(t, tag.Child("Drop Eligible").Value().String(), "Not set")
	assert.Equal(t, out.Root.Child("IPv4").Range().Start, 18)
}

func TestVLANTagLimit(t *testing.T) {
	data := concat(ethernet(0x88a8),
		vlanTag(0x88a8, 10, 0x8100)[2:],
		vlanTag(0x8100, 20, 0x8100)[2:],
		vlanTag(0x8100, 30, 0x0800)[2:],
		ipv4(17, 5, 8), udp(1, 2, 0))

	out := dissect(t, data)
	assert.Assert(t, out.Err != nil)
	assert.Equal(t, out.Err.Layer, "Ethernet II")
	assert.Assert(t, errors.Is(out.Err, parser.ErrMalformed))
	assert.Check(t, is.Contains(out.Err.Reason(), "more than 2 stacked VLAN tags"))

	out = dissect(t, data, parser.WithMaxVLANTags(3))
	assert.Assert(t, out.OK(), "unexpected error: %v", out.Err)
	assert.Equal(t, out.Root.Child("Ethernet II").NumChildren(), 3+3)
}

func TestIPv4Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(h []byte) []byte
		want   error
	}{
		{
			name:   "header length below minimum",
			mutate: func(h []byte) []byte { h[0] = 0x44; return h },
			want:   parser.ErrBadLength,
		},
		{
			name:   "header length beyond data",
			mutate: func(h []byte) []byte { h[0] = 0x4f; return h },
			want:   parser.ErrBadLength,
		},
		{
			name:   "wrong version",
			mutate: func(h []byte) []byte { h[0] = 0x65; return h },
			want:   parser.ErrBadVersion,
		},
		{
			name:   "total length shorter than header",
			mutate: func(h []byte) []byte { h[2], h[3] = 0, 12; return h },
			want:   parser.ErrBadLength,
		},
		{
			name:   "short header",
			mutate: func(h []byte) []byte { return h[:19] },
			want:   parser.ErrTruncated,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data := concat(ethernet(0x0800), tc.mutate(ipv4(17, 5, 0)))
			out := dissect(t, data)
			assert.Assert(t, out.Err != nil)
			assert.Equal(t, out.Err.Layer, "IPv4")
			assert.Equal(t, out.Err.Offset, 14)
			assert.Assert(t, errors.Is(out.Err, tc.want), "got %v", out.Err)
			assert.DeepEqual(t, childNames(out.Root), []string{"Ethernet II"})
		})
	}
}

func TestIPv4Options(t *testing.T) {
	data := concat(ethernet(0x0800), ipv4(17, 6, 8), udp(7, 9, 0))
	out := dissect(t, data)
	assert.Assert(t, out.OK())
	ip := out.Root.Child("IPv4")
	assert.Equal(t, ip.Child("Header Length").Value().String(), "24 bytes (6)")
	assert.Equal(t, ip.Child("Options").Range(), models.Range{Start: 34, End: 38})
	assert.Equal(t, out.Root.Child("UDP").Range().Start, 38)
}

func TestIPv4Flags(t *testing.T) {
	out := dissect(t, udpFrame(nil))
	flags := out.Root.Lookup("IPv4", "Flags")
	assert.Equal(t, flags.Child("Don't Fragment").Value().String(), "Set")
	assert.Equal(t, flags.Child("More Fragments").Value().String(), "Not set")
	assert.Equal(t, flags.Mask(), uint64(0xe000))
}

func TestIPv4LaterFragmentIsNotDecoded(t *testing.T) {
	ip := ipv4(17, 5, 8)
	ip[6], ip[7] = 0x00, 0x10
	data := concat(ethernet(0x0800), ip, udp(1, 2, 0))
	out := dissect(t, data)
	assert.Assert(t, out.OK())
	assert.DeepEqual(t, childNames(out.Root), []string{"Ethernet II", "IPv4", parser.PayloadField})
	assert.Equal(t, uintOf(out.Root.Lookup("IPv4", "Fragment Offset")), uint64(128))
}

func TestIPv4UnsetTotalLength(t *testing.T) {
	ip := ipv4(17, 5, 8)
	ip[2], ip[3] = 0, 0
	data := concat(ethernet(0x0800), ip, udp(1, 2, 4), []byte{1, 2, 3, 4})
	out := dissect(t, data)
	assert.Assert(t, out.OK())
	assert.DeepEqual(t, childNames(out.Root), []string{"Ethernet II", "IPv4", "UDP", parser.PayloadField})
	assert.Check(t, is.Contains(out.Root.Lookup("IPv4", "Total Length").Value().String(), "unset"))
}

func TestIPv6UDP(t *testing.T) {
	data := concat(ethernet(0x86dd), ipv6(17, 8), udp(546, 547, 0))
	out := dissect(t, data)
	assert.Assert(t, out.OK(), "unexpected error: %v", out.Err)
	assert.DeepEqual(t, childNames(out.Root), []string{"Ethernet II", "IPv6", "UDP"})

	ip := out.Root.Child("IPv6")
	assert.Equal(t, uintOf(ip.Child("Version")), uint64(6))
	assert.Equal(t, ip.Child("Traffic Class").Value().String(), "0x2a")
	assert.Equal(t, ip.Child("Flow Label").Value().String(), "0x12345")
	assert.Equal(t, ip.Child("Source").Value().String(), "fe80::1")
	assert.Equal(t, ip.Child("Destination").Value().String(), "ff02::2")
	assert.Equal(t, uintOf(out.Root.Lookup("UDP", "Destination Port")), uint64(547))
}

func TestARP(t *testing.T) {
	data := concat(ethernet(0x0806), arpRequest(), make([]byte, 18))
	out := dissect(t, data)
	assert.Assert(t, out.OK())
	assert.DeepEqual(t, childNames(out.Root), []string{"Ethernet II", "ARP", parser.TrailerField})

	arp := out.Root.Child("ARP")
	assert.Equal(t, arp.Value().String(), "Who has 10.0.0.1? Tell 192.168.1.10")
	assert.Equal(t, arp.Child("Opcode").Value().String(), "request (1)")
	assert.Equal(t, arp.Range(), models.Range{Start: 14, End: 42})
}

func TestICMPEcho(t *testing.T) {
	data := concat(ethernet(0x0800), ipv4(1, 5, 8), icmpEcho(0x0102, 7))
	out := dissect(t, data)
	assert.Assert(t, out.OK())
	icmp := out.Root.Child("ICMPv4")
	assert.Assert(t, icmp != nil)
	assert.Equal(t, uintOf(icmp.Child("Type")), uint64(8))
	assert.Equal(t, icmp.Child("Identifier").Value().String(), "0x0102")
	assert.Equal(t, uintOf(icmp.Child("Sequence")), uint64(7))
	assert.Assert(t, icmp.Child("Rest of Header") == nil)
}

func TestTCPHeaderChecks(t *testing.T) {
	out := dissect(t, tcpFrame(0x012, nil))
	assert.Assert(t, out.OK())
	tc := out.Root.Child("TCP")
	assert.Equal(t, tc.Child("Flags").Value().String(), "0x012 (ACK, SYN)")
	assert.Equal(t, tc.Child("Header Length").Value().String(), "20 bytes (5)")

	data := tcpFrame(0x002, nil)
	data[14+20+12] = 0x40
	out = dissect(t, data)
	assert.Assert(t, out.Err != nil)
	assert.Equal(t, out.Err.Layer, "TCP")
	assert.Assert(t, errors.Is(out.Err, parser.ErrBadLength))
}

func TestUDPBadLength(t *testing.T) {
	data := udpFrame(nil)
	data[14+20+4], data[14+20+5] = 0, 4
	out := dissect(t, data)
	assert.Assert(t, out.Err != nil)
	assert.Equal(t, out.Err.Layer, "UDP")
	assert.Equal(t, out.Err.Offset, 34)
	assert.Assert(t, errors.Is(out.Err, parser.ErrBadLength))
}

func TestLinuxSLL(t *testing.T) {
	sll := []byte{0x00, 0x04, 0x00, 0x01, 0x00, 0x06}
	sll = append(sll, macSrc...)
	sll = append(sll, 0, 0, 0x08, 0x00)
	data := concat(sll, ipv4(17, 5, 8), udp(1, 2, 0))

	out := parser.New(parser.DefaultRegistry()).Dissect(models.RawFrame{LinkType: layers.LinkTypeLinuxSLL, Data: data})
	assert.Assert(t, out.OK(), "unexpected error: %v", out.Err)
	assert.NilError(t, models.Validate(out.Root, len(data)))
	assert.DeepEqual(t, childNames(out.Root), []string{"Linux cooked capture", "IPv4", "UDP"})
	assert.Equal(t, out.Root.Lookup("Linux cooked capture", "Packet Type").Value().String(), "Sent by us (4)")
}
