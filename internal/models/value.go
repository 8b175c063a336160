package models

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

// Kind identifies how a Value is rendered.
type Kind uint8

const (
	KindNone Kind = iota
	KindUint
	KindHex
	KindEnum
	KindLabel
	KindFlag
	KindText
	KindBytes
	KindHwAddr
	KindIP
)

// MaxRenderedBytes bounds how many bytes of an opaque value are rendered.
const MaxRenderedBytes = 32

// Value is the decoded content of a field: a typed scalar, an address or an
// opaque byte string, together with its rendering.
type Value struct {
	kind   Kind
	num    uint64
	digits int
	text   string
	raw    []byte
}

// None is the empty value used by branches that only group children.
func None() Value { return Value{} }

// Uint renders v in decimal.
func Uint(v uint64) Value { return Value{kind: KindUint, num: v} }

// Hex renders v as 0x followed by exactly digits hex digits.
func Hex(v uint64, digits int) Value { return Value{kind: KindHex, num: v, digits: digits} }

// Enum renders v as "name (0x..)".
func Enum(v uint64, digits int, name string) Value {
	return Value{kind: KindEnum, num: v, digits: digits, text: name}
}

// Label renders text in place of the number v, e.g. "20 bytes (5)".
func Label(v uint64, text string) Value { return Value{kind: KindLabel, num: v, text: text} }

// Flag renders a single bit as Set / Not set.
func Flag(set bool) Value {
	v := Value{kind: KindFlag}
	if set {
		v.num = 1
	}
	return v
}

// Text renders s verbatim.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Bytes holds an opaque byte string. b is copied.
func Bytes(b []byte) Value {
	return Value{kind: KindBytes, raw: append([]byte{}, b...)}
}

// HwAddr holds a hardware address. b is copied.
func HwAddr(b []byte) Value {
	return Value{kind: KindHwAddr, raw: append([]byte{}, b...)}
}

// IP holds a 4 or 16 byte network address. b is copied.
func IP(b []byte) Value {
	return Value{kind: KindIP, raw: append([]byte{}, b...)}
}

func (v Value) Kind() Kind { return v.kind }

// IsZero reports whether v is the empty value.
func (v Value) IsZero() bool { return v.kind == KindNone }

// Uint64 returns the scalar behind numeric kinds.
func (v Value) Uint64() (uint64, bool) {
	switch v.kind {
	case KindUint, KindHex, KindEnum, KindLabel, KindFlag:
		return v.num, true
	}
	return 0, false
}

// Raw returns a copy of the bytes held by KindBytes, KindHwAddr and KindIP values.
func (v Value) Raw() []byte {
	if v.raw == nil {
		return nil
	}
	return append([]byte{}, v.raw...)
}

func (v Value) String() string {
	switch v.kind {
	case KindUint:
		return strconv.FormatUint(v.num, 10)
	case KindHex:
		return fmt.Sprintf("0x%0*x", v.digits, v.num)
	case KindEnum:
		return fmt.Sprintf("%s (0x%0*x)", v.text, v.digits, v.num)
	case KindLabel, KindText:
		return v.text
	case KindFlag:
		if v.num != 0 {
			return "Set"
		}
		return "Not set"
	case KindBytes:
		return formatBytes(v.raw)
	case KindHwAddr:
		return net.HardwareAddr(v.raw).String()
	case KindIP:
		if addr, ok := netip.AddrFromSlice(v.raw); ok {
			return addr.String()
		}
		return formatBytes(v.raw)
	}
	return ""
}

func formatBytes(b []byte) string {
	if len(b) == 0 {
		return "(0 bytes)"
	}
	var sb strings.Builder
	n := len(b)
	if n > MaxRenderedBytes {
		n = MaxRenderedBytes
	}
	for _, c := range b[:n] {
		fmt.Fprintf(&sb, "%02x", c)
	}
	if n < len(b) {
		sb.WriteString("...")
	}
	fmt.Fprintf(&sb, " (%d bytes)", len(b))
	return sb.String()
}
