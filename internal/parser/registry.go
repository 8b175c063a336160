package parser

import (
	"fmt"

	"github.com/google/gopacket/layers"

	"tracecap/internal/models"
)

// Scope is the namespace a Key's value belongs to.
type Scope uint8

const (
	ScopeNone Scope = iota
	ScopeLinkType
	ScopeEtherType
	ScopeIPProto
)

func (s Scope) String() string {
	switch s {
	case ScopeNone:
		return "none"
	case ScopeLinkType:
		return "link type"
	case ScopeEtherType:
		return "ethertype"
	case ScopeIPProto:
		return "IP protocol"
	default:
		return fmt.Sprintf("scope(%d)", uint8(s))
	}
}

// Key selects the dissector for the next layer.
type Key struct {
	Scope Scope
	Value uint32
}

// Terminal marks a layer after which nothing is decoded; the remaining bytes
// become an opaque payload.
var Terminal = Key{}

func LinkTypeKey(lt layers.LinkType) Key { return Key{Scope: ScopeLinkType, Value: uint32(lt)} }
func EtherTypeKey(et uint16) Key { return Key{Scope: ScopeEtherType, Value: uint32(et)} }
func IPProtoKey(p uint8) Key { return Key{Scope: ScopeIPProto, Value: uint32(p)} }

func (k Key) String() string {
	if k.Scope == ScopeNone {
		return "terminal"
	}
	return fmt.Sprintf("%s 0x%x", k.Scope, k.Value)
}

// Layer is the result of dissecting one protocol header.
type Layer struct {
	Node     *models.Field
	Consumed int
	Next     Key
	// PayloadLen is the number of bytes following the header that belong to
	// this layer according to its own length field, or -1 when the layer
	// does not say.
	PayloadLen int
}

// Dissector decodes the header at the start of data. offset is the position
// of data[0] within the frame and is used for field ranges only.
type Dissector func(data []byte, offset int) (Layer, error)

// Entry is a registered dissector and the layer name used in diagnostics.
type Entry struct {
	Name    string
	Dissect Dissector
}

// Registry maps layer keys to dissectors. It is populated once at startup and
// only read afterwards, so it may be shared without locking.
type Registry struct {
	entries map[Key]Entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Key]Entry)}
}

// Register binds key to d. Registering the same key twice panics.
func (r *Registry) Register(key Key, name string, d Dissector) {
	if key.Scope == ScopeNone {
		panic("parser: cannot register the terminal key")
	}
	if _, dup := r.entries[key]; dup {
		panic(fmt.Sprintf("parser: duplicate dissector for %s", key))
	}
	r.entries[key] = Entry{Name: name, Dissect: d}
}

// Lookup returns the dissector bound to key.
func (r *Registry) Lookup(key Key) (Entry, bool) {
	e, ok := r.entries[key]
	return e, ok
}

// Len returns the number of registered dissectors.
func (r *Registry) Len() int { return len(r.entries) }

// DefaultMaxVLANTags is how many stacked 802.1Q/802.1ad tags the Ethernet
// dissector skips before giving up.
const DefaultMaxVLANTags = 2

type registryOptions struct {
	maxVLANTags int
}

// RegistryOption configures DefaultRegistry.
type RegistryOption func(*registryOptions)

// WithMaxVLANTags sets how many stacked VLAN tags are accepted.
func WithMaxVLANTags(n int) RegistryOption {
	return func(o *registryOptions) {
		if n >= 0 {
			o.maxVLANTags = n
		}
	}
}

// DefaultRegistry returns a registry with every built-in dissector.
func DefaultRegistry(opts ...RegistryOption) *Registry {
	o := registryOptions{maxVLANTags: DefaultMaxVLANTags}
	for _, opt := range opts {
		opt(&o)
	}

	r := NewRegistry()
	r.Register(LinkTypeKey(layers.LinkTypeEthernet), "Ethernet II", dissectEthernet(o.maxVLANTags))
	r.Register(LinkTypeKey(layers.LinkTypeLinuxSLL), "Linux cooked capture", dissectSLL)

	r.Register(EtherTypeKey(uint16(layers.EthernetTypeIPv4)), "IPv4", dissectIPv4)
	r.Register(EtherTypeKey(uint16(layers.EthernetTypeIPv6)), "IPv6", dissectIPv6)
	r.Register(EtherTypeKey(uint16(layers.EthernetTypeARP)), "ARP", dissectARP)

	r.Register(IPProtoKey(uint8(layers.IPProtocolIPv4)), "IPv4", dissectIPv4)
	r.Register(IPProtoKey(uint8(layers.IPProtocolIPv6)), "IPv6", dissectIPv6)
	r.Register(IPProtoKey(uint8(layers.IPProtocolTCP)), "TCP", dissectTCP)
	r.Register(IPProtoKey(uint8(layers.IPProtocolUDP)), "UDP", dissectUDP)
	r.Register(IPProtoKey(uint8(layers.IPProtocolICMPv4)), "ICMPv4", dissectICMPv4)
	return r
}
