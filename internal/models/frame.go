package models

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// RawFrame is one captured link-layer frame with its capture metadata.
type RawFrame struct {
	Number   int
	LinkType layers.LinkType
	Info     gopacket.CaptureInfo
	Data     []byte
}

// CaptureStats are the aggregate counters reported by a capture source.
type CaptureStats struct {
	Received  int `json:"received"`
	Dropped   int `json:"dropped"`
	IfDropped int `json:"ifDropped"`
}
