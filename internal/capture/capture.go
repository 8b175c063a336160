package capture

import (
	"errors"
	"fmt"
	"io"
	"net/netip"
	"time"

	"github.com/google/gopacket/pcap"

	"tracecap/internal/models"
)

const (
	DefaultSnapLen     = 5000
	DefaultReadTimeout = 10 * time.Second
)

var (
	// ErrTimeout is returned by Next when no frame arrived within the read
	// timeout. It is not fatal.
	ErrTimeout = errors.New("capture: read timeout expired")
	// ErrNoDevice is returned when no capture device exists.
	ErrNoDevice = errors.New("capture: no capture device found")
)

// Source yields captured frames one at a time.
type Source interface {
	// Next blocks until the next frame, ErrTimeout, io.EOF when the source
	// is exhausted, or another read error.
	Next() (models.RawFrame, error)
	Stats() (models.CaptureStats, error)
	Close()
}

// OpenError reports that a capture source could not be opened.
type OpenError struct {
	Device string
	Err    error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open capture on %s: %v", e.Device, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// Options are the live capture parameters.
type Options struct {
	SnapLen     int
	Promiscuous bool
	ReadTimeout time.Duration
}

// DefaultOptions returns promiscuous capture of up to 5000 bytes per frame
// with a ten second read timeout.
func DefaultOptions() Options {
	return Options{SnapLen: DefaultSnapLen, Promiscuous: true, ReadTimeout: DefaultReadTimeout}
}

// LiveCapture manages a live packet capture session.
type LiveCapture struct {
	handle *pcap.Handle
	iface  string
}

// InterfaceInfo describes a capture device and its addresses.
type InterfaceInfo struct {
	Name        string
	Description string
	Addresses   []netip.Addr
}

// HasRoutableAddress reports whether the device has an address other than
// loopback or unspecified.
func (i InterfaceInfo) HasRoutableAddress() bool {
	for _, a := range i.Addresses {
		if !a.IsLoopback() && !a.IsUnspecified() {
			return true
		}
	}
	return false
}

// ListInterfaces returns all available capture devices.
func ListInterfaces() ([]InterfaceInfo, error) {
	devs, err := pcap.FindAllDevs()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	out := make([]InterfaceInfo, 0, len(devs))
	for _, d := range devs {
		info := InterfaceInfo{
			Name:        d.Name,
			Description: d.Description,
		}
		for _, addr := range d.Addresses {
			if a, ok := netip.AddrFromSlice(addr.IP); ok {
				info.Addresses = append(info.Addresses, a.Unmap())
			}
		}
		out = append(out, info)
	}
	return out, nil
}

// DefaultDevice returns the device to capture on when none is given.
func DefaultDevice() (string, error) {
	devs, err := ListInterfaces()
	if err != nil {
		return "", err
	}
	return pickDefault(devs)
}

// pickDefault prefers the first device with a routable address and falls
// back to the first device listed.
func pickDefault(devs []InterfaceInfo) (string, error) {
	if len(devs) == 0 {
		return "", ErrNoDevice
	}
	for _, d := range devs {
		if d.HasRoutableAddress() {
			return d.Name, nil
		}
	}
	return devs[0].Name, nil
}

// OpenLive opens a live capture on the given interface.
func OpenLive(iface string, opts Options) (*LiveCapture, error) {
	if opts.SnapLen <= 0 {
		opts.SnapLen = DefaultSnapLen
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	handle, err := pcap.OpenLive(iface, int32(opts.SnapLen), opts.Promiscuous, opts.ReadTimeout)
	if err != nil {
		return nil, &OpenError{Device: iface, Err: err}
	}
	return &LiveCapture{handle: handle, iface: iface}, nil
}

// Next reads the next frame from the interface.
func (lc *LiveCapture) Next() (models.RawFrame, error) {
	data, ci, err := lc.handle.ReadPacketData()
	switch {
	case err == nil:
	case errors.Is(err, pcap.NextErrorTimeoutExpired):
		return models.RawFrame{}, ErrTimeout
	case errors.Is(err, io.EOF):
		return models.RawFrame{}, io.EOF
	default:
		return models.RawFrame{}, fmt.Errorf("read packet on %s: %w", lc.iface, err)
	}
	return models.RawFrame{LinkType: lc.handle.LinkType(), Info: ci, Data: data}, nil
}

// Stats returns capture statistics.
func (lc *LiveCapture) Stats() (models.CaptureStats, error) {
	stats, err := lc.handle.Stats()
	if err != nil {
		return models.CaptureStats{}, fmt.Errorf("capture stats on %s: %w", lc.iface, err)
	}
	return models.CaptureStats{
		Received:  stats.PacketsReceived,
		Dropped:   stats.PacketsDropped,
		IfDropped: stats.PacketsIfDropped,
	}, nil
}

// Close stops the capture.
func (lc *LiveCapture) Close() {
	if lc.handle != nil {
		lc.handle.Close()
	}
}
