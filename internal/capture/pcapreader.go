package capture

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"tracecap/internal/models"
)

var pcapngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// PcapReader replays frames from a pcap or pcapng file.
type PcapReader struct {
	file   *os.File
	reader packetReader
	read   int
}

// OpenFile opens a capture file for reading.
func OpenFile(path string) (*PcapReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &OpenError{Device: path, Err: err}
	}
	r, err := newPacketReader(f)
	if err != nil {
		f.Close()
		return nil, &OpenError{Device: path, Err: err}
	}
	return &PcapReader{file: f, reader: r}, nil
}

func newPacketReader(r io.Reader) (packetReader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(len(pcapngMagic))
	if err != nil {
		return nil, fmt.Errorf("read file header: %w", err)
	}
	if bytes.Equal(magic, pcapngMagic) {
		return pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	}
	return pcapgo.NewReader(br)
}

// Next returns the next frame in the file, or io.EOF after the last one.
func (pr *PcapReader) Next() (models.RawFrame, error) {
	data, ci, err := pr.reader.ReadPacketData()
	if err != nil {
		return models.RawFrame{}, err
	}
	pr.read++
	return models.RawFrame{LinkType: pr.reader.LinkType(), Info: ci, Data: data}, nil
}

// Stats reports the number of frames read so far. Files have no drops.
func (pr *PcapReader) Stats() (models.CaptureStats, error) {
	return models.CaptureStats{Received: pr.read}, nil
}

// Close releases the file.
func (pr *PcapReader) Close() {
	if pr.file != nil {
		pr.file.Close()
	}
}
