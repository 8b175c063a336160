package printer

import (
	"bytes"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"tracecap/internal/models"
	"tracecap/internal/parser"
)

func sampleOutcome() parser.Outcome {
	root := models.Branch("Frame 1", models.Text("4 bytes"), models.Span(0, 4),
		models.Branch("Demo", models.None(), models.Span(0, 4),
			models.Leaf("Port", models.Uint(53), models.Span(0, 2)),
			models.Leaf("Kind", models.Enum(0x0800, 4, "IPv4"), models.Span(2, 2)),
		),
	)
	return parser.Outcome{Root: root}
}

func TestFormat(t *testing.T) {
	p := New(nil)
	want := "Frame 1: 4 bytes\n" +
		"    Demo\n" +
		"        Port: 53\n" +
		"        Kind: IPv4 (0x0800)\n"
	assert.Equal(t, p.Format(sampleOutcome()), want)

	p = New(nil, WithIndent(2))
	assert.Check(t, is.Contains(p.Format(sampleOutcome()), "\n    Port: 53\n"))
}

func TestFormatFailure(t *testing.T) {
	out := parser.New(parser.DefaultRegistry()).Dissect(models.RawFrame{
		LinkType: 1,
		Data:     []byte{0x00, 0x01, 0x02},
	})
	assert.Assert(t, out.Err != nil)

	got := New(nil).Format(out)
	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	assert.Equal(t, len(lines), 2)
	assert.Check(t, is.Equal(lines[0], "Frame: 3 bytes on wire (24 bits), 3 bytes captured (24 bits)"))
	assert.Check(t, is.Equal(lines[1], "    [Dissection stopped at Ethernet II: truncated header: need 14 bytes, have 3]"))
}

func TestPrintWithHexDump(t *testing.T) {
	var buf bytes.Buffer
	data := []byte("abc")
	root := models.Branch("Frame", models.None(), models.Span(0, 3),
		models.Leaf("Payload", models.Bytes(data), models.Span(0, 3)))

	p := New(&buf, WithHexDump(true))
	assert.NilError(t, p.Print(models.RawFrame{Data: data}, parser.Outcome{Root: root}))

	dump := "0000  61 62 63 " + strings.Repeat("   ", 5) + " " + strings.Repeat("   ", 8) + " |abc|\n"
	want := "Frame\n    Payload: 616263 (3 bytes)\n\n" + dump + "\n"
	assert.Equal(t, buf.String(), want)
}

func TestHexDumpLines(t *testing.T) {
	data := make([]byte, 40)
	for i := range data {
		data[i] = byte('A' + i%26)
	}
	data[0] = 0x00
	dump := formatHexDump(data)
	lines := strings.Split(strings.TrimSuffix(dump, "\n"), "\n")
	assert.Equal(t, len(lines), 3)
	assert.Check(t, strings.HasPrefix(lines[0], "0000  00 42 43 44 45 46 47 48  49 4a"))
	assert.Check(t, strings.HasSuffix(lines[0], "|.BCDEFGHIJKLMNOP|"))
	assert.Check(t, strings.HasPrefix(lines[2], "0020  "))
}

func TestPrintStats(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)
	assert.NilError(t, p.PrintStats(models.CaptureStats{Received: 10, Dropped: 2, IfDropped: 1}))
	assert.Equal(t, buf.String(), "Received: 10, dropped: 2, if_dropped: 1\n")
}
