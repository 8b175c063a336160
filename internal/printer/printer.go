package printer

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"tracecap/internal/models"
	"tracecap/internal/parser"
)

// DefaultIndent is the number of spaces per tree level.
const DefaultIndent = 4

// Printer renders decoded frames as indented "name: value" lines.
type Printer struct {
	w       io.Writer
	indent  int
	hexDump bool
}

// Option configures a Printer.
type Option func(*Printer)

// WithIndent sets the number of spaces per tree level.
func WithIndent(n int) Option {
	return func(p *Printer) {
		if n >= 0 {
			p.indent = n
		}
	}
}

// WithHexDump appends a hex dump of the frame after its tree.
func WithHexDump(on bool) Option {
	return func(p *Printer) { p.hexDump = on }
}

// New returns a printer writing to w.
func New(w io.Writer, opts ...Option) *Printer {
	p := &Printer{w: w, indent: DefaultIndent}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Print writes the tree of one frame followed, for a failed outcome, by a
// diagnostic line naming the layer that stopped dissection.
func (p *Printer) Print(frame models.RawFrame, out parser.Outcome) error {
	bw := bufio.NewWriter(p.w)
	p.writeTree(bw, out)
	if p.hexDump && len(frame.Data) > 0 {
		bw.WriteByte('\n')
		bw.WriteString(formatHexDump(frame.Data))
	}
	bw.WriteByte('\n')
	return bw.Flush()
}

// Format returns the text Print would write for out, without a hex dump.
func (p *Printer) Format(out parser.Outcome) string {
	var sb strings.Builder
	p.writeTree(&sb, out)
	return sb.String()
}

func (p *Printer) writeTree(w io.StringWriter, out parser.Outcome) {
	if out.Root != nil {
		out.Root.Walk(func(depth int, f *models.Field) bool {
			w.WriteString(p.line(depth, f))
			return true
		})
	}
	if out.Err != nil {
		w.WriteString(fmt.Sprintf("%s[Dissection stopped at %s: %s]\n",
			strings.Repeat(" ", p.indent), out.Err.Layer, out.Err.Reason()))
	}
}

func (p *Printer) line(depth int, f *models.Field) string {
	pad := strings.Repeat(" ", depth*p.indent)
	if f.Value().IsZero() {
		return pad + f.Name() + "\n"
	}
	return pad + f.Name() + ": " + f.Value().String() + "\n"
}

// PrintStats writes the aggregate capture counters on a single line.
func (p *Printer) PrintStats(s models.CaptureStats) error {
	_, err := fmt.Fprintf(p.w, "Received: %d, dropped: %d, if_dropped: %d\n", s.Received, s.Dropped, s.IfDropped)
	return err
}

func formatHexDump(data []byte) string {
	var sb strings.Builder
	for offset := 0; offset < len(data); offset += 16 {
		// Offset
		sb.WriteString(fmt.Sprintf("%04x  ", offset))

		// Hex bytes
		end := offset + 16
		if end > len(data) {
			end = len(data)
		}
		for i := offset; i < offset+16; i++ {
			if i < end {
				sb.WriteString(fmt.Sprintf("%02x ", data[i]))
			} else {
				sb.WriteString("   ")
			}
			if i == offset+7 {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(" |")

		// ASCII
		for i := offset; i < end; i++ {
			b := data[i]
			if b >= 0x20 && b <= 0x7e {
				sb.WriteByte(b)
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('|')
		sb.WriteByte('\n')
	}
	return sb.String()
}
