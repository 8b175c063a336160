package parser

import (
	"fmt"

	"tracecap/internal/models"
)

// DefaultMaxDepth is the number of layer dissectors a single frame may pass
// through before dissection stops.
const DefaultMaxDepth = 8

// Names of the leaves the pipeline adds itself.
const (
	PayloadField = "Payload"
	UnknownField = "Unknown payload"
	TrailerField = "Trailer"
)

// Outcome is the result of dissecting one frame. Root is always set and
// covers the whole frame; when Err is non-nil it holds the layers decoded
// before the failure.
type Outcome struct {
	Root *models.Field
	Err  *DissectError
}

// OK reports whether every layer was decoded.
func (o Outcome) OK() bool { return o.Err == nil }

// Pipeline dissects frames layer by layer through a Registry.
type Pipeline struct {
	reg      *Registry
	maxDepth int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMaxDepth bounds the number of layers decoded per frame.
func WithMaxDepth(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxDepth = n
		}
	}
}

// New returns a pipeline reading dissectors from reg.
func New(reg *Registry, opts ...Option) *Pipeline {
	p := &Pipeline{reg: reg, maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Dissect decodes frame starting at the dissector registered for its link
// type. It never panics and never returns a nil Root.
func (p *Pipeline) Dissect(frame models.RawFrame) Outcome {
	data := frame.Data
	var (
		children []*models.Field
		derr     *DissectError
		off      int
		// end is where the bytes described by the decoded layers stop;
		// anything past it is link-layer padding.
		end = len(data)
		key = LinkTypeKey(frame.LinkType)
	)

	// The link layer is always consulted, even for an empty frame, so that
	// truncation is reported by the layer that needed the bytes.
	for depth := 0; depth == 0 || off < end; depth++ {
		entry, ok := p.reg.Lookup(key)
		if key == Terminal || !ok {
			name := PayloadField
			if key != Terminal {
				name = UnknownField
			}
			if off < end {
				children = append(children, models.Leaf(name, models.Bytes(data[off:end]), models.Range{Start: off, End: end}))
			}
			break
		}
		if depth >= p.maxDepth {
			derr = &DissectError{Layer: entry.Name, Offset: off,
				Err: fmt.Errorf("%w: limit is %d layers", ErrDepthExceeded, p.maxDepth)}
			break
		}

		layer, err := run(entry, data[off:end], off)
		if err != nil {
			derr = &DissectError{Layer: entry.Name, Offset: off, Err: err}
			break
		}
		children = append(children, layer.Node)
		off += layer.Consumed
		if layer.PayloadLen >= 0 && off+layer.PayloadLen < end {
			end = off + layer.PayloadLen
		}
		key = layer.Next
	}

	if end < len(data) {
		children = append(children, models.Leaf(TrailerField, models.Bytes(data[end:]), models.Range{Start: end, End: len(data)}))
	}
	root := models.Branch(frameName(frame), models.Text(frameSummary(frame)), models.Span(0, len(data)), children...)
	return Outcome{Root: root, Err: derr}
}

// run calls a dissector, turning a panic or an inconsistent result into an
// error so that a single bad frame cannot take the capture down.
func run(e Entry, data []byte, off int) (layer Layer, err error) {
	defer func() {
		if r := recover(); r != nil {
			layer, err = Layer{}, fmt.Errorf("%w: dissector panic: %v", ErrMalformed, r)
		}
	}()
	layer, err = e.Dissect(data, off)
	if err != nil {
		return Layer{}, err
	}
	if layer.Node == nil || layer.Consumed <= 0 || layer.Consumed > len(data) {
		return Layer{}, fmt.Errorf("%w: dissector consumed %d of %d bytes", ErrMalformed, layer.Consumed, len(data))
	}
	return layer, nil
}

func frameName(frame models.RawFrame) string {
	if frame.Number > 0 {
		return fmt.Sprintf("Frame %d", frame.Number)
	}
	return "Frame"
}

func frameSummary(frame models.RawFrame) string {
	captured := len(frame.Data)
	wire := frame.Info.Length
	if wire < captured {
		wire = captured
	}
	s := fmt.Sprintf("%d bytes on wire (%d bits), %d bytes captured (%d bits)", wire, wire*8, captured, captured*8)
	if !frame.Info.Timestamp.IsZero() {
		s = frame.Info.Timestamp.UTC().Format("2006-01-02 15:04:05.000000") + ", " + s
	}
	return s
}
