package models

import (
	"encoding/json"
	"math/bits"
)

// Range is a half-open byte interval [Start, End) within the captured frame.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Span returns the range [start, start+n).
func Span(start, n int) Range { return Range{Start: start, End: start + n} }

// Len returns the number of bytes covered by the range.
func (r Range) Len() int { return r.End - r.Start }

// Contains reports whether o lies entirely within r.
func (r Range) Contains(o Range) bool { return o.Start >= r.Start && o.End <= r.End }

// Field is one node of a decoded frame: a protocol layer, a header field or a
// packed bit field. Fields are built bottom-up with Leaf, Bits and Branch and
// are not modified afterwards.
type Field struct {
	name     string
	value    Value
	rng      Range
	mask     uint64
	children []*Field
}

// Leaf returns a field without children.
func Leaf(name string, v Value, r Range) *Field {
	return &Field{name: name, value: v, rng: r}
}

// Bits returns a leaf for a sub-byte field. The mask selects the field's bits
// within r, read as a big-endian integer of r.Len() bytes.
func Bits(name string, v Value, r Range, mask uint64) *Field {
	return &Field{name: name, value: v, rng: r, mask: mask}
}

// Branch returns a field with the given children, in order.
func Branch(name string, v Value, r Range, children ...*Field) *Field {
	return BranchBits(name, v, r, 0, children...)
}

// BranchBits is Branch for a packed field whose children are bit fields.
func BranchBits(name string, v Value, r Range, mask uint64, children ...*Field) *Field {
	f := &Field{name: name, value: v, rng: r, mask: mask}
	if len(children) > 0 {
		f.children = append([]*Field(nil), children...)
	}
	return f
}

func (f *Field) Name() string { return f.name }
func (f *Field) Value() Value { return f.value }
func (f *Field) Range() Range { return f.rng }
func (f *Field) Mask() uint64 { return f.mask }
func (f *Field) IsLeaf() bool { return len(f.children) == 0 }
func (f *Field) NumChildren() int { return len(f.children) }

// Children returns a copy of the field's children.
func (f *Field) Children() []*Field {
	return append([]*Field(nil), f.children...)
}

// ChildAt returns the i-th child.
func (f *Field) ChildAt(i int) *Field { return f.children[i] }

// Child returns the first direct child called name, or nil.
func (f *Field) Child(name string) *Field {
	for _, c := range f.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// Lookup follows a path of child names from f.
func (f *Field) Lookup(path ...string) *Field {
	cur := f
	for _, name := range path {
		if cur = cur.Child(name); cur == nil {
			return nil
		}
	}
	return cur
}

// Walk visits f and its descendants depth-first in insertion order. Returning
// false from fn skips the node's children.
func (f *Field) Walk(fn func(depth int, f *Field) bool) {
	f.walk(0, fn)
}

func (f *Field) walk(depth int, fn func(int, *Field) bool) {
	if !fn(depth, f) {
		return
	}
	for _, c := range f.children {
		c.walk(depth+1, fn)
	}
}

// Depth returns the number of levels in the tree rooted at f.
func (f *Field) Depth() int {
	deepest := 0
	f.Walk(func(d int, _ *Field) bool {
		if d+1 > deepest {
			deepest = d + 1
		}
		return true
	})
	return deepest
}

// bitSpan returns the field's absolute bit interval within the frame.
func (f *Field) bitSpan() (start, end int) {
	start, end = f.rng.Start*8, f.rng.End*8
	if f.mask == 0 {
		return start, end
	}
	width := f.rng.Len() * 8
	hi := bits.Len64(f.mask) - 1
	lo := bits.TrailingZeros64(f.mask)
	return start + width - 1 - hi, start + width - lo
}

type fieldJSON struct {
	Name     string   `json:"name"`
	Value    string   `json:"value,omitempty"`
	Num      *uint64  `json:"num,omitempty"`
	Start    int      `json:"start"`
	End      int      `json:"end"`
	Mask     uint64   `json:"mask,omitempty"`
	Children []*Field `json:"children,omitempty"`
}

// MarshalJSON encodes the field with its rendered value.
func (f *Field) MarshalJSON() ([]byte, error) {
	out := fieldJSON{
		Name:     f.name,
		Value:    f.value.String(),
		Start:    f.rng.Start,
		End:      f.rng.End,
		Mask:     f.mask,
		Children: f.children,
	}
	if n, ok := f.value.Uint64(); ok {
		out.Num = &n
	}
	return json.Marshal(out)
}
