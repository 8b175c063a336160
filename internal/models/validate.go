package models

import "fmt"

// Validate checks the structural invariants of a decoded frame: the root
// covers [0, frameLen), every child lies within its parent, and siblings are
// strictly increasing and do not overlap. Sibling byte ranges may overlap
// only when both siblings carry a bit mask; such packed fields are ordered and
// kept disjoint by their absolute bit spans instead.
func Validate(root *Field, frameLen int) error {
	if root == nil {
		return fmt.Errorf("nil root")
	}
	if root.rng != (Range{0, frameLen}) {
		return fmt.Errorf("root range [%d,%d) does not cover frame of %d bytes",
			root.rng.Start, root.rng.End, frameLen)
	}
	return validate(root)
}

func validate(f *Field) error {
	ps, pe := f.bitSpan()
	prevEnd, prevStart := -1, -1
	for i, c := range f.children {
		if c.rng.Start >= c.rng.End {
			return fmt.Errorf("%s: child %d (%s) has empty range [%d,%d)",
				f.name, i, c.name, c.rng.Start, c.rng.End)
		}
		if !f.rng.Contains(c.rng) {
			return fmt.Errorf("%s: child %s [%d,%d) escapes parent [%d,%d)",
				f.name, c.name, c.rng.Start, c.rng.End, f.rng.Start, f.rng.End)
		}
		cs, ce := c.bitSpan()
		if cs < ps || ce > pe {
			return fmt.Errorf("%s: bit field %s escapes parent bits", f.name, c.name)
		}
		if cs <= prevStart || cs < prevEnd {
			return fmt.Errorf("%s: child %s [%d,%d) overlaps or precedes its previous sibling",
				f.name, c.name, c.rng.Start, c.rng.End)
		}
		prevStart, prevEnd = cs, ce
		if err := validate(c); err != nil {
			return err
		}
	}
	return nil
}
