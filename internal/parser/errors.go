package parser

import (
	"errors"
	"fmt"
)

// Reasons a dissector rejects its input. DissectError wraps one of them.
var (
	ErrTruncated     = errors.New("truncated header")
	ErrBadLength     = errors.New("invalid length field")
	ErrBadVersion    = errors.New("unexpected version")
	ErrMalformed     = errors.New("malformed header")
	ErrDepthExceeded = errors.New("layer depth exceeded")
)

// DissectError reports the layer at which dissection of a frame stopped.
type DissectError struct {
	Layer  string
	Offset int
	Err    error
}

func (e *DissectError) Error() string {
	return fmt.Sprintf("%s at offset %d: %v", e.Layer, e.Offset, e.Err)
}

func (e *DissectError) Unwrap() error { return e.Err }

// Reason returns the human readable cause without the layer prefix.
func (e *DissectError) Reason() string { return e.Err.Error() }

func truncated(need, have int) error {
	return fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, need, have)
}
