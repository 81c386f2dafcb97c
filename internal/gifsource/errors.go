package gifsource

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyData no data supplied
	ErrEmptyData = errors.New("empty data")
	// ErrUnsupportedFormat data is not a GIF
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrCorruptData container could not be decoded or has no usable first frame
	ErrCorruptData = errors.New("corrupt data")
)

// FrameDecodeError is a failure to decode a single frame. The rest of the
// asset is still usable.
type FrameDecodeError struct {
	Index int
	Err   error
}

func (e *FrameDecodeError) Error() string {
	return fmt.Sprintf("frame %d: %s", e.Index, e.Err)
}

func (e *FrameDecodeError) Unwrap() error { return e.Err }

// IndexError is a frame index outside [0, Count). Always a caller bug.
type IndexError struct {
	Index int
	Count int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("frame index %d out of range [0, %d)", e.Index, e.Count)
}
