package gifsource

import (
	"image"
	"time"
)

// Decoder creates a container from raw bytes
type Decoder interface {
	Decode(data []byte) (Container, error)
}

// Container gives random access to decoded frames. Image may be called
// concurrently and the returned image is owned by the caller.
type Container interface {
	Properties() Properties
	Image(index int) (image.Image, error)
}

// Properties of a container
type Properties struct {
	Width      int
	Height     int
	FrameCount int
	// LoopCount is number of times to play all frames, 0 means forever
	LoopCount int
	Frames    []FrameProperties
}

// FrameProperties per frame timing, zero means not present
type FrameProperties struct {
	Delay          time.Duration // clamped delay
	UnclampedDelay time.Duration
}
