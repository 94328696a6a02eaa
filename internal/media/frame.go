package media

import (
	"time"

	"gocv.io/x/gocv"
)

// Frame is a single decoded video frame. The Mat is owned by whoever
// holds the Frame; call Close when done with it.
type Frame struct {
	Mat       gocv.Mat
	Timestamp time.Time
	Source    string
}

// Clone returns a deep copy of the frame with its own Mat.
func (f *Frame) Clone() *Frame {
	return &Frame{
		Mat:       f.Mat.Clone(),
		Timestamp: f.Timestamp,
		Source:    f.Source,
	}
}

// Close releases the underlying Mat. Safe to call on an empty frame.
func (f *Frame) Close() {
	if f == nil || f.Mat.Ptr() == nil {
		return
	}
	f.Mat.Close()
}

// Width returns the frame width in pixels.
func (f *Frame) Width() int { return f.Mat.Cols() }

// Height returns the frame height in pixels.
func (f *Frame) Height() int { return f.Mat.Rows() }
