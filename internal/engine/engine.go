package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/argus-video/argus/internal/media"
)

// ErrNotLoaded is returned when inference is attempted before Load.
var ErrNotLoaded = errors.New("engine: model not loaded")

// Detection is one detected object in original frame pixel space.
type Detection struct {
	X1         int     `json:"x1"`
	Y1         int     `json:"y1"`
	X2         int     `json:"x2"`
	Y2         int     `json:"y2"`
	Confidence float64 `json:"confidence"`
	ClassID    int     `json:"class_id"`
	Label      string  `json:"label"`
}

// Tensor is a dense float32 tensor with row-major layout.
type Tensor struct {
	Data  []float32
	Shape []int
}

// Numel returns the element count implied by the shape.
func (t *Tensor) Numel() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Stats accumulates inference timing counters.
type Stats struct {
	Count        int64
	TotalSeconds float64
	AvgSeconds   float64
	LastSeconds  float64
}

// Engine runs a detection model on frames. Implementations are safe for
// use from a single executor goroutine; Stats may be read concurrently.
type Engine interface {
	// Load reads the model weights and prepares the backend.
	Load() error
	// Preprocess converts a frame into the model input tensor.
	Preprocess(frame *media.Frame) (*Tensor, error)
	// Infer runs a forward pass over the input tensor.
	Infer(input *Tensor) (*Tensor, error)
	// Postprocess decodes raw output into detections scaled back to the
	// original frame dimensions. Boxes below threshold are dropped and
	// overlapping boxes are suppressed.
	Postprocess(output *Tensor, origWidth, origHeight int, threshold float64) ([]Detection, error)
	// Detect is the full preprocess/infer/postprocess pipeline. It
	// returns the pipeline latency and updates the timing counters.
	Detect(frame *media.Frame, threshold float64) ([]Detection, time.Duration, error)
	// Stats returns a snapshot of the timing counters.
	Stats() Stats
	// Release frees backend resources. Idempotent.
	Release()
}

// statsTracker is embedded by engine implementations to record timings.
type statsTracker struct {
	mu    sync.Mutex
	stats Stats
}

func (s *statsTracker) record(elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	secs := elapsed.Seconds()
	s.stats.Count++
	s.stats.TotalSeconds += secs
	s.stats.LastSeconds = secs
	s.stats.AvgSeconds = s.stats.TotalSeconds / float64(s.stats.Count)
}

func (s *statsTracker) snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// labelFor resolves a class id against the label list with a stable
// fallback for out-of-range ids.
func labelFor(labels []string, classID int) string {
	if classID >= 0 && classID < len(labels) {
		return labels[classID]
	}
	return fmt.Sprintf("class_%d", classID)
}
