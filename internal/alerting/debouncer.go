package alerting

import (
	"fmt"
	"sync"
	"time"
)

// bucketSize is the side length in pixels of the spatial grid used to
// group nearby detections of the same class into one alert stream.
const bucketSize = 100

// Key identifies one debounced alert stream: a detection class in a
// coarse region of one source of one task.
func Key(taskID int64, source, class string, centerX, centerY int) string {
	return fmt.Sprintf("%d:%s:%s:%d:%d",
		taskID, source, class, centerX/bucketSize, centerY/bucketSize)
}

// Debouncer rate-limits alerts per stream key. Safe for concurrent use.
type Debouncer struct {
	mu   sync.Mutex
	last map[string]time.Time
	now  func() time.Time
}

// NewDebouncer returns an empty debouncer.
func NewDebouncer() *Debouncer {
	return &Debouncer{
		last: make(map[string]time.Time),
		now:  time.Now,
	}
}

// ShouldAlert reports whether an alert for key may fire now, given the
// per-task debounce window. A true result records the firing time.
func (d *Debouncer) ShouldAlert(key string, window time.Duration) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if t, ok := d.last[key]; ok && now.Sub(t) < window {
		return false
	}
	d.last[key] = now
	d.evictLocked(now, window)
	return true
}

// evictLocked drops entries idle for more than twice the window so the
// map does not grow with transient detections.
func (d *Debouncer) evictLocked(now time.Time, window time.Duration) {
	cutoff := 2 * window
	for k, t := range d.last {
		if now.Sub(t) > cutoff {
			delete(d.last, k)
		}
	}
}

// Len reports the number of tracked streams.
func (d *Debouncer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.last)
}
