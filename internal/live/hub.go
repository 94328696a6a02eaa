// Package live fans detection results out to interested subscribers,
// typically websocket clients watching a running task.
package live

import (
	"sync"
	"time"

	"github.com/argus-video/argus/internal/engine"
)

// DetectionBatch is one inference result pushed to subscribers.
type DetectionBatch struct {
	TaskID     int64              `json:"task_id"`
	Source     string             `json:"source"`
	Timestamp  time.Time          `json:"timestamp"`
	Detections []engine.Detection `json:"detections"`
}

// subscriberBuffer bounds how many batches a slow subscriber may lag
// before updates are dropped for it.
const subscriberBuffer = 8

// Subscription receives batches for one task until cancelled.
type Subscription struct {
	C      <-chan DetectionBatch
	hub    *Hub
	taskID int64
	ch     chan DetectionBatch
}

// Cancel detaches the subscription and closes its channel.
func (s *Subscription) Cancel() {
	s.hub.unsubscribe(s)
}

// Hub routes detection batches to per-task subscriber sets. Publishing
// never blocks: batches to a full subscriber are dropped.
type Hub struct {
	mu   sync.RWMutex
	subs map[int64]map[*Subscription]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int64]map[*Subscription]struct{})}
}

// Subscribe registers interest in one task's detections.
func (h *Hub) Subscribe(taskID int64) *Subscription {
	ch := make(chan DetectionBatch, subscriberBuffer)
	sub := &Subscription{C: ch, hub: h, taskID: taskID, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[taskID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[taskID] = set
	}
	set[sub] = struct{}{}
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[sub.taskID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.taskID)
	}
	close(sub.ch)
}

// Publish delivers the batch to every subscriber of its task.
func (h *Hub) Publish(batch DetectionBatch) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[batch.TaskID] {
		select {
		case sub.ch <- batch:
		default:
		}
	}
}

// Subscribers reports the subscriber count for a task.
func (h *Hub) Subscribers(taskID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[taskID])
}
