package notify

import (
	"context"
	"time"
)

// Event is the notification payload sent to every configured sink.
type Event struct {
	AlertID    string    `json:"alert_id"`
	TaskID     int64     `json:"task_id"`
	TaskName   string    `json:"task_name"`
	ModelName  string    `json:"model_name"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	Level      string    `json:"level"`
	Class      string    `json:"detection_class"`
	Confidence float64   `json:"confidence"`
	ImagePath  string    `json:"image_path,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Sink delivers notification events to one external destination.
type Sink interface {
	// Name identifies the sink in logs.
	Name() string
	// Send delivers one event, honoring ctx for cancellation.
	Send(ctx context.Context, ev Event) error
	// Close releases the sink's connections.
	Close() error
}
