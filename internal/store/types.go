package store

import (
	"errors"
	"time"
)

// Task lifecycle statuses as recorded in the store.
const (
	TaskStatusStopped = "stopped"
	TaskStatusRunning = "running"
	TaskStatusError   = "error"
)

// Schedule types
const (
	ScheduleContinuous = "continuous"
	ScheduleDaily      = "daily"
	ScheduleWeekly     = "weekly"
	ScheduleMonthly    = "monthly"
)

// AlertLevelMedium is the severity assigned to detection alerts.
const AlertLevelMedium = "medium"

// Alert statuses
const (
	AlertStatusPending    = "pending"
	AlertStatusProcessing = "processing"
	AlertStatusResolved   = "resolved"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// ROI is a rectangular region of interest in frame pixel coordinates.
// Detections whose box center falls outside the rectangle are ignored.
type ROI struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Contains reports whether the point (x, y) lies inside the region
func (r *ROI) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

// VideoSourceSpec describes one video input of a task
type VideoSourceSpec struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
	ROI  *ROI   `json:"roi,omitempty"`
}

// TaskDefinition is the desired state of one detection task. It is
// created and edited externally; the scheduler only observes it.
type TaskDefinition struct {
	ID                    int64             `json:"id"`
	Name                  string            `json:"name"`
	Description           string            `json:"description,omitempty"`
	ModelID               int64             `json:"model_id"`
	VideoSources          []VideoSourceSpec `json:"video_sources"`
	Enabled               bool              `json:"is_enabled"`
	Status                string            `json:"status"`
	ScheduleType          string            `json:"schedule_type"`
	ScheduleDays          []string          `json:"schedule_days,omitempty"`
	StartTime             string            `json:"start_time,omitempty"` // HH:MM:SS
	EndTime               string            `json:"end_time,omitempty"`   // HH:MM:SS
	ConfidenceThreshold   float64           `json:"confidence_threshold"`
	AlertDebounceInterval int               `json:"alert_debounce_interval"` // seconds
	InferenceInterval     float64           `json:"inference_interval"`      // seconds
	AlertMessage          string            `json:"alert_message,omitempty"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

// Runnable reports whether the task has everything it needs to start
func (t *TaskDefinition) Runnable() error {
	if len(t.VideoSources) == 0 {
		return errors.New("task has no video sources")
	}
	if t.ModelID == 0 {
		return errors.New("task has no model")
	}
	return nil
}

// Model describes a trained detection model artifact
type Model struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	FilePath  string    `json:"file_path"`
	Platform  string    `json:"platform"`
	Labels    []string  `json:"labels"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Alert is one persisted alert record
type Alert struct {
	ID             string    `json:"id"`
	TaskID         int64     `json:"task_id"`
	TaskName       string    `json:"task_name"`
	ModelName      string    `json:"model_name"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Level          string    `json:"level"`
	DetectionClass string    `json:"detection_class"`
	Confidence     float64   `json:"confidence"`
	ImagePath      string    `json:"image_path,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}
