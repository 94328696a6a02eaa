// Package executor runs the detection loop for a single task: reading
// frames from the task's video sources, running inference, filtering
// results and raising debounced alerts.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/argus-video/argus/internal/alerting"
	"github.com/argus-video/argus/internal/engine"
	"github.com/argus-video/argus/internal/live"
	"github.com/argus-video/argus/internal/logger"
	"github.com/argus-video/argus/internal/media"
	"github.com/argus-video/argus/internal/notify"
	"github.com/argus-video/argus/internal/store"
)

// loopInterval paces the executor's polling loop. Per-source inference
// cadence is controlled separately by the task's inference interval.
const loopInterval = 100 * time.Millisecond

// FrameReader is the slice of media.FrameSource the executor needs.
type FrameReader interface {
	Start() error
	Read() (*media.Frame, bool)
	State() media.State
	Stop()
}

// SourceFactory builds a frame reader for one video source.
type SourceFactory func(spec store.VideoSourceSpec) FrameReader

// AlertStore persists raised alerts.
type AlertStore interface {
	CreateAlert(ctx context.Context, alert *store.Alert) (*store.Alert, error)
}

// Notifier fans alert events out to external sinks.
type Notifier interface {
	Dispatch(ev notify.Event)
}

// ImageSaver stores annotated alert images.
type ImageSaver interface {
	Save(ctx context.Context, taskID int64, class string, data []byte) (string, error)
}

// Deps collects the executor's collaborators.
type Deps struct {
	Engine    engine.Engine
	Sources   SourceFactory
	Alerts    AlertStore
	Images    ImageSaver
	Notifier  Notifier
	Hub       *live.Hub
	Debouncer *alerting.Debouncer
	Logger    *logger.Logger

	// JPEGQuality for annotated alert images.
	JPEGQuality int
	// Annotate renders detections onto a frame. Defaults to
	// alerting.Annotate.
	Annotate func(frame *media.Frame, dets []engine.Detection, roi *store.ROI, quality int) ([]byte, error)
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

type source struct {
	spec        store.VideoSourceSpec
	reader      FrameReader
	lastInferAt time.Time
}

// Executor drives detection for one task. Create with New, then Start;
// Stop tears everything down and blocks until the loop exits.
type Executor struct {
	task  store.TaskDefinition
	model store.Model
	deps  Deps
	log   *logger.Logger

	mu      sync.Mutex
	sources []*source
	started bool

	stopCh chan struct{}
	done   chan struct{}
}

// New builds an executor for the task. The engine must already be
// loaded; New takes ownership of it and releases it if construction
// fails.
func New(task store.TaskDefinition, model store.Model, deps Deps) (*Executor, error) {
	if err := task.Runnable(); err != nil {
		if deps.Engine != nil {
			deps.Engine.Release()
		}
		return nil, err
	}
	if deps.Engine == nil || deps.Sources == nil {
		if deps.Engine != nil {
			deps.Engine.Release()
		}
		return nil, fmt.Errorf("executor for task %d: missing engine or source factory", task.ID)
	}
	if deps.Annotate == nil {
		deps.Annotate = alerting.Annotate
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.JPEGQuality <= 0 {
		deps.JPEGQuality = 85
	}
	if deps.Debouncer == nil {
		deps.Debouncer = alerting.NewDebouncer()
	}

	e := &Executor{
		task:   task,
		model:  model,
		deps:   deps,
		log:    deps.Logger.Named("executor"),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, spec := range task.VideoSources {
		e.sources = append(e.sources, &source{spec: spec, reader: deps.Sources(spec)})
	}
	return e, nil
}

// TaskID returns the id of the task this executor runs.
func (e *Executor) TaskID() int64 { return e.task.ID }

// Start launches the frame sources and the detection loop.
func (e *Executor) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return fmt.Errorf("executor for task %d already started", e.task.ID)
	}
	for i, s := range e.sources {
		if err := s.reader.Start(); err != nil {
			for _, opened := range e.sources[:i] {
				opened.reader.Stop()
			}
			return fmt.Errorf("start source %s: %w", s.spec.Name, err)
		}
	}
	e.started = true
	go e.run()
	e.log.Info("task started", "task_id", e.task.ID, "task", e.task.Name,
		"sources", len(e.sources))
	return nil
}

// Stop terminates the loop, stops all sources and releases the engine.
// Idempotent.
func (e *Executor) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		e.deps.Engine.Release()
		return
	}
	select {
	case <-e.stopCh:
	default:
		close(e.stopCh)
	}
	e.mu.Unlock()

	<-e.done
	for _, s := range e.sources {
		s.reader.Stop()
	}
	e.deps.Engine.Release()
	e.log.Info("task stopped", "task_id", e.task.ID, "task", e.task.Name)
}

// SourceStatus describes one video source at a point in time.
type SourceStatus struct {
	Name            string    `json:"name"`
	URL             string    `json:"url"`
	State           string    `json:"state"`
	LastInferenceAt time.Time `json:"last_inference_at"`
}

// Status snapshots per-source state and inference timing.
func (e *Executor) Status() []SourceStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]SourceStatus, 0, len(e.sources))
	for _, s := range e.sources {
		out = append(out, SourceStatus{
			Name:            s.spec.Name,
			URL:             s.spec.URL,
			State:           s.reader.State().String(),
			LastInferenceAt: s.lastInferAt,
		})
	}
	return out
}

// EngineStats exposes the engine timing counters.
func (e *Executor) EngineStats() engine.Stats { return e.deps.Engine.Stats() }

func (e *Executor) run() {
	defer close(e.done)

	ticker := time.NewTicker(loopInterval)
	defer ticker.Stop()

	interval := time.Duration(e.task.InferenceInterval * float64(time.Second))
	if interval <= 0 {
		interval = time.Second
	}

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
		}
		now := e.deps.Now()
		for _, s := range e.sources {
			e.mu.Lock()
			due := now.Sub(s.lastInferAt) >= interval
			e.mu.Unlock()
			if !due {
				continue
			}
			e.inferOnce(s, now)
		}
	}
}

// inferOnce reads the latest frame from one source and runs the full
// detect/filter/alert pipeline on it.
func (e *Executor) inferOnce(s *source, now time.Time) {
	frame, ok := s.reader.Read()
	if !ok {
		return
	}
	defer frame.Close()

	e.mu.Lock()
	s.lastInferAt = now
	e.mu.Unlock()

	dets, elapsed, err := e.deps.Engine.Detect(frame, e.task.ConfidenceThreshold)
	if err != nil {
		e.log.Error("inference failed", "task_id", e.task.ID,
			"source", s.spec.Name, "error", err)
		return
	}
	e.log.Debug("inference done", "task_id", e.task.ID,
		"source", s.spec.Name, "detections", len(dets), "elapsed", elapsed)

	filtered := filterROI(dets, s.spec.ROI)
	if len(filtered) == 0 {
		return
	}

	if e.deps.Hub != nil {
		e.deps.Hub.Publish(live.DetectionBatch{
			TaskID:     e.task.ID,
			Source:     s.spec.Name,
			Timestamp:  frame.Timestamp,
			Detections: filtered,
		})
	}
	e.raiseAlerts(s, frame, filtered, now)
}

// filterROI keeps detections whose box center lies inside the region
// of interest. A nil ROI keeps everything.
func filterROI(dets []engine.Detection, roi *store.ROI) []engine.Detection {
	if roi == nil {
		return dets
	}
	out := dets[:0:0]
	for _, d := range dets {
		cx := (d.X1 + d.X2) / 2
		cy := (d.Y1 + d.Y2) / 2
		if roi.Contains(cx, cy) {
			out = append(out, d)
		}
	}
	return out
}

func (e *Executor) raiseAlerts(s *source, frame *media.Frame, dets []engine.Detection, now time.Time) {
	window := time.Duration(e.task.AlertDebounceInterval) * time.Second
	var annotated []byte

	for _, d := range dets {
		key := alerting.Key(e.task.ID, s.spec.Name, d.Label,
			(d.X1+d.X2)/2, (d.Y1+d.Y2)/2)
		if !e.deps.Debouncer.ShouldAlert(key, window) {
			continue
		}

		if annotated == nil {
			var err error
			annotated, err = e.deps.Annotate(frame, dets, s.spec.ROI, e.deps.JPEGQuality)
			if err != nil {
				e.log.Error("alert image render failed",
					"task_id", e.task.ID, "error", err)
			}
		}
		imagePath := ""
		if annotated != nil && e.deps.Images != nil {
			path, err := e.deps.Images.Save(context.Background(), e.task.ID, d.Label, annotated)
			if err != nil {
				e.log.Error("alert image save failed",
					"task_id", e.task.ID, "error", err)
			} else {
				imagePath = path
			}
		}

		message := alerting.RenderMessage(e.task.AlertMessage, alerting.TemplateContext{
			TaskName:   e.task.Name,
			ClassName:  d.Label,
			Confidence: d.Confidence,
			VideoName:  s.spec.Name,
			Time:       now,
		})
		alert := &store.Alert{
			TaskID:         e.task.ID,
			TaskName:       e.task.Name,
			ModelName:      e.model.Name,
			Title:          alerting.Title(d.Label, e.task.Name),
			Message:        message,
			Level:          store.AlertLevelMedium,
			DetectionClass: d.Label,
			Confidence:     d.Confidence,
			ImagePath:      imagePath,
			CreatedAt:      now,
		}
		if e.deps.Alerts != nil {
			created, err := e.deps.Alerts.CreateAlert(context.Background(), alert)
			if err != nil {
				e.log.Error("alert persist failed", "task_id", e.task.ID, "error", err)
				continue
			}
			alert = created
		}
		e.log.Info("alert raised", "task_id", e.task.ID, "class", d.Label,
			"confidence", d.Confidence, "source", s.spec.Name)

		if e.deps.Notifier != nil {
			e.deps.Notifier.Dispatch(notify.Event{
				AlertID:    alert.ID,
				TaskID:     alert.TaskID,
				TaskName:   alert.TaskName,
				ModelName:  alert.ModelName,
				Title:      alert.Title,
				Message:    alert.Message,
				Level:      alert.Level,
				Class:      alert.DetectionClass,
				Confidence: alert.Confidence,
				ImagePath:  alert.ImagePath,
				CreatedAt:  alert.CreatedAt,
			})
		}
	}
}
