package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/argus-video/argus/internal/logger"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), logger.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestModel(t *testing.T, s *Store) *Model {
	t.Helper()
	m, err := s.CreateModel(context.Background(), &Model{
		Name:     "yolo",
		FilePath: "yolo.onnx",
		Platform: "cpu_x86",
		Labels:   []string{"person", "car"},
	})
	if err != nil {
		t.Fatalf("create model: %v", err)
	}
	return m
}

func TestTaskRoundTrip(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	model := createTestModel(t, s)

	roi := &ROI{X: 10, Y: 20, W: 100, H: 80}
	created, err := s.CreateTask(ctx, &TaskDefinition{
		Name:        "gate-watch",
		Description: "north gate monitoring",
		ModelID:     model.ID,
		VideoSources: []VideoSourceSpec{
			{URL: "rtsp://cam-1/stream", Name: "north-gate", ROI: roi},
			{URL: "rtsp://cam-2/stream", Name: "south-gate"},
		},
		Enabled:               true,
		ScheduleType:          ScheduleWeekly,
		ScheduleDays:          []string{"1", "3", "5"},
		StartTime:             "09:00:00",
		EndTime:               "17:00:00",
		ConfidenceThreshold:   0.6,
		AlertDebounceInterval: 120,
		InferenceInterval:     0.5,
		AlertMessage:          "{class_name} at {video_name}",
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("task got no id")
	}

	got, err := s.GetTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Name != "gate-watch" || !got.Enabled || got.ScheduleType != ScheduleWeekly {
		t.Errorf("unexpected task: %+v", got)
	}
	if len(got.VideoSources) != 2 {
		t.Fatalf("sources = %d, want 2", len(got.VideoSources))
	}
	src := got.VideoSources[0]
	if src.Name != "north-gate" || src.ROI == nil || src.ROI.W != 100 {
		t.Errorf("unexpected source: %+v", src)
	}
	if got.VideoSources[1].ROI != nil {
		t.Error("second source should have no ROI")
	}
	if len(got.ScheduleDays) != 3 || got.ScheduleDays[1] != "3" {
		t.Errorf("schedule days = %v", got.ScheduleDays)
	}
	if got.ConfidenceThreshold != 0.6 || got.AlertDebounceInterval != 120 {
		t.Errorf("thresholds not persisted: %+v", got)
	}
}

func TestCreateTaskAppliesDefaults(t *testing.T) {
	s := setupStore(t)
	model := createTestModel(t, s)

	created, err := s.CreateTask(context.Background(), &TaskDefinition{
		Name:         "minimal",
		ModelID:      model.ID,
		VideoSources: []VideoSourceSpec{{URL: "rtsp://cam"}},
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if created.Status != TaskStatusStopped {
		t.Errorf("status = %q, want stopped", created.Status)
	}
	if created.ScheduleType != ScheduleContinuous {
		t.Errorf("schedule type = %q, want continuous", created.ScheduleType)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	s := setupStore(t)
	if _, err := s.GetTask(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateTaskStatusAndEnabled(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	model := createTestModel(t, s)
	created, err := s.CreateTask(ctx, &TaskDefinition{
		Name: "t", ModelID: model.ID,
		VideoSources: []VideoSourceSpec{{URL: "rtsp://cam"}},
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	if err := s.UpdateTaskStatus(ctx, created.ID, TaskStatusRunning); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, _ := s.GetTask(ctx, created.ID)
	if got.Status != TaskStatusRunning {
		t.Errorf("status = %q", got.Status)
	}

	before := got.UpdatedAt
	time.Sleep(5 * time.Millisecond)
	if err := s.UpdateTaskEnabled(ctx, created.ID, TaskStatusStopped, true); err != nil {
		t.Fatalf("update enabled: %v", err)
	}
	got, _ = s.GetTask(ctx, created.ID)
	if !got.Enabled || got.Status != TaskStatusStopped {
		t.Errorf("unexpected task after enable: %+v", got)
	}
	if !got.UpdatedAt.After(before) {
		t.Error("updated_at was not bumped")
	}
}

func TestListTasksForScheduling(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	model := createTestModel(t, s)
	for _, name := range []string{"a", "b", "c"} {
		if _, err := s.CreateTask(ctx, &TaskDefinition{
			Name: name, ModelID: model.ID,
			VideoSources: []VideoSourceSpec{{URL: "rtsp://cam"}},
		}); err != nil {
			t.Fatalf("create task %s: %v", name, err)
		}
	}

	tasks, err := s.ListTasksForScheduling(ctx)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 3 {
		t.Errorf("tasks = %d, want 3", len(tasks))
	}
}

func TestModelRoundTrip(t *testing.T) {
	s := setupStore(t)
	model := createTestModel(t, s)

	got, err := s.GetModel(context.Background(), model.ID)
	if err != nil {
		t.Fatalf("get model: %v", err)
	}
	if got.Name != "yolo" || got.Platform != "cpu_x86" {
		t.Errorf("unexpected model: %+v", got)
	}
	if len(got.Labels) != 2 || got.Labels[0] != "person" {
		t.Errorf("labels = %v", got.Labels)
	}

	if _, err := s.GetModel(context.Background(), 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAlertLifecycle(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	created, err := s.CreateAlert(ctx, &Alert{
		TaskID:         1,
		TaskName:       "gate-watch",
		ModelName:      "yolo",
		Title:          "person detection alert - gate-watch",
		Message:        "person at north-gate",
		DetectionClass: "person",
		Confidence:     0.9,
	})
	if err != nil {
		t.Fatalf("create alert: %v", err)
	}
	if created.ID == "" {
		t.Fatal("alert got no id")
	}
	if created.Status != AlertStatusPending || created.Level != AlertLevelMedium {
		t.Errorf("defaults not applied: %+v", created)
	}

	latest, err := s.GetLatestAlert(ctx, 1, "person")
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if latest.ID != created.ID {
		t.Errorf("latest = %s, want %s", latest.ID, created.ID)
	}

	if err := s.UpdateAlertStatus(ctx, created.ID, AlertStatusResolved); err != nil {
		t.Fatalf("update status: %v", err)
	}
	latest, _ = s.GetLatestAlert(ctx, 1, "person")
	if latest.Status != AlertStatusResolved {
		t.Errorf("status = %q", latest.Status)
	}

	if err := s.UpdateAlertStatus(ctx, "missing", AlertStatusResolved); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListAlertsFiltersAndLimits(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	base := time.Date(2024, 6, 12, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		taskID := int64(1)
		if i >= 3 {
			taskID = 2
		}
		if _, err := s.CreateAlert(ctx, &Alert{
			TaskID:         taskID,
			TaskName:       "t",
			Title:          "alert",
			Message:        "m",
			DetectionClass: "person",
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("create alert %d: %v", i, err)
		}
	}

	all, err := s.ListAlerts(ctx, 0, 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("all = %d, want 5", len(all))
	}
	if !all[0].CreatedAt.After(all[len(all)-1].CreatedAt) {
		t.Error("alerts not ordered newest first")
	}

	task1, err := s.ListAlerts(ctx, 1, 0)
	if err != nil {
		t.Fatalf("list task 1: %v", err)
	}
	if len(task1) != 3 {
		t.Errorf("task 1 alerts = %d, want 3", len(task1))
	}

	limited, err := s.ListAlerts(ctx, 0, 2)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limited = %d, want 2", len(limited))
	}
}
