package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const taskColumns = `id, name, COALESCE(description, ''), model_id, video_sources,
	is_enabled, status, schedule_type, COALESCE(schedule_days, '[]'),
	start_time, end_time, confidence_threshold, alert_debounce_interval,
	inference_interval, alert_message, created_at, updated_at`

// ListTasksForScheduling returns every task definition. The scheduler
// reconciles running executors against this list on each tick.
func (s *Store) ListTasksForScheduling(ctx context.Context) ([]*TaskDefinition, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*TaskDefinition
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// GetTask returns one task definition by id
func (s *Store) GetTask(ctx context.Context, id int64) (*TaskDefinition, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task %d: %w", id, err)
	}
	return task, nil
}

// CreateTask inserts a task definition and returns it with its assigned id
func (s *Store) CreateTask(ctx context.Context, task *TaskDefinition) (*TaskDefinition, error) {
	sources, err := json.Marshal(task.VideoSources)
	if err != nil {
		return nil, fmt.Errorf("failed to encode video sources: %w", err)
	}
	days, err := json.Marshal(task.ScheduleDays)
	if err != nil {
		return nil, fmt.Errorf("failed to encode schedule days: %w", err)
	}

	if task.Status == "" {
		task.Status = TaskStatusStopped
	}
	if task.ScheduleType == "" {
		task.ScheduleType = ScheduleContinuous
	}
	now := time.Now()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (name, description, model_id, video_sources, is_enabled,
			status, schedule_type, schedule_days, start_time, end_time,
			confidence_threshold, alert_debounce_interval, inference_interval,
			alert_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.Name, task.Description, task.ModelID, string(sources), task.Enabled,
		task.Status, task.ScheduleType, string(days), task.StartTime, task.EndTime,
		task.ConfidenceThreshold, task.AlertDebounceInterval, task.InferenceInterval,
		task.AlertMessage, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetTask(ctx, id)
}

// UpdateTaskStatus records the runtime status of a task (running/stopped/error)
func (s *Store) UpdateTaskStatus(ctx context.Context, id int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update task %d status: %w", id, err)
	}
	return nil
}

// UpdateTaskEnabled updates both the runtime status and the enabled flag.
// Used by manual stop so a disabled task is not restarted on the next tick.
func (s *Store) UpdateTaskEnabled(ctx context.Context, id int64, status string, enabled bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, is_enabled = ?, updated_at = ? WHERE id = ?`,
		status, enabled, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update task %d: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*TaskDefinition, error) {
	var task TaskDefinition
	var sources, days string
	if err := row.Scan(
		&task.ID, &task.Name, &task.Description, &task.ModelID, &sources,
		&task.Enabled, &task.Status, &task.ScheduleType, &days,
		&task.StartTime, &task.EndTime, &task.ConfidenceThreshold,
		&task.AlertDebounceInterval, &task.InferenceInterval,
		&task.AlertMessage, &task.CreatedAt, &task.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(sources), &task.VideoSources); err != nil {
		return nil, fmt.Errorf("task %d has malformed video_sources: %w", task.ID, err)
	}
	if err := json.Unmarshal([]byte(days), &task.ScheduleDays); err != nil {
		return nil, fmt.Errorf("task %d has malformed schedule_days: %w", task.ID, err)
	}

	return &task, nil
}
