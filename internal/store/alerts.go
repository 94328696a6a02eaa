package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateAlert persists an alert record, assigning its id and timestamp
func (s *Store) CreateAlert(ctx context.Context, alert *Alert) (*Alert, error) {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	if alert.Status == "" {
		alert.Status = AlertStatusPending
	}
	if alert.Level == "" {
		alert.Level = AlertLevelMedium
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (id, task_id, task_name, model_name, title, message,
			level, detection_class, confidence, image_path, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.ID, alert.TaskID, alert.TaskName, alert.ModelName, alert.Title,
		alert.Message, alert.Level, alert.DetectionClass, alert.Confidence,
		alert.ImagePath, alert.Status, alert.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}

	return alert, nil
}

const alertColumns = `id, task_id, task_name, COALESCE(model_name, ''), title, message,
	level, detection_class, confidence, COALESCE(image_path, ''), status, created_at`

// GetLatestAlert returns the most recent alert for a task and detection class
func (s *Store) GetLatestAlert(ctx context.Context, taskID int64, detectionClass string) (*Alert, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+alertColumns+` FROM alerts
		WHERE task_id = ? AND detection_class = ?
		ORDER BY created_at DESC LIMIT 1`, taskID, detectionClass)

	alert, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest alert: %w", err)
	}
	return alert, nil
}

// ListAlerts returns alerts for a task, newest first. taskID 0 lists all tasks.
func (s *Store) ListAlerts(ctx context.Context, taskID int64, limit int) ([]*Alert, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + alertColumns + ` FROM alerts`
	args := []interface{}{}
	if taskID != 0 {
		query += ` WHERE task_id = ?`
		args = append(args, taskID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// UpdateAlertStatus transitions an alert between pending/processing/resolved
func (s *Store) UpdateAlertStatus(ctx context.Context, id string, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE alerts SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update alert %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAlert(row rowScanner) (*Alert, error) {
	var a Alert
	if err := row.Scan(
		&a.ID, &a.TaskID, &a.TaskName, &a.ModelName, &a.Title, &a.Message,
		&a.Level, &a.DetectionClass, &a.Confidence, &a.ImagePath, &a.Status,
		&a.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}
