package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// GetModel returns one model artifact record by id
func (s *Store) GetModel(ctx context.Context, id int64) (*Model, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, file_path, platform, COALESCE(labels, '[]'), created_at, updated_at
		FROM models WHERE id = ?`, id)

	var m Model
	var labels string
	err := row.Scan(&m.ID, &m.Name, &m.FilePath, &m.Platform, &labels, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get model %d: %w", id, err)
	}

	if err := json.Unmarshal([]byte(labels), &m.Labels); err != nil {
		return nil, fmt.Errorf("model %d has malformed labels: %w", m.ID, err)
	}

	return &m, nil
}

// CreateModel inserts a model record and returns it with its assigned id
func (s *Store) CreateModel(ctx context.Context, m *Model) (*Model, error) {
	labels, err := json.Marshal(m.Labels)
	if err != nil {
		return nil, fmt.Errorf("failed to encode labels: %w", err)
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO models (name, file_path, platform, labels, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.Name, m.FilePath, m.Platform, string(labels), now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetModel(ctx, id)
}
