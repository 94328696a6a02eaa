package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/argus-video/argus/internal/logger"
)

// Store manages the SQLite database holding task definitions, model
// metadata and alert history. It is the single source of truth the
// scheduler reconciles against.
type Store struct {
	db     *sql.DB
	dbPath string
	logger *logger.Logger
}

// Open opens (and if necessary creates) the database under dataDir.
func Open(dataDir string, log *logger.Logger) (*Store, error) {
	dbPath := filepath.Join(dataDir, "db", "argus.db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't support concurrent writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, dbPath: dbPath, logger: log}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying database connection
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) initSchema() error {
	schema := `
	-- Model artifacts available for tasks
	CREATE TABLE IF NOT EXISTS models (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		file_path TEXT NOT NULL,
		platform TEXT NOT NULL DEFAULT 'cpu',
		labels TEXT, -- JSON array of class labels
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Detection tasks (desired state)
	CREATE TABLE IF NOT EXISTS tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT,
		model_id INTEGER NOT NULL,
		video_sources TEXT NOT NULL, -- JSON array of {url, name, roi}
		is_enabled BOOLEAN DEFAULT 1,
		status TEXT NOT NULL DEFAULT 'stopped',
		schedule_type TEXT NOT NULL DEFAULT 'continuous',
		schedule_days TEXT, -- JSON array of day identifiers
		start_time TEXT NOT NULL DEFAULT '00:00:00',
		end_time TEXT NOT NULL DEFAULT '23:59:59',
		confidence_threshold REAL NOT NULL DEFAULT 0.8,
		alert_debounce_interval INTEGER NOT NULL DEFAULT 60,
		inference_interval REAL NOT NULL DEFAULT 1.0,
		alert_message TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (model_id) REFERENCES models(id)
	);

	-- Alert history
	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		task_id INTEGER NOT NULL,
		task_name TEXT NOT NULL,
		model_name TEXT,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		level TEXT NOT NULL DEFAULT 'medium',
		detection_class TEXT NOT NULL,
		confidence REAL NOT NULL,
		image_path TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_enabled ON tasks(is_enabled);
	CREATE INDEX IF NOT EXISTS idx_alerts_task ON alerts(task_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_alerts_class ON alerts(task_id, detection_class, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}
