package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/t77yq/dashmon/internal/model"
)

// ConfigStore persists the monitoring configuration snapshot. Load
// returns (nil, nil) when nothing has been saved yet; callers fall
// back to defaults on any error and log it.
type ConfigStore interface {
	// Load retrieves the persisted configuration snapshot
	Load(ctx context.Context) (*model.Configuration, error)

	// Save replaces the persisted configuration snapshot
	Save(ctx context.Context, cfg *model.Configuration) error

	// Close releases the underlying storage
	Close() error
}

// SQLiteConfigStore implements ConfigStore using a single-row SQLite
// table holding the configuration as an opaque JSON blob.
type SQLiteConfigStore struct {
	logger *zap.Logger
	db     *sql.DB
}

// NewSQLiteConfigStore opens (or creates) the store at dbPath.
func NewSQLiteConfigStore(logger *zap.Logger, dbPath string) (*SQLiteConfigStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteConfigStore{
		logger: logger.Named("config-store"),
		db:     db,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initialize creates the snapshot table if it doesn't exist
func (s *SQLiteConfigStore) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS config_snapshot (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			data TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	return nil
}

// Load implements ConfigStore.Load
func (s *SQLiteConfigStore) Load(ctx context.Context) (*model.Configuration, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM config_snapshot WHERE id = 1").Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	var cfg model.Configuration
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return &cfg, nil
}

// Save implements ConfigStore.Save
func (s *SQLiteConfigStore) Save(ctx context.Context, cfg *model.Configuration) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO config_snapshot (id, data, updated_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		string(data),
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	s.logger.Debug("Saved configuration snapshot",
		zap.Int("thresholds", len(cfg.Thresholds)))
	return nil
}

// Close closes the database connection
func (s *SQLiteConfigStore) Close() error {
	return s.db.Close()
}
