package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"hotelsync/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when a mutation id is not present in its kind table.
var ErrNotFound = errors.New("mutation not found")

// ArtifactRemover deletes local artifact files once their mutation is confirmed.
type ArtifactRemover interface {
	Remove(paths ...string) error
}

type DB struct {
	*sql.DB
	logger    *zerolog.Logger
	artifacts ArtifactRemover
}

var kindTables = map[models.Kind]string{
	models.KindWorkOrder:       "work_order_mutations",
	models.KindProject:         "project_mutations",
	models.KindMaintenanceTask: "maintenance_task_mutations",
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// one connection serialises writers from the UI path and the sync worker
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("mutation store initialized")
	return &DB{DB: db, logger: logger}, nil
}

// SetArtifactRemover wires the artifact store used by MarkSucceeded.
func (db *DB) SetArtifactRemover(r ArtifactRemover) {
	db.artifacts = r
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func createTables(db *sql.DB) error {
	var queries []string
	for _, kind := range models.AllKinds() {
		table := kindTables[kind]
		queries = append(queries,
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            request_type TEXT NOT NULL,
            payload TEXT NOT NULL,
            artifact_paths TEXT NOT NULL DEFAULT '[]',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME NOT NULL,
            last_attempt_at DATETIME
        )`, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_created_at ON %s(created_at)`, table, table),
		)
	}

	queries = append(queries,
		`CREATE TABLE IF NOT EXISTS orphaned_artifacts (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            path TEXT NOT NULL,
            kind TEXT NOT NULL,
            mutation_id INTEGER NOT NULL,
            created_at DATETIME NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_orphaned_artifacts_created_at ON orphaned_artifacts(created_at)`,
	)

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

func tableFor(kind models.Kind) (string, error) {
	table, ok := kindTables[kind]
	if !ok {
		return "", fmt.Errorf("unknown mutation kind %q", kind)
	}
	return table, nil
}
