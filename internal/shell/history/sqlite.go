package history

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "failed to open database", ErrConnectionFailed)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Entry Operations
// =============================================================================

// entryRow represents a deploy history row in the database.
type entryRow struct {
	RunID         string  `db:"run_id"`
	Fleet         string  `db:"fleet"`
	ReleaseID     string  `db:"release_id"`
	ReleaseCommit string  `db:"release_commit"`
	ServiceCount  int     `db:"service_count"`
	SkippedCount  int     `db:"skipped_count"`
	DurationMS    int64   `db:"duration_ms"`
	Images        *string `db:"images"`
	SourceCommit  string  `db:"source_commit"`
	SourceBranch  string  `db:"source_branch"`
	SourceDirty   bool    `db:"source_dirty"`
	CreatedAt     string  `db:"created_at"`
}

func (s *SQLiteStore) CreateEntry(ctx context.Context, entry *Entry) error {
	imagesJSON, err := json.Marshal(entry.Images)
	if err != nil {
		return NewStoreError("CreateEntry", entry.RunID, "failed to serialize images", ErrInvalidData)
	}

	query := `
		INSERT INTO deploy_history (
			run_id, fleet, release_id, release_commit,
			service_count, skipped_count, duration_ms, images,
			source_commit, source_branch, source_dirty, created_at
		) VALUES (
			:run_id, :fleet, :release_id, :release_commit,
			:service_count, :skipped_count, :duration_ms, :images,
			:source_commit, :source_branch, :source_dirty, :created_at
		)`

	row := map[string]any{
		"run_id":         entry.RunID,
		"fleet":          entry.Fleet,
		"release_id":     entry.ReleaseID,
		"release_commit": entry.ReleaseCommit,
		"service_count":  entry.ServiceCount,
		"skipped_count":  entry.SkippedCount,
		"duration_ms":    entry.Duration.Milliseconds(),
		"images":         string(imagesJSON),
		"source_commit":  entry.SourceCommit,
		"source_branch":  entry.SourceBranch,
		"source_dirty":   entry.SourceDirty,
		"created_at":     entry.CreatedAt.UTC().Format(time.RFC3339),
	}

	_, err = s.db.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: deploy_history.run_id") {
			return NewStoreError("CreateEntry", entry.RunID, "deploy run already recorded", ErrDuplicateRun)
		}
		return NewStoreError("CreateEntry", entry.RunID, err.Error(), err)
	}

	return nil
}

func (s *SQLiteStore) GetEntry(ctx context.Context, runID string) (*Entry, error) {
	query := `SELECT * FROM deploy_history WHERE run_id = ?`

	var row entryRow
	err := s.db.GetContext(ctx, &row, query, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetEntry", runID, "entry not found", ErrNotFound)
		}
		return nil, NewStoreError("GetEntry", runID, err.Error(), err)
	}

	return rowToEntry(&row)
}

func (s *SQLiteStore) ListEntries(ctx context.Context, opts ListOptions) ([]Entry, error) {
	opts = opts.Normalize()

	var rows []entryRow
	var err error
	if opts.Fleet != "" {
		query := `SELECT * FROM deploy_history WHERE fleet = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`
		err = s.db.SelectContext(ctx, &rows, query, opts.Fleet, opts.Limit, opts.Offset)
	} else {
		query := `SELECT * FROM deploy_history ORDER BY created_at DESC LIMIT ? OFFSET ?`
		err = s.db.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset)
	}
	if err != nil {
		return nil, NewStoreError("ListEntries", "", err.Error(), err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entry, err := rowToEntry(&row)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}

	return entries, nil
}

// =============================================================================
// Row Conversion
// =============================================================================

// rowToEntry converts a database row to an Entry.
func rowToEntry(row *entryRow) (*Entry, error) {
	createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)

	var images []ImageSummary
	if row.Images != nil && *row.Images != "" && *row.Images != "null" {
		if err := json.Unmarshal([]byte(*row.Images), &images); err != nil {
			return nil, NewStoreError("rowToEntry", row.RunID, "failed to parse images", ErrInvalidData)
		}
	}

	return &Entry{
		RunID:         row.RunID,
		Fleet:         row.Fleet,
		ReleaseID:     row.ReleaseID,
		ReleaseCommit: row.ReleaseCommit,
		ServiceCount:  row.ServiceCount,
		SkippedCount:  row.SkippedCount,
		Duration:      time.Duration(row.DurationMS) * time.Millisecond,
		Images:        images,
		SourceCommit:  row.SourceCommit,
		SourceBranch:  row.SourceBranch,
		SourceDirty:   row.SourceDirty,
		CreatedAt:     createdAt,
	}, nil
}
