package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/email-triage/internal/core"
	"go.uber.org/zap"
)

// SQLiteArchive is a SQLite implementation of the ResultArchive interface
type SQLiteArchive struct {
	db      *sql.DB
	logger  *zap.Logger
	cleaner *cleaner
}

// NewSQLiteArchive creates a new SQLite archive
func NewSQLiteArchive(dbPath string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLiteArchive, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS triage_results (
			processing_id TEXT PRIMARY KEY,
			fingerprint TEXT NOT NULL,
			result_json TEXT NOT NULL,
			processed_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_triage_expires_at ON triage_results(expires_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	a := &SQLiteArchive{
		db:     db,
		logger: logger,
	}
	a.cleaner = startCleaner(a, cleanupFreq, logger)

	return a, nil
}

// Get retrieves an archived entry
func (a *SQLiteArchive) Get(ctx context.Context, processingID string) (*core.ArchiveEntry, error) {
	return queryEntry(ctx, a.db, processingID)
}

// Put stores an entry
func (a *SQLiteArchive) Put(ctx context.Context, entry *core.ArchiveEntry) error {
	resultJSON, err := encodeResult(entry.Result)
	if err != nil {
		return err
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO triage_results (processing_id, fingerprint, result_json, processed_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`, entry.ProcessingID, entry.Fingerprint, resultJSON, entry.ProcessedAt.Unix(), entry.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert archive entry: %w", err)
	}

	return nil
}

// Cleanup removes expired entries
func (a *SQLiteArchive) Cleanup(ctx context.Context) error {
	result, err := a.db.ExecContext(ctx, `
		DELETE FROM triage_results
		WHERE expires_at <= ?
	`, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to clean up expired entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		a.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		a.logger.Debug("Cleaned up expired archive entries", zap.Int64("expired_count", rowsAffected))
	}

	return nil
}

// Stop stops the background cleanup task and closes the database connection
func (a *SQLiteArchive) Stop() {
	a.cleaner.stop()
	if err := a.db.Close(); err != nil {
		a.logger.Error("Failed to close SQLite database", zap.Error(err))
	}
}
