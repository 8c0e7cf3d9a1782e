package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/mikey/email-triage/internal/core"
	"go.uber.org/zap"
)

// MySQLArchive is a MySQL implementation of the ResultArchive interface
type MySQLArchive struct {
	db      *sql.DB
	logger  *zap.Logger
	cleaner *cleaner
}

// NewMySQLArchive creates a new MySQL archive
func NewMySQLArchive(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*MySQLArchive, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS triage_results (
			processing_id CHAR(36) PRIMARY KEY,
			fingerprint CHAR(64) NOT NULL,
			result_json MEDIUMTEXT NOT NULL,
			processed_at BIGINT NOT NULL,
			expires_at BIGINT NOT NULL,
			INDEX idx_triage_expires_at (expires_at),
			INDEX idx_triage_fingerprint (fingerprint)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	a := &MySQLArchive{
		db:     db,
		logger: logger,
	}
	a.cleaner = startCleaner(a, cleanupFreq, logger)

	return a, nil
}

// Get retrieves an archived entry
func (a *MySQLArchive) Get(ctx context.Context, processingID string) (*core.ArchiveEntry, error) {
	return queryEntry(ctx, a.db, processingID)
}

// Put stores an entry
func (a *MySQLArchive) Put(ctx context.Context, entry *core.ArchiveEntry) error {
	resultJSON, err := encodeResult(entry.Result)
	if err != nil {
		return err
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO triage_results (processing_id, fingerprint, result_json, processed_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			fingerprint = VALUES(fingerprint),
			result_json = VALUES(result_json),
			processed_at = VALUES(processed_at),
			expires_at = VALUES(expires_at)
	`, entry.ProcessingID, entry.Fingerprint, resultJSON, entry.ProcessedAt.Unix(), entry.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert archive entry: %w", err)
	}

	return nil
}

// Cleanup removes expired entries
func (a *MySQLArchive) Cleanup(ctx context.Context) error {
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
func (a *MySQLArchive) Stop() {
	a.cleaner.stop()
	if err := a.db.Close(); err != nil {
		a.logger.Error("Failed to close MySQL database", zap.Error(err))
	}
}
