package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mikey/email-triage/internal/core"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when an archive entry is not found
	ErrNotFound = errors.New("archive entry not found")
	// ErrExpired is returned when an archive entry has expired
	ErrExpired = errors.New("archive entry expired")
)

// cleaner runs Cleanup of an archive periodically until stopped
type cleaner struct {
	stopCh   chan struct{}
	stopOnce sync.Once
}

func startCleaner(archive core.ResultArchive, freq time.Duration, logger *zap.Logger) *cleaner {
	c := &cleaner{stopCh: make(chan struct{})}
	if freq <= 0 {
		return c
	}

	go func() {
		ticker := time.NewTicker(freq)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := archive.Cleanup(context.Background()); err != nil {
					logger.Error("Failed to clean up archive", zap.Error(err))
				}
			case <-c.stopCh:
				return
			}
		}
	}()

	return c
}

func (c *cleaner) stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func encodeResult(result *core.ProcessingResult) (string, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to encode processing result: %w", err)
	}
	return string(data), nil
}

func decodeResult(data string) (*core.ProcessingResult, error) {
	var result core.ProcessingResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, fmt.Errorf("failed to decode processing result: %w", err)
	}
	return &result, nil
}

// queryEntry loads an entry from a triage_results table. Both SQL backends
// share it so an expired row reports ErrExpired on either.
func queryEntry(ctx context.Context, db *sql.DB, processingID string) (*core.ArchiveEntry, error) {
	entry := core.ArchiveEntry{ProcessingID: processingID}
	var resultJSON string
	var processedAt, expiresAt int64

	err := db.QueryRowContext(ctx, `
		SELECT fingerprint, result_json, processed_at, expires_at
		FROM triage_results
		WHERE processing_id = ?
	`, processingID).Scan(&entry.Fingerprint, &resultJSON, &processedAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query archive: %w", err)
	}

	entry.ProcessedAt = time.Unix(processedAt, 0)
	entry.ExpiresAt = time.Unix(expiresAt, 0)
	if time.Now().After(entry.ExpiresAt) {
		return nil, ErrExpired
	}

	if entry.Result, err = decodeResult(resultJSON); err != nil {
		return nil, err
	}

	return &entry, nil
}

// cloneEntry copies an entry together with the result it points to
func cloneEntry(entry *core.ArchiveEntry) (*core.ArchiveEntry, error) {
	copied := *entry
	if entry.Result == nil {
		return &copied, nil
	}

	data, err := encodeResult(entry.Result)
	if err != nil {
		return nil, err
	}
	if copied.Result, err = decodeResult(data); err != nil {
		return nil, err
	}
	return &copied, nil
}
