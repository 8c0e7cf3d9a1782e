package archive

import (
	"context"
	"sync"
	"time"

	"github.com/mikey/email-triage/internal/core"
	"go.uber.org/zap"
)

// MemoryArchive is an in-memory implementation of the ResultArchive interface
type MemoryArchive struct {
	entries map[string]*core.ArchiveEntry
	mu      sync.RWMutex
	logger  *zap.Logger
	cleaner *cleaner
}

// NewMemoryArchive creates a new in-memory archive
func NewMemoryArchive(logger *zap.Logger, cleanupFreq time.Duration) *MemoryArchive {
	a := &MemoryArchive{
		entries: make(map[string]*core.ArchiveEntry),
		logger:  logger,
	}
	a.cleaner = startCleaner(a, cleanupFreq, logger)
	return a
}

// Get retrieves an archived entry
func (a *MemoryArchive) Get(ctx context.Context, processingID string) (*core.ArchiveEntry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	entry, ok := a.entries[processingID]
	if !ok {
		return nil, ErrNotFound
	}
	if time.Now().After(entry.ExpiresAt) {
		return nil, ErrExpired
	}

	return cloneEntry(entry)
}

// Put stores an entry
func (a *MemoryArchive) Put(ctx context.Context, entry *core.ArchiveEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	copied, err := cloneEntry(entry)
	if err != nil {
		return err
	}
	a.entries[entry.ProcessingID] = copied
	return nil
}

// Cleanup removes expired entries
func (a *MemoryArchive) Cleanup(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	expiredCount := 0

	for id, entry := range a.entries {
		if now.After(entry.ExpiresAt) {
			delete(a.entries, id)
			expiredCount++
		}
	}

	a.logger.Debug("Cleaned up expired archive entries", zap.Int("expired_count", expiredCount))
	return nil
}

// Len returns the number of stored entries, expired or not
func (a *MemoryArchive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}

// Stop stops the background cleanup task
func (a *MemoryArchive) Stop() {
	a.cleaner.stop()
}
