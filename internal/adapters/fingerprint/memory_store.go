package fingerprint

import (
	"fmt"
	"sync"

	"github.com/mikey/email-triage/internal/core"
	"go.uber.org/zap"
)

// MemoryStore is an in-memory implementation of the FingerprintStore
// interface. It lives as long as the process and never shrinks.
type MemoryStore struct {
	seen   map[string]struct{}
	mu     sync.Mutex
	logger *zap.Logger
}

// NewMemoryStore creates a new in-memory fingerprint store
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		seen:   make(map[string]struct{}),
		logger: logger,
	}
}

// CheckAndRecord reports whether text was seen before. Unseen text is
// recorded; the lookup and the insert happen under one lock.
func (s *MemoryStore) CheckAndRecord(text string) (bool, string) {
	fp := core.Fingerprint(text)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[fp]; ok {
		return true, fmt.Sprintf("Duplicate email detected (hash: %s).", fp)
	}

	s.seen[fp] = struct{}{}
	s.logger.Debug("Recorded email fingerprint",
		zap.String("fingerprint", fp),
		zap.Int("known", len(s.seen)))
	return false, ""
}

// Len returns the number of recorded fingerprints
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
