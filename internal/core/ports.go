package core

import (
	"context"
	"time"
)

// Classifier labels email text. The response is free-form text expected to
// follow the three-line contract understood by ParseClassification.
type Classifier interface {
	// Classify returns the raw classifier response. Call failures are
	// reported as *BackendError.
	Classify(ctx context.Context, text string, allowedCategories []string) (string, error)
}

// TextExtractor turns a mail container file into plain text
type TextExtractor interface {
	// ExtractText returns the text of the file or a *DecodeError
	ExtractText(path string) (string, error)
}

// EmailDecoder is implemented by text extractors that also recover the
// plain text attachments of a mail container
type EmailDecoder interface {
	Decode(path string) (*Email, error)
}

// FingerprintStore remembers the fingerprints of processed emails
type FingerprintStore interface {
	// CheckAndRecord reports whether text was seen before and records it if not
	CheckAndRecord(text string) (bool, string)
}

// ResultArchive keeps a record of processed emails
type ResultArchive interface {
	// Get retrieves an archived entry by processing ID
	Get(ctx context.Context, processingID string) (*ArchiveEntry, error)

	// Put stores an entry
	Put(ctx context.Context, entry *ArchiveEntry) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}

// Observer is notified about every completed pipeline run
type Observer interface {
	ObserveResult(result *ProcessingResult, classifyDuration time.Duration)
}
