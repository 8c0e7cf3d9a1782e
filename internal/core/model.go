package core

import (
	"time"
)

const (
	// PrimaryUnknown is reported when the classifier gave no usable primary label
	PrimaryUnknown = "Unknown"
	// PrimaryError is reported when the classifier call itself failed
	PrimaryError = "Error"
)

// Email represents an inbound email and the plain texts of its attachments
type Email struct {
	Text        string
	Attachments []string
}

// ClassificationResult represents the validated classification of an email
type ClassificationResult struct {
	PrimaryRequest string   `json:"primary_request"`
	SubRequest     *string  `json:"sub_request"`
	Confidence     *float64 `json:"confidence"`
	Details        string   `json:"details"`
}

// ExtractedFields holds the business fields found in a piece of text.
// Unmatched fields are nil and serialize as null.
type ExtractedFields struct {
	DealName       *string `json:"deal_name"`
	Amount         *string `json:"amount"`
	ExpirationDate *string `json:"expiration_date"`
}

// ProcessingResult is the pipeline output for one email
type ProcessingResult struct {
	Duplicate                  bool                 `json:"duplicate"`
	DuplicateReason            string               `json:"duplicate_reason"`
	Classification             ClassificationResult `json:"classification"`
	ExtractedFields            ExtractedFields      `json:"extracted_fields"`
	AttachmentsExtractedFields []ExtractedFields    `json:"attachments_extracted_fields"`
}

// ArchiveEntry is a processed email as kept by a ResultArchive
type ArchiveEntry struct {
	ProcessingID string
	Fingerprint  string
	Result       *ProcessingResult
	ProcessedAt  time.Time
	ExpiresAt    time.Time
}
