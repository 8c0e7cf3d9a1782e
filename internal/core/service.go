package core

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ServiceOptions holds the tunables of the triage service
type ServiceOptions struct {
	ClassifyTimeout time.Duration
	ArchiveEnabled  bool
	ArchiveTTL      time.Duration
}

// TriageService is the core service that turns an email into a ProcessingResult
type TriageService struct {
	classifier   Classifier
	fingerprints FingerprintStore
	taxonomy     Taxonomy
	extractor    TextExtractor
	archive      ResultArchive
	observer     Observer
	logger       *zap.Logger
	opts         ServiceOptions
}

// NewTriageService creates a new triage service. extractor, archive and
// observer may be nil.
func NewTriageService(
	classifier Classifier,
	fingerprints FingerprintStore,
	taxonomy Taxonomy,
	extractor TextExtractor,
	archive ResultArchive,
	observer Observer,
	logger *zap.Logger,
	opts ServiceOptions,
) *TriageService {
	if archive == nil {
		opts.ArchiveEnabled = false
	}
	return &TriageService{
		classifier:   classifier,
		fingerprints: fingerprints,
		taxonomy:     taxonomy,
		extractor:    extractor,
		archive:      archive,
		observer:     observer,
		logger:       logger,
		opts:         opts,
	}
}

// ProcessFile decodes a mail container file and processes its text together
// with the given attachment texts. When the extractor is an EmailDecoder the
// container's own text attachments follow the given ones. Decoding failures
// are returned as *DecodeError and the pipeline does not run.
func (s *TriageService) ProcessFile(ctx context.Context, path string, attachments []string) (*ProcessingResult, error) {
	if s.extractor == nil {
		return nil, &DecodeError{Path: path, Err: errors.New("no text extractor configured")}
	}

	email, err := s.decode(path)
	if err != nil {
		var de *DecodeError
		if !errors.As(err, &de) {
			de = &DecodeError{Path: path, Err: err}
		}
		s.logger.Error("Failed to decode email file", zap.String("file", path), zap.Error(de))
		return nil, de
	}

	email.Attachments = append(append([]string{}, attachments...), email.Attachments...)
	return s.Process(ctx, email)
}

func (s *TriageService) decode(path string) (*Email, error) {
	if decoder, ok := s.extractor.(EmailDecoder); ok {
		return decoder.Decode(path)
	}
	text, err := s.extractor.ExtractText(path)
	if err != nil {
		return nil, err
	}
	return &Email{Text: text}, nil
}

// Process runs classification, duplicate detection and field extraction on
// an email. Duplicates are still classified and extracted.
func (s *TriageService) Process(ctx context.Context, email *Email) (*ProcessingResult, error) {
	processingID := uuid.NewString()
	fingerprint := Fingerprint(email.Text)
	logger := s.logger.With(
		zap.String("processing_id", processingID),
		zap.String("fingerprint", fingerprint))

	start := time.Now()
	classification, err := s.classify(ctx, email.Text, logger)
	if err != nil {
		return nil, err
	}
	classifyDuration := time.Since(start)

	// Only completed runs are recorded, so a redelivery after a failed run
	// is not reported as a duplicate.
	duplicate, reason := s.fingerprints.CheckAndRecord(email.Text)
	if duplicate {
		logger.Info("Duplicate email detected", zap.String("action", "classified_anyway"))
	}

	result := &ProcessingResult{
		Duplicate:                  duplicate,
		DuplicateReason:            reason,
		Classification:             classification,
		ExtractedFields:            ExtractFields(email.Text),
		AttachmentsExtractedFields: make([]ExtractedFields, 0, len(email.Attachments)),
	}
	for _, attachment := range email.Attachments {
		result.AttachmentsExtractedFields = append(result.AttachmentsExtractedFields, ExtractFields(attachment))
	}

	logger.Info("Processed email",
		zap.Bool("duplicate", duplicate),
		zap.String("primary_request", classification.PrimaryRequest),
		zap.Int("attachments", len(email.Attachments)),
		zap.Duration("classify_duration", classifyDuration))

	if s.observer != nil {
		s.observer.ObserveResult(result, classifyDuration)
	}

	if s.opts.ArchiveEnabled {
		now := time.Now()
		entry := &ArchiveEntry{
			ProcessingID: processingID,
			Fingerprint:  fingerprint,
			Result:       result,
			ProcessedAt:  now,
			ExpiresAt:    now.Add(s.opts.ArchiveTTL),
		}
		if err := s.archive.Put(ctx, entry); err != nil {
			logger.Error("Failed to archive result", zap.Error(err))
		}
	}

	return result, nil
}

// classify calls the classifier under the configured deadline. Backend
// failures degrade into an "Error" classification; a cancelled caller
// context or an unexpected adapter error aborts the run.
func (s *TriageService) classify(ctx context.Context, text string, logger *zap.Logger) (ClassificationResult, error) {
	classifyCtx := ctx
	if s.opts.ClassifyTimeout > 0 {
		var cancel context.CancelFunc
		classifyCtx, cancel = context.WithTimeout(ctx, s.opts.ClassifyTimeout)
		defer cancel()
	}

	raw, err := s.classifier.Classify(classifyCtx, text, s.taxonomy.RequestTypes())
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return ClassificationResult{}, &PipelineError{Stage: "classify", Err: ctx.Err()}
		}

		var be *BackendError
		if !errors.As(err, &be) {
			logger.Error("Classifier failed unexpectedly", zap.Error(err))
			return ClassificationResult{}, &PipelineError{Stage: "classify", Err: err}
		}

		logger.Warn("Classifier call failed",
			zap.String("provider", be.Provider),
			zap.Int("status", be.StatusCode),
			zap.Error(be))
		return ClassificationFailure(be), nil
	}

	result := ParseClassification(raw, s.taxonomy)
	if result.PrimaryRequest == PrimaryUnknown {
		logger.Warn("Classifier returned no known request type")
	}
	if c := result.Confidence; c != nil && (*c < 0 || *c > 1) {
		logger.Warn("Classifier confidence out of range", zap.Float64("confidence", *c))
	}

	return result, nil
}
