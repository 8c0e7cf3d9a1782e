package core_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mikey/email-triage/internal/adapters/fingerprint"
	"github.com/mikey/email-triage/internal/core"
	"github.com/mikey/email-triage/internal/taxonomy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeClassifier struct {
	mu             sync.Mutex
	response       string
	err            error
	block          bool
	calls          int
	gotCategories  []string
	gotHasDeadline bool
}

func (f *fakeClassifier) Classify(ctx context.Context, text string, allowedCategories []string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.gotCategories = allowedCategories
	_, f.gotHasDeadline = ctx.Deadline()
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return "", &core.BackendError{Provider: "fake", Message: ctx.Err().Error(), Err: ctx.Err()}
	}
	return f.response, f.err
}

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) ExtractText(path string) (string, error) {
	return f.text, f.err
}

type fakeDecoder struct {
	fakeExtractor
	attachments []string
}

func (f *fakeDecoder) Decode(path string) (*core.Email, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &core.Email{Text: f.text, Attachments: f.attachments}, nil
}

type fakeArchive struct {
	entries []*core.ArchiveEntry
	err     error
}

func (a *fakeArchive) Get(ctx context.Context, id string) (*core.ArchiveEntry, error) {
	for _, e := range a.entries {
		if e.ProcessingID == id {
			return e, nil
		}
	}
	return nil, errors.New("not found")
}

func (a *fakeArchive) Put(ctx context.Context, entry *core.ArchiveEntry) error {
	a.entries = append(a.entries, entry)
	return a.err
}

func (a *fakeArchive) Cleanup(ctx context.Context) error { return nil }

type fakeObserver struct {
	results []*core.ProcessingResult
}

func (o *fakeObserver) ObserveResult(result *core.ProcessingResult, d time.Duration) {
	o.results = append(o.results, result)
}

func newService(t *testing.T, classifier core.Classifier, opts core.ServiceOptions) (*core.TriageService, *observer.ObservedLogs) {
	t.Helper()
	obsCore, logs := observer.New(zapcore.DebugLevel)
	svc := core.NewTriageService(
		classifier,
		fingerprint.NewMemoryStore(zap.NewNop()),
		taxonomy.Default(),
		nil,
		nil,
		nil,
		zap.New(obsCore),
		opts,
	)
	return svc, logs
}

func TestTriageService_ProcessSameTextTwice(t *testing.T) {
	classifier := &fakeClassifier{response: "Fee Payment\nOngoing Fee\nConfidence: 0.87"}
	svc, logs := newService(t, classifier, core.ServiceOptions{})
	email := &core.Email{Text: "Hello, Deal: Project Falcon, amount due $12,500.00 by 5/1/2025"}

	first, err := svc.Process(context.Background(), email)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)
	assert.Empty(t, first.DuplicateReason)

	second, err := svc.Process(context.Background(), email)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Contains(t, second.DuplicateReason, core.Fingerprint(email.Text))

	// Duplicates are classified and extracted like any other email
	assert.Equal(t, 2, classifier.calls)
	assert.Equal(t, first.Classification, second.Classification)
	assert.Equal(t, first.ExtractedFields, second.ExtractedFields)
	assert.Equal(t, 1, logs.FilterMessage("Duplicate email detected").Len())
}

func TestTriageService_ProcessScenario(t *testing.T) {
	classifier := &fakeClassifier{response: "Fee Payment\nOngoing Fee\nConfidence: 0.87"}
	svc, _ := newService(t, classifier, core.ServiceOptions{ClassifyTimeout: time.Second})

	result, err := svc.Process(context.Background(), &core.Email{
		Text: "Hello, Deal: Project Falcon, amount due $12,500.00 by 5/1/2025",
	})
	require.NoError(t, err)

	assert.Equal(t, "Fee Payment", result.Classification.PrimaryRequest)
	require.NotNil(t, result.Classification.SubRequest)
	assert.Equal(t, "Ongoing Fee", *result.Classification.SubRequest)
	require.NotNil(t, result.Classification.Confidence)
	assert.InDelta(t, 0.87, *result.Classification.Confidence, 1e-9)

	assert.Equal(t, core.ExtractedFields{
		DealName:       strPtr("Project Falcon"),
		Amount:         strPtr("12,500.00"),
		ExpirationDate: strPtr("5/1/2025"),
	}, result.ExtractedFields)

	assert.Equal(t, taxonomy.Default().RequestTypes(), classifier.gotCategories)
	assert.True(t, classifier.gotHasDeadline)
}

func TestTriageService_BackendFailure(t *testing.T) {
	classifier := &fakeClassifier{err: &core.BackendError{
		Provider:   "openrouter",
		StatusCode: 502,
		Message:    "bad gateway",
	}}
	svc, logs := newService(t, classifier, core.ServiceOptions{})

	result, err := svc.Process(context.Background(), &core.Email{Text: "Deal: Falcon"})
	require.NoError(t, err)

	assert.Equal(t, core.PrimaryError, result.Classification.PrimaryRequest)
	assert.Nil(t, result.Classification.SubRequest)
	require.NotNil(t, result.Classification.Confidence)
	assert.Equal(t, 0.0, *result.Classification.Confidence)
	assert.Contains(t, result.Classification.Details, "502")

	// Extraction still runs
	require.NotNil(t, result.ExtractedFields.DealName)
	assert.Equal(t, "Falcon", *result.ExtractedFields.DealName)
	assert.Equal(t, 1, logs.FilterMessage("Classifier call failed").Len())
}

func TestTriageService_ClassifierTimeout(t *testing.T) {
	classifier := &fakeClassifier{block: true}
	svc, _ := newService(t, classifier, core.ServiceOptions{ClassifyTimeout: 20 * time.Millisecond})

	result, err := svc.Process(context.Background(), &core.Email{Text: "slow backend"})
	require.NoError(t, err)

	assert.Equal(t, core.PrimaryError, result.Classification.PrimaryRequest)
	assert.Contains(t, result.Classification.Details, context.DeadlineExceeded.Error())
}

func TestTriageService_CallerCancelled(t *testing.T) {
	classifier := &fakeClassifier{block: true}
	svc, _ := newService(t, classifier, core.ServiceOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := svc.Process(ctx, &core.Email{Text: "never mind"})
	assert.Nil(t, result)

	var pe *core.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "classify", pe.Stage)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTriageService_UnexpectedClassifierError(t *testing.T) {
	classifier := &fakeClassifier{err: errors.New("adapter misconfigured")}
	svc, _ := newService(t, classifier, core.ServiceOptions{})

	_, err := svc.Process(context.Background(), &core.Email{Text: "x"})

	var pe *core.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, err.Error(), "adapter misconfigured")
}

func TestTriageService_RetryAfterFailureIsNotDuplicate(t *testing.T) {
	classifier := &fakeClassifier{err: errors.New("adapter misconfigured")}
	store := fingerprint.NewMemoryStore(zap.NewNop())
	svc := core.NewTriageService(classifier, store, taxonomy.Default(), nil, nil, nil, zap.NewNop(), core.ServiceOptions{})
	email := &core.Email{Text: "Deal: Project Falcon, please settle the ongoing fee"}

	_, err := svc.Process(context.Background(), email)
	require.Error(t, err)
	assert.Equal(t, 0, store.Len())

	classifier.err = nil
	classifier.response = "Fee Payment\nOngoing Fee\nConfidence: 0.9"

	result, err := svc.Process(context.Background(), email)
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.Empty(t, result.DuplicateReason)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 2, classifier.calls)
}

func TestTriageService_Attachments(t *testing.T) {
	classifier := &fakeClassifier{response: "Adjustment\n\nConfidence: 0.6"}
	svc, _ := newService(t, classifier, core.ServiceOptions{})

	result, err := svc.Process(context.Background(), &core.Email{
		Text: "See attachments",
		Attachments: []string{
			"Deal: Northwind Refi, total $3,200.00 expiring 12/31/2026",
			"No labels in here, only $15.00",
		},
	})
	require.NoError(t, err)

	require.Len(t, result.AttachmentsExtractedFields, 2)
	first, second := result.AttachmentsExtractedFields[0], result.AttachmentsExtractedFields[1]

	require.NotNil(t, first.DealName)
	assert.Equal(t, "Northwind Refi", *first.DealName)
	assert.Equal(t, "12/31/2026", *first.ExpirationDate)

	assert.Nil(t, second.DealName)
	require.NotNil(t, second.Amount)
	assert.Equal(t, "15.00", *second.Amount)
}

func TestTriageService_NoAttachmentsSerializesEmptyList(t *testing.T) {
	svc, _ := newService(t, &fakeClassifier{response: "Adjustment"}, core.ServiceOptions{})

	result, err := svc.Process(context.Background(), &core.Email{Text: "plain"})
	require.NoError(t, err)
	require.NotNil(t, result.AttachmentsExtractedFields)

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.JSONEq(t, `[]`, string(doc["attachments_extracted_fields"]))
	assert.ElementsMatch(t,
		[]string{"duplicate", "duplicate_reason", "classification", "extracted_fields", "attachments_extracted_fields"},
		keys(doc))
	assert.JSONEq(t,
		`{"primary_request":"Adjustment","sub_request":null,"confidence":null,"details":"`+core.ParsedDetails+`"}`,
		string(doc["classification"]))
}

func TestTriageService_ProcessFile(t *testing.T) {
	classifier := &fakeClassifier{response: "Money Movement Inbound\nInterest\nConfidence: 0.7"}
	svc := core.NewTriageService(
		classifier,
		fingerprint.NewMemoryStore(zap.NewNop()),
		taxonomy.Default(),
		&fakeExtractor{text: "Interest payment for Deal: Atlas"},
		nil,
		nil,
		zap.NewNop(),
		core.ServiceOptions{},
	)

	result, err := svc.ProcessFile(context.Background(), "mail.eml", []string{"Deal: Atlas Annex"})
	require.NoError(t, err)
	assert.Equal(t, "Money Movement Inbound", result.Classification.PrimaryRequest)
	assert.Equal(t, "Atlas", *result.ExtractedFields.DealName)
	assert.Equal(t, "Atlas Annex", *result.AttachmentsExtractedFields[0].DealName)
}

func TestTriageService_ProcessFileContainerAttachments(t *testing.T) {
	svc := core.NewTriageService(
		&fakeClassifier{response: "Fee Payment\nOngoing Fee\nConfidence: 0.8"},
		fingerprint.NewMemoryStore(zap.NewNop()),
		taxonomy.Default(),
		&fakeDecoder{
			fakeExtractor: fakeExtractor{text: "Fee due for Deal: Orion"},
			attachments:   []string{"Deal: Orion Schedule. Amount $75"},
		},
		nil,
		nil,
		zap.NewNop(),
		core.ServiceOptions{},
	)

	result, err := svc.ProcessFile(context.Background(), "mail.msg", []string{"Deal: Extra"})
	require.NoError(t, err)

	require.Len(t, result.AttachmentsExtractedFields, 2)
	assert.Equal(t, "Extra", *result.AttachmentsExtractedFields[0].DealName)
	assert.Equal(t, "Orion Schedule", *result.AttachmentsExtractedFields[1].DealName)
	assert.Equal(t, "75", *result.AttachmentsExtractedFields[1].Amount)
}

func TestTriageService_ProcessFileDecodeError(t *testing.T) {
	classifier := &fakeClassifier{response: "Adjustment"}
	store := fingerprint.NewMemoryStore(zap.NewNop())
	svc := core.NewTriageService(
		classifier,
		store,
		taxonomy.Default(),
		&fakeExtractor{err: &core.DecodeError{Path: "mail.pdf", Err: core.ErrUnsupportedFormat}},
		nil,
		nil,
		zap.NewNop(),
		core.ServiceOptions{},
	)

	result, err := svc.ProcessFile(context.Background(), "mail.pdf", nil)
	assert.Nil(t, result)

	var de *core.DecodeError
	require.ErrorAs(t, err, &de)
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)

	var pe *core.PipelineError
	assert.False(t, errors.As(err, &pe), "decode failures are not pipeline failures")
	assert.Zero(t, classifier.calls)
	assert.Zero(t, store.Len())
}

func TestTriageService_ArchiveAndObserver(t *testing.T) {
	archive := &fakeArchive{err: errors.New("disk full")}
	obs := &fakeObserver{}
	svc := core.NewTriageService(
		&fakeClassifier{response: "Closing Notice\nAmendment Fees\nConfidence: 0.95"},
		fingerprint.NewMemoryStore(zap.NewNop()),
		taxonomy.Default(),
		nil,
		archive,
		obs,
		zap.NewNop(),
		core.ServiceOptions{ArchiveEnabled: true, ArchiveTTL: time.Hour},
	)

	result, err := svc.Process(context.Background(), &core.Email{Text: "closing notice"})
	require.NoError(t, err, "archive failures must not fail the run")

	require.Len(t, archive.entries, 1)
	entry := archive.entries[0]
	assert.NotEmpty(t, entry.ProcessingID)
	assert.Equal(t, core.Fingerprint("closing notice"), entry.Fingerprint)
	assert.Same(t, result, entry.Result)
	assert.WithinDuration(t, entry.ProcessedAt.Add(time.Hour), entry.ExpiresAt, time.Second)

	require.Len(t, obs.results, 1)
	assert.Same(t, result, obs.results[0])
}

func keys(m map[string]json.RawMessage) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
