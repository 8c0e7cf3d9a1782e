package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikey/email-triage/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stoppableArchive interface {
	core.ResultArchive
	Stop()
}

func sampleEntry(id string, expiresIn time.Duration) *core.ArchiveEntry {
	deal := "Alpha Facility"
	confidence := 0.87
	now := time.Now().Truncate(time.Second)
	return &core.ArchiveEntry{
		ProcessingID: id,
		Fingerprint:  core.Fingerprint("Deal: Alpha Facility"),
		Result: &core.ProcessingResult{
			Classification: core.ClassificationResult{
				PrimaryRequest: "Fee Payment",
				Confidence:     &confidence,
				Details:        core.ParsedDetails,
			},
			ExtractedFields:            core.ExtractedFields{DealName: &deal},
			AttachmentsExtractedFields: []core.ExtractedFields{},
		},
		ProcessedAt: now,
		ExpiresAt:   now.Add(expiresIn),
	}
}

func archives(t *testing.T) map[string]stoppableArchive {
	t.Helper()
	logger := zap.NewNop()

	sqlite, err := NewSQLiteArchive(filepath.Join(t.TempDir(), "archive.db"), logger, 0)
	require.NoError(t, err)

	return map[string]stoppableArchive{
		"memory": NewMemoryArchive(logger, 0),
		"sqlite": sqlite,
	}
}

func TestArchive_PutGet(t *testing.T) {
	for name, a := range archives(t) {
		t.Run(name, func(t *testing.T) {
			defer a.Stop()
			ctx := context.Background()

			entry := sampleEntry("id-1", time.Hour)
			require.NoError(t, a.Put(ctx, entry))

			got, err := a.Get(ctx, "id-1")
			require.NoError(t, err)
			assert.Equal(t, entry.Fingerprint, got.Fingerprint)
			assert.Equal(t, entry.ProcessedAt.Unix(), got.ProcessedAt.Unix())
			assert.Equal(t, entry.Result, got.Result)
		})
	}
}

func TestArchive_NotFound(t *testing.T) {
	for name, a := range archives(t) {
		t.Run(name, func(t *testing.T) {
			defer a.Stop()

			_, err := a.Get(context.Background(), "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestArchive_ExpiredAndCleanup(t *testing.T) {
	for name, a := range archives(t) {
		t.Run(name, func(t *testing.T) {
			defer a.Stop()
			ctx := context.Background()

			require.NoError(t, a.Put(ctx, sampleEntry("old", -time.Minute)))
			require.NoError(t, a.Put(ctx, sampleEntry("fresh", time.Hour)))

			_, err := a.Get(ctx, "old")
			assert.ErrorIs(t, err, ErrExpired)

			require.NoError(t, a.Cleanup(ctx))

			_, err = a.Get(ctx, "old")
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = a.Get(ctx, "fresh")
			assert.NoError(t, err)
		})
	}
}

func TestArchive_PutReplaces(t *testing.T) {
	for name, a := range archives(t) {
		t.Run(name, func(t *testing.T) {
			defer a.Stop()
			ctx := context.Background()

			entry := sampleEntry("id-1", time.Hour)
			require.NoError(t, a.Put(ctx, entry))

			entry.Result.Duplicate = true
			entry.Result.DuplicateReason = "Duplicate email detected (hash: abc)."
			require.NoError(t, a.Put(ctx, entry))

			got, err := a.Get(ctx, "id-1")
			require.NoError(t, err)
			assert.True(t, got.Result.Duplicate)
		})
	}
}

func TestArchive_StoredResultIsIsolated(t *testing.T) {
	for name, a := range archives(t) {
		t.Run(name, func(t *testing.T) {
			defer a.Stop()
			ctx := context.Background()

			entry := sampleEntry("id-1", time.Hour)
			require.NoError(t, a.Put(ctx, entry))

			entry.Result.Classification.PrimaryRequest = "Adjustment"
			*entry.Result.ExtractedFields.DealName = "Changed"

			got, err := a.Get(ctx, "id-1")
			require.NoError(t, err)
			assert.Equal(t, "Fee Payment", got.Result.Classification.PrimaryRequest)
			assert.Equal(t, "Alpha Facility", *got.Result.ExtractedFields.DealName)

			got.Result.Duplicate = true
			*got.Result.Classification.Confidence = 0.1

			again, err := a.Get(ctx, "id-1")
			require.NoError(t, err)
			assert.False(t, again.Result.Duplicate)
			assert.Equal(t, 0.87, *again.Result.Classification.Confidence)
		})
	}
}

func TestQueryEntry_ExpiredRow(t *testing.T) {
	a, err := NewSQLiteArchive(filepath.Join(t.TempDir(), "archive.db"), zap.NewNop(), 0)
	require.NoError(t, err)
	defer a.Stop()
	ctx := context.Background()

	require.NoError(t, a.Put(ctx, sampleEntry("old", -time.Minute)))

	_, err = queryEntry(ctx, a.db, "old")
	assert.ErrorIs(t, err, ErrExpired)

	_, err = queryEntry(ctx, a.db, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryArchive_BackgroundCleanup(t *testing.T) {
	a := NewMemoryArchive(zap.NewNop(), 10*time.Millisecond)
	defer a.Stop()

	require.NoError(t, a.Put(context.Background(), sampleEntry("old", -time.Minute)))

	assert.Eventually(t, func() bool { return a.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestMemoryArchive_StopTwice(t *testing.T) {
	a := NewMemoryArchive(zap.NewNop(), time.Minute)
	a.Stop()
	assert.NotPanics(t, a.Stop)
}
