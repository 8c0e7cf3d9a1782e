package prompt

import (
	"strings"
	"testing"

	"github.com/mikey/email-triage/internal/taxonomy"
	"github.com/mikey/email-triage/internal/utils"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestBuilder_Build(t *testing.T) {
	tax := taxonomy.Default()
	b := NewBuilder(tax, utils.NewTextProcessor(zap.NewNop()))

	got := b.Build("Please pay the ongoing fee for Deal: Falcon", tax.RequestTypes(), 0)

	assert.Contains(t, got, "predefined categories: Adjustment, AU Transfer, Closing Notice,")
	assert.Contains(t, got, "- Fee Payment: Ongoing Fee, Letter of Credit Fee")
	assert.NotContains(t, got, "- Adjustment:")
	assert.Contains(t, got, "Email text: Please pay the ongoing fee for Deal: Falcon\n")
	assert.True(t, strings.HasSuffix(got, "Third line: Confidence: <decimal number between 0 and 1>."))
}

func TestBuilder_BuildTruncatesBody(t *testing.T) {
	b := NewBuilder(nil, utils.NewTextProcessor(zap.NewNop()))

	got := b.Build(strings.Repeat("x", 100), []string{"Adjustment"}, 10)

	assert.Contains(t, got, "Email text: xxxxxxxxxx"+utils.TruncationMarker)
	assert.NotContains(t, got, "Allowed sub request types")
}
