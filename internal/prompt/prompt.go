// Package prompt renders the classification request sent to every
// classifier backend. The answer format it asks for is the three-line
// contract decoded by core.ParseClassification.
package prompt

import (
	"fmt"
	"strings"

	"github.com/mikey/email-triage/internal/utils"
)

// SubTypeLister reports the sub-types allowed under a request type
type SubTypeLister interface {
	SubRequestTypes(requestType string) []string
}

// Builder renders classification prompts
type Builder struct {
	subTypes      SubTypeLister
	textProcessor *utils.TextProcessor
}

// NewBuilder creates a new prompt builder. subTypes may be nil, in which
// case no sub-type guidance is included.
func NewBuilder(subTypes SubTypeLister, textProcessor *utils.TextProcessor) *Builder {
	return &Builder{
		subTypes:      subTypes,
		textProcessor: textProcessor,
	}
}

// Build renders the prompt for text, limiting the embedded email text to
// maxBodySize bytes
func (b *Builder) Build(text string, categories []string, maxBodySize int) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Analyze the following email and determine the primary request type from the predefined categories: %s.\n",
		strings.Join(categories, ", "))

	if b.subTypes != nil {
		var guidance []string
		for _, category := range categories {
			if subs := b.subTypes.SubRequestTypes(category); len(subs) > 0 {
				guidance = append(guidance, fmt.Sprintf("- %s: %s", category, strings.Join(subs, ", ")))
			}
		}
		if len(guidance) > 0 {
			sb.WriteString("Allowed sub request types per category:\n")
			sb.WriteString(strings.Join(guidance, "\n"))
			sb.WriteString("\n")
		}
	}

	fmt.Fprintf(&sb, "Email text: %s\n", b.textProcessor.PrepareForClassifier(text, maxBodySize))
	sb.WriteString("Return the result on three lines:\n")
	sb.WriteString("First line: Primary Request Type\n")
	sb.WriteString("Second line: Sub Request Type (if not applicable, write None).\n")
	sb.WriteString("Third line: Confidence: <decimal number between 0 and 1>.")

	return sb.String()
}
