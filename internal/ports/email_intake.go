package ports

import (
	"context"

	"github.com/mikey/email-triage/internal/core"
)

// Pipeline runs the triage pipeline on emails
type Pipeline interface {
	// Process triages an email
	Process(ctx context.Context, email *core.Email) (*core.ProcessingResult, error)

	// ProcessFile decodes a mail file and triages it
	ProcessFile(ctx context.Context, path string, attachments []string) (*core.ProcessingResult, error)
}

// EmailIntake defines the interface for surfaces that feed emails into the pipeline
type EmailIntake interface {
	// ProcessEmail processes an email and returns the triage result
	ProcessEmail(ctx context.Context, email *core.Email) (*core.ProcessingResult, error)

	// Start starts the intake service
	Start() error

	// Stop stops the intake service
	Stop() error
}
