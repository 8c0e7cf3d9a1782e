package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mikey/email-triage/internal/core"
	"github.com/mikey/email-triage/internal/ports"
	"go.uber.org/zap"
)

// Exit codes of the command line intake
const (
	ExitOK            = 0
	ExitPipelineError = 1
	ExitDecodeError   = 2
)

// CliIntake triages emails given on the command line and prints the results
// as JSON
type CliIntake struct {
	service ports.Pipeline
	logger  *zap.Logger
	out     io.Writer
}

// NewCliIntake creates a new CLI intake writing results to out
func NewCliIntake(service ports.Pipeline, logger *zap.Logger, out io.Writer) *CliIntake {
	return &CliIntake{
		service: service,
		logger:  logger,
		out:     out,
	}
}

// ProcessEmail processes an email and prints the result
func (c *CliIntake) ProcessEmail(ctx context.Context, email *core.Email) (*core.ProcessingResult, error) {
	c.logger.Debug("Processing email",
		zap.Int("text_size", len(email.Text)),
		zap.Int("attachments", len(email.Attachments)))

	result, err := c.service.Process(ctx, email)
	if err != nil {
		return nil, err
	}
	return result, WriteResult(c.out, result)
}

// ProcessFile decodes a mail file, processes it and prints the result
func (c *CliIntake) ProcessFile(ctx context.Context, path string, attachments []string) (*core.ProcessingResult, error) {
	c.logger.Debug("Processing email file",
		zap.String("file", path),
		zap.Int("attachments", len(attachments)))

	result, err := c.service.ProcessFile(ctx, path, attachments)
	if err != nil {
		return nil, err
	}
	return result, WriteResult(c.out, result)
}

// Start is a no-op for the CLI intake
func (c *CliIntake) Start() error {
	return nil
}

// Stop is a no-op for the CLI intake
func (c *CliIntake) Stop() error {
	return nil
}

// WriteResult renders a result as indented JSON
func WriteResult(w io.Writer, result *core.ProcessingResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}

// ExitCode maps the outcome of a run to the process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var de *core.DecodeError
	if errors.As(err, &de) {
		return ExitDecodeError
	}
	return ExitPipelineError
}
