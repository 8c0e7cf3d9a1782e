package mailfile

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mikey/email-triage/internal/core"
	"go.uber.org/zap"
)

// Decoder turns .eml and .msg files into emails. It implements the
// TextExtractor interface.
type Decoder struct {
	logger *zap.Logger
}

// NewDecoder creates a new mail file decoder
func NewDecoder(logger *zap.Logger) *Decoder {
	return &Decoder{
		logger: logger,
	}
}

// ExtractText returns the body text of a mail file
func (d *Decoder) ExtractText(path string) (string, error) {
	email, err := d.Decode(path)
	if err != nil {
		return "", err
	}
	return email.Text, nil
}

// Decode reads a mail file into its body text and plain text attachments.
// Every failure is returned as *core.DecodeError.
func (d *Decoder) Decode(path string) (*core.Email, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".eml" && ext != ".msg" {
		return nil, &core.DecodeError{Path: path, Err: core.ErrUnsupportedFormat}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &core.DecodeError{Path: path, Err: err}
	}
	defer f.Close()

	var email *core.Email
	if ext == ".eml" {
		email, err = ParseMessage(f)
	} else {
		email, err = parseOutlookMessage(f)
	}
	if err != nil {
		return nil, &core.DecodeError{Path: path, Err: err}
	}

	d.logger.Debug("Decoded mail file",
		zap.String("file", path),
		zap.Int("text_size", len(email.Text)),
		zap.Int("attachments", len(email.Attachments)))

	return email, nil
}
