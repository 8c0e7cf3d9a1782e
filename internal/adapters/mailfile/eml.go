package mailfile

import (
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/mikey/email-triage/internal/core"
	"github.com/mikey/email-triage/internal/utils"
)

// ParseMessage reads an RFC 5322 message. A single-part message yields its
// whole body. For multipart messages the inline text/plain parts are joined
// with newlines and text/plain parts marked as attachments become the
// email's attachments.
func ParseMessage(r io.Reader) (*core.Email, error) {
	entity, err := message.Read(r)
	if err != nil && !tolerable(err) {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	if !isMultipart(entity) {
		text, err := readPart(entity)
		if err != nil {
			return nil, err
		}
		return &core.Email{Text: text, Attachments: []string{}}, nil
	}

	var body []string
	attachments := []string{}
	err = entity.Walk(func(path []int, part *message.Entity, err error) error {
		if err != nil && !tolerable(err) {
			return err
		}
		mediaType, _, _ := part.Header.ContentType()
		if mediaType != "text/plain" {
			return nil
		}

		text, err := readPart(part)
		if err != nil {
			return err
		}

		if disposition, _, _ := part.Header.ContentDisposition(); disposition == "attachment" {
			attachments = append(attachments, text)
		} else {
			body = append(body, text)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk message parts: %w", err)
	}

	return &core.Email{
		Text:        strings.Join(body, "\n"),
		Attachments: attachments,
	}, nil
}

func isMultipart(entity *message.Entity) bool {
	mediaType, _, err := entity.Header.ContentType()
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}

func readPart(part *message.Entity) (string, error) {
	data, err := io.ReadAll(part.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read message part: %w", err)
	}
	return utils.NormalizeNewlines(strings.ToValidUTF8(string(data), "")), nil
}

// tolerable reports errors after which go-message still hands back a usable
// entity with the raw body
func tolerable(err error) bool {
	return message.IsUnknownCharset(err) || message.IsUnknownEncoding(err)
}
