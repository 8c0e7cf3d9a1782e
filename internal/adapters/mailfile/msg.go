package mailfile

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mikey/email-triage/internal/core"
	"github.com/mikey/email-triage/internal/utils"
	"github.com/richardlehane/mscfb"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// MAPI property streams of an Outlook .msg compound file
const (
	streamBodyUnicode     = "__substg1.0_1000001F"
	streamBodyANSI        = "__substg1.0_1000001E"
	streamAttachLongName  = "__substg1.0_3707001F"
	streamAttachShortName = "__substg1.0_3704001F"
	streamAttachData      = "__substg1.0_37010102"
	attachStoragePrefix   = "__attach_version1.0_"
	rootStorage           = "Root Entry"
)

var textAttachmentExts = map[string]bool{
	".txt":  true,
	".text": true,
	".csv":  true,
}

type msgAttachment struct {
	longName  string
	shortName string
	data      []byte
}

func (a *msgAttachment) name() string {
	if a.longName != "" {
		return a.longName
	}
	return a.shortName
}

// parseOutlookMessage reads the plain text body and the plain text
// attachments of an Outlook message
func parseOutlookMessage(r io.ReaderAt) (*core.Email, error) {
	doc, err := mscfb.New(r)
	if err != nil {
		return nil, fmt.Errorf("not an Outlook message: %w", err)
	}

	var bodyUnicode, bodyANSI string
	attachments := make(map[string]*msgAttachment)

	for {
		entry, err := doc.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read Outlook message: %w", err)
		}

		path := storagePath(entry.Path)
		switch {
		case len(path) == 0 && entry.Name == streamBodyUnicode:
			data, err := readEntry(entry)
			if err != nil {
				return nil, err
			}
			bodyUnicode = decodeUTF16(data)
		case len(path) == 0 && entry.Name == streamBodyANSI:
			data, err := readEntry(entry)
			if err != nil {
				return nil, err
			}
			bodyANSI = decodeANSI(data)
		case len(path) == 1 && strings.HasPrefix(path[0], attachStoragePrefix):
			att, ok := attachments[path[0]]
			if !ok {
				att = &msgAttachment{}
				attachments[path[0]] = att
			}
			if err := fillAttachment(att, entry); err != nil {
				return nil, err
			}
		}
	}

	text := bodyUnicode
	if text == "" {
		text = bodyANSI
	}

	return &core.Email{
		Text:        utils.NormalizeNewlines(text),
		Attachments: textAttachments(attachments),
	}, nil
}

func fillAttachment(att *msgAttachment, entry *mscfb.File) error {
	switch entry.Name {
	case streamAttachLongName, streamAttachShortName, streamAttachData:
	default:
		return nil
	}

	data, err := readEntry(entry)
	if err != nil {
		return err
	}

	switch entry.Name {
	case streamAttachLongName:
		att.longName = decodeUTF16(data)
	case streamAttachShortName:
		att.shortName = decodeUTF16(data)
	case streamAttachData:
		att.data = data
	}
	return nil
}

// textAttachments returns the texts of plain text attachments in storage order
func textAttachments(attachments map[string]*msgAttachment) []string {
	storages := make([]string, 0, len(attachments))
	for storage := range attachments {
		storages = append(storages, storage)
	}
	sort.Strings(storages)

	texts := []string{}
	for _, storage := range storages {
		att := attachments[storage]
		if !textAttachmentExts[strings.ToLower(filepath.Ext(att.name()))] || att.data == nil {
			continue
		}
		texts = append(texts, utils.NormalizeNewlines(strings.ToValidUTF8(string(att.data), "")))
	}
	return texts
}

// storagePath drops the root storage from an entry path
func storagePath(path []string) []string {
	for len(path) > 0 && path[0] == rootStorage {
		path = path[1:]
	}
	return path
}

func readEntry(entry *mscfb.File) ([]byte, error) {
	data := make([]byte, entry.Size)
	if _, err := io.ReadFull(entry, data); err != nil {
		return nil, fmt.Errorf("failed to read stream %s: %w", entry.Name, err)
	}
	return data, nil
}

func decodeUTF16(data []byte) string {
	out, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(data)
	if err != nil {
		return ""
	}
	return string(bytes.TrimRight(out, "\x00"))
}

func decodeANSI(data []byte) string {
	out, err := charmap.Windows1252.NewDecoder().Bytes(bytes.TrimRight(data, "\x00"))
	if err != nil {
		return ""
	}
	return string(out)
}
