package core

import (
	"regexp"
	"strings"
)

var (
	dealPattern   = regexp.MustCompile(`Deal:\s*([\p{L}\p{N}_\s\-]+)`)
	amountPattern = regexp.MustCompile(`\$\s*([\d,]+(?:\.\d{2})?)`)
	datePattern   = regexp.MustCompile(`(\d{1,2}/\d{1,2}/\d{4})`)
)

// ExtractFields pulls the deal name, amount and expiration date out of text.
// Only the first match of each pattern is used.
func ExtractFields(text string) ExtractedFields {
	var fields ExtractedFields

	if m := dealPattern.FindStringSubmatch(text); m != nil {
		deal := strings.TrimSpace(m[1])
		fields.DealName = &deal
	}

	if m := amountPattern.FindStringSubmatch(text); m != nil {
		amount := m[1]
		fields.Amount = &amount
	}

	// No calendar check, 13/40/2099 is kept as written
	if m := datePattern.FindStringSubmatch(text); m != nil {
		date := m[1]
		fields.ExpirationDate = &date
	}

	return fields
}
