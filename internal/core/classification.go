package core

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// ParsedDetails is reported for every classification decoded from a
// successful classifier call
const ParsedDetails = "Classifier analysis confirms the classification."

var confidencePattern = regexp.MustCompile(`Confidence:\s*([\d.]+)`)

// Taxonomy is the subset of the request type taxonomy the parser needs
type Taxonomy interface {
	IsRequestType(label string) bool
	AllowsSubType(requestType, sub string) bool
	RequestTypes() []string
	SubRequestTypes(requestType string) []string
}

// ParseClassification decodes a three-line classifier response:
//
//	<primary request type>
//	<sub request type, may be omitted>
//	Confidence: <decimal>
//
// It never fails. Missing or invalid parts come back as "Unknown" or nil.
func ParseClassification(raw string, tax Taxonomy) ClassificationResult {
	lines := nonBlankLines(raw)

	result := ClassificationResult{
		PrimaryRequest: PrimaryUnknown,
		Details:        ParsedDetails,
	}

	// A first line outside the taxonomy is reported as Unknown rather than
	// passed through, so primary_request only ever holds a taxonomy label,
	// Unknown or Error.
	if len(lines) > 0 && tax.IsRequestType(lines[0]) {
		result.PrimaryRequest = lines[0]
	}

	if len(lines) > 1 && tax.AllowsSubType(result.PrimaryRequest, lines[1]) {
		sub := lines[1]
		result.SubRequest = &sub
	}

	if len(lines) > 2 {
		result.Confidence = parseConfidence(lines[2])
	}

	return result
}

// ClassificationFailure builds the result reported when the classifier call
// itself failed
func ClassificationFailure(err error) ClassificationResult {
	zero := 0.0
	return ClassificationResult{
		PrimaryRequest: PrimaryError,
		Confidence:     &zero,
		Details:        "Error calling classifier: " + failureDetail(err),
	}
}

func failureDetail(err error) string {
	var be *BackendError
	if errors.As(err, &be) {
		if be.StatusCode > 0 {
			return strconv.Itoa(be.StatusCode) + " " + be.Message
		}
		return be.Message
	}
	return err.Error()
}

// parseConfidence reads the value after "Confidence:". Values outside [0,1]
// are returned unchanged.
func parseConfidence(line string) *float64 {
	m := confidencePattern.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &v
}

func nonBlankLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
