package taxonomy

import (
	"strings"

	"go.uber.org/zap"
)

// Default request types, in the order they are offered to the classifier
var defaultRequestTypes = []string{
	"Adjustment",
	"AU Transfer",
	"Closing Notice",
	"Commitment Change",
	"Fee Payment",
	"Money Movement Inbound",
	"Money Movement Outbound",
}

var defaultSubRequestTypes = map[string][]string{
	"Closing Notice":          {"Reallocation Fees", "Amendment Fees", "Reallocation Principal"},
	"Commitment Change":       {"Cashless Roll", "Decrease", "Increase"},
	"Fee Payment":             {"Ongoing Fee", "Letter of Credit Fee"},
	"Money Movement Inbound":  {"Principal", "Interest", "Principal+Interest", "Principal+Interest+Fee"},
	"Money Movement Outbound": {"Timebound", "Foreign Currency"},
}

// Taxonomy holds the request types an email can be classified into and the
// sub-types allowed under each of them
type Taxonomy struct {
	requestTypes    []string
	subRequestTypes map[string][]string
}

// Default returns the built-in loan servicing taxonomy
func Default() *Taxonomy {
	return New(defaultRequestTypes, defaultSubRequestTypes, nil)
}

// New creates a taxonomy from the given request types and sub-type mapping.
// Labels are trimmed; empty labels and sub-type entries for unknown request
// types are dropped.
func New(requestTypes []string, subRequestTypes map[string][]string, logger *zap.Logger) *Taxonomy {
	t := &Taxonomy{
		requestTypes:    make([]string, 0, len(requestTypes)),
		subRequestTypes: make(map[string][]string, len(subRequestTypes)),
	}

	known := make(map[string]bool, len(requestTypes))
	for _, rt := range requestTypes {
		rt = strings.TrimSpace(rt)
		if rt == "" || known[rt] {
			continue
		}
		known[rt] = true
		t.requestTypes = append(t.requestTypes, rt)
	}

	for primary, subs := range subRequestTypes {
		primary = strings.TrimSpace(primary)
		if !known[primary] {
			if logger != nil {
				logger.Warn("Ignoring sub request types for unknown request type",
					zap.String("request_type", primary))
			}
			continue
		}
		allowed := make([]string, 0, len(subs))
		for _, s := range subs {
			if s = strings.TrimSpace(s); s != "" {
				allowed = append(allowed, s)
			}
		}
		if len(allowed) > 0 {
			t.subRequestTypes[primary] = allowed
		}
	}

	if logger != nil {
		logger.Info("Initialized taxonomy",
			zap.Strings("request_types", t.requestTypes),
			zap.Int("with_sub_types", len(t.subRequestTypes)))
	}

	return t
}

// RequestTypes returns a copy of the request types in their configured order
func (t *Taxonomy) RequestTypes() []string {
	out := make([]string, len(t.requestTypes))
	copy(out, t.requestTypes)
	return out
}

// SubRequestTypes returns a copy of the allowed sub-types for a request type,
// or nil when the request type has none
func (t *Taxonomy) SubRequestTypes(requestType string) []string {
	subs, ok := t.subRequestTypes[requestType]
	if !ok {
		return nil
	}
	out := make([]string, len(subs))
	copy(out, subs)
	return out
}

// IsRequestType checks if label is one of the configured request types
func (t *Taxonomy) IsRequestType(label string) bool {
	for _, rt := range t.requestTypes {
		if rt == label {
			return true
		}
	}
	return false
}

// AllowsSubType checks if sub is a valid sub-type of requestType. Matching is
// exact; request types without a sub-type list allow nothing.
func (t *Taxonomy) AllowsSubType(requestType, sub string) bool {
	if sub == "" {
		return false
	}
	for _, allowed := range t.subRequestTypes[requestType] {
		if allowed == sub {
			return true
		}
	}
	return false
}
