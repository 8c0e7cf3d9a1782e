package factory

import (
	"github.com/mikey/email-triage/internal/config"
	"github.com/mikey/email-triage/internal/taxonomy"
	"go.uber.org/zap"
)

// NewTaxonomy builds the taxonomy from configuration. Request types and
// sub-types each fall back to the built-in ones when not configured.
func NewTaxonomy(cfg *config.Config, logger *zap.Logger) (*taxonomy.Taxonomy, error) {
	taxCfg, err := cfg.GetTaxonomy()
	if err != nil {
		return nil, err
	}

	builtin := taxonomy.Default()

	requestTypes := taxCfg.RequestTypes
	if len(requestTypes) == 0 {
		requestTypes = builtin.RequestTypes()
	}

	subRequestTypes := taxCfg.SubRequestTypes
	if len(subRequestTypes) == 0 {
		subRequestTypes = make(map[string][]string)
		for _, rt := range builtin.RequestTypes() {
			if subs := builtin.SubRequestTypes(rt); subs != nil {
				subRequestTypes[rt] = subs
			}
		}
	}

	return taxonomy.New(requestTypes, subRequestTypes, logger), nil
}
