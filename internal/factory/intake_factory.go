package factory

import (
	"fmt"
	"os"

	"github.com/mikey/email-triage/internal/adapters/intake"
	"github.com/mikey/email-triage/internal/config"
	"github.com/mikey/email-triage/internal/ports"
	"go.uber.org/zap"
)

// IntakeFactory creates email intakes based on configuration
type IntakeFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	service ports.Pipeline
}

// NewIntakeFactory creates a new intake factory
func NewIntakeFactory(cfg *config.Config, logger *zap.Logger, service ports.Pipeline) *IntakeFactory {
	return &IntakeFactory{
		cfg:     cfg,
		logger:  logger,
		service: service,
	}
}

// CreateEmailIntake creates an email intake based on the configuration
func (f *IntakeFactory) CreateEmailIntake() (ports.EmailIntake, error) {
	intakeType := f.cfg.GetString("server.intake_type")

	switch intakeType {
	case "smtp":
		headers := f.cfg.GetHeaders()
		relay := f.cfg.GetRelay()
		return intake.NewSMTPIntake(
			f.service,
			f.logger,
			f.cfg.GetString("server.listen_address"),
			f.cfg.GetString("server.domain"),
			intake.Headers{
				Primary:    headers.Primary,
				Sub:        headers.Sub,
				Confidence: headers.Confidence,
				Duplicate:  headers.Duplicate,
			},
			intake.Relay{
				Enabled: relay.Enabled,
				Address: relay.Address,
				Port:    relay.Port,
			},
		), nil
	case "cli":
		return intake.NewCliIntake(f.service, f.logger, os.Stdout), nil
	default:
		return nil, fmt.Errorf("unsupported intake type: %s", intakeType)
	}
}
