package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/email-triage/internal/adapters/fingerprint"
	"github.com/mikey/email-triage/internal/adapters/mailfile"
	"github.com/mikey/email-triage/internal/config"
	"github.com/mikey/email-triage/internal/core"
	"github.com/mikey/email-triage/internal/factory"
	"github.com/mikey/email-triage/internal/logging"
	"github.com/mikey/email-triage/internal/metrics"
	"github.com/mikey/email-triage/internal/ports"
	"github.com/mikey/email-triage/internal/prompt"
	"github.com/mikey/email-triage/internal/taxonomy"
	"github.com/mikey/email-triage/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
// for the triage daemon
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideCommon(container); err != nil {
		return nil, err
	}

	// Register archive
	if err := container.Provide(factory.NewArchiveFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.ArchiveFactory) (core.ResultArchive, error) {
		return f.CreateArchive()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.ArchiveFactory) (core.ServiceOptions, error) {
		return f.ServiceOptions()
	}); err != nil {
		return nil, err
	}

	// Register metrics
	if err := container.Provide(func(store *fingerprint.MemoryStore) *metrics.Metrics {
		return metrics.New(store)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(m *metrics.Metrics) core.Observer { return m }); err != nil {
		return nil, err
	}

	// Register triage service
	if err := container.Provide(core.NewTriageService); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s *core.TriageService) ports.Pipeline { return s }); err != nil {
		return nil, err
	}

	// Register email intake
	if err := container.Provide(factory.NewIntakeFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.IntakeFactory) (ports.EmailIntake, error) {
		return f.CreateEmailIntake()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideCommon registers the components shared by the daemon and the CLI.
// A *config.Config and a *zap.Logger must be provided by the caller.
func provideCommon(container *dig.Container) error {
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return err
	}

	// Register taxonomy
	if err := container.Provide(factory.NewTaxonomy); err != nil {
		return err
	}
	if err := container.Provide(func(t *taxonomy.Taxonomy) core.Taxonomy { return t }); err != nil {
		return err
	}

	// Register prompt builder
	if err := container.Provide(func(t *taxonomy.Taxonomy, tp *utils.TextProcessor) *prompt.Builder {
		return prompt.NewBuilder(t, tp)
	}); err != nil {
		return err
	}

	// Register classifier
	if err := container.Provide(factory.NewClassifierFactory); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.ClassifierFactory) (core.Classifier, error) {
		return f.CreateClassifier()
	}); err != nil {
		return err
	}

	// Register fingerprint store, one per process
	if err := container.Provide(fingerprint.NewMemoryStore); err != nil {
		return err
	}
	if err := container.Provide(func(s *fingerprint.MemoryStore) core.FingerprintStore { return s }); err != nil {
		return err
	}

	// Register mail file decoder
	if err := container.Provide(func(logger *zap.Logger) core.TextExtractor {
		return mailfile.NewDecoder(logger)
	}); err != nil {
		return err
	}

	return nil
}
