package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/email-triage/internal/adapters/archive"
	"github.com/mikey/email-triage/internal/config"
	"github.com/mikey/email-triage/internal/core"
	"go.uber.org/zap"
)

// ArchiveFactory creates result archives based on configuration
type ArchiveFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewArchiveFactory creates a new archive factory
func NewArchiveFactory(cfg *config.Config, logger *zap.Logger) *ArchiveFactory {
	return &ArchiveFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateArchive creates the configured archive, or nil when archiving is
// disabled
func (f *ArchiveFactory) CreateArchive() (core.ResultArchive, error) {
	archiveCfg, err := f.cfg.GetArchive()
	if err != nil {
		return nil, err
	}
	if !archiveCfg.Enabled {
		f.logger.Info("Result archive disabled")
		return nil, nil
	}

	f.logger.Info("Using result archive",
		zap.String("type", archiveCfg.Type),
		zap.Duration("ttl", archiveCfg.TTL))

	switch archiveCfg.Type {
	case "memory":
		return archive.NewMemoryArchive(f.logger, archiveCfg.CleanupFrequency), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(archiveCfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return archive.NewSQLiteArchive(archiveCfg.SQLitePath, f.logger, archiveCfg.CleanupFrequency)
	case "mysql":
		return archive.NewMySQLArchive(archiveCfg.MySQLDSN, f.logger, archiveCfg.CleanupFrequency)
	default:
		return nil, fmt.Errorf("unsupported archive type: %s", archiveCfg.Type)
	}
}

// ServiceOptions returns the triage service options derived from configuration
func (f *ArchiveFactory) ServiceOptions() (core.ServiceOptions, error) {
	classifierCfg, err := f.cfg.GetClassifier()
	if err != nil {
		return core.ServiceOptions{}, err
	}
	archiveCfg, err := f.cfg.GetArchive()
	if err != nil {
		return core.ServiceOptions{}, err
	}
	return core.ServiceOptions{
		ClassifyTimeout: classifierCfg.Timeout,
		ArchiveEnabled:  archiveCfg.Enabled,
		ArchiveTTL:      archiveCfg.TTL,
	}, nil
}
