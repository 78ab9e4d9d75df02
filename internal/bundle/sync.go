package bundle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fireslurm/internal/config"
	"fireslurm/internal/logging"
	"fireslurm/internal/logrotate"
)

// Archives produced by FireSim's infrasetup, in extraction order.
const (
	DriverBundle    = "driver-bundle.tar.gz"
	RuntimeBundle   = "firesim.tar.gz"
	DescriptionName = "description.txt"
)

// Syncer versions infrasetup output into a simulation-config root.
type Syncer struct {
	Logger *logging.Logger
	Now    func() time.Time
}

// Sync creates <root>/<name><timestamp>, points <root>/latest at it, unpacks
// both infrasetup archives into it and records the description. It returns
// the new configuration directory, which is what runs take as --sim-config.
func (s *Syncer) Sync(ctx context.Context, cfg config.SyncConfig) (string, error) {
	logger := s.Logger
	if logger == nil {
		logger = logging.Default("sync")
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	archives := []string{
		filepath.Join(cfg.InfrasetupTarget, DriverBundle),
		filepath.Join(cfg.InfrasetupTarget, RuntimeBundle),
	}
	for _, a := range archives {
		if _, err := os.Stat(a); err != nil {
			return "", fmt.Errorf("infrasetup output incomplete: %w", err)
		}
	}

	if cfg.DryRun {
		logger.Printf("dry-run: would version %s into %s as %s", cfg.InfrasetupTarget, cfg.ConfigRoot, cfg.Name)
		return "", nil
	}

	rotator := &logrotate.Rotator{Now: s.Now, Logger: logger.Named("logrotate")}
	dir, err := rotator.Rotate(cfg.ConfigRoot, cfg.Name)
	if err != nil {
		return "", fmt.Errorf("create configuration directory: %w", err)
	}

	for _, a := range archives {
		logger.Printf("extracting %s", a)
		if err := Extract(ctx, a, dir); err != nil {
			return dir, err
		}
	}

	desc := cfg.Description
	if desc != "" && desc[len(desc)-1] != '\n' {
		desc += "\n"
	}
	if err := os.WriteFile(filepath.Join(dir, DescriptionName), []byte(desc), 0644); err != nil {
		return dir, fmt.Errorf("write description: %w", err)
	}

	if err := config.CheckSimConfig(dir); err != nil {
		logger.Warnf("%s is not a usable simulation config yet: %v", dir, err)
	}
	logger.Printf("synced %s into %s", cfg.Name, dir)
	return dir, nil
}
