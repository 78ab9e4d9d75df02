package config

import (
	"fireslurm/internal/validate"
)

// SyncConfig describes versioning a FireSim infrasetup output into a
// simulation-config root.
type SyncConfig struct {
	ConfigRoot       string // parent of the versioned sim-config directories
	InfrasetupTarget string // directory holding driver-bundle.tar.gz and firesim.tar.gz
	Name             string
	Description      string
	Verbosity        int
	DryRun           bool
}

// NewSync normalises and validates a sync configuration.
func NewSync(s SyncConfig) (SyncConfig, error) {
	s.ConfigRoot = absPath(s.ConfigRoot)
	s.InfrasetupTarget = absPath(s.InfrasetupTarget)
	if err := s.Validate(); err != nil {
		return SyncConfig{}, err
	}
	return s, nil
}

// Validate checks the sync fields.
func (s SyncConfig) Validate() error {
	if s.ConfigRoot == "" {
		return invalid("sim-config", s.ConfigRoot, "a configuration root is required")
	}
	if !validate.IsReadableDir(s.InfrasetupTarget) {
		return invalid("infrasetup-target", s.InfrasetupTarget, "must be a readable directory")
	}
	if !validate.IsRunName(s.Name) {
		return invalid("config-name", s.Name, "must be non-empty and match [A-Za-z0-9._-]+")
	}
	return nil
}
