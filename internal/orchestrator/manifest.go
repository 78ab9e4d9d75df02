package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fireslurm/internal/config"

	"gopkg.in/yaml.v3"
)

// ManifestName is written into every run directory.
const ManifestName = "run.yaml"

// Manifest records what a run directory was produced by, so a directory
// found under the log root can be tied back to its job.
type Manifest struct {
	RunID       string    `yaml:"run_id"`
	RunName     string    `yaml:"run_name"`
	Command     string    `yaml:"command,omitempty"`
	Interactive bool      `yaml:"interactive"`
	SimConfig   string    `yaml:"sim_config"`
	SimImage    string    `yaml:"sim_img"`
	SimProgram  string    `yaml:"sim_prog"`
	OverlayPath string    `yaml:"overlay_path"`
	PrintStart  int64     `yaml:"print_start"`
	DryRun      bool      `yaml:"dry_run,omitempty"`
	JobID       string    `yaml:"slurm_job_id,omitempty"`
	StartedAt   time.Time `yaml:"started_at"`
}

// NewManifest describes cfg. The scheduler job id is taken from the
// environment when running inside a batch job.
func NewManifest(cfg config.RunConfig, now time.Time) Manifest {
	return Manifest{
		RunID:       cfg.RunID.String(),
		RunName:     cfg.RunName,
		Command:     cfg.Command,
		Interactive: cfg.Interactive(),
		SimConfig:   cfg.SimConfig,
		SimImage:    cfg.SimImage,
		SimProgram:  cfg.SimProgram,
		OverlayPath: cfg.OverlayPath,
		PrintStart:  cfg.PrintStart,
		DryRun:      cfg.DryRun,
		JobID:       os.Getenv("SLURM_JOB_ID"),
		StartedAt:   now.UTC(),
	}
}

// WriteManifest stores m in dir, atomically.
func WriteManifest(dir string, m Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal run manifest: %w", err)
	}

	path := filepath.Join(dir, ManifestName)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write run manifest: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename run manifest: %w", err)
	}
	return nil
}

// ReadManifest loads the manifest from a run directory.
func ReadManifest(dir string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return m, fmt.Errorf("read run manifest: %w", err)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parse run manifest: %w", err)
	}
	return m, nil
}
