package slurm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fireslurm/internal/bundle"
	"fireslurm/internal/config"
	"fireslurm/internal/executor"
	"fireslurm/internal/logging"
)

// Submitter hands runs to the scheduler.
type Submitter struct {
	Runner executor.Runner
	Logger *logging.Logger
	// Package installs the FireSlurm binary next to the simulation config
	// and returns its path. Defaults to bundle.Package.
	Package func(simConfig string) (string, error)
}

func (s *Submitter) logger() *logging.Logger {
	if s.Logger == nil {
		s.Logger = logging.Default("slurm")
	}
	return s.Logger
}

func (s *Submitter) pack(simConfig string) (string, error) {
	if s.Package != nil {
		return s.Package(simConfig)
	}
	return bundle.Package(simConfig)
}

// Submit packages the binary, writes the launch script and runs sbatch. In
// dry-run mode sbatch still runs, with --test-only, and id extraction is
// skipped.
func (s *Submitter) Submit(ctx context.Context, cfg config.BatchConfig) (JobInfo, error) {
	logger := s.logger()
	job := JobInfo{ID: NoJobID, RunID: cfg.RunID}

	if err := cfg.Validate(); err != nil {
		return job, err
	}

	binary, err := s.pack(cfg.SimConfig)
	if err != nil {
		return job, fmt.Errorf("package fireslurm: %w", err)
	}
	script, err := WriteLaunchScript(cfg, binary)
	if err != nil {
		return job, err
	}
	logger.Printf("wrote launch script %s", script)

	// sbatch does not create the directories of --output and --error.
	for _, p := range []string{cfg.Output, cfg.Error} {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return job, fmt.Errorf("create capture directory: %w", err)
		}
	}

	cmd := SbatchCommand(cfg, script)
	logger.Debugf("%s", cmd)
	res, err := s.Runner.Run(ctx, cmd)
	if err != nil {
		return job, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}
	logger.Printf("sbatch stdout: %s", strings.TrimSpace(res.Stdout))
	if stderr := strings.TrimSpace(res.Stderr); stderr != "" {
		logger.Printf("sbatch stderr: %s", stderr)
	}

	if cfg.DryRun {
		return job, nil
	}

	id, err := ParseJobID(res.Stdout)
	if err != nil {
		return job, err
	}
	job.ID = id
	logger.Printf("submitted %s", job)
	logger.Printf("stdout will be in %s", ExpandJobID(cfg.Output, id))
	logger.Printf("stderr will be in %s", ExpandJobID(cfg.Error, id))

	if err := s.record(cfg, job, script); err != nil {
		// The job is already queued.
		logger.Warnf("job ledger: %v", err)
	}
	return job, nil
}

func (s *Submitter) record(cfg config.BatchConfig, job JobInfo, script string) error {
	ledger, err := OpenLedger(LedgerPath(cfg.LogDir))
	if err != nil {
		return err
	}
	defer ledger.Close()
	return ledger.Append(LedgerEntry{
		JobID:      job.ID,
		RunID:      job.RunID.String(),
		RunName:    cfg.RunName,
		Command:    cfg.Command,
		Partitions: cfg.Partitions,
		NodeList:   cfg.NodeList,
		Script:     script,
		Output:     cfg.Output,
		Error:      cfg.Error,
	})
}

// Interactive runs the simulation under srun with the operator's terminal
// attached. An empty command gives an interactive console.
func (s *Submitter) Interactive(ctx context.Context, attacher executor.Attacher, cfg config.RunConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	binary, err := s.pack(cfg.SimConfig)
	if err != nil {
		return fmt.Errorf("package fireslurm: %w", err)
	}
	cmd := SrunCommand(cfg, binary)
	s.logger().Printf("%s", cmd)
	if err := attacher.Attach(ctx, cmd); err != nil {
		return fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}
	return nil
}
