package config

import (
	"path/filepath"

	"fireslurm/internal/validate"
)

// Default scheduler capture paths, relative to the log directory. "%j" is
// expanded by the scheduler to the job id.
const (
	DefaultOutput = "slurm-log/%j.out"
	DefaultError  = "slurm-log/%j.err"
)

// RunConfig describes one simulation run. An empty Command means the run is
// interactive: the operator is attached to the simulated console.
type RunConfig struct {
	Base
	RunName    string
	Command    string
	PrintStart int64 // cycle at which the driver starts printing
	Output     string
	Error      string
}

// NewRun normalises and validates a run configuration.
func NewRun(r RunConfig) (RunConfig, error) {
	base, err := NewBase(r.Base)
	if err != nil {
		return RunConfig{}, err
	}
	r.Base = base
	r.Output = capturePath(r.LogDir, r.Output, DefaultOutput)
	r.Error = capturePath(r.LogDir, r.Error, DefaultError)
	if err := r.Validate(); err != nil {
		return RunConfig{}, err
	}
	return r, nil
}

// Validate checks the base fields and the run name.
func (r RunConfig) Validate() error {
	if err := r.Base.Validate(); err != nil {
		return err
	}
	if !validate.IsRunName(r.RunName) {
		return invalid("run-name", r.RunName, "must be non-empty and match [A-Za-z0-9._-]+")
	}
	return nil
}

// Interactive reports whether no command was supplied. Only the exactly
// empty string counts; a whitespace-only command is still a command.
func (r RunConfig) Interactive() bool {
	return r.Command == ""
}

// ToBatch converts the run into a batch configuration. It fails for
// interactive runs because nobody is attached to a batch job's terminal.
func (r RunConfig) ToBatch() (BatchConfig, error) {
	b := BatchConfig{
		Base:       r.Base,
		RunName:    r.RunName,
		Command:    r.Command,
		PrintStart: r.PrintStart,
		Output:     r.Output,
		Error:      r.Error,
	}
	if err := b.Validate(); err != nil {
		return BatchConfig{}, err
	}
	return b, nil
}

// BatchConfig describes a run submitted to the scheduler. It carries the
// same fields as RunConfig and additionally requires a command.
type BatchConfig struct {
	Base
	RunName    string
	Command    string
	PrintStart int64
	Output     string
	Error      string
}

// NewBatch normalises and validates a batch configuration.
func NewBatch(b BatchConfig) (BatchConfig, error) {
	run, err := NewRun(b.ToRun())
	if err != nil {
		return BatchConfig{}, err
	}
	return run.ToBatch()
}

// Validate checks the run invariants plus the non-empty command.
func (b BatchConfig) Validate() error {
	if err := b.ToRun().Validate(); err != nil {
		return err
	}
	if b.Command == "" {
		return invalid("cmd", b.Command, "a batch job needs a command to run")
	}
	return nil
}

// ToRun converts the batch configuration back into a run configuration.
// This never fails: every valid batch configuration is a valid run.
func (b BatchConfig) ToRun() RunConfig {
	return RunConfig{
		Base:       b.Base,
		RunName:    b.RunName,
		Command:    b.Command,
		PrintStart: b.PrintStart,
		Output:     b.Output,
		Error:      b.Error,
	}
}

func capturePath(logDir, p, fallback string) string {
	if p == "" {
		p = fallback
	}
	p = expandHome(p)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(logDir, p)
}
