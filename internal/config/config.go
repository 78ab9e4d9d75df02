// Package config defines the validated records that describe a FireSlurm
// run: the shared base configuration, the run and batch specialisations
// built on top of it, and the sync configuration.
//
// Records are checked when they are constructed and are passed by value
// afterwards. Nothing in this repository mutates a record once built.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"fireslurm/internal/validate"

	"github.com/google/uuid"
)

// ErrInvalid is matched by every configuration validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Simulation-config directory layout.
const (
	BoardDir      = "xilinx_vcu118"
	BitstreamName = "firesim.bit"
	DriverName    = "FireSim-xilinx_vcu118"
)

// DefaultPartition is used when neither flags nor the defaults file name one.
const DefaultPartition = "firesim"

// FieldError reports which field failed validation.
type FieldError struct {
	Field  string
	Value  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Is makes FieldError match ErrInvalid.
func (e *FieldError) Is(target error) bool {
	return target == ErrInvalid
}

func invalid(field, value, reason string) error {
	return &FieldError{Field: field, Value: value, Reason: reason}
}

// Base is the configuration every FireSlurm operation needs.
type Base struct {
	OverlayPath string // tree copied onto the simulation disk image
	SimConfig   string // bitstream, simulation driver and its libraries
	SimImage    string // simulation disk image (*.img)
	SimProgram  string // combined OpenSBI firmware and Linux kernel
	LogDir      string // root of the per-run log directories
	Partitions  []string
	NodeList    []string
	Verbosity   int
	DryRun      bool
	RunID       uuid.UUID
}

// NewBase normalises paths to absolute form, assigns a RunID when none is
// set and validates the result.
func NewBase(b Base) (Base, error) {
	b = b.normalize()
	if err := b.Validate(); err != nil {
		return Base{}, err
	}
	return b, nil
}

func (b Base) normalize() Base {
	b.OverlayPath = absPath(b.OverlayPath)
	b.SimConfig = absPath(b.SimConfig)
	b.SimImage = absPath(b.SimImage)
	b.SimProgram = absPath(b.SimProgram)
	b.LogDir = absPath(b.LogDir)
	b.Partitions = cleanList(b.Partitions)
	b.NodeList = cleanList(b.NodeList)
	if len(b.Partitions) == 0 {
		b.Partitions = []string{DefaultPartition}
	}
	if b.RunID == uuid.Nil {
		b.RunID = NewRunID()
	}
	return b
}

// Validate checks every path field against its predicate.
func (b Base) Validate() error {
	if !validate.IsReadableDir(b.OverlayPath) {
		return invalid("overlay-path", b.OverlayPath, "must be a readable directory")
	}
	if err := CheckSimConfig(b.SimConfig); err != nil {
		return err
	}
	if !validate.IsReadableFile(b.SimImage) || filepath.Ext(b.SimImage) != ".img" {
		return invalid("sim-img", b.SimImage, "must be a readable .img file")
	}
	if !validate.IsExecutableFile(b.SimProgram) {
		return invalid("sim-prog", b.SimProgram, "must be a readable, executable file")
	}
	if !validate.IsReadableDir(b.LogDir) || !validate.IsWritableDir(b.LogDir) {
		return invalid("log-dir", b.LogDir, "must be a readable and writable directory")
	}
	if len(b.Partitions) == 0 {
		return invalid("partition", "", "at least one partition is required")
	}
	for _, p := range b.Partitions {
		if strings.ContainsAny(p, ", \t\n") {
			return invalid("partition", p, "must not contain commas or whitespace")
		}
	}
	for _, n := range b.NodeList {
		if strings.ContainsAny(n, " \t\n") {
			return invalid("nodelist", n, "must not contain whitespace")
		}
	}
	if b.Verbosity < 0 {
		return invalid("verbosity", fmt.Sprint(b.Verbosity), "must not be negative")
	}
	if b.RunID == uuid.Nil {
		return invalid("run-id", b.RunID.String(), "must be set")
	}
	return nil
}

// CheckSimConfig checks the layout of a simulation-config directory:
//
//	<dir>/
//	├── FireSim-xilinx_vcu118
//	├── *.so*
//	└── xilinx_vcu118/
//	    └── firesim.bit
func CheckSimConfig(dir string) error {
	switch {
	case !validate.IsReadableDir(dir):
		return invalid("sim-config", dir, "must be a readable directory")
	case !validate.IsReadableDir(filepath.Join(dir, BoardDir)):
		return invalid("sim-config", dir, "missing readable "+BoardDir+" directory")
	case !validate.IsExecutableFile(filepath.Join(dir, DriverName)):
		return invalid("sim-config", dir, "missing executable "+DriverName)
	case !validate.IsReadableFile(BitstreamPath(dir)):
		return invalid("sim-config", dir, "missing readable "+BoardDir+"/"+BitstreamName)
	}
	return nil
}

// BitstreamPath returns the bitstream location inside a sim-config directory.
func BitstreamPath(simConfig string) string {
	return filepath.Join(simConfig, BoardDir, BitstreamName)
}

// DriverPath returns the simulation driver inside a sim-config directory.
func DriverPath(simConfig string) string {
	return filepath.Join(simConfig, DriverName)
}

// VerboseFlag renders the verbosity as a short flag ("-vv"), or "" when zero.
func (b Base) VerboseFlag() string {
	if b.Verbosity <= 0 {
		return ""
	}
	return "-" + strings.Repeat("v", b.Verbosity)
}

func absPath(p string) string {
	if p == "" {
		return ""
	}
	p = expandHome(p)
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	return abs
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
