// Package fpga reprograms the VCU118 board with a simulation bitstream.
//
// The flashing tool reports success even when it did nothing, for example
// when handed a directory instead of a bitstream. A zero exit status is
// therefore not proof that the board was reconfigured. The only failure
// class this package can catch is a bitstream that is missing or not a
// regular file; anything else the tool gets wrong goes unnoticed until the
// simulation fails to start.
package fpga

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"fireslurm/internal/config"
	"fireslurm/internal/executor"
	"fireslurm/internal/logging"
	"fireslurm/internal/validate"
)

// ErrMissingBitstream is returned before any tool runs when the bitstream is
// absent or not a readable regular file.
var ErrMissingBitstream = errors.New("missing bitstream")

// Fixed PCIe location of the board on every FireSim host.
const (
	FlashTool  = "firesim-xvsecctl-flash-fpga"
	PermsTool  = "firesim-change-pcie-perms"
	BusID      = "0x01"
	DeviceID   = "0x00"
	FunctionID = "0x1"
	PCIeBDF    = "0000:01:00:0"
)

// Reconfigurer drives the privileged flashing tools. Dry-run behaviour is
// delegated to the Runner.
type Reconfigurer struct {
	Runner executor.Runner
	Logger *logging.Logger
}

// Commands returns the flash and permission commands for a bitstream.
func Commands(bitstream string) []executor.Command {
	return []executor.Command{
		executor.Sudo(FlashTool, BusID, DeviceID, FunctionID, bitstream),
		executor.Sudo(PermsTool, PCIeBDF),
	}
}

// Reconfigure flashes simConfig's bitstream and grants access to the board.
func (r *Reconfigurer) Reconfigure(ctx context.Context, simConfig string) error {
	logger := r.Logger
	if logger == nil {
		logger = logging.Default("fpga")
	}

	bitstream, err := filepath.Abs(config.BitstreamPath(simConfig))
	if err != nil {
		return fmt.Errorf("resolve bitstream: %w", err)
	}
	if !validate.IsReadableFile(bitstream) {
		return fmt.Errorf("%w: %s", ErrMissingBitstream, bitstream)
	}

	steps := []string{"flash FPGA", "change PCIe permissions"}
	for i, cmd := range Commands(bitstream) {
		logger.Printf("%s: %s", steps[i], cmd)
		res, err := r.Runner.Run(ctx, cmd)
		if err != nil {
			return fmt.Errorf("%s: %w", steps[i], err)
		}
		if !res.Skipped {
			logger.Printf("%s stdout: %s", steps[i], res.Stdout)
			logger.Debugf("%s stderr: %s", steps[i], res.Stderr)
		}
	}
	return nil
}
