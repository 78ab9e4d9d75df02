//go:build linux

package procstate

import (
	"fmt"

	"fireslurm/internal/logging"

	"github.com/moby/term"
	"golang.org/x/sys/unix"
)

// RemapInterruptKey sets the terminal's interrupt character (VINTR) on fd
// to key and returns a function restoring the character captured here. It
// is a no-op when fd is not a terminal.
func RemapInterruptKey(fd uintptr, key byte, logger *logging.Logger) (restore func() error, err error) {
	if logger == nil {
		logger = logging.Default("procstate")
	}
	if !term.IsTerminal(fd) {
		logger.Debugf("fd %d is not a terminal, leaving the interrupt key alone", fd)
		return func() error { return nil }, nil
	}

	tio, err := unix.IoctlGetTermios(int(fd), unix.TCGETS)
	if err != nil {
		return nil, fmt.Errorf("read terminal attributes: %w", err)
	}
	old := tio.Cc[unix.VINTR]
	tio.Cc[unix.VINTR] = key
	if err := unix.IoctlSetTermios(int(fd), unix.TCSETS, tio); err != nil {
		return nil, fmt.Errorf("set interrupt key: %w", err)
	}
	logger.Warnf("interrupt key changed from %s to %s", KeyName(old), KeyName(key))

	return func() error {
		tio, err := unix.IoctlGetTermios(int(fd), unix.TCGETS)
		if err != nil {
			return fmt.Errorf("read terminal attributes: %w", err)
		}
		tio.Cc[unix.VINTR] = old
		if err := unix.IoctlSetTermios(int(fd), unix.TCSETS, tio); err != nil {
			return fmt.Errorf("restore interrupt key: %w", err)
		}
		logger.Warnf("interrupt key changed back to %s", KeyName(old))
		return nil
	}, nil
}
