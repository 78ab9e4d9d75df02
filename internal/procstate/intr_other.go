//go:build !linux

package procstate

import "fireslurm/internal/logging"

// RemapInterruptKey is a no-op off Linux.
func RemapInterruptKey(fd uintptr, key byte, logger *logging.Logger) (restore func() error, err error) {
	return func() error { return nil }, nil
}
