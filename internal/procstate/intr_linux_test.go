//go:build linux

package procstate

import (
	"testing"

	"fireslurm/internal/logging"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

func TestRemapInterruptKeyOnTerminal(t *testing.T) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		t.Skipf("no pseudo-terminal available: %v", err)
	}
	defer ptmx.Close()
	defer tty.Close()

	before, err := unix.IoctlGetTermios(int(tty.Fd()), unix.TCGETS)
	if err != nil {
		t.Fatalf("read termios: %v", err)
	}

	restore, err := RemapInterruptKey(tty.Fd(), FireSimInterruptKey, logging.Discard())
	if err != nil {
		t.Fatalf("RemapInterruptKey: %v", err)
	}

	during, err := unix.IoctlGetTermios(int(tty.Fd()), unix.TCGETS)
	if err != nil {
		t.Fatalf("read termios: %v", err)
	}
	if during.Cc[unix.VINTR] != FireSimInterruptKey {
		t.Errorf("VINTR = %#x, want %#x", during.Cc[unix.VINTR], FireSimInterruptKey)
	}

	if err := restore(); err != nil {
		t.Fatalf("restore: %v", err)
	}
	after, err := unix.IoctlGetTermios(int(tty.Fd()), unix.TCGETS)
	if err != nil {
		t.Fatalf("read termios: %v", err)
	}
	if after.Cc[unix.VINTR] != before.Cc[unix.VINTR] {
		t.Errorf("VINTR after restore = %#x, want %#x", after.Cc[unix.VINTR], before.Cc[unix.VINTR])
	}
}
