// Package procstate manages process-wide state that a run has to alter
// temporarily: interrupt delivery, the terminal's interrupt key and the
// dynamic-library search path. Every mutation hands back a function that
// restores the captured previous value. None of this state is run-scoped,
// so two runs must never overlap in one process.
package procstate

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"fireslurm/internal/logging"
)

var masked atomic.Int32

// InterruptsMasked reports whether a MaskInterrupts scope is active.
func InterruptsMasked() bool {
	return masked.Load() > 0
}

// MaskInterrupts swallows SIGINT until the returned function is called.
// Outside the scope SIGINT keeps its default action and terminates the
// process. Children started while the mask is held must not share the
// terminal's foreground process group or ^C would still reach them; see
// executor.LocalExecutor. Such children cannot read the terminal either, so
// privileged tools run under the mask need passwordless sudo.
func MaskInterrupts(logger *logging.Logger) (unmask func()) {
	if logger == nil {
		logger = logging.Default("procstate")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT)
	masked.Add(1)
	logger.Printf("ignoring SIGINT, C-c will not work")

	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-sigCh:
				logger.Warnf("received %v during a critical section, ignoring it", sig)
			case <-done:
				return
			}
		}
	}()

	var once atomic.Bool
	return func() {
		if !once.CompareAndSwap(false, true) {
			return
		}
		signal.Stop(sigCh)
		close(done)
		masked.Add(-1)
		logger.Printf("SIGINT restored, C-c works again")
	}
}
