package executor

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"syscall"

	"fireslurm/internal/logging"
	"fireslurm/internal/procstate"
)

// LocalExecutor runs commands directly on the host.
type LocalExecutor struct {
	logger *logging.Logger
	dryRun bool
}

// NewLocalExecutor creates a local command executor. In dry-run mode
// commands are logged and reported as skipped unless they are forced.
func NewLocalExecutor(logger *logging.Logger, dryRun bool) *LocalExecutor {
	if logger == nil {
		logger = logging.Default("exec")
	}
	return &LocalExecutor{logger: logger, dryRun: dryRun}
}

// DryRun reports whether the executor skips unforced commands.
func (le *LocalExecutor) DryRun() bool {
	return le.dryRun
}

// Run executes cmd, capturing stdout and stderr.
func (le *LocalExecutor) Run(ctx context.Context, cmd Command) (Result, error) {
	if le.dryRun && !cmd.Force {
		le.logger.Printf("dry-run: %s", cmd)
		return Result{Skipped: true}, nil
	}

	le.logger.Debugf("exec: %s", cmd)

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	if procstate.InterruptsMasked() {
		// Keep terminal-generated SIGINT away from the child as well.
		c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}

	err := c.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		le.logger.Debugf("%s: stdout=%q stderr=%q", cmd.Name, res.Stdout, res.Stderr)
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, &ToolError{
			Argv:     cmd.Argv(),
			ExitCode: res.ExitCode,
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
		}
	}

	res.ExitCode = -1
	return res, &ToolError{Argv: cmd.Argv(), ExitCode: -1, Err: err}
}
