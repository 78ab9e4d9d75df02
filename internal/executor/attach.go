package executor

import (
	"context"
	"errors"
	"os"
	"os/exec"
)

// Attacher runs a command with the operator's terminal as its standard
// streams. Nothing is captured.
type Attacher interface {
	Attach(ctx context.Context, cmd Command) error
}

// Attach runs cmd on this process's stdin, stdout and stderr. Dry-run
// handling matches Run.
func (le *LocalExecutor) Attach(ctx context.Context, cmd Command) error {
	if le.dryRun && !cmd.Force {
		le.logger.Printf("dry-run: %s", cmd)
		return nil
	}

	le.logger.Debugf("exec (attached): %s", cmd)
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr

	err := c.Run()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ToolError{Argv: cmd.Argv(), ExitCode: exitErr.ExitCode()}
	}
	return &ToolError{Argv: cmd.Argv(), ExitCode: -1, Err: err}
}
