// Package executor runs the external programs FireSlurm depends on: the FPGA
// flashing tools, mount/umount and the scheduler CLI. Every invocation
// blocks until the child exits.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrToolFailed is matched by every non-zero exit of an external program.
var ErrToolFailed = errors.New("external tool failed")

// Command is a single external program invocation.
type Command struct {
	Name string
	Args []string
	// Force runs the command even in dry-run mode. The scheduler's own
	// test-only submission relies on this.
	Force bool
}

// Argv returns the full argument vector.
func (c Command) Argv() []string {
	return append([]string{c.Name}, c.Args...)
}

func (c Command) String() string {
	return strings.Join(c.Argv(), " ")
}

// Sudo wraps a command so that it runs through non-interactive sudo. These
// commands run with interrupts masked, outside the terminal's foreground
// process group, where a password prompt would stop the child with SIGTTIN.
// Without a NOPASSWD rule sudo -n fails at once instead.
func Sudo(name string, args ...string) Command {
	return Command{Name: "sudo", Args: append([]string{"-n", name}, args...)}
}

// Result holds the captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Skipped  bool // dry-run: the command was only logged
}

// Runner is the interface for external command execution strategies.
type Runner interface {
	// Run executes cmd and waits for it to exit. A non-zero exit yields a
	// *ToolError carrying the captured output.
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ToolError reports a non-zero exit together with everything the tool
// printed.
type ToolError struct {
	Argv     []string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error // set when the program could not be started at all
}

func (e *ToolError) Error() string {
	cmd := strings.Join(e.Argv, " ")
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", cmd, e.Err)
	}
	msg := fmt.Sprintf("%s: exit status %d", cmd, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += "\nstderr: " + s
	}
	if s := strings.TrimSpace(e.Stdout); s != "" {
		msg += "\nstdout: " + s
	}
	return msg
}

// Is makes ToolError match ErrToolFailed.
func (e *ToolError) Is(target error) bool {
	return target == ErrToolFailed
}

func (e *ToolError) Unwrap() error {
	return e.Err
}
