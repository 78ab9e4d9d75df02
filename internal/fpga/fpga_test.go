package fpga

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fireslurm/internal/config"
	"fireslurm/internal/executor"
	"fireslurm/internal/logging"
	"fireslurm/internal/testutil"
)

func simConfig(t *testing.T, withBitstream bool) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, config.BoardDir), 0755); err != nil {
		t.Fatal(err)
	}
	if withBitstream {
		if err := os.WriteFile(config.BitstreamPath(dir), []byte("bits"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestReconfigure(t *testing.T) {
	dir := simConfig(t, true)
	r := &testutil.Runner{}
	rc := &Reconfigurer{Runner: r, Logger: logging.Discard()}

	if err := rc.Reconfigure(context.Background(), dir); err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}

	want := []string{
		"sudo -n firesim-xvsecctl-flash-fpga 0x01 0x00 0x1 " + config.BitstreamPath(dir),
		"sudo -n firesim-change-pcie-perms 0000:01:00:0",
	}
	if got := r.Names(); strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("commands = %q, want %q", got, want)
	}
}

func TestReconfigureMissingBitstream(t *testing.T) {
	r := &testutil.Runner{}
	rc := &Reconfigurer{Runner: r, Logger: logging.Discard()}

	err := rc.Reconfigure(context.Background(), simConfig(t, false))
	if !errors.Is(err, ErrMissingBitstream) {
		t.Fatalf("expected ErrMissingBitstream, got %v", err)
	}
	if len(r.Calls()) != 0 {
		t.Errorf("no tool may run without a bitstream, got %q", r.Names())
	}
}

func TestReconfigureBitstreamIsDirectory(t *testing.T) {
	dir := simConfig(t, false)
	if err := os.Mkdir(config.BitstreamPath(dir), 0755); err != nil {
		t.Fatal(err)
	}
	r := &testutil.Runner{}
	rc := &Reconfigurer{Runner: r, Logger: logging.Discard()}

	if err := rc.Reconfigure(context.Background(), dir); !errors.Is(err, ErrMissingBitstream) {
		t.Fatalf("expected ErrMissingBitstream, got %v", err)
	}
}

func TestReconfigureFlashFailureStopsBeforePerms(t *testing.T) {
	r := &testutil.Runner{
		Handle: func(cmd executor.Command) (executor.Result, error) {
			return executor.Result{}, &executor.ToolError{Argv: cmd.Argv(), ExitCode: 1, Stderr: "no device"}
		},
	}
	rc := &Reconfigurer{Runner: r, Logger: logging.Discard()}

	err := rc.Reconfigure(context.Background(), simConfig(t, true))
	if !errors.Is(err, executor.ErrToolFailed) {
		t.Fatalf("expected ErrToolFailed, got %v", err)
	}
	if len(r.Calls()) != 1 {
		t.Errorf("expected only the flash command, got %q", r.Names())
	}
}

func TestReconfigureDryRun(t *testing.T) {
	le := executor.NewLocalExecutor(logging.Discard(), true)
	rc := &Reconfigurer{Runner: le, Logger: logging.Discard()}

	if err := rc.Reconfigure(context.Background(), simConfig(t, true)); err != nil {
		t.Fatalf("dry-run Reconfigure: %v", err)
	}
}
