package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"fireslurm/internal/config"
	"fireslurm/internal/executor"
	"fireslurm/internal/fpga"
	"fireslurm/internal/logging"
	"fireslurm/internal/logrotate"
	"fireslurm/internal/procstate"
	"fireslurm/internal/testutil"

	"github.com/creack/pty"
)

type fakeMounter struct {
	mounts, unmounts int
}

func (m *fakeMounter) Mount(ctx context.Context, image, dir string) error {
	m.mounts++
	return nil
}

func (m *fakeMounter) Unmount(ctx context.Context, dir string) error {
	m.unmounts++
	return nil
}

type harness struct {
	orch    *Orchestrator
	runner  *testutil.Runner
	mounter *fakeMounter
	stdout  *bytes.Buffer
	slept   []time.Duration
}

// newHarness builds an orchestrator whose simulator is replaced by script,
// run through sh.
func newHarness(t *testing.T, script string) *harness {
	t.Helper()
	h := &harness{runner: &testutil.Runner{}, mounter: &fakeMounter{}, stdout: &bytes.Buffer{}}

	// Not a terminal, so the interrupt key stays untouched.
	term, err := os.CreateTemp(t.TempDir(), "term")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { term.Close() })

	h.orch = New(Config{
		Runner:     h.runner,
		Mounter:    h.mounter,
		Logger:     logging.Discard(),
		Stdout:     h.stdout,
		Terminal:   term,
		MountPoint: filepath.Join(t.TempDir(), "mountpoint"),
		Now:        func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
		Sleep:      func(d time.Duration) { h.slept = append(h.slept, d) },
		Command: func(argv []string) *exec.Cmd {
			return exec.Command("sh", "-c", script)
		},
	})
	return h
}

func requirePTY(t *testing.T) {
	t.Helper()
	ptmx, tty, err := pty.Open()
	if err != nil {
		t.Skipf("no pseudo-terminal available: %v", err)
	}
	ptmx.Close()
	tty.Close()
}

func TestRunInvalidConfigHasNoSideEffects(t *testing.T) {
	h := newHarness(t, "true")
	cfg := testutil.RunConfig(t, "smoke", "true")
	cfg.RunName = "bad name"

	res, err := h.orch.Run(context.Background(), cfg)
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if res.State != Failed || res.FailedIn() != Validating {
		t.Errorf("state = %v (failed in %v)", res.State, res.FailedIn())
	}
	if calls := h.runner.Calls(); len(calls) != 0 {
		t.Errorf("expected no tool calls, got %v", h.runner.Names())
	}
	entries, err := os.ReadDir(cfg.LogDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("log root should be untouched, found %d entries", len(entries))
	}
}

func TestRunFlashFailureStopsInsideCriticalSection(t *testing.T) {
	h := newHarness(t, "true")
	var maskedDuringFlash bool
	h.runner.Handle = func(cmd executor.Command) (executor.Result, error) {
		maskedDuringFlash = procstate.InterruptsMasked()
		return executor.Result{}, &executor.ToolError{Argv: cmd.Argv(), ExitCode: 1}
	}
	cfg := testutil.RunConfig(t, "smoke", "true")

	res, err := h.orch.Run(context.Background(), cfg)
	if !errors.Is(err, executor.ErrToolFailed) {
		t.Fatalf("expected ErrToolFailed, got %v", err)
	}
	if !maskedDuringFlash {
		t.Error("SIGINT was not masked while flashing")
	}
	if procstate.InterruptsMasked() {
		t.Error("SIGINT still masked after the run")
	}
	if res.FailedIn() != Flashing {
		t.Errorf("failed in %v, want %v", res.FailedIn(), Flashing)
	}
	if h.mounter.mounts != 0 {
		t.Error("overlay must not run after a flash failure")
	}
	if len(h.slept) != 0 {
		t.Error("settle delay must not run after a flash failure")
	}
	// The log directory is rotated before the critical section.
	if _, err := os.Lstat(filepath.Join(cfg.LogDir, logrotate.LatestName)); err != nil {
		t.Errorf("latest alias missing: %v", err)
	}
}

func TestRunMissingBitstreamRejectedUpFront(t *testing.T) {
	h := newHarness(t, "true")
	cfg := testutil.RunConfig(t, "smoke", "true")
	if err := os.Remove(config.BitstreamPath(cfg.SimConfig)); err != nil {
		t.Fatal(err)
	}

	res, err := h.orch.Run(context.Background(), cfg)
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if res.FailedIn() != Validating {
		t.Errorf("failed in %v, want %v", res.FailedIn(), Validating)
	}
	if len(h.runner.Calls()) != 0 {
		t.Errorf("flash tool ran without a bitstream: %v", h.runner.Names())
	}
}

func TestRunDryRun(t *testing.T) {
	h := newHarness(t, "exit 99")
	h.orch.runner = nil // dry-run local executor
	cfg := testutil.RunConfig(t, "dry", "true")
	cfg.DryRun = true

	res, err := h.orch.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != Done {
		t.Errorf("state = %v, want done", res.State)
	}
	if slices.Contains(res.Trace, Streaming) {
		t.Error("dry-run must not launch the simulator")
	}
	if h.mounter.mounts != 0 {
		t.Error("dry-run must not mount")
	}
	if _, err := os.Stat(filepath.Join(res.LogDir, UARTLogName)); !os.IsNotExist(err) {
		t.Error("dry-run should not create a uartlog")
	}

	m, err := ReadManifest(res.LogDir)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if m.RunID != cfg.RunID.String() || !m.DryRun || m.RunName != "dry" {
		t.Errorf("manifest = %+v", m)
	}
}

func TestRunStreamsSimulatorOutput(t *testing.T) {
	requirePTY(t)
	t.Setenv(procstate.LibraryPathVar, "/usr/local/lib")

	h := newHarness(t, `printf 'boot\nlib=%s\n' "$LD_LIBRARY_PATH"`)
	cfg := testutil.RunConfig(t, "stream", "/root/bench")

	res, err := h.orch.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantTrace := []State{Validating, LogRotating, CriticalSection, Flashing, Overlaying, Stabilizing, Launching, Streaming, Restoring, Done}
	if !slices.Equal(res.Trace, wantTrace) {
		t.Errorf("trace = %v, want %v", res.Trace, wantTrace)
	}

	want := "boot\nlib=" + cfg.SimConfig + ":/usr/local/lib\n"
	if got := h.stdout.String(); got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}
	uart, err := os.ReadFile(filepath.Join(res.LogDir, UARTLogName))
	if err != nil {
		t.Fatalf("read uartlog: %v", err)
	}
	if string(uart) != want {
		t.Errorf("uartlog = %q, want %q", uart, want)
	}

	if got := os.Getenv(procstate.LibraryPathVar); got != "/usr/local/lib" {
		t.Errorf("%s not restored: %q", procstate.LibraryPathVar, got)
	}
	if len(h.slept) != 1 || h.slept[0] != config.DefaultSettleDelay {
		t.Errorf("settle delays = %v", h.slept)
	}

	got := h.runner.Names()
	if len(got) != 2 || !strings.Contains(got[0], fpga.FlashTool) || !strings.Contains(got[1], fpga.PermsTool) {
		t.Errorf("tool calls = %q", got)
	}
	if h.mounter.mounts != 1 || h.mounter.unmounts != 1 {
		t.Errorf("mounts=%d unmounts=%d", h.mounter.mounts, h.mounter.unmounts)
	}
}

func TestRunSimulationFailureAfterRestore(t *testing.T) {
	requirePTY(t)
	t.Setenv(procstate.LibraryPathVar, "")
	os.Unsetenv(procstate.LibraryPathVar)

	h := newHarness(t, "echo dying; exit 3")
	cfg := testutil.RunConfig(t, "fails", "")

	res, err := h.orch.Run(context.Background(), cfg)
	var simErr *SimulationError
	if !errors.As(err, &simErr) {
		t.Fatalf("expected SimulationError, got %v", err)
	}
	if simErr.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", simErr.ExitCode)
	}
	if !errors.Is(err, ErrSimulationFailed) {
		t.Error("SimulationError should match ErrSimulationFailed")
	}
	if !slices.Contains(res.Trace, Restoring) {
		t.Errorf("trace %v skipped restoration", res.Trace)
	}
	if _, ok := os.LookupEnv(procstate.LibraryPathVar); ok {
		t.Errorf("%s should be unset again", procstate.LibraryPathVar)
	}
	if !strings.Contains(h.stdout.String(), "dying") {
		t.Errorf("output before the failure was lost: %q", h.stdout.String())
	}
}
