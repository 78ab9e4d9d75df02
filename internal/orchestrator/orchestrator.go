// Package orchestrator runs one FPGA simulation end to end: it validates the
// run, rotates the log directory, reprograms the board and patches the disk
// image with interrupts masked, launches the simulation driver on a
// pseudo-terminal and puts the process state back the way it found it.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"fireslurm/internal/config"
	"fireslurm/internal/executor"
	"fireslurm/internal/fpga"
	"fireslurm/internal/logging"
	"fireslurm/internal/logrotate"
	"fireslurm/internal/overlay"
	"fireslurm/internal/procstate"

	"github.com/creack/pty"
)

// ErrSimulationFailed matches a SimulationError.
var ErrSimulationFailed = errors.New("simulation failed")

// SimulationError reports a non-zero exit of the simulation driver. It is
// only returned after the process state has been restored.
type SimulationError struct {
	ExitCode int
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("simulation failed with exit code %d", e.ExitCode)
}

func (e *SimulationError) Is(target error) bool {
	return target == ErrSimulationFailed
}

// Config wires an Orchestrator to its collaborators. Zero values fall back
// to the production implementations.
type Config struct {
	Runner  executor.Runner
	Mounter overlay.Mounter
	Logger  *logging.Logger

	// Stdout receives the simulator's console output next to the uartlog.
	Stdout io.Writer
	// Terminal is the controlling terminal whose interrupt key is remapped
	// while the simulator runs.
	Terminal *os.File

	MountPoint  string
	SettleDelay time.Duration
	Now         func() time.Time
	Sleep       func(time.Duration)

	// Command builds the simulator process. Tests substitute a stand-in for
	// the privileged driver.
	Command func(argv []string) *exec.Cmd
}

// Result describes how far a run got.
type Result struct {
	LogDir string
	State  State
	Trace  []State
}

// FailedIn returns the last state entered before the run failed.
func (r Result) FailedIn() State {
	if r.State != Failed || len(r.Trace) < 2 {
		return r.State
	}
	return r.Trace[len(r.Trace)-2]
}

func (r *Result) enter(s State) {
	r.State = s
	r.Trace = append(r.Trace, s)
}

// Orchestrator runs simulations. It alters process-wide state, so a process
// must not run two simulations at once.
type Orchestrator struct {
	runner   executor.Runner
	mounter  overlay.Mounter
	logger   *logging.Logger
	stdout   io.Writer
	terminal *os.File
	mount    string
	settle   time.Duration
	now      func() time.Time
	sleep    func(time.Duration)
	command  func(argv []string) *exec.Cmd
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		runner:   cfg.Runner,
		mounter:  cfg.Mounter,
		logger:   cfg.Logger,
		stdout:   cfg.Stdout,
		terminal: cfg.Terminal,
		mount:    cfg.MountPoint,
		settle:   cfg.SettleDelay,
		now:      cfg.Now,
		sleep:    cfg.Sleep,
		command:  cfg.Command,
	}
	if o.logger == nil {
		o.logger = logging.Default("orchestrator")
	}
	if o.stdout == nil {
		o.stdout = os.Stdout
	}
	if o.terminal == nil {
		o.terminal = os.Stdin
	}
	if o.mount == "" {
		o.mount = config.DefaultMountPoint
	}
	if o.settle == 0 {
		o.settle = config.DefaultSettleDelay
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.sleep == nil {
		o.sleep = time.Sleep
	}
	if o.command == nil {
		o.command = func(argv []string) *exec.Cmd {
			return exec.Command(argv[0], argv[1:]...)
		}
	}
	return o
}

// Run executes one simulation. Validation happens before anything is
// touched; an invalid configuration leaves no trace on disk.
func (o *Orchestrator) Run(ctx context.Context, cfg config.RunConfig) (Result, error) {
	var res Result
	fail := func(err error) (Result, error) {
		o.logger.Printf("run %s failed while %s: %v", cfg.RunName, res.State, err)
		res.enter(Failed)
		return res, err
	}

	runner := o.runner
	if runner == nil {
		runner = executor.NewLocalExecutor(o.logger.Named("executor"), cfg.DryRun)
	}

	res.enter(Validating)
	if err := cfg.Validate(); err != nil {
		return fail(err)
	}
	o.logger.Printf("run %s (id %s)", cfg.RunName, cfg.RunID)

	res.enter(LogRotating)
	rotator := &logrotate.Rotator{Now: o.now, Logger: o.logger.Named("logrotate")}
	logDir, err := rotator.Rotate(cfg.LogDir, cfg.RunName)
	if err != nil {
		return fail(fmt.Errorf("rotate log directory: %w", err))
	}
	res.LogDir = logDir
	if err := WriteManifest(logDir, NewManifest(cfg, o.now())); err != nil {
		return fail(err)
	}

	if err := o.criticalSection(ctx, runner, cfg, &res); err != nil {
		return fail(err)
	}

	res.enter(Launching)
	argv := SimCommand(cfg, logDir)
	if cfg.DryRun {
		o.logger.Printf("dry-run: %s", strings.Join(argv, " "))
		res.enter(Done)
		return res, nil
	}

	if err := o.launch(cfg, logDir, argv, &res); err != nil {
		return fail(err)
	}
	res.enter(Done)
	o.logger.Printf("run %s finished, logs in %s", cfg.RunName, logDir)
	return res, nil
}

// criticalSection reprograms the board and patches the image with SIGINT
// masked. The settle delay is part of the section.
func (o *Orchestrator) criticalSection(ctx context.Context, runner executor.Runner, cfg config.RunConfig, res *Result) error {
	res.enter(CriticalSection)
	unmask := procstate.MaskInterrupts(o.logger.Named("procstate"))
	defer unmask()

	res.enter(Flashing)
	r := &fpga.Reconfigurer{Runner: runner, Logger: o.logger.Named("fpga")}
	if err := r.Reconfigure(ctx, cfg.SimConfig); err != nil {
		return fmt.Errorf("reconfigure FPGA: %w", err)
	}

	res.enter(Overlaying)
	mounter := o.mounter
	if mounter == nil {
		mounter = overlay.LoopMounter{Runner: runner}
	}
	ov := &overlay.Overlayer{
		Mounter:    mounter,
		MountPoint: o.mount,
		Logger:     o.logger.Named("overlay"),
		DryRun:     cfg.DryRun,
	}
	if err := ov.Apply(ctx, cfg.OverlayPath, cfg.SimImage, cfg.Command); err != nil {
		return fmt.Errorf("overlay disk image: %w", err)
	}

	res.enter(Stabilizing)
	o.logger.Printf("waiting %v for the board to settle", o.settle)
	o.sleep(o.settle)
	return nil
}

// launch remaps the interrupt key, extends the library path, streams the
// simulator and restores both in reverse order. A simulator failure is
// returned only after restoration.
func (o *Orchestrator) launch(cfg config.RunConfig, logDir string, argv []string, res *Result) (err error) {
	restoreKey, err := procstate.RemapInterruptKey(o.terminal.Fd(), procstate.FireSimInterruptKey, o.logger.Named("procstate"))
	if err != nil {
		return err
	}
	restorePath, err := procstate.PrependPath(procstate.LibraryPathVar, []string{cfg.SimConfig}, o.logger.Named("procstate"))
	if err != nil {
		return errors.Join(err, restoreKey())
	}

	defer func() {
		res.enter(Restoring)
		pathErr := restorePath()
		keyErr := restoreKey()
		if rerr := errors.Join(pathErr, keyErr); rerr != nil {
			err = errors.Join(err, fmt.Errorf("restore process state: %w", rerr))
		}
	}()

	res.enter(Streaming)
	code, err := o.stream(argv, filepath.Join(logDir, UARTLogName))
	if err != nil {
		return err
	}
	if code != 0 {
		return &SimulationError{ExitCode: code}
	}
	return nil
}

// stream runs argv on a fresh pseudo-terminal and copies its output to the
// operator and the uartlog until the child closes it.
func (o *Orchestrator) stream(argv []string, uartlog string) (int, error) {
	f, err := os.Create(uartlog)
	if err != nil {
		return -1, fmt.Errorf("create uartlog: %w", err)
	}
	defer f.Close()

	o.logger.Printf("launching %s", strings.Join(argv, " "))
	cmd := o.command(argv)
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return -1, fmt.Errorf("start simulator: %w", err)
	}
	defer ptmx.Close()

	if err := Tee(ptmx, o.stdout, f); err != nil {
		o.logger.Warnf("simulator output: %v", err)
	}

	err = cmd.Wait()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return 0, nil
	case errors.As(err, &exitErr):
		o.logger.Debugf("simulator exited: %v", exitErr)
		// Killed by a signal reports -1, which still counts as a failure.
		return exitErr.ExitCode(), nil
	default:
		return -1, fmt.Errorf("wait for simulator: %w", err)
	}
}
