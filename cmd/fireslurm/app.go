package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"fireslurm/internal/bundle"
	"fireslurm/internal/config"
	"fireslurm/internal/executor"
	"fireslurm/internal/logging"
	"fireslurm/internal/orchestrator"
	"fireslurm/internal/slurm"
)

// errUsage marks bad command-line input; the flag package has already
// printed the details.
var errUsage = errors.New("usage error")

type app struct {
	stdout    io.Writer
	stderr    io.Writer
	logger    *logging.Logger
	file      *config.File
	verbosity int
	dryRun    bool
}

func newApp(stdout, stderr io.Writer, verbosity int, dryRun bool, configPath string) (*app, error) {
	if configPath == "" {
		configPath = config.DefaultFilePath()
	}
	file, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}
	logger := logging.New(stderr, "fireslurm", verbosity)
	logger.Debugf("defaults from %s: %+v", configPath, *file)
	return &app{
		stdout:    stdout,
		stderr:    stderr,
		logger:    logger,
		file:      file,
		verbosity: verbosity,
		dryRun:    dryRun,
	}, nil
}

// exit maps an error to a process status. A failed simulation passes its
// own exit code through so the scheduler records it.
func (a *app) exit(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, errUsage) {
		return 2
	}
	fmt.Fprintf(a.stderr, "error: %v\n", err)
	var simErr *orchestrator.SimulationError
	if errors.As(err, &simErr) && simErr.ExitCode > 0 {
		return simErr.ExitCode
	}
	return 1
}

func (a *app) flagSet(name, synopsis string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.Usage = func() {
		fmt.Fprintf(a.stderr, "Usage: fireslurm [options] %s %s\n\n", name, synopsis)
		fs.PrintDefaults()
	}
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return nil
}

// runFlags are shared by direct-run, run and batch.
type runFlags struct {
	simConfig   string
	overlayPath string
	simImage    string
	simProgram  string
	logDir      string
	runName     string
	runID       string
	printStart  int64
	output      string
	errorPath   string
	partitions  *listFlag
	nodeList    *listFlag
}

func (a *app) registerRunFlags(fs *flag.FlagSet, scheduler bool) *runFlags {
	rf := &runFlags{
		partitions: newListFlag(a.file.Partitions),
		nodeList:   newListFlag(a.file.NodeList),
	}
	fs.StringVar(&rf.simConfig, "sim-config", a.file.SimConfig, "Simulation-config directory (bitstream, driver, libraries)")
	fs.StringVar(&rf.overlayPath, "overlay-path", a.file.OverlayPath, "Directory tree copied onto the disk image")
	fs.StringVar(&rf.simImage, "sim-img", a.file.SimImage, "Disk image (.img) the simulated machine boots from")
	fs.StringVar(&rf.simProgram, "sim-prog", a.file.SimProgram, "Program the simulated core runs (e.g. linux-bbl)")
	fs.StringVar(&rf.logDir, "log-dir", a.file.LogDir, "Log root; each run gets a timestamped directory")
	fs.StringVar(&rf.runName, "run-name", "", "Name of this run")
	fs.Int64Var(&rf.printStart, "print-start", -1, "Clock cycle at which the core starts trace printing")
	if scheduler {
		fs.Var(rf.partitions, "partition", "Slurm partitions, comma-separated; the first available wins")
		fs.Var(rf.nodeList, "nodelist", "Slurm nodes, comma-separated")
		fs.StringVar(&rf.output, "output", "", "Job stdout capture (default <log-dir>/"+config.DefaultOutput+")")
		fs.StringVar(&rf.errorPath, "error", "", "Job stderr capture (default <log-dir>/"+config.DefaultError+")")
	} else {
		fs.StringVar(&rf.runID, "run-id", "", "Adopt this run identity instead of generating one")
	}
	return rf
}

// runConfig builds and validates a RunConfig. The log root is created
// first; it is the one input a run may bring into existence.
func (a *app) runConfig(rf *runFlags, command string) (config.RunConfig, error) {
	if rf.logDir != "" {
		if err := os.MkdirAll(rf.logDir, 0755); err != nil {
			return config.RunConfig{}, fmt.Errorf("create log directory: %w", err)
		}
	}
	base := config.Base{
		OverlayPath: rf.overlayPath,
		SimConfig:   rf.simConfig,
		SimImage:    rf.simImage,
		SimProgram:  rf.simProgram,
		LogDir:      rf.logDir,
		Partitions:  rf.partitions.values,
		NodeList:    rf.nodeList.values,
		Verbosity:   a.verbosity,
		DryRun:      a.dryRun,
	}
	if rf.runID != "" {
		id, err := config.ParseRunID(rf.runID)
		if err != nil {
			return config.RunConfig{}, err
		}
		base.RunID = id
	}
	return config.NewRun(config.RunConfig{
		Base:       base,
		RunName:    rf.runName,
		Command:    command,
		PrintStart: rf.printStart,
		Output:     rf.output,
		Error:      rf.errorPath,
	})
}

func (a *app) directRun(args []string) error {
	fs := a.flagSet("direct-run", "[flags] [-- cmd...]")
	rf := a.registerRunFlags(fs, false)
	if err := parse(fs, args); err != nil {
		return err
	}
	cfg, err := a.runConfig(rf, joinCommand(fs.Args()))
	if err != nil {
		return err
	}
	if cfg.Interactive() {
		a.logger.Warnf("no command given, the simulation will be INTERACTIVE")
	}

	orch := orchestrator.New(orchestrator.Config{
		Logger:      a.logger.Named("orchestrator"),
		Stdout:      a.stdout,
		MountPoint:  a.file.MountPoint,
		SettleDelay: a.file.SettleDelay,
	})
	res, err := orch.Run(context.Background(), cfg)
	if res.LogDir != "" {
		a.logger.Printf("logs: %s", res.LogDir)
	}
	return err
}

func (a *app) submitter() *slurm.Submitter {
	return &slurm.Submitter{
		Runner:  executor.NewLocalExecutor(a.logger.Named("exec"), a.dryRun),
		Logger:  a.logger.Named("slurm"),
		Package: bundle.Package,
	}
}

func (a *app) srun(args []string) error {
	fs := a.flagSet("run", "[flags] [-- cmd...]")
	rf := a.registerRunFlags(fs, true)
	if err := parse(fs, args); err != nil {
		return err
	}
	cfg, err := a.runConfig(rf, joinCommand(fs.Args()))
	if err != nil {
		return err
	}
	attacher := executor.NewLocalExecutor(a.logger.Named("exec"), a.dryRun)
	return a.submitter().Interactive(context.Background(), attacher, cfg)
}

func (a *app) batch(args []string) error {
	fs := a.flagSet("batch", "[flags] -- cmd...")
	rf := a.registerRunFlags(fs, true)
	follow := fs.Bool("follow", false, "Stream the job's stdout once it is submitted")
	if err := parse(fs, args); err != nil {
		return err
	}
	runCfg, err := a.runConfig(rf, joinCommand(fs.Args()))
	if err != nil {
		return err
	}
	cfg, err := runCfg.ToBatch()
	if err != nil {
		return err
	}

	job, err := a.submitter().Submit(context.Background(), cfg)
	if err != nil {
		return err
	}
	if !job.Submitted() {
		fmt.Fprintf(a.stdout, "dry-run: nothing submitted (run %s)\n", job.RunID)
		return nil
	}
	fmt.Fprintf(a.stdout, "Submitted batch job %d (run %s)\n", job.ID, job.RunID)

	if *follow {
		return a.followFile(slurm.ExpandJobID(cfg.Output, job.ID))
	}
	return nil
}

func (a *app) sync(args []string) error {
	fs := a.flagSet("sync", "[flags]")
	name := fs.String("config-name", "", "Name for the new simulation config")
	description := fs.String("description", "", "Description of the simulated design")
	root := fs.String("sim-config", a.file.SimConfig, "Simulation-config root to version into")
	target := fs.String("infrasetup-target", "", "Directory infrasetup wrote driver-bundle.tar.gz and firesim.tar.gz to")
	if err := parse(fs, args); err != nil {
		return err
	}
	cfg, err := config.NewSync(config.SyncConfig{
		ConfigRoot:       *root,
		InfrasetupTarget: *target,
		Name:             *name,
		Description:      *description,
		Verbosity:        a.verbosity,
		DryRun:           a.dryRun,
	})
	if err != nil {
		return err
	}

	s := &bundle.Syncer{Logger: a.logger.Named("sync")}
	dir, err := s.Sync(context.Background(), cfg)
	if err != nil {
		return err
	}
	if dir != "" {
		fmt.Fprintln(a.stdout, dir)
	}
	return nil
}

func (a *app) follow(args []string) error {
	fs := a.flagSet("follow", "<path>")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errUsage
	}
	return a.followFile(fs.Arg(0))
}

// followFile streams path until the operator interrupts.
func (a *app) followFile(path string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	f := &slurm.Follower{Logger: a.logger.Named("follow")}
	return f.Follow(ctx, path, a.stdout)
}

func (a *app) jobs(args []string) error {
	fs := a.flagSet("jobs", "[flags]")
	logDir := fs.String("log-dir", a.file.LogDir, "Log root holding "+slurm.LedgerName)
	if err := parse(fs, args); err != nil {
		return err
	}
	if *logDir == "" {
		fs.Usage()
		return errUsage
	}

	entries, err := slurm.ReadLedger(slurm.LedgerPath(*logDir))
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.stdout, "No jobs submitted")
		return nil
	}

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOB\tSUBMITTED\tNAME\tRUN ID\tPARTITIONS\tCOMMAND")
	for _, e := range entries {
		submitted := e.Timestamp
		if ts, err := time.Parse(time.RFC3339Nano, e.Timestamp); err == nil {
			submitted = ts.Local().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			e.JobID, submitted, e.RunName, e.RunID, strings.Join(e.Partitions, ","), e.Command)
	}
	return w.Flush()
}
