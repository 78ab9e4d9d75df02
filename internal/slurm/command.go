package slurm

import (
	"strconv"
	"strings"

	"fireslurm/internal/config"
	"fireslurm/internal/executor"
)

// DirectRunArgs is the argv that re-invokes binary in direct-run mode for
// cfg on the allocated node. Every path is passed explicitly so the job does
// not depend on the submitting user's defaults file. The run identity is
// carried over so logs and the job ledger agree.
func DirectRunArgs(binary string, cfg config.RunConfig) []string {
	var argv []string
	for _, group := range directRunGroups(binary, cfg) {
		argv = append(argv, group...)
	}
	return argv
}

// directRunGroups splits the direct-run invocation into the binary with its
// global flags, the subcommand, one group per flag and its value, and the
// trailing command.
func directRunGroups(binary string, cfg config.RunConfig) [][]string {
	head := []string{binary}
	if f := cfg.VerboseFlag(); f != "" {
		head = append(head, f)
	}
	if cfg.DryRun {
		head = append(head, "--dry-run")
	}
	groups := [][]string{
		head,
		{"direct-run"},
		{"--run-name", cfg.RunName},
		{"--run-id", cfg.RunID.String()},
		{"--sim-config", cfg.SimConfig},
		{"--overlay-path", cfg.OverlayPath},
		{"--sim-img", cfg.SimImage},
		{"--sim-prog", cfg.SimProgram},
		{"--log-dir", cfg.LogDir},
		{"--print-start", strconv.FormatInt(cfg.PrintStart, 10)},
	}
	if !cfg.Interactive() {
		groups = append(groups, []string{"--", cfg.Command})
	}
	return groups
}

// allocationArgs are the flags sbatch and srun share.
func allocationArgs(b config.Base, jobName string) []string {
	args := []string{"--partition", strings.Join(b.Partitions, ",")}
	if len(b.NodeList) > 0 {
		args = append(args, "--nodelist", strings.Join(b.NodeList, ","))
	}
	return append(args, "--job-name", jobName)
}

// SbatchCommand builds the submission for script. The script must stay the
// last argument: sbatch passes anything after it to the script. Dry-run adds
// --test-only and the command is forced so the scheduler still answers.
func SbatchCommand(cfg config.BatchConfig, script string) executor.Command {
	args := allocationArgs(cfg.Base, cfg.RunName)
	args = append(args,
		"--output", cfg.Output,
		"--error", cfg.Error,
		"--exclusive",
	)
	if f := cfg.VerboseFlag(); f != "" {
		args = append(args, f)
	}
	if cfg.DryRun {
		args = append(args, "--test-only")
	}
	args = append(args, script)
	return executor.Command{Name: "sbatch", Args: args, Force: true}
}

// SrunCommand builds an interactive allocation that runs the simulation with
// the operator's terminal attached.
func SrunCommand(cfg config.RunConfig, binary string) executor.Command {
	args := allocationArgs(cfg.Base, cfg.RunName)
	args = append(args, "--exclusive")
	if f := cfg.VerboseFlag(); f != "" {
		args = append(args, f)
	}
	if cfg.DryRun {
		args = append(args, "--test-only")
	}
	args = append(args, "--pty")
	args = append(args, DirectRunArgs(binary, cfg)...)
	return executor.Command{Name: "srun", Args: args, Force: true}
}
