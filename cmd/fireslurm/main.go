// Command fireslurm runs FireSim FPGA simulations on a Slurm cluster.
//
// direct-run drives one simulation on the local host: it reprograms the
// FPGA, patches the disk image and supervises the simulator. batch and run
// hand that same direct-run to the scheduler, sync versions the output of
// FireSim's infrasetup into a simulation-config root.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
)

const version = "0.3.0"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func usage(w io.Writer, global *flag.FlagSet) func() {
	return func() {
		fmt.Fprintf(w, "fireslurm v%s - run and batch FireSim simulations under Slurm\n\n", version)
		fmt.Fprintf(w, "Usage: fireslurm [options] <command> [command options] [-- cmd...]\n\n")
		fmt.Fprintf(w, "Commands:\n")
		fmt.Fprintf(w, "  direct-run          Run a simulation on this host, bypassing Slurm\n")
		fmt.Fprintf(w, "  run                 Run a simulation under srun with this terminal attached\n")
		fmt.Fprintf(w, "  batch               Submit a simulation with sbatch\n")
		fmt.Fprintf(w, "  sync                Version a FireSim infrasetup output as a sim config\n")
		fmt.Fprintf(w, "  follow <path>       Stream a job's output file as it grows\n")
		fmt.Fprintf(w, "  jobs                List submitted jobs\n")
		fmt.Fprintf(w, "  version             Print the version\n\n")
		fmt.Fprintf(w, "Options:\n")
		global.PrintDefaults()
	}
}

// run is main without the exit, returning the process status.
func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("fireslurm", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = usage(stderr, global)

	var verbosity counter
	global.Var(&verbosity, "v", "Increase verbosity (repeatable)")
	global.Var(&verbosity, "verbose", "Increase verbosity (repeatable)")
	dryRun := global.Bool("dry-run", false, "Log hardware-facing commands instead of running them")
	global.BoolVar(dryRun, "n", false, "Shorthand for --dry-run")
	configPath := global.String("config", "", "Defaults file (default $XDG_CONFIG_HOME/fireslurm/config.yaml)")

	if err := global.Parse(expandVerbose(args)); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if global.NArg() < 1 {
		global.Usage()
		return 2
	}

	a, err := newApp(stdout, stderr, int(verbosity), *dryRun, *configPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	command, rest := global.Arg(0), global.Args()[1:]
	switch command {
	case "direct-run":
		return a.exit(a.directRun(rest))
	case "run":
		return a.exit(a.srun(rest))
	case "batch":
		return a.exit(a.batch(rest))
	case "sync":
		return a.exit(a.sync(rest))
	case "follow":
		return a.exit(a.follow(rest))
	case "jobs":
		return a.exit(a.jobs(rest))
	case "version":
		fmt.Fprintf(stdout, "fireslurm v%s\n", version)
		return 0
	default:
		fmt.Fprintf(stderr, "error: unknown command: %s\n", command)
		global.Usage()
		return 2
	}
}
