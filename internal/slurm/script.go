package slurm

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fireslurm/internal/config"

	"github.com/alessio/shellescape"
)

const launchScriptMode = 0775

// LaunchScriptPath is where the batch script for a run is written.
func LaunchScriptPath(cfg config.BatchConfig) string {
	return filepath.Join(cfg.SimConfig, "run-"+cfg.RunName+".sh")
}

// LaunchScript renders the script sbatch executes on the allocated node.
// Every argument is quoted as a single shell word; the command string in
// particular reaches direct-run unchanged.
func LaunchScript(cfg config.BatchConfig, binary string) string {
	var lines []string
	for _, group := range directRunGroups(binary, cfg.ToRun()) {
		words := make([]string, len(group))
		for i, a := range group {
			words[i] = shellescape.Quote(a)
		}
		lines = append(lines, strings.Join(words, " "))
	}

	var b strings.Builder
	b.WriteString("#!/usr/bin/env bash\n")
	b.WriteString("echo \"Hello from $SLURM_JOB_ID\"\n")
	b.WriteString("sleep 2\n")
	fmt.Fprintf(&b, "echo %s\n", shellescape.Quote("Running "+binary))
	b.WriteString(strings.Join(lines, " \\\n    "))
	b.WriteString("\n")
	return b.String()
}

// WriteLaunchScript writes the script for cfg and returns its path.
func WriteLaunchScript(cfg config.BatchConfig, binary string) (string, error) {
	path := LaunchScriptPath(cfg)
	if err := os.WriteFile(path, []byte(LaunchScript(cfg, binary)), launchScriptMode); err != nil {
		return "", fmt.Errorf("write launch script: %w", err)
	}
	// WriteFile leaves the mode of an existing file alone.
	if err := os.Chmod(path, launchScriptMode); err != nil {
		return "", fmt.Errorf("chmod launch script: %w", err)
	}
	return path, nil
}
