package overlay

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fireslurm/internal/logging"
)

// LaunchScriptName is executed by the simulated machine once it has booted.
const LaunchScriptName = "firesim.sh"

const launchScriptMode = 0774

// LaunchScript renders the in-image script wrapping command between the
// start and end triggers and powering off afterwards.
func LaunchScript(command string) string {
	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	b.WriteString("set -x\n")
	b.WriteString("sleep 1\n")
	b.WriteString("cat \"/bin/config-$(uname -r)\"\n")
	b.WriteString("\n")
	b.WriteString("firesim-start-trigger\n")
	b.WriteString(command + "\n")
	b.WriteString("firesim-end-trigger\n")
	b.WriteString("\n")
	b.WriteString("poweroff\n")
	return b.String()
}

// InstallLaunchScript writes root/firesim.sh for command, or removes it when
// command is empty (interactive run).
func InstallLaunchScript(root, command string, logger *logging.Logger) error {
	path := filepath.Join(root, LaunchScriptName)

	if command == "" {
		logger.Warnf("no command given, proceeding with an INTERACTIVE simulation")
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", path, err)
		}
		return nil
	}

	logger.Debugf("command run by %s: %q", LaunchScriptName, command)
	if err := os.WriteFile(path, []byte(LaunchScript(command)), launchScriptMode); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	// WriteFile leaves the mode of an existing file alone.
	if err := os.Chmod(path, launchScriptMode); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	return nil
}
