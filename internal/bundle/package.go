// Package bundle moves FireSlurm and FireSim artifacts into place: it
// packages the running executable next to a simulation config so batch jobs
// can re-invoke it, and versions the output of FireSim's infrasetup into a
// simulation-config root.
package bundle

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/otiai10/copy"
)

// ExecutableName is the packaged binary inside a sim-config directory.
const ExecutableName = "fireslurm"

// Package copies the running executable into simConfig and returns the
// packaged path.
func Package(simConfig string) (string, error) {
	self, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(self); err == nil {
		self = resolved
	}
	return PackageFile(self, simConfig)
}

// PackageFile copies src to simConfig/fireslurm. The copy goes through a
// temporary file so a job still executing the previous binary is not
// disturbed.
func PackageFile(src, simConfig string) (string, error) {
	dst := filepath.Join(simConfig, ExecutableName)

	if srcInfo, err := os.Stat(src); err != nil {
		return "", fmt.Errorf("stat %s: %w", src, err)
	} else if dstInfo, err := os.Stat(dst); err == nil && os.SameFile(srcInfo, dstInfo) {
		return dst, nil
	}

	tmp := fmt.Sprintf("%s.tmp-%d", dst, os.Getpid())
	if err := copy.Copy(src, tmp, copy.Options{Sync: true}); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("copy executable: %w", err)
	}
	if err := os.Chmod(tmp, 0755); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("chmod packaged executable: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("install packaged executable: %w", err)
	}
	return dst, nil
}
