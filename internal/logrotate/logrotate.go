// Package logrotate creates timestamped run directories under a log root and
// keeps a "latest" alias pointing at the newest one.
package logrotate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fireslurm/internal/logging"
)

// LatestName is the alias kept in the log root.
const LatestName = "latest"

// TimestampLayout is appended to the base name of every run directory.
// Runs started within the same second by different processes collide.
const TimestampLayout = "2006-01-02150405"

// ErrAlreadyExists is returned when the composed run directory exists.
var ErrAlreadyExists = errors.New("run directory already exists")

// Rotator creates run directories.
type Rotator struct {
	Now    func() time.Time
	Logger *logging.Logger
}

// New returns a Rotator using the wall clock.
func New(logger *logging.Logger) *Rotator {
	return &Rotator{Now: time.Now, Logger: logger}
}

// Rotate creates root/<base><timestamp>, repoints root/latest at it and
// returns the new directory. The authoritative location is the returned
// path: latest is only a convenience and may dangle or be missing if the
// process dies between the two steps.
func (r *Rotator) Rotate(root, base string) (string, error) {
	logger := r.Logger
	if logger == nil {
		logger = logging.Default("logrotate")
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return "", fmt.Errorf("create log root: %w", err)
	}

	dir := filepath.Join(root, base+now().Format(TimestampLayout))
	if err := os.Mkdir(dir, 0755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("create %s: %w: %w", dir, ErrAlreadyExists, err)
		}
		return "", fmt.Errorf("create run directory: %w", err)
	}
	logger.Debugf("created %s", dir)

	latest := filepath.Join(root, LatestName)
	if err := os.Remove(latest); err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("remove %s: %w", latest, err)
		}
		logger.Debugf("no previous %s in %s", LatestName, root)
	}

	if err := os.Symlink(dir, latest); err != nil {
		return "", fmt.Errorf("link %s: %w", latest, err)
	}
	logger.Printf("marked %s as %s in %s", dir, LatestName, root)
	return dir, nil
}
