package slurm

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"fireslurm/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval backs up filesystem events, which shared filesystems
// such as NFS do not deliver for writes made on other hosts.
const DefaultPollInterval = 2 * time.Second

// Follower streams a growing file, typically a job's --output capture.
type Follower struct {
	Logger       *logging.Logger
	PollInterval time.Duration
}

// Follow copies path to w as it grows until ctx is done. The file does not
// have to exist yet, but its directory does.
func (f *Follower) Follow(ctx context.Context, path string, w io.Writer) error {
	logger := f.Logger
	if logger == nil {
		logger = logging.Default("follow")
	}
	interval := f.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	var file *os.File
	defer func() {
		if file != nil {
			file.Close()
		}
	}()

	drain := func() error {
		if file == nil {
			fh, err := os.Open(path)
			if os.IsNotExist(err) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("open %s: %w", path, err)
			}
			file = fh
			logger.Printf("following %s", path)
		}
		if _, err := io.Copy(w, file); err != nil {
			return fmt.Errorf("copy %s: %w", path, err)
		}
		return nil
	}

	if err := drain(); err != nil {
		return err
	}
	if file == nil {
		logger.Printf("waiting for %s to appear", path)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return drain()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if err := drain(); err != nil {
					return err
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Printf("watcher error: %v", err)

		case <-ticker.C:
			if err := drain(); err != nil {
				return err
			}
		}
	}
}
