package procstate

import (
	"fmt"
	"os"
	"strings"

	"fireslurm/internal/logging"
)

// LibraryPathVar is the dynamic loader's search path.
const LibraryPathVar = "LD_LIBRARY_PATH"

// PrependPath prepends dirs to the list-valued environment variable key and
// returns a function that puts back exactly what was there before, including
// the variable being unset.
func PrependPath(key string, dirs []string, logger *logging.Logger) (restore func() error, err error) {
	if logger == nil {
		logger = logging.Default("procstate")
	}

	old, wasSet := os.LookupEnv(key)
	value := strings.Join(dirs, string(os.PathListSeparator))
	if old != "" {
		value += string(os.PathListSeparator) + old
	}

	if err := os.Setenv(key, value); err != nil {
		return nil, fmt.Errorf("set %s: %w", key, err)
	}
	logger.Debugf("%s=%s", key, value)

	return func() error {
		if !wasSet {
			logger.Debugf("unsetting %s", key)
			return os.Unsetenv(key)
		}
		logger.Debugf("restoring %s=%s", key, old)
		return os.Setenv(key, old)
	}, nil
}
