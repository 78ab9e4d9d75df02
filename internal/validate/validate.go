// Package validate holds side-effect-free predicates over filesystem paths.
//
// Every predicate is a time-of-check/time-of-use race: the answer describes
// the filesystem at the moment of the call and nothing stops another process
// from changing it immediately afterwards. Treat a true result as advisory.
package validate

import (
	"os"
	"regexp"

	"golang.org/x/sys/unix"
)

var runNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// IsReadableDir reports whether path exists, is a directory and is readable.
func IsReadableDir(path string) bool {
	return isDir(path) && access(path, unix.R_OK)
}

// IsWritableDir reports whether path exists, is a directory and is writable.
// A writable directory is not necessarily readable or searchable.
func IsWritableDir(path string) bool {
	return isDir(path) && access(path, unix.W_OK)
}

// IsReadableFile reports whether path exists, is a regular file and is
// readable.
func IsReadableFile(path string) bool {
	return isRegular(path) && access(path, unix.R_OK)
}

// IsExecutableFile reports whether path exists, is a regular file and is both
// readable and executable.
func IsExecutableFile(path string) bool {
	return isRegular(path) && access(path, unix.R_OK|unix.X_OK)
}

// IsRunName reports whether name is a usable run name: non-empty and made of
// letters, digits, '.', '_' and '-' only.
func IsRunName(name string) bool {
	return runNamePattern.MatchString(name)
}

func isDir(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isRegular(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func access(path string, mode uint32) bool {
	return unix.Access(path, mode) == nil
}
