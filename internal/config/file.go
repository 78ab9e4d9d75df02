package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when neither flags nor the defaults file set a value.
const (
	DefaultSettleDelay = time.Second
	DefaultMountPoint  = "mountpoint"
)

// File is the on-disk defaults file. Command-line flags override every
// field.
type File struct {
	SimConfig   string        `yaml:"sim_config,omitempty"`
	OverlayPath string        `yaml:"overlay_path,omitempty"`
	SimImage    string        `yaml:"sim_img,omitempty"`
	SimProgram  string        `yaml:"sim_prog,omitempty"`
	LogDir      string        `yaml:"log_dir,omitempty"`
	Partitions  []string      `yaml:"partitions,omitempty"`
	NodeList    []string      `yaml:"nodelist,omitempty"`
	SettleDelay time.Duration `yaml:"settle_delay,omitempty"` // e.g. "1s", "1500ms"
	MountPoint  string        `yaml:"mount_point,omitempty"`
}

// DefaultFilePath returns $XDG_CONFIG_HOME/fireslurm/config.yaml, falling
// back to ~/.config.
func DefaultFilePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "fireslurm", "config.yaml")
}

// LoadFile reads a defaults file. A missing file yields the built-in
// defaults, not an error.
func LoadFile(path string) (*File, error) {
	f := &File{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, f); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", path, err)
			}
		}
	}

	if len(f.Partitions) == 0 {
		f.Partitions = []string{DefaultPartition}
	}
	if f.SettleDelay <= 0 {
		f.SettleDelay = DefaultSettleDelay
	}
	if f.MountPoint == "" {
		f.MountPoint = DefaultMountPoint
	}
	return f, nil
}
