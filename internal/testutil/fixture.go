package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"fireslurm/internal/config"
)

// Layout creates a minimal valid simulation layout under a temp dir: a
// sim-config with bitstream and driver, an overlay, an image, a program and
// an empty log root.
func Layout(t *testing.T) config.Base {
	t.Helper()
	root := t.TempDir()

	simConfig := filepath.Join(root, "sim-config")
	write(t, config.BitstreamPath(simConfig), 0644)
	write(t, config.DriverPath(simConfig), 0755)
	write(t, filepath.Join(root, "overlay", "root", "bench"), 0755)
	write(t, filepath.Join(root, "disk.img"), 0644)
	write(t, filepath.Join(root, "linux-bbl"), 0755)
	if err := os.MkdirAll(filepath.Join(root, "logs"), 0755); err != nil {
		t.Fatalf("mkdir logs: %v", err)
	}

	return config.Base{
		OverlayPath: filepath.Join(root, "overlay"),
		SimConfig:   simConfig,
		SimImage:    filepath.Join(root, "disk.img"),
		SimProgram:  filepath.Join(root, "linux-bbl"),
		LogDir:      filepath.Join(root, "logs"),
		NodeList:    []string{"bluejack"},
	}
}

// RunConfig returns a validated run over a fresh Layout.
func RunConfig(t *testing.T, name, command string) config.RunConfig {
	t.Helper()
	cfg, err := config.NewRun(config.RunConfig{Base: Layout(t), RunName: name, Command: command})
	if err != nil {
		t.Fatalf("NewRun failed: %v", err)
	}
	return cfg
}

func write(t *testing.T, path string, mode os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte("x"), mode); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
