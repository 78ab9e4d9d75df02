package overlay

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fireslurm/internal/executor"
	"fireslurm/internal/logging"
	"fireslurm/internal/testutil"
)

// fakeMounter tracks whether the mount point is currently mounted.
type fakeMounter struct {
	mounted    bool
	mounts     int
	unmounts   int
	mountErr   error
	unmountErr error
}

func (m *fakeMounter) Mount(ctx context.Context, image, dir string) error {
	if m.mountErr != nil {
		return m.mountErr
	}
	m.mounted = true
	m.mounts++
	return nil
}

func (m *fakeMounter) Unmount(ctx context.Context, dir string) error {
	m.unmounts++
	if m.unmountErr != nil {
		return m.unmountErr
	}
	m.mounted = false
	return nil
}

func newOverlayer(t *testing.T, m Mounter) (*Overlayer, string) {
	t.Helper()
	mountPoint := filepath.Join(t.TempDir(), "mountpoint")
	return &Overlayer{Mounter: m, MountPoint: mountPoint, Logger: logging.Discard()}, mountPoint
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestApplyCopiesAndOverwrites(t *testing.T) {
	m := &fakeMounter{}
	o, mountPoint := newOverlayer(t, m)

	writeTree(t, mountPoint, map[string]string{"etc/motd": "old", "keep": "untouched"})
	overlayDir := t.TempDir()
	writeTree(t, overlayDir, map[string]string{"etc/motd": "new", "root/bench": "bin"})

	if err := o.Apply(context.Background(), overlayDir, "disk.img", "/root/bench"); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	for name, want := range map[string]string{"etc/motd": "new", "root/bench": "bin", "keep": "untouched"} {
		got, err := os.ReadFile(filepath.Join(mountPoint, name))
		if err != nil || string(got) != want {
			t.Errorf("%s = %q, %v; want %q", name, got, err, want)
		}
	}

	script, err := os.ReadFile(filepath.Join(mountPoint, LaunchScriptName))
	if err != nil {
		t.Fatalf("read launch script: %v", err)
	}
	if !strings.Contains(string(script), "firesim-start-trigger\n/root/bench\nfiresim-end-trigger\n") {
		t.Errorf("launch script does not wrap the command:\n%s", script)
	}
	info, err := os.Stat(filepath.Join(mountPoint, LaunchScriptName))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != launchScriptMode {
		t.Errorf("launch script mode = %o, want %o", info.Mode().Perm(), launchScriptMode)
	}

	if m.mounted || m.mounts != 1 || m.unmounts != 1 {
		t.Errorf("mount bookkeeping: mounted=%v mounts=%d unmounts=%d", m.mounted, m.mounts, m.unmounts)
	}
}

func TestApplyUnmountsWhenCopyFails(t *testing.T) {
	m := &fakeMounter{}
	o, _ := newOverlayer(t, m)

	missing := filepath.Join(t.TempDir(), "no-such-overlay")
	err := o.Apply(context.Background(), missing, "disk.img", "true")
	if err == nil {
		t.Fatal("expected copy error")
	}
	if m.mounted {
		t.Error("mount point left mounted after copy failure")
	}
	if m.unmounts != 1 {
		t.Errorf("unmounts = %d, want 1", m.unmounts)
	}
}

func TestApplyJoinsUnmountError(t *testing.T) {
	unmountErr := errors.New("device busy")
	m := &fakeMounter{unmountErr: unmountErr}
	o, _ := newOverlayer(t, m)

	err := o.Apply(context.Background(), t.TempDir(), "disk.img", "true")
	if !errors.Is(err, unmountErr) {
		t.Errorf("expected unmount error, got %v", err)
	}
}

func TestApplyMountFailureSkipsUnmount(t *testing.T) {
	m := &fakeMounter{mountErr: errors.New("no loop device")}
	o, _ := newOverlayer(t, m)

	if err := o.Apply(context.Background(), t.TempDir(), "disk.img", "true"); err == nil {
		t.Fatal("expected mount error")
	}
	if m.unmounts != 0 {
		t.Errorf("unmounts = %d, want 0", m.unmounts)
	}
}

func TestApplyInteractiveRemovesLaunchScript(t *testing.T) {
	m := &fakeMounter{}
	o, mountPoint := newOverlayer(t, m)

	writeTree(t, mountPoint, map[string]string{LaunchScriptName: "stale"})
	overlayDir := t.TempDir()
	// Even an overlay that ships its own launch script must not leave one.
	writeTree(t, overlayDir, map[string]string{LaunchScriptName: "from overlay", "data": "d"})

	if err := o.Apply(context.Background(), overlayDir, "disk.img", ""); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, err := os.Stat(filepath.Join(mountPoint, LaunchScriptName)); !os.IsNotExist(err) {
		t.Errorf("expected %s to be absent, stat err = %v", LaunchScriptName, err)
	}
	if _, err := os.Stat(filepath.Join(mountPoint, "data")); err != nil {
		t.Errorf("overlay data missing: %v", err)
	}
}

func TestApplyDryRun(t *testing.T) {
	m := &fakeMounter{}
	o, mountPoint := newOverlayer(t, m)
	o.DryRun = true

	if err := o.Apply(context.Background(), t.TempDir(), "disk.img", "true"); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if m.mounts != 0 {
		t.Error("dry-run should not mount")
	}
	if _, err := os.Stat(mountPoint); !os.IsNotExist(err) {
		t.Error("dry-run should not touch the mount point")
	}
}

func TestLoopMounter(t *testing.T) {
	r := &testutil.Runner{}
	m := LoopMounter{Runner: r}

	if err := m.Mount(context.Background(), "/img/disk.img", "/mnt/fs"); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if err := m.Unmount(context.Background(), "/mnt/fs"); err != nil {
		t.Fatalf("Unmount: %v", err)
	}

	got := r.Names()
	want := []string{
		"sudo -n mount -o loop /img/disk.img /mnt/fs",
		"sudo -n umount /mnt/fs",
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("commands = %q, want %q", got, want)
	}

	r.Handle = func(cmd executor.Command) (executor.Result, error) {
		return executor.Result{}, &executor.ToolError{Argv: cmd.Argv(), ExitCode: 32}
	}
	if err := m.Mount(context.Background(), "/img/disk.img", "/mnt/fs"); !errors.Is(err, executor.ErrToolFailed) {
		t.Errorf("expected ErrToolFailed, got %v", err)
	}
}
