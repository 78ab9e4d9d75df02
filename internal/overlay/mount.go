package overlay

import (
	"context"
	"fmt"

	"fireslurm/internal/executor"
)

// Mounter attaches a disk image to a directory and detaches it again.
type Mounter interface {
	Mount(ctx context.Context, image, dir string) error
	Unmount(ctx context.Context, dir string) error
}

// LoopMounter mounts images through the loop device with sudo.
type LoopMounter struct {
	Runner executor.Runner
}

// Mount runs "sudo -n mount -o loop image dir".
func (m LoopMounter) Mount(ctx context.Context, image, dir string) error {
	if _, err := m.Runner.Run(ctx, executor.Sudo("mount", "-o", "loop", image, dir)); err != nil {
		return fmt.Errorf("mount %s: %w", image, err)
	}
	return nil
}

// Unmount runs "sudo -n umount dir".
func (m LoopMounter) Unmount(ctx context.Context, dir string) error {
	if _, err := m.Runner.Run(ctx, executor.Sudo("umount", dir)); err != nil {
		return fmt.Errorf("umount %s: %w", dir, err)
	}
	return nil
}
