// Package overlay injects files into a simulation disk image: it mounts the
// image, copies an overlay tree onto it, installs or removes the in-image
// launch script and always unmounts afterwards.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"fireslurm/internal/logging"

	"github.com/otiai10/copy"
)

// Overlayer applies overlays through a Mounter.
type Overlayer struct {
	Mounter Mounter
	// MountPoint is resolved against the working directory, so callers
	// must keep a stable working directory. Two runs on the same host
	// sharing it would collide.
	MountPoint string
	Logger     *logging.Logger
	DryRun     bool
}

func (o *Overlayer) logger() *logging.Logger {
	if o.Logger == nil {
		o.Logger = logging.Default("overlay")
	}
	return o.Logger
}

// WithMount mounts image, calls fn with the mounted root and unmounts on
// every exit path. An unmount failure is joined to fn's error.
func (o *Overlayer) WithMount(ctx context.Context, image string, fn func(root string) error) (err error) {
	mountPoint, err := filepath.Abs(o.MountPoint)
	if err != nil {
		return fmt.Errorf("resolve mount point: %w", err)
	}
	if err := os.MkdirAll(mountPoint, 0755); err != nil {
		return fmt.Errorf("create mount point: %w", err)
	}

	if err := o.Mounter.Mount(ctx, image, mountPoint); err != nil {
		return err
	}
	o.logger().Debugf("mounted %s at %s", image, mountPoint)

	defer func() {
		// Unmount even if ctx was cancelled while fn ran.
		if uerr := o.Mounter.Unmount(context.WithoutCancel(ctx), mountPoint); uerr != nil {
			err = errors.Join(err, uerr)
			return
		}
		o.logger().Debugf("unmounted %s", mountPoint)
	}()

	return fn(mountPoint)
}

// Apply copies the overlay tree onto image, overwriting existing entries,
// then installs the launch script for command. An empty command removes
// any launch script so the simulation boots to an interactive console.
func (o *Overlayer) Apply(ctx context.Context, overlayDir, image, command string) error {
	if o.DryRun {
		o.logger().Printf("dry-run: overlay %s onto %s at %s", overlayDir, image, o.MountPoint)
		return nil
	}

	o.logger().Printf("overlaying %s onto %s", overlayDir, image)
	return o.WithMount(ctx, image, func(root string) error {
		if err := copy.Copy(overlayDir, root); err != nil {
			return fmt.Errorf("copy overlay %s: %w", overlayDir, err)
		}
		return InstallLaunchScript(root, command, o.logger())
	})
}
