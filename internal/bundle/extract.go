package bundle

import (
	"archive/tar"
	"compress/bzip2"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// ErrUnsafePath is returned for archive entries that would land outside the
// extraction directory.
var ErrUnsafePath = errors.New("archive entry escapes destination")

// Extract unpacks a tar archive into dest. Compression is chosen from the
// file name: .tar.gz/.tgz, .tar.bz2/.tbz2 or plain .tar.
func Extract(ctx context.Context, archive, dest string) error {
	f, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	switch name := strings.ToLower(archive); {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		zr, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", archive, err)
		}
		defer zr.Close()
		r = zr
	case strings.HasSuffix(name, ".tar.bz2"), strings.HasSuffix(name, ".tbz2"):
		r = bzip2.NewReader(f)
	}

	if err := os.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	root, err := os.OpenRoot(dest)
	if err != nil {
		return fmt.Errorf("open %s: %w", dest, err)
	}
	defer root.Close()

	tr := tar.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", archive, err)
		}
		if err := extractEntry(tr, hdr, root); err != nil {
			return fmt.Errorf("extract %s from %s: %w", hdr.Name, archive, err)
		}
	}
}

// extractEntry creates hdr below root. Every create goes through root, so a
// link planted by an earlier entry cannot redirect a later one outside it.
func extractEntry(tr *tar.Reader, hdr *tar.Header, root *os.Root) error {
	name, err := local(hdr.Name)
	if err != nil {
		return err
	}
	mode := os.FileMode(hdr.Mode).Perm()

	switch hdr.Typeflag {
	case tar.TypeDir:
		return root.MkdirAll(name, mode|0700)

	case tar.TypeReg:
		if err := root.MkdirAll(filepath.Dir(name), 0755); err != nil {
			return err
		}
		out, err := root.OpenFile(name, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return err
		}
		return out.Close()

	case tar.TypeSymlink:
		// Shared-library bundles are full of relative .so links; they may
		// only point inside the root.
		if filepath.IsAbs(hdr.Linkname) {
			return fmt.Errorf("%w: absolute link %s", ErrUnsafePath, hdr.Linkname)
		}
		if err := resolve(root, filepath.Dir(name), hdr.Linkname); err != nil {
			return err
		}
		if err := root.MkdirAll(filepath.Dir(name), 0755); err != nil {
			return err
		}
		root.Remove(name)
		return root.Symlink(hdr.Linkname, name)

	case tar.TypeLink:
		source, err := local(hdr.Linkname)
		if err != nil {
			return err
		}
		root.Remove(name)
		return root.Link(source, name)

	default:
		// Devices, fifos and the like have no place in a driver bundle.
		return nil
	}
}

// local cleans an entry name and rejects names that leave the root.
func local(name string) (string, error) {
	clean := filepath.Clean(name)
	if !filepath.IsLocal(clean) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return clean, nil
}

// maxLinkHops bounds symlink chains followed by resolve.
const maxLinkHops = 40

// resolve walks link from dir the way the kernel would, following links
// already present below root, and fails if the walk climbs above root.
// Components that do not exist yet are taken as plain names.
func resolve(root *os.Root, dir, link string) error {
	var cur []string
	if dir != "." {
		cur = strings.Split(filepath.ToSlash(dir), "/")
	}
	pending := strings.Split(filepath.ToSlash(link), "/")
	hops := 0
	for len(pending) > 0 {
		elem := pending[0]
		pending = pending[1:]
		switch elem {
		case "", ".":
			continue
		case "..":
			if len(cur) == 0 {
				return fmt.Errorf("%w: link %s", ErrUnsafePath, link)
			}
			cur = cur[:len(cur)-1]
			continue
		}

		cur = append(cur, elem)
		p := filepath.Join(cur...)
		info, err := root.Lstat(p)
		if err != nil || info.Mode()&os.ModeSymlink == 0 {
			continue
		}
		if hops++; hops > maxLinkHops {
			return fmt.Errorf("%w: too many links in %s", ErrUnsafePath, link)
		}
		target, err := root.Readlink(p)
		if err != nil {
			return err
		}
		if filepath.IsAbs(target) {
			return fmt.Errorf("%w: link %s", ErrUnsafePath, link)
		}
		cur = cur[:len(cur)-1]
		pending = append(strings.Split(filepath.ToSlash(target), "/"), pending...)
	}
	return nil
}
