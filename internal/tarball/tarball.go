// Package tarball packs and unpacks gzip-compressed tar trees. Entries are
// always stored relative to the tree root so an archive can be restored
// under any prefix.
package tarball

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Compress writes root's contents to w as a gzip-compressed tar stream.
// Regular files, directories and symlinks are preserved, including
// permission bits.
func Compress(root string, w io.Writer) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		if rel == "." {
			return nil
		}

		link := ""
		if info.Mode()&os.ModeSymlink != 0 {
			link, err = os.Readlink(path)
			if err != nil {
				return err
			}
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}

		hdr.Name = filepath.ToSlash(rel)
		if info.IsDir() {
			hdr.Name += "/"
		}

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to archive %s: %w", root, err)
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}

	return gz.Close()
}

// Extract unpacks a gzip-compressed tar stream into destDir and returns
// the relative paths of the entries written, in archive order.
func Extract(r io.Reader, destDir string) ([]string, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open compressed stream: %w", err)
	}
	defer gz.Close()

	var entries []string

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return entries, fmt.Errorf("failed to read archive: %w", err)
		}

		if err := writeEntry(destDir, hdr, tr); err != nil {
			return entries, err
		}

		entries = append(entries, hdr.Name)
	}

	return entries, nil
}

func writeEntry(destDir string, hdr *tar.Header, r io.Reader) error {
	target := filepath.Join(destDir, filepath.FromSlash(hdr.Name))
	mode := hdr.FileInfo().Mode().Perm()

	switch hdr.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, mode)

	case tar.TypeSymlink:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}

		// Replace any leftover from a previous extraction.
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			return err
		}

		return os.Symlink(hdr.Linkname, target)

	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}

		f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
		if err != nil {
			return err
		}

		if _, err := io.Copy(f, r); err != nil {
			f.Close()
			return fmt.Errorf("failed to extract %s: %w", hdr.Name, err)
		}

		if err := f.Close(); err != nil {
			return err
		}

		// O_CREATE honors the umask; restore the recorded bits.
		return os.Chmod(target, mode)

	default:
		// Hard links and device nodes do not occur in these trees.
		return nil
	}
}
