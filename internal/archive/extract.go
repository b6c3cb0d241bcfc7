// Package archive extracts ZIP archives into a billy.Filesystem.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
)

// Extract writes every entry of the ZIP archive in r (of the given size)
// into dst, keeping the archive's relative paths. It returns the paths of
// the files written, in archive order.
func Extract(r io.ReaderAt, size int64, dst billy.Filesystem) ([]string, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("archive: open zip: %w", err)
	}

	var written []string
	for _, f := range zr.File {
		name, err := entryPath(f.Name)
		if err != nil {
			return written, err
		}
		if name == "" {
			continue
		}

		if f.FileInfo().IsDir() {
			if err := dst.MkdirAll(name, 0o755); err != nil {
				return written, fmt.Errorf("archive: mkdir %q: %w", name, err)
			}
			continue
		}

		if err := extractFile(f, name, dst); err != nil {
			return written, err
		}
		written = append(written, name)
	}
	return written, nil
}

func extractFile(f *zip.File, name string, dst billy.Filesystem) error {
	if dir := path.Dir(name); dir != "." {
		if err := dst.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("archive: mkdir %q: %w", dir, err)
		}
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("archive: open entry %q: %w", f.Name, err)
	}
	defer src.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	out, err := dst.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("archive: create %q: %w", name, err)
	}

	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("archive: write %q: %w", name, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("archive: close %q: %w", name, err)
	}
	return nil
}

// entryPath cleans a ZIP entry name into a slash-separated path relative
// to the extraction root. Absolute names and names that climb out of the
// root are rejected.
func entryPath(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	if strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("archive: absolute entry path %q", name)
	}
	clean := path.Clean(name)
	if clean == "." {
		return "", nil
	}
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("archive: entry %q escapes destination", name)
	}
	return clean, nil
}
