// Package localfs is the local-disk adapter for the ingestion and load pipelines.
package localfs

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
)

// OS implements the pipelines' filesystem ports on the local disk.
type OS struct{}

// CreateDirectories creates path and any missing parents. Existing directories are
// not an error.
func (OS) CreateDirectories(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return eris.Wrapf(err, "localfs: create %s", path)
	}
	return nil
}

// PathExists reports whether path exists.
func (OS) PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ListFiles returns the regular files in dir matching the glob pattern, sorted by
// name. A missing directory yields an empty list.
func (OS) ListFiles(dir, pattern string) ([]string, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, eris.Wrapf(err, "localfs: bad pattern %q", pattern)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "localfs: list %s", dir)
	}

	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if ok, _ := filepath.Match(pattern, e.Name()); ok {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// Filename returns the last element of path.
func (OS) Filename(path string) string {
	return filepath.Base(path)
}
