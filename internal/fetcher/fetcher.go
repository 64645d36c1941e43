// Package fetcher holds the network and archive adapters behind the ingestion
// pipeline: HTTP and FTP downloads, directory-listing link discovery and ZIP
// extraction.
package fetcher

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
)

// Fetcher downloads a remote resource to disk.
type Fetcher interface {
	// DownloadToFile streams url to path and returns the number of bytes written.
	DownloadToFile(ctx context.Context, url, path string, timeout time.Duration) (int64, error)
}

// writeFile streams r to path through a temporary sibling file that is renamed into
// place only after a complete copy, so a failed transfer never leaves a truncated
// artifact behind. The parent directory is created as needed.
func writeFile(path string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, eris.Wrap(err, "fetcher: create parent directory")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.part")
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: create file")
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return n, eris.Wrap(err, "fetcher: write file")
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return n, eris.Wrap(err, "fetcher: rename file")
	}
	return n, nil
}
