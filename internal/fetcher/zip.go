package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractZIP extracts all files from a ZIP archive to the destination directory,
// keeping the archive's relative paths. Returns the list of extracted file paths.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "zip: create destination")
	}

	var extracted []string
	for _, f := range r.File {
		path, err := extractZIPEntry(f, destDir)
		if err != nil {
			return extracted, err
		}
		if path != "" {
			extracted = append(extracted, path)
		}
	}
	return extracted, nil
}

// ZIPExtractor adapts ExtractZIP to the ingestion pipeline.
type ZIPExtractor struct{}

// ExtractArchive extracts archivePath into destDir.
func (ZIPExtractor) ExtractArchive(archivePath, destDir string) error {
	_, err := ExtractZIP(archivePath, destDir)
	return err
}

// extractZIPEntry extracts a single zip.File to the destination directory.
// Returns the extracted file path, or empty string for directories.
func extractZIPEntry(f *zip.File, destDir string) (string, error) {
	destPath := filepath.Join(destDir, f.Name)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: illegal path %q (zip slip attempt)", f.Name)
	}

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(destPath, 0o755); err != nil {
			return "", eris.Wrap(err, "zip: create directory")
		}
		return "", nil
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrapf(err, "zip: open entry %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	if _, err := writeFile(destPath, rc); err != nil {
		return "", eris.Wrapf(err, "zip: write %s", f.Name)
	}
	return destPath, nil
}
