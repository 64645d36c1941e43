package ingest

import (
	"context"
	"time"
)

// PageFetcher retrieves a directory-listing page.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string, timeout time.Duration) (string, error)
}

// LinkFinder extracts absolute links ending in ext from a listing page.
type LinkFinder interface {
	FindLinks(baseURL, page, ext string) ([]string, error)
}

// Downloader retrieves one URL to one local path.
type Downloader interface {
	DownloadToFile(ctx context.Context, url, path string, timeout time.Duration) (int64, error)
}

// Extractor unpacks an archive into a directory.
type Extractor interface {
	ExtractArchive(archivePath, destDir string) error
}

// FileSystem creates the local directory layout.
type FileSystem interface {
	CreateDirectories(path string) error
}

// Layout is the local file tree shared by the download and load phases.
type Layout struct {
	Root         string
	Accounting   string
	Zips         string
	CSVs         string
	Operators    string
	OperatorsCSV string
}

// Dirs returns the five directories in creation order.
func (l Layout) Dirs() []string {
	return []string{l.Root, l.Accounting, l.Zips, l.CSVs, l.Operators}
}
