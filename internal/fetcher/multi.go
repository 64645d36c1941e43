package fetcher

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Multi dispatches on URL scheme: http and https go to the HTTP fetcher, ftp to the
// FTP fetcher. For an ftp directory the "page" is its name listing, one per line.
type Multi struct {
	HTTP *HTTPFetcher
	FTP  *FTPFetcher
}

var (
	_ Fetcher = (*HTTPFetcher)(nil)
	_ Fetcher = (*FTPFetcher)(nil)
	_ Fetcher = (*Multi)(nil)
)

func scheme(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Scheme)
}

// FetchPage returns the listing page for rawURL.
func (m *Multi) FetchPage(ctx context.Context, rawURL string, timeout time.Duration) (string, error) {
	switch scheme(rawURL) {
	case "http", "https":
		if m.HTTP != nil {
			return m.HTTP.FetchPage(ctx, rawURL, timeout)
		}
	case "ftp":
		if m.FTP != nil {
			names, err := m.FTP.ListFiles(ctx, rawURL, timeout)
			if err != nil {
				return "", err
			}
			return strings.Join(names, "\n"), nil
		}
	}
	return "", eris.Errorf("fetcher: no fetcher for %q", rawURL)
}

// FindLinks extracts links from a page fetched by FetchPage.
func (m *Multi) FindLinks(baseURL, page, ext string) ([]string, error) {
	if scheme(baseURL) == "ftp" {
		return linksFromListing(baseURL, page, ext)
	}
	return FindLinks(baseURL, page, ext)
}

// DownloadToFile downloads rawURL to path with the fetcher for its scheme.
func (m *Multi) DownloadToFile(ctx context.Context, rawURL, path string, timeout time.Duration) (int64, error) {
	var f Fetcher
	switch scheme(rawURL) {
	case "http", "https":
		if m.HTTP != nil {
			f = m.HTTP
		}
	case "ftp":
		if m.FTP != nil {
			f = m.FTP
		}
	}
	if f == nil {
		return 0, eris.Errorf("fetcher: no fetcher for %q", rawURL)
	}
	return f.DownloadToFile(ctx, rawURL, path, timeout)
}
