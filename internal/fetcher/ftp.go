package fetcher

import (
	"context"
	"net"
	"net/url"
	"path"
	"sort"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPOptions configures the FTP fetcher.
type FTPOptions struct {
	Timeout time.Duration
	Logger  *zap.Logger
}

// FTPFetcher downloads files and lists directories on an anonymous FTP mirror.
type FTPFetcher struct {
	opts FTPOptions
	log  *zap.Logger
}

// NewFTPFetcher creates a new FTPFetcher with the given options.
func NewFTPFetcher(opts FTPOptions) *FTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &FTPFetcher{opts: opts, log: log.With(zap.String("component", "ftp_fetcher"))}
}

// parseFTPURL extracts host (with port) and path from an FTP URL.
func parseFTPURL(rawURL string) (host string, p string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrap(err, "fetcher: parse ftp url")
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("fetcher: expected ftp scheme, got %q", u.Scheme)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	if u.Path == "" {
		return "", "", eris.New("fetcher: empty path in ftp url")
	}
	return host, u.Path, nil
}

func (f *FTPFetcher) dial(ctx context.Context, host string, timeout time.Duration) (*ftp.ServerConn, error) {
	if timeout <= 0 {
		timeout = f.opts.Timeout
	}
	conn, err := ftp.Dial(host, ftp.DialWithTimeout(timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: ftp dial")
	}
	if err := conn.Login("anonymous", "anonymous@"); err != nil {
		_ = conn.Quit()
		return nil, eris.Wrap(err, "fetcher: ftp login")
	}
	return conn, nil
}

// DownloadToFile retrieves ftpURL into path.
func (f *FTPFetcher) DownloadToFile(ctx context.Context, ftpURL, dest string, timeout time.Duration) (int64, error) {
	host, p, err := parseFTPURL(ftpURL)
	if err != nil {
		return 0, err
	}

	f.log.Debug("ftp: connecting", zap.String("host", host), zap.String("path", p))
	conn, err := f.dial(ctx, host, timeout)
	if err != nil {
		return 0, err
	}
	defer conn.Quit() //nolint:errcheck

	resp, err := conn.Retr(p)
	if err != nil {
		return 0, eris.Wrapf(err, "fetcher: ftp retrieve %s", p)
	}
	defer resp.Close() //nolint:errcheck

	n, err := writeFile(dest, resp)
	if err != nil {
		return n, eris.Wrapf(err, "fetcher: download %s", ftpURL)
	}
	return n, nil
}

// ListFiles returns the base names of the entries in the directory at dirURL, sorted.
func (f *FTPFetcher) ListFiles(ctx context.Context, dirURL string, timeout time.Duration) ([]string, error) {
	host, p, err := parseFTPURL(dirURL)
	if err != nil {
		return nil, err
	}

	conn, err := f.dial(ctx, host, timeout)
	if err != nil {
		return nil, err
	}
	defer conn.Quit() //nolint:errcheck

	entries, err := conn.NameList(p)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: ftp list %s", p)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, path.Base(e))
	}
	sort.Strings(names)
	return names, nil
}
