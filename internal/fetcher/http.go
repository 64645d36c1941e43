package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/ans-sync/internal/resilience"
)

// maxPageBytes bounds how much of a directory-listing page is read into memory.
const maxPageBytes = 16 << 20

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent    string
	Timeout      time.Duration // default per-call timeout when a call passes 0
	MaxRetries   int           // total attempts per call
	RateLimiters map[string]*rate.Limiter
	Retry        *resilience.Policy // overrides backoff timing; MaxRetries still wins
	Logger       *zap.Logger
}

// HTTPFetcher fetches listing pages and downloads files over HTTP(S) with per-host
// rate limiting and retry of transient failures.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions
	log    *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// DefaultRateLimiters returns the per-host limits for the ANS portal.
func DefaultRateLimiters() map[string]*rate.Limiter {
	return map[string]*rate.Limiter{
		"dadosabertos.ans.gov.br": rate.NewLimiter(5, 5),
		"www.ans.gov.br":          rate.NewLimiter(5, 5),
	}
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "ans-sync/1.0"
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	limiters := make(map[string]*rate.Limiter, len(opts.RateLimiters))
	for k, v := range opts.RateLimiters {
		limiters[k] = v
	}

	return &HTTPFetcher{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		log:      log.With(zap.String("component", "http_fetcher")),
		limiters: limiters,
	}
}

func (f *HTTPFetcher) limiterFor(rawURL string) *rate.Limiter {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = rate.NewLimiter(10, 10)
		f.limiters[host] = lim
	}
	return lim
}

func (f *HTTPFetcher) policy(op string) resilience.Policy {
	p := resilience.DefaultPolicy()
	if f.opts.Retry != nil {
		p = *f.opts.Retry
	}
	p.MaxAttempts = f.opts.MaxRetries
	return p.WithLogger(f.log, op)
}

// get performs one GET attempt. Any status other than 200 is an error.
func (f *HTTPFetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	if err := f.limiterFor(rawURL).Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetcher: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, &resilience.StatusError{URL: rawURL, Code: resp.StatusCode}
	}
	return resp, nil
}

func (f *HTTPFetcher) timeout(d time.Duration) time.Duration {
	if d <= 0 {
		return f.opts.Timeout
	}
	return d
}

// FetchPage returns the body of a listing page as text. timeout bounds each attempt.
func (f *HTTPFetcher) FetchPage(ctx context.Context, rawURL string, timeout time.Duration) (string, error) {
	timeout = f.timeout(timeout)
	page, err := resilience.Do(ctx, f.policy("fetch_page"), func(ctx context.Context) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		resp, err := f.get(ctx, rawURL)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close() //nolint:errcheck

		b, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
		if err != nil {
			return "", eris.Wrap(err, "fetcher: read page")
		}
		return string(b), nil
	})
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: fetch page %s", rawURL)
	}
	return page, nil
}

// DownloadToFile streams rawURL to path. timeout bounds each attempt including the
// body transfer. On failure no file is left at path.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL, path string, timeout time.Duration) (int64, error) {
	timeout = f.timeout(timeout)
	start := time.Now()

	n, err := resilience.Do(ctx, f.policy("download"), func(ctx context.Context) (int64, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		resp, err := f.get(ctx, rawURL)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close() //nolint:errcheck

		return writeFile(path, resp.Body)
	})
	if err != nil {
		return 0, eris.Wrapf(err, "fetcher: download %s", rawURL)
	}

	f.log.Debug("downloaded",
		zap.String("url", rawURL),
		zap.String("path", path),
		zap.Int64("bytes", n),
		zap.Duration("elapsed", time.Since(start)),
	)
	return n, nil
}
