// Package ingest discovers, downloads and extracts the ANS open-data artifacts into
// the local file tree consumed by the load phase.
package ingest

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/ans-sync/internal/metrics"
)

const (
	archiveExt = ".zip"

	defaultPageTimeout     = 30 * time.Second
	defaultDownloadTimeout = 60 * time.Second
)

// Config drives one ingestion run.
type Config struct {
	BaseAccountingURL string
	OperatorsCSVURL   string
	Years             []string
	Layout            Layout
	PageTimeout       time.Duration
	DownloadTimeout   time.Duration
	// Workers > 1 downloads and extracts artifacts concurrently.
	Workers int
}

// Summary counts what one run did.
type Summary struct {
	RegistryDownloaded bool
	Discovered         int
	Skipped            int
	Downloaded         int
	DownloadFailed     int
	Extracted          int
	ExtractFailed      int
}

// Deps are the adapters the orchestrator drives.
type Deps struct {
	Pages      PageFetcher
	Links      LinkFinder
	Downloader Downloader
	Extractor  Extractor
	FS         FileSystem
	Metrics    *metrics.Recorder
}

// Orchestrator runs the download phase.
type Orchestrator struct {
	deps Deps
	log  *zap.Logger
}

// New creates an Orchestrator. A nil logger discards output.
func New(deps Deps, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{deps: deps, log: log.With(zap.String("component", "ingest"))}
}

// Execute runs the download phase and reports whether at least one statement archive
// was downloaded and extracted.
func (o *Orchestrator) Execute(ctx context.Context, cfg Config) bool {
	_, ok := o.Run(ctx, cfg)
	return ok
}

// Run is Execute with the run counters.
func (o *Orchestrator) Run(ctx context.Context, cfg Config) (sum Summary, ok bool) {
	start := time.Now()
	o.log.Info("download phase starting", zap.Strings("years", cfg.Years))
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("download phase panicked", zap.Any("panic", r))
			ok = false
		}
		o.deps.Metrics.Phase("download", ok, time.Since(start))
		o.log.Info("download phase finished",
			zap.Bool("ok", ok),
			zap.Duration("elapsed", time.Since(start)),
		)
	}()

	if err := o.createDirectories(cfg.Layout); err != nil {
		o.log.Error("cannot prepare data directories", zap.Error(err))
		return sum, false
	}

	sum.RegistryDownloaded = o.downloadRegistry(ctx, cfg)
	if !sum.RegistryDownloaded {
		o.log.Warn("registry download failed, continuing with accounting statements")
	}

	urls := o.discover(ctx, cfg)
	sum.Discovered = len(urls)
	if len(urls) == 0 {
		o.log.Warn("no accounting archives found for the requested years", zap.Strings("years", cfg.Years))
		return sum, false
	}

	o.process(ctx, cfg, urls, &sum)

	o.log.Info("download summary",
		zap.Int("downloaded", sum.Downloaded),
		zap.Int("download_failed", sum.DownloadFailed),
		zap.Int("skipped", sum.Skipped),
	)
	o.log.Info("extraction summary",
		zap.Int("extracted", sum.Extracted),
		zap.Int("extract_failed", sum.ExtractFailed),
	)
	return sum, sum.Extracted > 0
}

func (o *Orchestrator) createDirectories(l Layout) error {
	for _, dir := range l.Dirs() {
		if dir == "" {
			continue
		}
		if err := o.deps.FS.CreateDirectories(dir); err != nil {
			return eris.Wrapf(err, "ingest: create %s", dir)
		}
	}
	return nil
}

func (o *Orchestrator) downloadRegistry(ctx context.Context, cfg Config) (ok bool) {
	log := o.log.With(zap.String("url", cfg.OperatorsCSVURL))
	defer func() {
		if r := recover(); r != nil {
			log.Error("registry download panicked", zap.Any("panic", r))
			ok = false
		}
		result := "ok"
		if !ok {
			result = "failed"
		}
		o.deps.Metrics.Download("registry", result)
	}()

	n, err := o.deps.Downloader.DownloadToFile(ctx, cfg.OperatorsCSVURL, cfg.Layout.OperatorsCSV, timeoutOr(cfg.DownloadTimeout, defaultDownloadTimeout))
	if err != nil {
		log.Error("registry download failed", zap.Error(err))
		return false
	}
	log.Info("registry downloaded", zap.String("path", cfg.Layout.OperatorsCSV), zap.Int64("bytes", n))
	return true
}

// discover collects archive URLs for every year in order. A failing year contributes
// nothing.
func (o *Orchestrator) discover(ctx context.Context, cfg Config) []string {
	var all []string
	for _, year := range cfg.Years {
		dirURL, err := YearURL(cfg.BaseAccountingURL, year)
		if err != nil {
			o.log.Error("bad year directory url", zap.String("year", year), zap.Error(err))
			continue
		}
		links, err := o.discoverYear(ctx, cfg, dirURL)
		if err != nil {
			o.log.Error("year discovery failed", zap.String("year", year), zap.String("url", dirURL), zap.Error(err))
			continue
		}
		o.log.Info("year discovered", zap.String("year", year), zap.Int("archives", len(links)))
		all = append(all, links...)
	}
	return all
}

func (o *Orchestrator) discoverYear(ctx context.Context, cfg Config, dirURL string) (links []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("ingest: panic during discovery: %v", r)
		}
	}()

	page, err := o.deps.Pages.FetchPage(ctx, dirURL, timeoutOr(cfg.PageTimeout, defaultPageTimeout))
	if err != nil {
		return nil, err
	}
	return o.deps.Links.FindLinks(dirURL, page, archiveExt)
}

func (o *Orchestrator) process(ctx context.Context, cfg Config, urls []string, sum *Summary) {
	var c counters
	if cfg.Workers <= 1 {
		for _, u := range urls {
			o.processOne(ctx, cfg, u, &c)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Workers)
		for _, u := range urls {
			g.Go(func() error {
				o.processOne(gctx, cfg, u, &c)
				return nil
			})
		}
		_ = g.Wait()
	}

	sum.Skipped = int(c.skipped.Load())
	sum.Downloaded = int(c.downloaded.Load())
	sum.DownloadFailed = int(c.downloadFailed.Load())
	sum.Extracted = int(c.extracted.Load())
	sum.ExtractFailed = int(c.extractFailed.Load())
}

type counters struct {
	skipped, downloaded, downloadFailed, extracted, extractFailed atomic.Int64
}

// processOne downloads and extracts one archive. It never panics out: a panic is
// counted as a download failure.
func (o *Orchestrator) processOne(ctx context.Context, cfg Config, rawURL string, c *counters) {
	log := o.log.With(zap.String("url", rawURL))
	defer func() {
		if r := recover(); r != nil {
			log.Error("archive processing panicked", zap.String("panic", fmt.Sprint(r)))
			c.downloadFailed.Add(1)
			o.deps.Metrics.Download("statements", "failed")
		}
	}()

	name := ArchiveName(rawURL)
	if !strings.HasSuffix(strings.ToLower(name), archiveExt) {
		log.Warn("skipping url without an archive file name", zap.String("file", name))
		c.skipped.Add(1)
		c.downloadFailed.Add(1)
		o.deps.Metrics.Download("statements", "skipped")
		return
	}

	zipPath := filepath.Join(cfg.Layout.Zips, name)
	if _, err := o.deps.Downloader.DownloadToFile(ctx, rawURL, zipPath, timeoutOr(cfg.DownloadTimeout, defaultDownloadTimeout)); err != nil {
		log.Error("archive download failed", zap.Error(err))
		c.downloadFailed.Add(1)
		o.deps.Metrics.Download("statements", "failed")
		return
	}
	c.downloaded.Add(1)
	o.deps.Metrics.Download("statements", "ok")

	if err := o.deps.Extractor.ExtractArchive(zipPath, cfg.Layout.CSVs); err != nil {
		log.Error("archive extraction failed", zap.String("file", name), zap.Error(err))
		c.extractFailed.Add(1)
		o.deps.Metrics.Extraction("failed")
		return
	}
	c.extracted.Add(1)
	o.deps.Metrics.Extraction("ok")
	log.Info("archive extracted", zap.String("file", name))
}

// YearURL joins base with "{year}/". base is treated as a directory even without a
// trailing slash.
func YearURL(base, year string) (string, error) {
	year = strings.TrimSpace(year)
	if year == "" {
		return "", eris.New("ingest: empty year")
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", eris.Wrapf(err, "ingest: parse base url %q", base)
	}
	if !strings.HasSuffix(b.Path, "/") {
		b.Path += "/"
		if b.RawPath != "" {
			b.RawPath += "/"
		}
	}
	ref, err := url.Parse(url.PathEscape(year) + "/")
	if err != nil {
		return "", eris.Wrapf(err, "ingest: year %q", year)
	}
	return b.ResolveReference(ref).String(), nil
}

// ArchiveName is the last path segment of rawURL, without query or fragment.
func ArchiveName(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		if strings.HasSuffix(u.Path, "/") {
			return ""
		}
		return path.Base(u.Path)
	}
	if i := strings.LastIndex(rawURL, "/"); i >= 0 {
		return rawURL[i+1:]
	}
	return rawURL
}

func timeoutOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
