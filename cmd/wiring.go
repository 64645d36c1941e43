package main

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ans-sync/internal/config"
	"github.com/sells-group/ans-sync/internal/db"
	"github.com/sells-group/ans-sync/internal/fetcher"
	"github.com/sells-group/ans-sync/internal/ingest"
	"github.com/sells-group/ans-sync/internal/load"
	"github.com/sells-group/ans-sync/internal/localfs"
	"github.com/sells-group/ans-sync/internal/metrics"
	"github.com/sells-group/ans-sync/internal/store"
)

// errPhaseFailed makes a command exit non-zero after its phase reported failure. The
// details are already in the log.
var errPhaseFailed = eris.New("phase failed")

// stores bundles the repositories for the configured driver.
type stores struct {
	Operators  store.OperatorStore
	Accounting store.AccountingStore
	close      func()
}

func (s *stores) Close() {
	if s != nil && s.close != nil {
		s.close()
	}
}

// openStores connects to the configured database and validates that both tables
// exist.
func openStores(ctx context.Context, c *config.Config, log *zap.Logger) (*stores, error) {
	opts := store.Options{Schema: c.Store.Schema, Encoding: c.Store.CSVEncoding, Logger: log}

	switch c.Store.Driver {
	case "postgres":
		mgr, err := db.Connect(ctx, db.PoolConfig{
			DSN:    c.Store.DatabaseURL,
			Size:   c.Store.PoolSize,
			Tables: store.PostgresTables(c.Store.Schema),
		})
		if err != nil {
			return nil, eris.Wrap(err, "open postgres store")
		}
		return &stores{
			Operators:  store.NewPostgresOperators(mgr.Pool(), opts),
			Accounting: store.NewPostgresAccounting(mgr.Pool(), opts),
			close:      mgr.Close,
		}, nil
	case "sqlite":
		sqlDB, err := db.OpenSQLite(ctx, c.Store.DatabaseURL, c.Store.PoolSize, store.SQLiteTables)
		if err != nil {
			return nil, eris.Wrap(err, "open sqlite store")
		}
		return &stores{
			Operators:  store.NewSQLiteOperators(sqlDB, opts),
			Accounting: store.NewSQLiteAccounting(sqlDB, opts),
			close:      func() { closeQuietly(sqlDB) },
		}, nil
	default:
		return nil, eris.Errorf("unknown store driver %q", c.Store.Driver)
	}
}

func closeQuietly(sqlDB *sql.DB) { _ = sqlDB.Close() }

// newFetcher builds the scheme-dispatching fetcher used for discovery and downloads.
func newFetcher(c *config.Config, log *zap.Logger) *fetcher.Multi {
	return &fetcher.Multi{
		HTTP: fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:    c.Source.UserAgent,
			Timeout:      c.DownloadTimeout(),
			MaxRetries:   c.Source.MaxRetries,
			RateLimiters: fetcher.DefaultRateLimiters(),
			Logger:       log,
		}),
		FTP: fetcher.NewFTPFetcher(fetcher.FTPOptions{
			Timeout: c.DownloadTimeout(),
			Logger:  log,
		}),
	}
}

func ingestConfig(c *config.Config) ingest.Config {
	return ingest.Config{
		BaseAccountingURL: c.Source.BaseAccountingURL,
		OperatorsCSVURL:   c.Source.OperatorsCSVURL,
		Years:             c.Source.Years,
		Layout:            c.Layout(),
		PageTimeout:       c.PageTimeout(),
		DownloadTimeout:   c.DownloadTimeout(),
		Workers:           c.Source.Workers,
	}
}

func loadConfig(c *config.Config) load.Config {
	l := c.Layout()
	return load.Config{OperatorsCSV: l.OperatorsCSV, StatementsDir: l.CSVs}
}

// runDownload runs the download phase.
func runDownload(ctx context.Context, c *config.Config, rec *metrics.Recorder, log *zap.Logger) bool {
	f := newFetcher(c, log)
	orch := ingest.New(ingest.Deps{
		Pages:      f,
		Links:      f,
		Downloader: f,
		Extractor:  fetcher.ZIPExtractor{},
		FS:         localfs.OS{},
		Metrics:    rec,
	}, log)
	return orch.Execute(ctx, ingestConfig(c))
}

// runLoad runs the load phase against an open store.
func runLoad(ctx context.Context, c *config.Config, st *stores, rec *metrics.Recorder, log *zap.Logger) bool {
	orch := load.New(load.Deps{
		Operators:  st.Operators,
		Accounting: st.Accounting,
		FS:         localfs.OS{},
		Metrics:    rec,
	}, log)
	return orch.Execute(ctx, loadConfig(c))
}

// writeMetrics dumps the run metrics if a textfile is configured.
func writeMetrics(c *config.Config, rec *metrics.Recorder, log *zap.Logger) {
	if err := rec.WriteTextfile(c.Metrics.Textfile); err != nil {
		log.Warn("cannot write metrics textfile", zap.Error(err))
	}
}
