// Package load truncates and reloads the operator registry and accounting statements
// from the files left by the download phase.
package load

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ans-sync/internal/ans"
	"github.com/sells-group/ans-sync/internal/metrics"
)

const statementPattern = "*.csv"

// Config points at the inputs of one load run.
type Config struct {
	OperatorsCSV  string
	StatementsDir string
}

// Summary counts what one run loaded.
type Summary struct {
	Operators    int64
	Statements   int64
	FilesLoaded  int
	FilesSkipped int
	FilesFailed  int
}

// Deps are the adapters the orchestrator drives.
type Deps struct {
	Operators  OperatorRepository
	Accounting AccountingRepository
	FS         FileSystem
	Metrics    *metrics.Recorder
}

// Orchestrator runs the load phase.
type Orchestrator struct {
	deps Deps
	log  *zap.Logger
}

// New creates an Orchestrator. A nil logger discards output.
func New(deps Deps, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{deps: deps, log: log.With(zap.String("component", "load"))}
}

// Execute runs the load phase. It returns false when the tables could not be cleared
// or the registry could not be loaded; individual statement files that fail do not
// change the result.
func (o *Orchestrator) Execute(ctx context.Context, cfg Config) bool {
	_, ok := o.Run(ctx, cfg)
	return ok
}

// Run is Execute with the run counters.
func (o *Orchestrator) Run(ctx context.Context, cfg Config) (sum Summary, ok bool) {
	start := time.Now()
	o.log.Info("load phase starting",
		zap.String("operators_csv", cfg.OperatorsCSV),
		zap.String("statements_dir", cfg.StatementsDir),
	)
	defer func() {
		o.deps.Metrics.Phase("load", ok, time.Since(start))
		o.log.Info("load phase finished",
			zap.Bool("ok", ok),
			zap.Int64("operators", sum.Operators),
			zap.Int64("statements", sum.Statements),
			zap.Int("files_loaded", sum.FilesLoaded),
			zap.Int("files_skipped", sum.FilesSkipped),
			zap.Int("files_failed", sum.FilesFailed),
			zap.Duration("elapsed", time.Since(start)),
		)
	}()

	// Statements reference operators, so they go first.
	if err := guard(func() error { return o.deps.Accounting.ClearAll(ctx) }); err != nil {
		o.log.Error("cannot clear accounting statements", zap.Error(err))
		return sum, false
	}
	if err := guard(func() error { return o.deps.Operators.ClearAll(ctx) }); err != nil {
		o.log.Error("cannot clear operator registry", zap.Error(err))
		return sum, false
	}

	n, err := o.loadOperators(ctx, cfg.OperatorsCSV)
	if err != nil {
		o.log.Error("operator registry load failed", zap.String("file", cfg.OperatorsCSV), zap.Error(err))
		return sum, false
	}
	sum.Operators = n
	o.deps.Metrics.AddRows("operators", n)
	if n <= 0 {
		o.log.Error("operator registry loaded no rows, skipping statements", zap.String("file", cfg.OperatorsCSV))
		return sum, false
	}
	o.log.Info("operator registry loaded", zap.Int64("rows", n))

	o.loadStatements(ctx, cfg.StatementsDir, &sum)
	return sum, true
}

func (o *Orchestrator) loadOperators(ctx context.Context, path string) (n int64, err error) {
	if !o.deps.FS.PathExists(path) {
		return 0, eris.Errorf("load: registry file %s not found", path)
	}
	err = guard(func() error {
		n, err = o.deps.Operators.LoadFromCSV(ctx, path)
		return err
	})
	return n, err
}

func (o *Orchestrator) loadStatements(ctx context.Context, dir string, sum *Summary) {
	files, err := o.deps.FS.ListFiles(dir, statementPattern)
	if err != nil {
		o.log.Error("cannot list statement files", zap.String("dir", dir), zap.Error(err))
		return
	}
	if len(files) == 0 {
		o.log.Warn("no statement files to load", zap.String("dir", dir))
		return
	}

	for _, path := range files {
		name := o.deps.FS.Filename(path)
		log := o.log.With(zap.String("file", name))

		refDate, ok := ans.ParseReferenceDate(name)
		if !ok {
			log.Warn("no reference date in file name, skipping")
			sum.FilesSkipped++
			o.deps.Metrics.File("skipped")
			continue
		}

		var rows int64
		err := guard(func() error {
			var lerr error
			rows, lerr = o.deps.Accounting.LoadFromCSV(ctx, path, refDate)
			return lerr
		})
		if err != nil {
			log.Error("statement file load failed", zap.Time("reference_date", refDate), zap.Error(err))
			sum.FilesFailed++
			o.deps.Metrics.File("failed")
			continue
		}

		sum.Statements += rows
		sum.FilesLoaded++
		o.deps.Metrics.File("loaded")
		o.deps.Metrics.AddRows("accounting", rows)
		log.Info("statement file loaded",
			zap.String("reference_date", refDate.Format(time.DateOnly)),
			zap.Int64("rows", rows),
		)
	}
	o.log.Info("statements loaded", zap.Int64("rows", sum.Statements), zap.Int("files", sum.FilesLoaded))
}

// guard runs fn and turns a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("load: panic: %v", r)
		}
	}()
	return fn()
}
