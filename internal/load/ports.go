package load

import (
	"context"
	"time"
)

// OperatorRepository bulk-loads the operator registry.
type OperatorRepository interface {
	ClearAll(ctx context.Context) error
	LoadFromCSV(ctx context.Context, path string) (int64, error)
}

// AccountingRepository bulk-loads quarterly accounting statements.
type AccountingRepository interface {
	ClearAll(ctx context.Context) error
	LoadFromCSV(ctx context.Context, path string, refDate time.Time) (int64, error)
}

// FileSystem is the read side of the local data tree.
type FileSystem interface {
	PathExists(path string) bool
	ListFiles(dir, pattern string) ([]string, error)
	Filename(path string) string
}
