package metrics

import (
	"context"

	"codeberg.org/mutker/envlogger/internal/report"
)

// Collector stores every report it is given.
type Collector interface {
	Report(ctx context.Context, reports []report.Report) error
	Close() error
}

// Repository defines the interface for reading storage
type Repository interface {
	Store(reports []report.Report) error
	Close() error
}
