package telemetry

import (
	"context"
	"net/http"

	"codeberg.org/mutker/envlogger/internal/report"
)

// Collector exposes the latest report of every variable as gauges.
type Collector interface {
	Report(ctx context.Context, reports []report.Report) error
	Handler() http.Handler
	Close() error
}

// Repository holds the exported series
type Repository interface {
	Store(reports []report.Report)
}
