// Package report carries averaged readings from the station to its sinks.
package report

import (
	"context"
	"time"

	"codeberg.org/mutker/envlogger/internal/errors"
	"codeberg.org/mutker/envlogger/internal/logger"
	"codeberg.org/mutker/envlogger/internal/sensor"
	"go.uber.org/multierr"
)

// Report is the result of one variable for one logging interval.
type Report struct {
	Timestamp   time.Time
	Sensor      string
	Location    string
	Variable    sensor.Variable
	Index       int
	Value       sensor.Reading
	ValidCount  int
	FailedCount int
}

// Formatted renders the value with the variable's resolution, or the
// sentinel when missing.
func (r Report) Formatted() string {
	return r.Value.Format(r.Variable.Resolution)
}

type Reporter interface {
	Report(ctx context.Context, reports []Report) error
}

// Multi fans a batch out to every reporter. A failing reporter does not stop
// the others.
func Multi(reporters ...Reporter) Reporter {
	return multi(reporters)
}

type multi []Reporter

func (m multi) Report(ctx context.Context, reports []Report) error {
	var err error
	for _, r := range m {
		err = multierr.Append(err, r.Report(ctx, reports))
	}
	if err != nil {
		return errors.New().Wrap(errors.ErrReport, err)
	}

	return nil
}

type logReporter struct {
	log logger.Logger
}

// Log writes every report as an info event.
func Log(log logger.Logger) Reporter {
	if log == nil {
		log = logger.Component("report")
	}

	return &logReporter{log: log}
}

func (l *logReporter) Report(_ context.Context, reports []Report) error {
	for _, r := range reports {
		l.log.Info().
			Str("sensor", r.Sensor).
			Str("location", r.Location).
			Str("variable", r.Variable.Name).
			Str("value", r.Formatted()).
			Str("unit", r.Variable.Unit).
			Int("valid", r.ValidCount).
			Int("failed", r.FailedCount).
			Msg("")
	}

	return nil
}

// Func adapts a function to a Reporter.
type Func func(ctx context.Context, reports []Report) error

func (f Func) Report(ctx context.Context, reports []Report) error {
	return f(ctx, reports)
}
