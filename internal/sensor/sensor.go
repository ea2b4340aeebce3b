package sensor

import (
	"context"
	"fmt"
	"time"

	"codeberg.org/mutker/envlogger/internal/errors"
	"codeberg.org/mutker/envlogger/internal/logger"
	"codeberg.org/mutker/envlogger/internal/power"
	"codeberg.org/mutker/envlogger/internal/timing"
)

// Timing is the physical settling contract of a device.
type Timing struct {
	// WarmUp runs from power-on until the device accepts commands.
	WarmUp time.Duration
	// Stabilization runs from the end of warm-up until values are accurate.
	Stabilization time.Duration
	// Measurement runs from the trigger until the result is available.
	Measurement time.Duration
}

type Config struct {
	Name                  string
	Timing                Timing
	MeasurementsToAverage int
	Power                 power.Controller
	Driver                Driver
	Logger                logger.Logger
}

// Sensor runs the power, warm-up, stabilization, trigger and collect
// lifecycle of one device. Every gate is an elapsed-time predicate; nothing
// here waits.
//
// A Sensor is owned by a single polling loop and is not safe for concurrent
// use.
type Sensor struct {
	name     string
	location string
	vars     []Variable
	average  int

	warmUp        timing.Millis
	stabilization timing.Millis
	measurement   timing.Millis

	power  power.Controller
	driver Driver
	acc    *Accumulator
	log    logger.Logger

	// owed marks the variables still waiting for a plausible value in the
	// current sample.
	owed []bool

	state       State
	poweredOn   timing.Stamp
	warmedUp    timing.Stamp
	requestedAt timing.Stamp
}

func New(cfg Config) (*Sensor, error) {
	errFactory := errors.New()

	if cfg.Driver == nil {
		return nil, errFactory.WithData(ErrNoDriver, cfg.Name)
	}
	vars := cfg.Driver.Variables()
	if len(vars) == 0 {
		return nil, errFactory.WithData(ErrNoVariables, cfg.Name)
	}
	if cfg.Timing.WarmUp < 0 || cfg.Timing.Stabilization < 0 || cfg.Timing.Measurement < 0 {
		return nil, errFactory.WithData(ErrInvalidConfig, fmt.Sprintf("%s: negative timing", cfg.Name))
	}

	average := cfg.MeasurementsToAverage
	if average < 1 {
		average = 1
	}

	pc := cfg.Power
	if pc == nil {
		pc = power.None()
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Component("sensor")
	}

	return &Sensor{
		name:          cfg.Name,
		location:      cfg.Driver.Location(),
		vars:          vars,
		average:       average,
		warmUp:        timing.FromDuration(cfg.Timing.WarmUp),
		stabilization: timing.FromDuration(cfg.Timing.Stabilization),
		measurement:   timing.FromDuration(cfg.Timing.Measurement),
		power:         pc,
		driver:        cfg.Driver,
		acc:           NewAccumulator(vars),
		log:           log.With("sensor", cfg.Name),
		owed:          owedAll(len(vars)),
	}, nil
}

func owedAll(n int) []bool {
	owed := make([]bool, n)
	for i := range owed {
		owed[i] = true
	}

	return owed
}

func (s *Sensor) Name() string                   { return s.name }
func (s *Sensor) Location() string               { return s.location }
func (s *Sensor) Variables() []Variable          { return s.vars }
func (s *Sensor) NumVariables() int              { return len(s.vars) }
func (s *Sensor) MeasurementsToAverage() int     { return s.average }
func (s *Sensor) State() State                   { return s.state }
func (s *Sensor) MeasurementTime() timing.Millis { return s.measurement }
func (s *Sensor) Driver() Driver                 { return s.driver }
func (s *Sensor) PowerLine() power.Controller    { return s.power }

// NameAndLocation is the form used in log lines, e.g. "Atmos22 at ttyUSB0_1".
func (s *Sensor) NameAndLocation() string {
	return s.name + " at " + s.location
}

// PowerUp switches the supply on and starts the warm-up clock. A sensor
// that is already powered keeps its original power-on time.
func (s *Sensor) PowerUp(now timing.Millis) error {
	if s.state != Off {
		return nil
	}

	if err := s.power.On(); err != nil {
		return errors.New().Wrap(ErrPowerUp, err)
	}

	s.poweredOn.Set(now)
	s.transition(Powering)

	return nil
}

// IsWarmedUp reports whether warm-up has elapsed, moving Powering to
// WarmedUp the first time it has.
func (s *Sensor) IsWarmedUp(now timing.Millis) bool {
	switch {
	case s.state == Off:
		return false
	case s.state >= WarmedUp:
		return true
	}

	on, _ := s.poweredOn.Get()
	if !timing.Reached(now, on, s.warmUp) {
		return false
	}

	// stabilization counts from the end of warm-up, not from when we noticed
	s.warmedUp.Set(on + s.warmUp)
	s.poweredOn.Clear()
	s.transition(WarmedUp)

	return true
}

// IsStable reports whether stabilization has elapsed, passing through the
// warm-up gate first.
func (s *Sensor) IsStable(now timing.Millis) bool {
	if !s.IsWarmedUp(now) {
		return false
	}
	if s.state >= Stable {
		return true
	}

	ref, _ := s.warmedUp.Get()
	if !timing.Reached(now, ref, s.stabilization) {
		return false
	}

	s.warmedUp.Clear()
	s.transition(Stable)

	return true
}

// StartSingleMeasurement triggers the driver. The sensor must already have
// been observed Stable (or have finished a previous measurement); otherwise
// the call is rejected and no state changes. A failed trigger counts as a
// failed sample for every variable.
func (s *Sensor) StartSingleMeasurement(ctx context.Context, now timing.Millis) error {
	errFactory := errors.New()

	switch {
	case s.state == Measuring:
		return errFactory.WithData(ErrAlreadyMeasuring, s.name)
	case s.state < Stable:
		return errFactory.WithData(ErrNotStable, fmt.Sprintf("%s is %s", s.name, s.state))
	}

	if err := s.driver.Trigger(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Measurement trigger failed")
		s.recordFailure()
		return errFactory.Wrap(ErrTriggerFailed, err)
	}

	s.requestedAt.Set(now)
	s.transition(Measuring)

	return nil
}

// IsMeasurementComplete reports whether the measurement time has elapsed
// since the trigger.
func (s *Sensor) IsMeasurementComplete(now timing.Millis) bool {
	at, ok := s.requestedAt.Get()
	if s.state != Measuring || !ok {
		return false
	}

	return timing.Reached(now, at, s.measurement)
}

// Outcome is what one collected attempt produced, after vetting. Readings
// holds the values recorded by this attempt; variables that already had a
// value for the current sample are skipped and read as missing.
type Outcome struct {
	Status   PollStatus
	Readings []Reading

	complete bool
}

// Complete reports whether the attempt finished the current sample, i.e.
// every variable now has a plausible value for it.
func (o Outcome) Complete() bool {
	return o.complete
}

// ValidCount is the number of plausible values in the attempt.
func (o Outcome) ValidCount() int {
	n := 0
	for _, r := range o.Readings {
		if r.Valid {
			n++
		}
	}

	return n
}

// AddSingleMeasurementResult collects the pending measurement into the
// accumulator. Before the measurement time has elapsed, or while the driver
// still answers pending, it returns ErrMeasurementPending and changes
// nothing. A failed or malformed response is recorded as a failed sample;
// the error return is reserved for calls that must be retried later.
func (s *Sensor) AddSingleMeasurementResult(ctx context.Context, now timing.Millis) (Outcome, error) {
	errFactory := errors.New()

	if s.state != Measuring {
		return Outcome{}, errFactory.WithData(ErrNotMeasuring, fmt.Sprintf("%s is %s", s.name, s.state))
	}
	if !s.IsMeasurementComplete(now) {
		return Outcome{}, errFactory.New(ErrMeasurementPending)
	}

	status := s.driver.Poll(ctx, now)
	if status == PollPending {
		return Outcome{}, errFactory.New(ErrMeasurementPending)
	}

	raw := s.readRaw(ctx, status)
	out := Outcome{Status: status, Readings: make([]Reading, len(s.vars))}
	for i := range s.vars {
		if !s.owed[i] {
			continue
		}
		out.Readings[i] = s.acc.Record(i, raw[i])
		s.owed[i] = !out.Readings[i].Valid
	}
	if out.complete = s.sampleDone(); out.complete {
		s.BeginSample()
	}

	s.requestedAt.Clear()
	s.transition(Ready)

	s.log.Debug().
		Str("status", status.String()).
		Int("valid", out.ValidCount()).
		Int("variables", len(s.vars)).
		Msg("Measurement result added")

	return out, nil
}

func (s *Sensor) readRaw(ctx context.Context, status PollStatus) []Reading {
	missing := make([]Reading, len(s.vars))
	if status != PollReady {
		return missing
	}

	raw, err := s.driver.Read(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Reading values failed")
		return missing
	}
	if len(raw) != len(s.vars) {
		s.log.Warn().
			Int("expected", len(s.vars)).
			Int("received", len(raw)).
			Msg("Malformed response, wrong number of values")
		return missing
	}

	return raw
}

// Abandon gives up on a measurement the driver never finished. The attempt
// counts as failed for every variable still owed a value.
func (s *Sensor) Abandon() {
	if s.state != Measuring {
		return
	}

	s.recordFailure()
	s.requestedAt.Clear()
	s.transition(Ready)
}

// PowerDown cuts the supply and forgets every timestamp. The state is Off
// afterwards even if switching the line failed.
func (s *Sensor) PowerDown() error {
	err := s.power.Off()

	s.poweredOn.Clear()
	s.warmedUp.Clear()
	s.requestedAt.Clear()
	s.transition(Off)

	if err != nil {
		return errors.New().Wrap(ErrPowerDown, err)
	}

	return nil
}

// ResetResults starts a new averaging cycle.
func (s *Sensor) ResetResults() {
	s.acc.Reset()
	s.BeginSample()
}

// BeginSample opens a new sample for every variable. A sample closes on its
// own once each variable got a plausible value; callers giving up on a
// sample after their retries open the next one here.
func (s *Sensor) BeginSample() {
	for i := range s.owed {
		s.owed[i] = true
	}
}

func (s *Sensor) sampleDone() bool {
	for _, owed := range s.owed {
		if owed {
			return false
		}
	}

	return true
}

// Result is the averaged value of variable i for the current cycle.
func (s *Sensor) Result(i int) (Reading, int) {
	return s.acc.Finalize(i)
}

// Failures is the number of rejected samples of variable i this cycle.
func (s *Sensor) Failures(i int) int {
	return s.acc.Failures(i)
}

func (s *Sensor) recordFailure() {
	for i := range s.vars {
		if s.owed[i] {
			s.acc.Record(i, Missing())
		}
	}
}

func (s *Sensor) transition(to State) {
	if s.state == to {
		return
	}

	s.log.Debug().
		Str("from", s.state.String()).
		Str("to", to.String()).
		Msg("State transition")
	s.state = to
}
