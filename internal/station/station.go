// Package station owns the sensors and runs the logging cycle: power every
// sensor, interleave their lifecycles until each has its samples, power
// down and report.
package station

import (
	"context"
	"fmt"
	"time"

	"codeberg.org/mutker/envlogger/internal/errors"
	"codeberg.org/mutker/envlogger/internal/logger"
	"codeberg.org/mutker/envlogger/internal/report"
	"codeberg.org/mutker/envlogger/internal/sensor"
	"codeberg.org/mutker/envlogger/internal/timing"
	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
)

const (
	DefaultPollInterval   = 100 * time.Millisecond
	DefaultAttemptTimeout = 5 * time.Second
	DefaultSetupTries     = 5
)

// Member is one sensor attached to the station.
type Member struct {
	Sensor *sensor.Sensor
	// Bus names the physical bus. Sensors sharing a non-empty bus are
	// measured one at a time.
	Bus string
}

type Config struct {
	Members  []Member
	Reporter report.Reporter
	Clock    clock.Clock
	// RetryBudget caps the attempts per sample. Zero uses the driver's own
	// budget, or a single attempt when it has none.
	RetryBudget int
	// PollInterval is the pause between passes over the sensors.
	PollInterval time.Duration
	// AttemptTimeout is how long past its measurement time a driver may keep
	// answering pending. Zero waits for the driver.
	AttemptTimeout time.Duration
	SetupTries     int
	Logger         logger.Logger
}

type member struct {
	sensor *sensor.Sensor
	bus    string
	budget int
}

type Station struct {
	members        []*member
	reporter       report.Reporter
	clock          clock.Clock
	millis         timing.Clock
	pollInterval   time.Duration
	attemptTimeout time.Duration
	setupTries     int
	log            logger.Logger
}

func New(cfg Config) (*Station, error) {
	errFactory := errors.New()

	if len(cfg.Members) == 0 {
		return nil, errFactory.New(ErrNoSensors)
	}
	if cfg.RetryBudget < 0 || cfg.PollInterval < 0 || cfg.AttemptTimeout < 0 || cfg.SetupTries < 0 {
		return nil, errFactory.WithMessage(ErrInvalidConfig, "negative station setting")
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Component("station")
	}

	s := &Station{
		reporter:       cfg.Reporter,
		clock:          cfg.Clock,
		pollInterval:   cfg.PollInterval,
		attemptTimeout: cfg.AttemptTimeout,
		setupTries:     cfg.SetupTries,
		log:            log,
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	s.millis = timing.NewClock(s.clock)
	if s.reporter == nil {
		s.reporter = report.Log(log)
	}
	if s.pollInterval == 0 {
		s.pollInterval = DefaultPollInterval
	}
	if s.setupTries == 0 {
		s.setupTries = DefaultSetupTries
	}

	for _, m := range cfg.Members {
		if m.Sensor == nil {
			return nil, errFactory.WithMessage(ErrInvalidConfig, "member without sensor")
		}
		s.members = append(s.members, &member{
			sensor: m.Sensor,
			bus:    m.Bus,
			budget: retryBudget(cfg.RetryBudget, m.Sensor.Driver()),
		})
	}

	return s, nil
}

func retryBudget(configured int, d sensor.Driver) int {
	if configured > 0 {
		return configured
	}
	if b, ok := d.(sensor.RetryBudgeter); ok && b.RetryBudget() > 0 {
		return b.RetryBudget()
	}

	return 1
}

// Setup powers the sensors whose drivers need preparation, waits out their
// warm-up and runs each setup up to SetupTries times. Failures are logged
// and returned together; the sensors stay usable.
func (s *Station) Setup(ctx context.Context) error {
	errFactory := errors.New()

	var pending []*member
	now := s.millis.Millis()
	for _, m := range s.members {
		if _, ok := m.sensor.Driver().(sensor.Setupper); !ok {
			continue
		}
		if err := m.sensor.PowerUp(now); err != nil {
			s.log.Warn().Err(err).Str("sensor", m.sensor.NameAndLocation()).Msg("Power up for setup failed")
			continue
		}
		pending = append(pending, m)
	}
	if len(pending) == 0 {
		return nil
	}

	var errs error
	if err := s.awaitWarmUp(ctx, pending); err != nil {
		errs = errFactory.Wrap(ErrCanceled, err)
	} else {
		for _, m := range pending {
			errs = multierr.Append(errs, s.setupMember(ctx, m))
		}
	}

	for _, m := range pending {
		errs = multierr.Append(errs, m.sensor.PowerDown())
	}
	if errs != nil {
		return errFactory.Wrap(ErrSetupSensors, errs)
	}

	return nil
}

func (s *Station) awaitWarmUp(ctx context.Context, members []*member) error {
	for {
		now := s.millis.Millis()
		warm := true
		for _, m := range members {
			if !m.sensor.IsWarmedUp(now) {
				warm = false
			}
		}
		if warm {
			return nil
		}
		if err := s.wait(ctx, s.pollInterval); err != nil {
			return err
		}
	}
}

func (s *Station) setupMember(ctx context.Context, m *member) error {
	setupper, _ := m.sensor.Driver().(sensor.Setupper)
	log := s.log.With("sensor", m.sensor.NameAndLocation())

	var err error
	for try := 1; try <= s.setupTries; try++ {
		if err = setupper.Setup(ctx); err == nil {
			log.Info().Int("try", try).Msg("Sensor set up")
			return nil
		}
		log.Debug().Err(err).Int("try", try).Msg("Sensor setup failed")
		if ctx.Err() != nil {
			break
		}
	}

	log.Warn().Err(err).Int("tries", s.setupTries).Msg("Giving up on sensor setup")

	return errors.New().WithMessage(ErrSetupFailed, fmt.Sprintf("%s: %v", m.sensor.NameAndLocation(), err))
}

// Cycle runs one logging interval and hands the averaged values to the
// reporter. A cancelled ctx powers everything down and reports nothing.
func (s *Station) Cycle(ctx context.Context) ([]report.Report, error) {
	errFactory := errors.New()

	c := s.begin()
	var canceled error
	for !s.pass(ctx, c) {
		if err := s.wait(ctx, s.pollInterval); err != nil {
			canceled = err
			break
		}
	}

	reports, powerErr := s.finish(c)
	if canceled != nil {
		return nil, errFactory.Wrap(ErrCanceled, canceled)
	}

	if err := s.reporter.Report(ctx, reports); err != nil {
		return reports, errFactory.Wrap(ErrReport, multierr.Append(err, powerErr))
	}
	if powerErr != nil {
		return reports, errFactory.Wrap(ErrPowerDown, powerErr)
	}

	return reports, nil
}

// begin resets the accumulators and powers every sensor. A sensor that
// cannot be powered sits the cycle out and reports missing values.
func (s *Station) begin() *cycle {
	now := s.millis.Millis()
	c := &cycle{buses: make(map[string]*task)}

	for _, m := range s.members {
		m.sensor.ResetResults()
		t := &task{
			member:  m,
			timeout: timing.FromDuration(s.attemptTimeout),
			log:     s.log.With("sensor", m.sensor.NameAndLocation()),
		}
		if err := m.sensor.PowerUp(now); err != nil {
			t.log.Warn().Err(err).Msg("Power up failed, skipping sensor this cycle")
			t.phase = phaseDone
		}
		c.tasks = append(c.tasks, t)
	}

	return c
}

// pass steps every unfinished task once and reports whether all are done.
func (s *Station) pass(ctx context.Context, c *cycle) bool {
	done := true
	for _, t := range c.tasks {
		if t.phase == phaseDone {
			continue
		}
		t.step(ctx, s.millis.Millis(), c)
		if t.phase != phaseDone {
			done = false
		}
	}

	return done
}

// finish powers every sensor down and builds one report per variable.
func (s *Station) finish(c *cycle) ([]report.Report, error) {
	var powerErr error
	for _, t := range c.tasks {
		t.abort(c)
		powerErr = multierr.Append(powerErr, t.sensor.PowerDown())
	}

	ts := s.clock.Now()
	var reports []report.Report
	for _, m := range s.members {
		for i, v := range m.sensor.Variables() {
			value, valid := m.sensor.Result(i)
			reports = append(reports, report.Report{
				Timestamp:   ts,
				Sensor:      m.sensor.Name(),
				Location:    m.sensor.Location(),
				Variable:    v,
				Index:       i,
				Value:       value,
				ValidCount:  valid,
				FailedCount: m.sensor.Failures(i),
			})
		}
	}

	return reports, powerErr
}

// Run starts a cycle immediately and then once per interval until ctx is
// done. Cycle failures are logged; they do not stop the loop.
func (s *Station) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New().WithData(ErrInvalidInterval, interval)
	}

	ticker := s.clock.Ticker(interval)
	defer ticker.Stop()

	s.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

func (s *Station) runCycle(ctx context.Context) {
	start := s.clock.Now()

	reports, err := s.Cycle(ctx)
	switch {
	case errors.HasCode(err, ErrCanceled):
		s.log.Debug().Msg("Logging cycle canceled")
		return
	case err != nil:
		s.log.Warn().Err(err).Msg("Logging cycle finished with errors")
	}

	s.log.Debug().
		Int("reports", len(reports)).
		Dur("duration", s.clock.Since(start)).
		Msg("Logging cycle finished")
}

func (s *Station) wait(ctx context.Context, d time.Duration) error {
	t := s.clock.Timer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
