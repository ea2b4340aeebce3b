package station

import (
	"context"

	"codeberg.org/mutker/envlogger/internal/errors"
	"codeberg.org/mutker/envlogger/internal/logger"
	"codeberg.org/mutker/envlogger/internal/sensor"
	"codeberg.org/mutker/envlogger/internal/timing"
)

type phase int

const (
	phaseWaking phase = iota
	phaseIdle
	phaseMeasuring
	phaseDone
)

// task tracks one sensor through a logging cycle.
type task struct {
	*member

	phase   phase
	sample  int
	attempt int
	started timing.Millis
	timeout timing.Millis
	log     logger.Logger
}

// cycle is the per-interval state shared by every task.
type cycle struct {
	tasks []*task
	buses map[string]*task
}

// acquire claims the task's bus. Sensors without a bus never wait.
func (c *cycle) acquire(t *task) bool {
	if t.bus == "" {
		return true
	}
	if holder, ok := c.buses[t.bus]; ok && holder != t {
		return false
	}
	c.buses[t.bus] = t

	return true
}

func (c *cycle) release(t *task) {
	if t.bus != "" && c.buses[t.bus] == t {
		delete(c.buses, t.bus)
	}
}

// step advances the task as far as the sensor's gates allow at now. It
// never waits.
func (t *task) step(ctx context.Context, now timing.Millis, c *cycle) {
	s := t.sensor

	switch t.phase {
	case phaseWaking:
		if !s.IsStable(now) {
			return
		}
		t.phase = phaseIdle
		t.start(ctx, now, c)
	case phaseIdle:
		t.start(ctx, now, c)
	case phaseMeasuring:
		t.collect(ctx, now, c)
	case phaseDone:
	}
}

func (t *task) start(ctx context.Context, now timing.Millis, c *cycle) {
	if t.sample >= t.sensor.MeasurementsToAverage() {
		t.phase = phaseDone
		return
	}
	if !c.acquire(t) {
		return
	}

	t.attempt++
	if err := t.sensor.StartSingleMeasurement(ctx, now); err != nil {
		c.release(t)
		t.settle(false)
		return
	}

	t.started = now
	t.phase = phaseMeasuring
}

func (t *task) collect(ctx context.Context, now timing.Millis, c *cycle) {
	out, err := t.sensor.AddSingleMeasurementResult(ctx, now)
	switch {
	case errors.HasCode(err, sensor.ErrMeasurementPending):
		if t.timeout == 0 || !timing.Reached(now, t.started, t.sensor.MeasurementTime()+t.timeout) {
			return
		}
		t.log.Warn().
			Int("attempt", t.attempt).
			Msg("Driver did not answer in time, abandoning measurement")
		t.sensor.Abandon()
	case err != nil:
		t.log.Warn().Err(err).Msg("Collecting measurement failed")
		t.sensor.Abandon()
	}

	c.release(t)
	t.settle(err == nil && out.Complete())
}

// settle closes an attempt. An incomplete attempt is retried for the
// variables still missing until the budget runs out; then those stay failed
// and the next sample begins.
func (t *task) settle(ok bool) {
	if !ok && t.attempt < t.budget {
		t.phase = phaseIdle
		return
	}
	if !ok {
		t.log.Warn().
			Int("sample", t.sample+1).
			Int("attempts", t.attempt).
			Msg("Retry budget exhausted")
		t.sensor.BeginSample()
	}

	t.sample++
	t.attempt = 0
	t.phase = phaseIdle
	if t.sample >= t.sensor.MeasurementsToAverage() {
		t.phase = phaseDone
	}
}

// abort gives up whatever the task was doing when the cycle ends early.
func (t *task) abort(c *cycle) {
	if t.phase == phaseMeasuring {
		t.sensor.Abandon()
	}
	c.release(t)
	t.phase = phaseDone
}
