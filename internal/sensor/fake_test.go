package sensor_test

import (
	"context"

	"codeberg.org/mutker/envlogger/internal/sensor"
	"codeberg.org/mutker/envlogger/internal/timing"
)

// fakeDriver replays scripted poll answers and values.
type fakeDriver struct {
	vars       []sensor.Variable
	polls      []sensor.PollStatus
	values     [][]sensor.Reading
	triggerErr error
	readErr    error

	triggers int
	reads    int
}

func newFakeDriver(vars ...sensor.Variable) *fakeDriver {
	if len(vars) == 0 {
		vars = []sensor.Variable{{Name: "temperature", Unit: "degreeCelsius", Resolution: 2, Bounds: sensor.Bounds{Min: -40, Max: 80}}}
	}

	return &fakeDriver{vars: vars}
}

func (d *fakeDriver) Trigger(context.Context) error {
	d.triggers++
	return d.triggerErr
}

func (d *fakeDriver) Poll(context.Context, timing.Millis) sensor.PollStatus {
	if len(d.polls) == 0 {
		return sensor.PollReady
	}
	p := d.polls[0]
	d.polls = d.polls[1:]

	return p
}

func (d *fakeDriver) Read(context.Context) ([]sensor.Reading, error) {
	d.reads++
	if d.readErr != nil {
		return nil, d.readErr
	}
	if len(d.values) == 0 {
		return []sensor.Reading{sensor.Valid(20)}, nil
	}
	v := d.values[0]
	d.values = d.values[1:]

	return v, nil
}

func (d *fakeDriver) Variables() []sensor.Variable { return d.vars }
func (*fakeDriver) Location() string               { return "fake_0" }

type fakePower struct {
	on, off int
}

func (p *fakePower) On() error {
	p.on++
	return nil
}

func (p *fakePower) Off() error {
	p.off++
	return nil
}

func (*fakePower) Controllable() bool { return true }
func (*fakePower) String() string     { return "fake" }
