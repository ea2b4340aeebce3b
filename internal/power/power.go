package power

import (
	"fmt"
	"strings"
	"sync"

	"codeberg.org/mutker/envlogger/internal/errors"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"
)

// Controller switches the supply line of one sensor.
type Controller interface {
	On() error
	Off() error
	// Controllable is false for sensors on a permanent supply. On and Off
	// still succeed for those, they just do nothing.
	Controllable() bool
	String() string
}

type alwaysOn struct{}

// None returns the controller for a continuously powered sensor.
func None() Controller {
	return alwaysOn{}
}

func (alwaysOn) On() error          { return nil }
func (alwaysOn) Off() error         { return nil }
func (alwaysOn) Controllable() bool { return false }
func (alwaysOn) String() string     { return "always-on" }

// gpioLine drives a periph output pin high for on, low for off.
type gpioLine struct {
	pin gpio.PinOut
	mu  sync.Mutex
}

// NewGPIO wraps an already resolved output pin.
func NewGPIO(pin gpio.PinOut) Controller {
	return &gpioLine{pin: pin}
}

func (l *gpioLine) On() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.pin.Out(gpio.High); err != nil {
		return errors.New().Wrap(ErrSwitchOn, fmt.Errorf("%s: %w", l.pin.Name(), err))
	}
	return nil
}

func (l *gpioLine) Off() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.pin.Out(gpio.Low); err != nil {
		return errors.New().Wrap(ErrSwitchOff, fmt.Errorf("%s: %w", l.pin.Name(), err))
	}
	return nil
}

func (*gpioLine) Controllable() bool { return true }

func (l *gpioLine) String() string { return l.pin.Name() }

type multi []Controller

// Multi switches several lines as one, e.g. a sensor and its RS-485
// adapter. Lines are switched on in order and off in reverse order.
func Multi(lines ...Controller) Controller {
	var m multi
	for _, l := range lines {
		if l != nil && l.Controllable() {
			m = append(m, l)
		}
	}

	switch len(m) {
	case 0:
		return None()
	case 1:
		return m[0]
	default:
		return m
	}
}

func (m multi) On() error {
	for _, l := range m {
		if err := l.On(); err != nil {
			return err
		}
	}

	return nil
}

func (m multi) Off() error {
	var err error
	for i := len(m) - 1; i >= 0; i-- {
		err = multierr.Append(err, m[i].Off())
	}

	return err
}

func (multi) Controllable() bool { return true }

func (m multi) String() string {
	names := make([]string, len(m))
	for i, l := range m {
		names[i] = l.String()
	}

	return strings.Join(names, "+")
}
