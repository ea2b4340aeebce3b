package power

import (
	"sync"

	"codeberg.org/mutker/envlogger/internal/errors"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

var (
	hostOnce sync.Once
	hostErr  error
)

// InitHost loads the periph host drivers once per process. The I2C drivers
// share it.
func InitHost() error {
	hostOnce.Do(func() {
		if _, err := host.Init(); err != nil {
			hostErr = errors.New().Wrap(ErrHostInit, err)
		}
	})

	return hostErr
}

// NewPeriph resolves a GPIO line by name ("GPIO22", "P1_15", ...) through
// the periph registry.
func NewPeriph(name string) (Controller, error) {
	if err := InitHost(); err != nil {
		return nil, err
	}

	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, errors.New().WithData(ErrPinNotFound, name)
	}

	return NewGPIO(pin), nil
}
