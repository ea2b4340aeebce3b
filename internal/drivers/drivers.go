// Package drivers turns [[sensors]] entries into station members, sharing
// serial lines and I2C buses between the sensors that sit on them.
package drivers

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"codeberg.org/mutker/envlogger/internal/config"
	"codeberg.org/mutker/envlogger/internal/drivers/atlas"
	"codeberg.org/mutker/envlogger/internal/drivers/k30"
	"codeberg.org/mutker/envlogger/internal/drivers/sdi12"
	"codeberg.org/mutker/envlogger/internal/errors"
	"codeberg.org/mutker/envlogger/internal/logger"
	"codeberg.org/mutker/envlogger/internal/power"
	"codeberg.org/mutker/envlogger/internal/sensor"
	"codeberg.org/mutker/envlogger/internal/station"
	"codeberg.org/mutker/envlogger/internal/transport"
	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
)

const (
	DefaultSDI12Baud = 9600
	DefaultK30Baud   = 9600
)

type (
	BusOpener   func(name string) (i2c.BusCloser, error)
	PowerOpener func(cfg power.Config) (power.Controller, error)
)

type Option func(*Env)

// WithPortOpener replaces how serial lines are opened.
func WithPortOpener(open func(transport.Config) (transport.Port, io.Closer, error)) Option {
	return func(e *Env) { e.ports = transport.NewPoolWith(open) }
}

func WithBusOpener(open BusOpener) Option {
	return func(e *Env) { e.openBus = open }
}

func WithPowerOpener(open PowerOpener) Option {
	return func(e *Env) { e.openPower = open }
}

// WithClock sets the clock drivers wait on; share it with the station.
func WithClock(c clock.Clock) Option {
	return func(e *Env) { e.clock = c }
}

// Env holds the hardware handles shared by the configured sensors.
type Env struct {
	ports     *transport.Pool
	openBus   BusOpener
	openPower PowerOpener
	buses     map[string]i2c.BusCloser
	clock     clock.Clock
	log       logger.Logger
}

func NewEnv(log logger.Logger, opts ...Option) *Env {
	if log == nil {
		log = logger.Component("drivers")
	}

	e := &Env{
		ports:     transport.NewPool(),
		openBus:   openI2C,
		openPower: power.Open,
		buses:     make(map[string]i2c.BusCloser),
		log:       log,
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

func openI2C(name string) (i2c.BusCloser, error) {
	if err := power.InitHost(); err != nil {
		return nil, err
	}

	return i2creg.Open(name)
}

// Member builds the sensor described by sc. Unless sc names a bus, sensors
// on the same serial line or I2C bus are grouped together.
func (e *Env) Member(sc config.Sensor) (station.Member, error) {
	errFactory := errors.New()

	drv, tm, bus, err := e.driver(sc)
	if err != nil {
		return station.Member{}, err
	}

	pc, err := e.openPower(power.Config{
		Backend:    sc.PowerBackend,
		Pin:        sc.PowerPin,
		AdapterPin: sc.AdapterPowerPin,
	})
	if err != nil {
		return station.Member{}, errFactory.Wrap(ErrOpenSensor, err)
	}

	s, err := sensor.New(sensor.Config{
		Name:                  sc.Name,
		Timing:                tm,
		MeasurementsToAverage: sc.MeasurementsToAverage,
		Power:                 pc,
		Driver:                drv,
	})
	if err != nil {
		return station.Member{}, errFactory.Wrap(ErrOpenSensor, err)
	}

	if sc.Bus != "" {
		bus = sc.Bus
	}
	e.log.Debug().
		Str("sensor", s.NameAndLocation()).
		Str("bus", bus).
		Str("power", pc.String()).
		Msg("Sensor configured")

	return station.Member{Sensor: s, Bus: bus}, nil
}

// Members builds every configured sensor, stopping at the first failure.
func (e *Env) Members(sensors []config.Sensor) ([]station.Member, error) {
	members := make([]station.Member, 0, len(sensors))
	for _, sc := range sensors {
		m, err := e.Member(sc)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}

	return members, nil
}

func (e *Env) driver(sc config.Sensor) (sensor.Driver, sensor.Timing, string, error) {
	errFactory := errors.New()

	switch sc.Driver {
	case config.DriverSDI12:
		model, err := sdi12.Lookup(sc.Model)
		if err != nil {
			return nil, sensor.Timing{}, "", err
		}
		if len(sc.Address) != 1 {
			return nil, sensor.Timing{}, "", errFactory.WithData(sdi12.ErrInvalidAddress, sc.Address)
		}
		port, err := e.ports.Get(transport.Config{Name: sc.Port, Baud: baud(sc.Baud, DefaultSDI12Baud)})
		if err != nil {
			return nil, sensor.Timing{}, "", err
		}
		drv, err := sdi12.New(sdi12.Config{
			Port:     port,
			PortName: sc.Port,
			Address:  sc.Address[0],
			Model:    model,
		})
		if err != nil {
			return nil, sensor.Timing{}, "", err
		}
		return drv, model.Timing, sc.Port, nil

	case config.DriverK30:
		port, err := e.ports.Get(transport.Config{Name: sc.Port, Baud: baud(sc.Baud, DefaultK30Baud)})
		if err != nil {
			return nil, sensor.Timing{}, "", err
		}
		drv := k30.New(k30.Config{Port: port, PortName: sc.Port})
		return drv, k30.Timing, sc.Port, nil

	case config.DriverAtlas:
		bus, err := e.bus(sc.I2CBus)
		if err != nil {
			return nil, sensor.Timing{}, "", err
		}
		//nolint:gosec // G115: validated to 7 bits
		drv, err := atlas.New(atlas.Config{
			Bus:     bus,
			BusName: busLabel(sc.I2CBus),
			Address: uint16(sc.I2CAddress),
			Clock:   e.clock,
		})
		if err != nil {
			return nil, sensor.Timing{}, "", err
		}
		return drv, atlas.Timing, "i2c:" + sc.I2CBus, nil

	default:
		return nil, sensor.Timing{}, "", errFactory.WithData(ErrUnknownDriver, sc.Driver)
	}
}

func (e *Env) bus(name string) (i2c.Bus, error) {
	if b, ok := e.buses[name]; ok {
		return b, nil
	}

	b, err := e.openBus(name)
	if err != nil {
		return nil, errors.New().Wrap(ErrOpenBus, err)
	}
	e.buses[name] = b

	return b, nil
}

// busLabel renders a bus name for locations: "1" and "/dev/i2c-1" both
// become "i2c-1".
func busLabel(name string) string {
	if _, err := strconv.Atoi(name); err == nil {
		return "i2c-" + name
	}

	return filepath.Base(name)
}

func baud(configured, fallback int) int {
	if configured > 0 {
		return configured
	}

	return fallback
}

// Close releases every serial line and bus.
func (e *Env) Close() error {
	err := e.ports.Close()
	for name, b := range e.buses {
		if cerr := b.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", name, cerr))
		}
	}
	e.buses = make(map[string]i2c.BusCloser)

	if err != nil {
		return errors.New().Wrap(ErrClose, err)
	}

	return nil
}
