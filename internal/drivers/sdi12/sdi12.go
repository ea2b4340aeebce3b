// Package sdi12 drives SDI-12 devices through a serial SDI-12 adapter.
package sdi12

import (
	"context"
	"fmt"

	"codeberg.org/mutker/envlogger/internal/errors"
	"codeberg.org/mutker/envlogger/internal/logger"
	"codeberg.org/mutker/envlogger/internal/sensor"
	"codeberg.org/mutker/envlogger/internal/timing"
	"codeberg.org/mutker/envlogger/internal/transport"
)

// RetryBudget is the number of attempts per sample for SDI-12 devices.
const RetryBudget = 10

type Config struct {
	Port     transport.Port
	PortName string
	Address  byte
	Model    Model
	// MaxEmptyReads bounds how long a response may take to start arriving.
	MaxEmptyReads int
	Logger        logger.Logger
}

// Driver talks to one addressed device on a shared SDI-12 line.
type Driver struct {
	port     transport.Port
	address  byte
	model    Model
	location string
	maxEmpty int
	log      logger.Logger

	info Info

	triggered bool
	announced int
	extraWait timing.Millis
	pollStart timing.Stamp
}

func New(cfg Config) (*Driver, error) {
	if !validAddress(cfg.Address) {
		return nil, errors.New().WithData(ErrInvalidAddress, fmt.Sprintf("%q", cfg.Address))
	}
	if len(cfg.Model.Variables) == 0 || len(cfg.Model.DataCommands) == 0 {
		return nil, errors.New().WithData(ErrUnknownModel, cfg.Model.Name)
	}

	maxEmpty := cfg.MaxEmptyReads
	if maxEmpty <= 0 {
		maxEmpty = transport.DefaultMaxEmptyReads
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Component("sdi12")
	}

	location := fmt.Sprintf("%s_%c", transport.Base(cfg.PortName), cfg.Address)

	return &Driver{
		port:     cfg.Port,
		address:  cfg.Address,
		model:    cfg.Model,
		location: location,
		maxEmpty: maxEmpty,
		log:      log.With("location", location),
	}, nil
}

func (d *Driver) Variables() []sensor.Variable { return d.model.Variables }
func (d *Driver) Location() string             { return d.location }
func (d *Driver) RetryBudget() int             { return RetryBudget }
func (d *Driver) Info() Info                   { return d.info }

// Setup checks that the device answers at its address and records its
// identification.
func (d *Driver) Setup(ctx context.Context) error {
	line, err := d.command(ctx, "!")
	if err != nil {
		return errors.New().Wrap(ErrNoAcknowledge, err)
	}
	if line != string(d.address) {
		return errors.New().WithData(ErrNoAcknowledge, fmt.Sprintf("%q", line))
	}

	line, err = d.command(ctx, "I!")
	if err != nil {
		return errors.New().Wrap(ErrIdentification, err)
	}
	info, err := parseInfo(d.address, line)
	if err != nil {
		return err
	}
	d.info = info

	d.log.Info().Str("info", info.String()).Msg("SDI-12 device identified")

	return nil
}

// Trigger sends aM! and remembers how long the device said it needs.
func (d *Driver) Trigger(ctx context.Context) error {
	d.triggered = false
	d.pollStart.Clear()

	line, err := d.command(ctx, "M!")
	if err != nil {
		return err
	}
	wait, n, err := parseMeasure(d.address, line)
	if err != nil {
		return err
	}

	d.triggered = true
	d.announced = n
	d.extraWait = 0
	if wait > d.model.Timing.Measurement {
		d.extraWait = timing.FromDuration(wait - d.model.Timing.Measurement)
	}

	d.log.Debug().Dur("wait", wait).Int("values", n).Msg("Measurement started")

	return nil
}

// Poll answers ready once the device has sent its service request or the
// announced time has passed. A device announcing no values has failed.
func (d *Driver) Poll(ctx context.Context, now timing.Millis) sensor.PollStatus {
	switch {
	case !d.triggered || d.announced == 0:
		return sensor.PollFailed
	case d.extraWait == 0:
		return sensor.PollReady
	}

	start, ok := d.pollStart.Get()
	if !ok {
		d.pollStart.Set(now)
		start = now
	}
	if timing.Reached(now, start, d.extraWait) {
		return sensor.PollReady
	}

	line, err := transport.ReadLine(ctx, d.port, 1)
	if err == nil && line == string(d.address) {
		return sensor.PollReady
	}

	return sensor.PollPending
}

// Read fetches every data command of the model. Values the device did not
// send are missing.
func (d *Driver) Read(ctx context.Context) ([]sensor.Reading, error) {
	if !d.triggered {
		return nil, errors.New().New(ErrNotTriggered)
	}
	d.triggered = false

	var values []float64
	for _, cmd := range d.model.DataCommands {
		line, err := d.command(ctx, cmd+"!")
		if err != nil {
			return nil, err
		}
		payload, err := stripAddress(d.address, line)
		if err != nil {
			return nil, err
		}
		got, err := parseValues(payload)
		if err != nil {
			return nil, err
		}
		values = append(values, got...)
	}

	vars := d.model.Variables
	if len(values) != len(vars) {
		d.log.Warn().
			Int("expected", len(vars)).
			Int("received", len(values)).
			Msg("Unexpected number of values")
	}

	readings := make([]sensor.Reading, len(vars))
	for i := range readings {
		if i < len(values) {
			readings[i] = sensor.FromRaw(values[i])
		}
	}

	return readings, nil
}

func (d *Driver) command(ctx context.Context, body string) (string, error) {
	if err := d.port.Flush(); err != nil {
		return "", errors.New().Wrap(transport.ErrWrite, err)
	}

	cmd := string(d.address) + body
	if err := transport.WriteCommand(d.port, []byte(cmd)); err != nil {
		return "", err
	}

	line, err := transport.ReadLine(ctx, d.port, d.maxEmpty)
	if err != nil {
		return "", err
	}
	d.log.Debug().Str("command", cmd).Str("response", line).Msg("SDI-12 exchange")

	return line, nil
}
