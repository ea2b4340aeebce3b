// Package k30 reads CO2 from a Senseair K30 over its serial interface.
package k30

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"codeberg.org/mutker/envlogger/internal/errors"
	"codeberg.org/mutker/envlogger/internal/logger"
	"codeberg.org/mutker/envlogger/internal/sensor"
	"codeberg.org/mutker/envlogger/internal/timing"
	"codeberg.org/mutker/envlogger/internal/transport"
)

const (
	// RetryBudget is how many attempts a K30 sample gets before it is
	// given up as missing.
	RetryBudget = 25

	frameLen = 7
	// multiplier scales the raw register to ppm.
	multiplier = 10

	DefaultResponseTimeout = 500 * time.Millisecond
)

// readCO2 reads two bytes of RAM at 0x08, the CO2 register.
var readCO2 = []byte{0xFE, 0x44, 0x00, 0x08, 0x02, 0x9F, 0x25}

var Timing = sensor.Timing{
	WarmUp:        2 * time.Second,
	Stabilization: 0,
	Measurement:   50 * time.Millisecond,
}

var variables = []sensor.Variable{{
	Name:       "carbonDioxide",
	Unit:       "partPerMillion",
	Code:       "K30CO2",
	Resolution: 0,
	Bounds:     sensor.Bounds{Min: 0, Max: math.MaxUint16 * multiplier},
}}

type Config struct {
	Port     transport.Port
	PortName string
	// ResponseTimeout is how long Poll waits for a complete frame.
	ResponseTimeout time.Duration
	Logger          logger.Logger
}

type Driver struct {
	port     transport.Port
	location string
	timeout  timing.Millis
	log      logger.Logger

	triggered bool
	frame     []byte
	pollStart timing.Stamp
}

func New(cfg Config) *Driver {
	timeout := cfg.ResponseTimeout
	if timeout <= 0 {
		timeout = DefaultResponseTimeout
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Component("k30")
	}

	location := "co2Stream_" + transport.Base(cfg.PortName)

	return &Driver{
		port:     cfg.Port,
		location: location,
		timeout:  timing.FromDuration(timeout),
		log:      log.With("location", location),
		frame:    make([]byte, 0, frameLen),
	}
}

func (d *Driver) Variables() []sensor.Variable { return variables }
func (d *Driver) Location() string             { return d.location }
func (d *Driver) RetryBudget() int             { return RetryBudget }

// Trigger discards stale bytes and sends the read request.
func (d *Driver) Trigger(context.Context) error {
	d.triggered = false
	d.frame = d.frame[:0]
	d.pollStart.Clear()

	if err := d.port.Flush(); err != nil {
		return errors.New().Wrap(transport.ErrWrite, err)
	}
	if err := transport.WriteCommand(d.port, readCO2); err != nil {
		return err
	}
	d.triggered = true

	return nil
}

// Poll collects whatever part of the response has arrived. It fails once
// the response timeout passes without a complete frame.
func (d *Driver) Poll(ctx context.Context, now timing.Millis) sensor.PollStatus {
	if !d.triggered || ctx.Err() != nil {
		return sensor.PollFailed
	}

	start, ok := d.pollStart.Get()
	if !ok {
		d.pollStart.Set(now)
		start = now
	}

	buf := make([]byte, frameLen-len(d.frame))
	n, err := d.port.Read(buf)
	d.frame = append(d.frame, buf[:n]...)
	if n == 0 && err != nil && !errors.Is(err, io.EOF) {
		d.log.Warn().Err(err).Msg("Reading response failed")
		d.triggered = false
		return sensor.PollFailed
	}

	switch {
	case len(d.frame) == frameLen:
		return sensor.PollReady
	case timing.Reached(now, start, d.timeout):
		d.log.Debug().Int("received", len(d.frame)).Msg("Response timed out")
		d.triggered = false
		return sensor.PollFailed
	default:
		return sensor.PollPending
	}
}

// Read decodes the collected frame. A zero or negative concentration means
// the sensor had nothing to report and is returned as missing.
func (d *Driver) Read(context.Context) ([]sensor.Reading, error) {
	if !d.triggered || len(d.frame) != frameLen {
		return nil, errors.New().New(ErrNotTriggered)
	}
	d.triggered = false

	value, err := decode(d.frame)
	if err != nil {
		return nil, err
	}
	d.log.Debug().Int("co2", value).Msg("CO2 decoded")

	if value <= 0 {
		return []sensor.Reading{sensor.Missing()}, nil
	}

	return []sensor.Reading{sensor.Valid(float64(value))}, nil
}

func decode(frame []byte) (int, error) {
	if frame[0] != 0xFE || frame[1] != 0x44 || frame[2] != 0x02 {
		return 0, errors.New().WithData(ErrFrame, fmt.Sprintf("% X", frame))
	}

	want := uint16(frame[5]) | uint16(frame[6])<<8
	if got := crc16(frame[:5]); got != want {
		return 0, errors.New().WithData(ErrChecksum, fmt.Sprintf("got %04X, frame says %04X", got, want))
	}

	return (int(frame[3])*256 + int(frame[4])) * multiplier, nil
}
