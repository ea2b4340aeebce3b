// Package atlas reads an Atlas Scientific EZO dissolved oxygen circuit over
// I2C.
package atlas

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/envlogger/internal/errors"
	"codeberg.org/mutker/envlogger/internal/logger"
	"codeberg.org/mutker/envlogger/internal/sensor"
	"codeberg.org/mutker/envlogger/internal/timing"
	"github.com/benbjohnson/clock"
	"periph.io/x/conn/v3/i2c"
)

const DefaultAddress uint16 = 0x61

// Status codes leading every response.
const (
	statusSuccess    = 1
	statusSyntax     = 2
	statusProcessing = 254
	statusNoData     = 255
)

const (
	responseLen = 32
	// commandDelay is how long the circuit needs to process a setup command.
	commandDelay = 300 * time.Millisecond

	DefaultResponseTimeout = 2 * time.Second
)

var Timing = sensor.Timing{Measurement: 600 * time.Millisecond}

var variables = []sensor.Variable{
	{Name: "oxygenDissolved", Unit: "milligramPerLiter", Code: "AtlasDOmgL", Resolution: 2, Bounds: sensor.Bounds{Min: 0, Max: 100}},
	{Name: "oxygenDissolvedPercentOfSaturation", Unit: "percent", Code: "AtlasDOpct", Resolution: 1, Bounds: sensor.Bounds{Min: 0, Max: 400}},
}

type Config struct {
	Bus     i2c.Bus
	BusName string
	Address uint16
	// ResponseTimeout bounds how long the circuit may keep answering
	// "still processing".
	ResponseTimeout time.Duration
	// Clock paces the setup command delay. Defaults to the wall clock.
	Clock  clock.Clock
	Logger logger.Logger
}

type Driver struct {
	dev      *i2c.Dev
	location string
	timeout  timing.Millis
	log      logger.Logger
	clock    clock.Clock

	triggered bool
	payload   []byte
	pollStart timing.Stamp
}

func New(cfg Config) (*Driver, error) {
	if cfg.Bus == nil {
		return nil, errors.New().WithData(ErrNoBus, cfg.BusName)
	}

	addr := cfg.Address
	if addr == 0 {
		addr = DefaultAddress
	}

	timeout := cfg.ResponseTimeout
	if timeout <= 0 {
		timeout = DefaultResponseTimeout
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Component("atlas")
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	location := fmt.Sprintf("%s_0x%02x", cfg.BusName, addr)

	return &Driver{
		dev:      &i2c.Dev{Bus: cfg.Bus, Addr: addr},
		location: location,
		timeout:  timing.FromDuration(timeout),
		log:      log.With("location", location),
		clock:    clk,
	}, nil
}

func (d *Driver) Variables() []sensor.Variable { return variables }
func (d *Driver) Location() string             { return d.location }

// Setup enables both outputs so every reading carries mg/L and % saturation.
func (d *Driver) Setup(ctx context.Context) error {
	for _, cmd := range []string{"O,mg,1", "O,%,1"} {
		if err := d.dev.Tx([]byte(cmd), nil); err != nil {
			return errors.New().Wrap(ErrCommand, err)
		}
		if err := d.wait(ctx, commandDelay); err != nil {
			return err
		}

		status, _, err := d.response()
		if err != nil {
			return errors.New().Wrap(ErrCommand, err)
		}
		if status != statusSuccess {
			return errors.New().WithData(ErrCommand, fmt.Sprintf("%s answered status %d", cmd, status))
		}
	}

	return nil
}

func (d *Driver) Trigger(context.Context) error {
	d.triggered = false
	d.payload = nil
	d.pollStart.Clear()

	if err := d.dev.Tx([]byte("R"), nil); err != nil {
		return errors.New().Wrap(ErrCommand, err)
	}
	d.triggered = true

	return nil
}

// Poll reads the status byte. The circuit answers 254 while it is still
// measuring; that is pending until the response timeout runs out.
func (d *Driver) Poll(_ context.Context, now timing.Millis) sensor.PollStatus {
	if !d.triggered {
		return sensor.PollFailed
	}

	start, ok := d.pollStart.Get()
	if !ok {
		d.pollStart.Set(now)
		start = now
	}

	status, payload, err := d.response()
	if err != nil {
		d.log.Warn().Err(err).Msg("Reading status failed")
		d.triggered = false
		return sensor.PollFailed
	}

	switch status {
	case statusSuccess:
		d.payload = payload
		return sensor.PollReady
	case statusProcessing:
		if timing.Reached(now, start, d.timeout) {
			d.triggered = false
			return sensor.PollFailed
		}
		return sensor.PollPending
	case statusSyntax, statusNoData:
		d.log.Debug().Int("status", status).Msg("Measurement rejected")
		d.triggered = false
		return sensor.PollFailed
	default:
		d.log.Warn().Int("status", status).Msg("Unknown status")
		d.triggered = false
		return sensor.PollFailed
	}
}

// Read parses the comma separated values of the last successful response.
func (d *Driver) Read(context.Context) ([]sensor.Reading, error) {
	if !d.triggered || d.payload == nil {
		return nil, errors.New().New(ErrNotTriggered)
	}
	d.triggered = false

	fields := strings.Split(string(d.payload), ",")
	if len(fields) > len(variables) {
		return nil, errors.New().WithData(ErrMalformed, strconv.Quote(string(d.payload)))
	}

	readings := make([]sensor.Reading, len(variables))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, errors.New().WithData(ErrMalformed, strconv.Quote(string(d.payload)))
		}
		readings[i] = sensor.Valid(v)
	}

	return readings, nil
}

// response reads the status byte and the NUL terminated ASCII payload.
func (d *Driver) response() (int, []byte, error) {
	buf := make([]byte, responseLen)
	if err := d.dev.Tx(nil, buf); err != nil {
		return 0, nil, err
	}

	payload := buf[1:]
	if i := bytes.IndexByte(payload, 0); i >= 0 {
		payload = payload[:i]
	}

	return int(buf[0]), payload, nil
}

func (d *Driver) wait(ctx context.Context, delay time.Duration) error {
	t := d.clock.Timer(delay)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
