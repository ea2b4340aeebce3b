package drivers_test

import (
	"bytes"
	"io"
	"testing"

	"codeberg.org/mutker/envlogger/internal/config"
	"codeberg.org/mutker/envlogger/internal/drivers"
	"codeberg.org/mutker/envlogger/internal/errors"
	"codeberg.org/mutker/envlogger/internal/logger"
	"codeberg.org/mutker/envlogger/internal/power"
	"codeberg.org/mutker/envlogger/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

type memPort struct {
	bytes.Buffer
	closed bool
}

func (*memPort) Flush() error { return nil }

func (p *memPort) Close() error {
	p.closed = true
	return nil
}

type fakeBus struct {
	name   string
	closed bool
}

func (b *fakeBus) String() string                { return b.name }
func (*fakeBus) Tx(uint16, []byte, []byte) error { return nil }
func (*fakeBus) SetSpeed(physic.Frequency) error { return nil }

func (b *fakeBus) Close() error {
	b.closed = true
	return nil
}

type harness struct {
	env    *drivers.Env
	ports  map[string]*memPort
	opened []transport.Config
	buses  map[string]*fakeBus
	powers []power.Config
}

func newHarness() *harness {
	h := &harness{ports: map[string]*memPort{}, buses: map[string]*fakeBus{}}
	h.env = drivers.NewEnv(logger.Nop(),
		drivers.WithPortOpener(func(cfg transport.Config) (transport.Port, io.Closer, error) {
			h.opened = append(h.opened, cfg)
			p := &memPort{}
			h.ports[cfg.Name] = p
			return p, p, nil
		}),
		drivers.WithBusOpener(func(name string) (i2c.BusCloser, error) {
			b := &fakeBus{name: name}
			h.buses[name] = b
			return b, nil
		}),
		drivers.WithPowerOpener(func(cfg power.Config) (power.Controller, error) {
			h.powers = append(h.powers, cfg)
			return power.None(), nil
		}),
	)

	return h
}

func TestSDI12MembersShareLine(t *testing.T) {
	h := newHarness()

	members, err := h.env.Members([]config.Sensor{
		{Name: "atmos", Driver: config.DriverSDI12, Model: "atmos14", Port: "/dev/ttyUSB0", Address: "0", PowerPin: "GPIO22"},
		{Name: "wind", Driver: config.DriverSDI12, Model: "atmos22", Port: "/dev/ttyUSB0", Address: "1", MeasurementsToAverage: 3},
	})
	require.NoError(t, err)
	require.Len(t, members, 2)

	assert.Len(t, h.opened, 1)
	assert.Equal(t, drivers.DefaultSDI12Baud, h.opened[0].Baud)
	assert.Equal(t, "ttyUSB0_0", members[0].Sensor.Location())
	assert.Equal(t, "ttyUSB0_1", members[1].Sensor.Location())
	assert.Equal(t, "/dev/ttyUSB0", members[0].Bus)
	assert.Equal(t, members[0].Bus, members[1].Bus)
	assert.Equal(t, 3, members[1].Sensor.MeasurementsToAverage())
	assert.Equal(t, 4, members[0].Sensor.NumVariables())
	assert.Equal(t, "GPIO22", h.powers[0].Pin)
}

func TestK30Member(t *testing.T) {
	h := newHarness()

	m, err := h.env.Member(config.Sensor{Name: "co2", Driver: config.DriverK30, Port: "/dev/ttyAMA0", Baud: 19200, Bus: "uart"})
	require.NoError(t, err)

	assert.Equal(t, "co2Stream_ttyAMA0", m.Sensor.Location())
	assert.Equal(t, "uart", m.Bus)
	assert.Equal(t, 19200, h.opened[0].Baud)
}

func TestAtlasMembersShareBus(t *testing.T) {
	h := newHarness()

	members, err := h.env.Members([]config.Sensor{
		{Name: "do", Driver: config.DriverAtlas, I2CBus: "1"},
		{Name: "do2", Driver: config.DriverAtlas, I2CBus: "1", I2CAddress: 0x62},
	})
	require.NoError(t, err)

	assert.Len(t, h.buses, 1)
	assert.Equal(t, "i2c-1_0x61", members[0].Sensor.Location())
	assert.Equal(t, "i2c-1_0x62", members[1].Sensor.Location())
	assert.Equal(t, "i2c:1", members[0].Bus)

	require.NoError(t, h.env.Close())
	assert.True(t, h.buses["1"].closed)
}

func TestCloseReleasesPorts(t *testing.T) {
	h := newHarness()
	_, err := h.env.Member(config.Sensor{Name: "co2", Driver: config.DriverK30, Port: "/dev/ttyS0"})
	require.NoError(t, err)

	require.NoError(t, h.env.Close())
	assert.True(t, h.ports["/dev/ttyS0"].closed)
}

func TestMemberErrors(t *testing.T) {
	h := newHarness()

	_, err := h.env.Member(config.Sensor{Name: "x", Driver: "modbus"})
	assert.True(t, errors.HasCode(err, drivers.ErrUnknownDriver))

	_, err = h.env.Member(config.Sensor{Name: "x", Driver: config.DriverSDI12, Model: "teros", Port: "/dev/ttyUSB0", Address: "0"})
	assert.Error(t, err)

	_, err = h.env.Members([]config.Sensor{
		{Name: "a", Driver: config.DriverK30, Port: "/dev/ttyUSB0"},
		{Name: "b", Driver: config.DriverK30, Port: "/dev/ttyUSB0", Baud: 1200},
	})
	assert.True(t, errors.HasCode(err, transport.ErrOpenPort))
}

func TestSensorsLogUnderTheirOwnComponent(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWriter(&buf, logger.DebugLevel)
	t.Cleanup(func() { logger.InitWriter(io.Discard, logger.WarnLevel) })

	h := newHarness()
	m, err := h.env.Member(config.Sensor{Name: "co2", Driver: config.DriverK30, Port: "/dev/ttyS0"})
	require.NoError(t, err)
	require.NoError(t, m.Sensor.PowerUp(0))

	out := buf.String()
	assert.Contains(t, out, `"component":"sensor"`)
	assert.Contains(t, out, `"sensor":"co2"`)
	assert.NotContains(t, out, `"component":"drivers"`)
}
