package sdi12_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"codeberg.org/mutker/envlogger/internal/drivers/sdi12"
	"codeberg.org/mutker/envlogger/internal/errors"
	"codeberg.org/mutker/envlogger/internal/logger"
	"codeberg.org/mutker/envlogger/internal/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// adapter answers each command with a scripted line.
type adapter struct {
	responses map[string]string
	rx        bytes.Buffer
	sent      []string
}

func (a *adapter) Write(b []byte) (int, error) {
	cmd := string(b)
	a.sent = append(a.sent, cmd)
	if resp, ok := a.responses[cmd]; ok {
		a.rx.WriteString(resp + "\r\n")
	}

	return len(b), nil
}

func (a *adapter) Read(b []byte) (int, error) {
	if a.rx.Len() == 0 {
		return 0, io.EOF
	}

	return a.rx.Read(b)
}

func (a *adapter) Flush() error {
	a.rx.Reset()
	return nil
}

func newDriver(t *testing.T, model sdi12.Model, responses map[string]string) (*sdi12.Driver, *adapter) {
	t.Helper()

	port := &adapter{responses: responses}
	d, err := sdi12.New(sdi12.Config{
		Port:          port,
		PortName:      "/dev/ttyUSB0",
		Address:       '0',
		Model:         model,
		MaxEmptyReads: 2,
		Logger:        logger.Nop(),
	})
	require.NoError(t, err)

	return d, port
}

func values(readings []sensor.Reading) []float64 {
	out := make([]float64, len(readings))
	for i, r := range readings {
		out[i] = r.Float()
	}

	return out
}

func TestNewValidatesAddress(t *testing.T) {
	_, err := sdi12.New(sdi12.Config{Address: '#', Model: sdi12.Atmos14})
	assert.True(t, errors.HasCode(err, sdi12.ErrInvalidAddress))

	_, err = sdi12.New(sdi12.Config{Address: '1'})
	assert.True(t, errors.HasCode(err, sdi12.ErrUnknownModel))
}

func TestLocationAndBudget(t *testing.T) {
	d, _ := newDriver(t, sdi12.Atmos14, nil)
	assert.Equal(t, "ttyUSB0_0", d.Location())
	assert.Equal(t, sdi12.RetryBudget, d.RetryBudget())
	assert.Len(t, d.Variables(), 4)
}

func TestSetupIdentifies(t *testing.T) {
	d, port := newDriver(t, sdi12.Atmos14, map[string]string{
		"0!":  "0",
		"0I!": "013METER   ATM14 100SN-0042",
	})

	require.NoError(t, d.Setup(context.Background()))
	assert.Equal(t, []string{"0!", "0I!"}, port.sent)

	info := d.Info()
	assert.Equal(t, "1.3", info.Protocol)
	assert.Equal(t, "METER", info.Vendor)
	assert.Equal(t, "ATM14", info.Model)
	assert.Equal(t, "100", info.Version)
	assert.Equal(t, "SN-0042", info.Serial)
}

func TestSetupWithoutAnswer(t *testing.T) {
	d, _ := newDriver(t, sdi12.Atmos14, nil)

	err := d.Setup(context.Background())
	assert.True(t, errors.HasCode(err, sdi12.ErrNoAcknowledge))
}

func TestAtmos14Measurement(t *testing.T) {
	d, port := newDriver(t, sdi12.Atmos14, map[string]string{
		"0M!":  "00004",
		"0D0!": "0+1.234+21.50+0.4521-101.3",
	})
	ctx := context.Background()

	require.NoError(t, d.Trigger(ctx))
	assert.Equal(t, sensor.PollReady, d.Poll(ctx, 0))

	readings, err := d.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.234, 21.5, 0.4521, -101.3}, values(readings))
	assert.Equal(t, []string{"0M!", "0D0!"}, port.sent)

	_, err = d.Read(ctx)
	assert.True(t, errors.HasCode(err, sdi12.ErrNotTriggered))
}

func TestAtmos22UsesTwoDataCommands(t *testing.T) {
	d, _ := newDriver(t, sdi12.Atmos22, map[string]string{
		"0M!":  "00024",
		"0D0!": "0+1.52+270.1+3.20",
		"0D1!": "0+18.25",
	})
	ctx := context.Background()

	require.NoError(t, d.Trigger(ctx))
	readings, err := d.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.52, 270.1, 3.2, 18.25}, values(readings))
}

func TestMissingValuesArePadded(t *testing.T) {
	d, _ := newDriver(t, sdi12.Atmos22, map[string]string{
		"0M!":  "00024",
		"0D0!": "0+1.52+270.1+3.20",
		"0D1!": "0",
	})
	ctx := context.Background()

	require.NoError(t, d.Trigger(ctx))
	readings, err := d.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.52, 270.1, 3.2, sensor.Sentinel}, values(readings))
}

func TestSentinelFromDeviceIsMissing(t *testing.T) {
	d, _ := newDriver(t, sdi12.Atmos14, map[string]string{
		"0M!":  "00004",
		"0D0!": "0+1.2-9999+0.5+101.1",
	})
	ctx := context.Background()

	require.NoError(t, d.Trigger(ctx))
	readings, err := d.Read(ctx)
	require.NoError(t, err)
	assert.False(t, readings[1].Valid)
}

func TestWrongAddressIsRejected(t *testing.T) {
	d, _ := newDriver(t, sdi12.Atmos14, map[string]string{
		"0M!":  "00004",
		"0D0!": "1+1+2+3+4",
	})
	ctx := context.Background()

	require.NoError(t, d.Trigger(ctx))
	_, err := d.Read(ctx)
	assert.True(t, errors.HasCode(err, sdi12.ErrWrongAddress))
}

func TestMalformedMeasureResponse(t *testing.T) {
	d, _ := newDriver(t, sdi12.Atmos14, map[string]string{"0M!": "0x4"})

	err := d.Trigger(context.Background())
	assert.True(t, errors.HasCode(err, sdi12.ErrMalformed))
	assert.Equal(t, sensor.PollFailed, d.Poll(context.Background(), 0))
}

func TestNoValuesAnnouncedFails(t *testing.T) {
	d, _ := newDriver(t, sdi12.Atmos14, map[string]string{"0M!": "00000"})

	require.NoError(t, d.Trigger(context.Background()))
	assert.Equal(t, sensor.PollFailed, d.Poll(context.Background(), 0))
}

func TestPollWaitsForAnnouncedTime(t *testing.T) {
	// Atmos14 waits 50 ms on its own; the device asks for 2 s
	d, _ := newDriver(t, sdi12.Atmos14, map[string]string{"0M!": "00024"})
	ctx := context.Background()

	require.NoError(t, d.Trigger(ctx))
	assert.Equal(t, sensor.PollPending, d.Poll(ctx, 1000))
	assert.Equal(t, sensor.PollPending, d.Poll(ctx, 2949))
	assert.Equal(t, sensor.PollReady, d.Poll(ctx, 2950))
}

func TestPollAcceptsServiceRequest(t *testing.T) {
	d, port := newDriver(t, sdi12.Atmos14, map[string]string{"0M!": "00024"})
	ctx := context.Background()

	require.NoError(t, d.Trigger(ctx))
	assert.Equal(t, sensor.PollPending, d.Poll(ctx, 1000))

	port.rx.WriteString("0\r\n")
	assert.Equal(t, sensor.PollReady, d.Poll(ctx, 1100))
}

func TestLookup(t *testing.T) {
	m, err := sdi12.Lookup("ATMOS22")
	require.NoError(t, err)
	assert.Equal(t, "Atmos22", m.Name)

	_, err = sdi12.Lookup("hydros21")
	assert.True(t, errors.HasCode(err, sdi12.ErrUnknownModel))
}
