package k30_test

import (
	"context"
	"io"
	"testing"

	"codeberg.org/mutker/envlogger/internal/drivers/k30"
	"codeberg.org/mutker/envlogger/internal/errors"
	"codeberg.org/mutker/envlogger/internal/logger"
	"codeberg.org/mutker/envlogger/internal/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// line hands out one scripted chunk per read; an empty chunk is a read
// that timed out.
type line struct {
	written [][]byte
	chunks  [][]byte
	flushes int
}

func (l *line) Write(b []byte) (int, error) {
	l.written = append(l.written, append([]byte(nil), b...))
	return len(b), nil
}

func (l *line) Read(b []byte) (int, error) {
	if len(l.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(b, l.chunks[0])
	l.chunks = l.chunks[1:]

	return n, nil
}

func (l *line) Flush() error {
	l.flushes++
	return nil
}

var (
	frame410  = []byte{0xFE, 0x44, 0x02, 0x00, 0x29, 0x79, 0x3A}
	frameZero = []byte{0xFE, 0x44, 0x02, 0x00, 0x00, 0xB8, 0xE4}
)

func newDriver(port *line) *k30.Driver {
	return k30.New(k30.Config{Port: port, PortName: "/dev/ttyAMA0", Logger: logger.Nop()})
}

func TestTriggerSendsReadRequest(t *testing.T) {
	port := &line{}
	d := newDriver(port)

	require.NoError(t, d.Trigger(context.Background()))
	require.Len(t, port.written, 1)
	assert.Equal(t, []byte{0xFE, 0x44, 0x00, 0x08, 0x02, 0x9F, 0x25}, port.written[0])
	assert.Equal(t, 1, port.flushes)
	assert.Equal(t, "co2Stream_ttyAMA0", d.Location())
	assert.Equal(t, 25, d.RetryBudget())
}

func TestFrameArrivingInPieces(t *testing.T) {
	port := &line{}
	d := newDriver(port)
	ctx := context.Background()

	require.NoError(t, d.Trigger(ctx))
	port.chunks = [][]byte{frame410[:3], {}, frame410[3:]}

	assert.Equal(t, sensor.PollPending, d.Poll(ctx, 100))
	assert.Equal(t, sensor.PollPending, d.Poll(ctx, 150))
	assert.Equal(t, sensor.PollReady, d.Poll(ctx, 200))

	readings, err := d.Read(ctx)
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.True(t, readings[0].Valid)
	assert.InDelta(t, 410.0, readings[0].Value, 1e-9)
}

func TestZeroConcentrationIsMissing(t *testing.T) {
	port := &line{}
	d := newDriver(port)
	ctx := context.Background()

	require.NoError(t, d.Trigger(ctx))
	port.chunks = [][]byte{frameZero}
	require.Equal(t, sensor.PollReady, d.Poll(ctx, 0))

	readings, err := d.Read(ctx)
	require.NoError(t, err)
	assert.False(t, readings[0].Valid)
}

func TestChecksumMismatch(t *testing.T) {
	port := &line{}
	d := newDriver(port)
	ctx := context.Background()

	bad := append([]byte(nil), frame410...)
	bad[4] = 0x2A
	require.NoError(t, d.Trigger(ctx))
	port.chunks = [][]byte{bad}
	require.Equal(t, sensor.PollReady, d.Poll(ctx, 0))

	_, err := d.Read(ctx)
	assert.True(t, errors.HasCode(err, k30.ErrChecksum))
}

func TestBadHeader(t *testing.T) {
	port := &line{}
	d := newDriver(port)
	ctx := context.Background()

	require.NoError(t, d.Trigger(ctx))
	port.chunks = [][]byte{{0x00, 0x44, 0x02, 0x00, 0x29, 0x79, 0x3A}}
	require.Equal(t, sensor.PollReady, d.Poll(ctx, 0))

	_, err := d.Read(ctx)
	assert.True(t, errors.HasCode(err, k30.ErrFrame))
}

func TestSilentSensorTimesOut(t *testing.T) {
	port := &line{}
	d := newDriver(port)
	ctx := context.Background()

	require.NoError(t, d.Trigger(ctx))
	assert.Equal(t, sensor.PollPending, d.Poll(ctx, 1000))
	assert.Equal(t, sensor.PollPending, d.Poll(ctx, 1499))
	assert.Equal(t, sensor.PollFailed, d.Poll(ctx, 1500))

	_, err := d.Read(ctx)
	assert.True(t, errors.HasCode(err, k30.ErrNotTriggered))
}

func TestPollBeforeTrigger(t *testing.T) {
	d := newDriver(&line{})
	assert.Equal(t, sensor.PollFailed, d.Poll(context.Background(), 0))
}
