package transport_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"codeberg.org/mutker/envlogger/internal/errors"
	"codeberg.org/mutker/envlogger/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trickle hands out its data a few bytes per read with empty reads between.
type trickle struct {
	chunks [][]byte
}

func (t *trickle) Read(b []byte) (int, error) {
	if len(t.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(b, t.chunks[0])
	if n == len(t.chunks[0]) {
		t.chunks = t.chunks[1:]
	} else {
		t.chunks[0] = t.chunks[0][n:]
	}

	return n, nil
}

func TestReadLineAcrossEmptyReads(t *testing.T) {
	r := &trickle{chunks: [][]byte{[]byte("1+"), {}, []byte("2"), {}, {}, []byte(".5\r"), []byte("\n")}}

	line, err := transport.ReadLine(context.Background(), r, 3)
	require.NoError(t, err)
	assert.Equal(t, "1+2.5", line)
}

func TestReadLineGivesUp(t *testing.T) {
	r := &trickle{chunks: [][]byte{[]byte("0+1")}}

	_, err := transport.ReadLine(context.Background(), r, 3)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, transport.ErrNoResponse))
	assert.Contains(t, err.Error(), "0+1")
}

func TestReadLineHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := transport.ReadLine(ctx, bytes.NewBufferString("abc\n"), 3)
	assert.True(t, errors.HasCode(err, transport.ErrCanceled))
}

type shortWriter struct{}

func (shortWriter) Write(b []byte) (int, error) { return len(b) - 1, nil }

func TestWriteCommand(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, transport.WriteCommand(&buf, []byte("0M!")))
	assert.Equal(t, "0M!", buf.String())

	assert.True(t, errors.HasCode(transport.WriteCommand(shortWriter{}, []byte("0M!")), transport.ErrWrite))
}

type memPort struct {
	bytes.Buffer
	closed int
}

func (*memPort) Flush() error { return nil }

func (p *memPort) Close() error {
	p.closed++
	return nil
}

func TestPoolSharesPorts(t *testing.T) {
	opened := 0
	var last *memPort
	pool := transport.NewPoolWith(func(transport.Config) (transport.Port, io.Closer, error) {
		opened++
		last = &memPort{}
		return last, last, nil
	})

	a, err := pool.Get(transport.Config{Name: "/dev/ttyUSB0", Baud: 1200})
	require.NoError(t, err)
	b, err := pool.Get(transport.Config{Name: "/dev/ttyUSB0", Baud: 1200})
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, opened)

	_, err = pool.Get(transport.Config{Name: "/dev/ttyUSB0", Baud: 9600})
	assert.True(t, errors.HasCode(err, transport.ErrOpenPort))

	require.NoError(t, pool.Close())
	assert.Equal(t, 1, last.closed)
}

func TestOpenRejectsEmptyConfig(t *testing.T) {
	_, err := transport.Open(transport.Config{})
	assert.True(t, errors.HasCode(err, transport.ErrOpenPort))
	assert.Equal(t, "ttyUSB0", transport.Base("/dev/ttyUSB0"))
}
