package transport

import (
	"bytes"
	"context"
	"io"
	"strconv"

	"codeberg.org/mutker/envlogger/internal/errors"
)

// DefaultMaxEmptyReads is how many consecutive empty reads end a frame.
// With DefaultReadTimeout this waits up to 1.5 s for a device to answer.
const DefaultMaxEmptyReads = 6

// MaxLineLength caps a line so a babbling device cannot grow the buffer.
const MaxLineLength = 256

// ReadLine reads one CR/LF terminated line and returns it without the
// terminator.
func ReadLine(ctx context.Context, r io.Reader, maxEmpty int) (string, error) {
	var line bytes.Buffer
	b := make([]byte, 1)
	empty := 0

	for line.Len() < MaxLineLength {
		if err := ctx.Err(); err != nil {
			return "", errors.New().Wrap(ErrCanceled, err)
		}

		n, err := r.Read(b)
		if n == 0 {
			if err != nil && !errors.Is(err, io.EOF) {
				return "", errors.New().Wrap(ErrRead, err)
			}
			empty++
			if empty >= maxEmpty {
				return "", errors.New().WithData(ErrNoResponse, "incomplete line "+quote(line.Bytes()))
			}
			continue
		}

		empty = 0
		if b[0] == '\n' {
			return string(bytes.TrimRight(line.Bytes(), "\r")), nil
		}
		line.WriteByte(b[0])
	}

	return "", errors.New().WithData(ErrRead, "line too long")
}

// WriteCommand writes a complete command, failing on a short write.
func WriteCommand(w io.Writer, cmd []byte) error {
	n, err := w.Write(cmd)
	if err != nil {
		return errors.New().Wrap(ErrWrite, err)
	}
	if n != len(cmd) {
		return errors.New().WithData(ErrWrite, "short write")
	}

	return nil
}

func quote(b []byte) string {
	if len(b) == 0 {
		return "<nothing>"
	}

	return strconv.Quote(string(b))
}
