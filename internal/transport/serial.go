// Package transport opens serial lines and reads bounded frames from them.
package transport

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/envlogger/internal/errors"
	"github.com/tarm/serial"
	"go.uber.org/multierr"
)

// DefaultReadTimeout bounds a single read on a serial line.
const DefaultReadTimeout = 250 * time.Millisecond

// Port is a serial line as seen by a driver.
type Port interface {
	io.ReadWriter
	// Flush discards anything buffered but not yet read.
	Flush() error
}

type Config struct {
	Name        string
	Baud        int
	ReadTimeout time.Duration
}

// Open opens a serial line with a bounded read timeout, so a silent device
// makes Read return empty instead of blocking.
func Open(cfg Config) (*serial.Port, error) {
	if cfg.Name == "" || cfg.Baud <= 0 {
		return nil, errors.New().WithData(ErrOpenPort, fmt.Sprintf("port %q baud %d", cfg.Name, cfg.Baud))
	}

	timeout := cfg.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}

	p, err := serial.OpenPort(&serial.Config{Name: cfg.Name, Baud: cfg.Baud, ReadTimeout: timeout})
	if err != nil {
		return nil, errors.New().Wrap(ErrOpenPort, err)
	}

	return p, nil
}

// Base is the short form of a device path used in sensor locations,
// e.g. "/dev/ttyUSB0" becomes "ttyUSB0".
func Base(name string) string {
	return filepath.Base(name)
}

// Pool shares one open port between every sensor on the same line.
type Pool struct {
	mu    sync.Mutex
	open  func(Config) (Port, io.Closer, error)
	ports map[string]pooled
}

type pooled struct {
	port   Port
	closer io.Closer
	baud   int
}

// NewPool returns a pool that opens real serial lines.
func NewPool() *Pool {
	return NewPoolWith(func(cfg Config) (Port, io.Closer, error) {
		p, err := Open(cfg)
		if err != nil {
			return nil, nil, err
		}

		return p, p, nil
	})
}

// NewPoolWith returns a pool backed by a custom opener.
func NewPoolWith(open func(Config) (Port, io.Closer, error)) *Pool {
	return &Pool{open: open, ports: make(map[string]pooled)}
}

// Get returns the port for cfg.Name, opening it on first use. Asking for the
// same line at a different baud rate is a configuration error.
func (p *Pool) Get(cfg Config) (Port, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.ports[cfg.Name]; ok {
		if existing.baud != cfg.Baud {
			return nil, errors.New().WithData(ErrOpenPort,
				fmt.Sprintf("%s already open at %d baud, requested %d", cfg.Name, existing.baud, cfg.Baud))
		}
		return existing.port, nil
	}

	port, closer, err := p.open(cfg)
	if err != nil {
		return nil, err
	}
	p.ports[cfg.Name] = pooled{port: port, closer: closer, baud: cfg.Baud}

	return port, nil
}

// Close closes every port the pool opened.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	for name, entry := range p.ports {
		if entry.closer != nil {
			err = multierr.Append(err, entry.closer.Close())
		}
		delete(p.ports, name)
	}
	if err != nil {
		return errors.New().Wrap(ErrClosePorts, err)
	}

	return nil
}
