package telemetry

import (
	"net"

	"codeberg.org/mutker/envlogger/internal/errors"
)

const (
	defaultNamespace = "envlogger"
	defaultPath      = "/metrics"
)

type Config struct {
	// Listen is the address of the HTTP endpoint; empty keeps the gauges
	// without serving them.
	Listen    string
	Path      string
	Namespace string
}

func DefaultConfig() Config {
	return Config{
		Path:      defaultPath,
		Namespace: defaultNamespace,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Listen); err != nil {
			return errFactory.Wrap(ErrInvalidConfig, err)
		}
	}
	if c.Path != "" && c.Path[0] != '/' {
		return errFactory.WithData(ErrInvalidConfig, "path must start with /")
	}

	return nil
}

func (c Config) withDefaults() Config {
	if c.Path == "" {
		c.Path = defaultPath
	}
	if c.Namespace == "" {
		c.Namespace = defaultNamespace
	}

	return c
}
