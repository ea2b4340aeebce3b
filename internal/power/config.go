package power

import (
	"strconv"

	"codeberg.org/mutker/envlogger/internal/errors"
)

const (
	BackendNone   = ""
	BackendPeriph = "periph"
	BackendRPIO   = "rpio"
)

// Config names the supply lines of one sensor. Empty pins mean the line is
// not switched.
type Config struct {
	Backend    string
	Pin        string
	AdapterPin string
}

// Open resolves the configured lines into a single Controller.
func Open(cfg Config) (Controller, error) {
	if cfg.Pin == "" && cfg.AdapterPin == "" {
		return None(), nil
	}

	var lines []Controller
	for _, name := range []string{cfg.Pin, cfg.AdapterPin} {
		if name == "" {
			continue
		}
		line, err := openLine(cfg.Backend, name)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	return Multi(lines...), nil
}

func openLine(backend, name string) (Controller, error) {
	switch backend {
	case BackendNone, BackendPeriph:
		return NewPeriph(name)
	case BackendRPIO:
		bcm, err := strconv.Atoi(name)
		if err != nil {
			return nil, errors.New().WithData(ErrPinNotFound, name)
		}
		return NewRPIO(bcm)
	default:
		return nil, errors.New().WithData(ErrUnknownBackend, backend)
	}
}
