package sdi12

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/envlogger/internal/errors"
)

// Info is the identification a device returns for aI!.
type Info struct {
	Protocol string
	Vendor   string
	Model    string
	Version  string
	Serial   string
}

func (i Info) String() string {
	return fmt.Sprintf("%s %s v%s (serial %s, SDI-12 %s)", i.Vendor, i.Model, i.Version, i.Serial, i.Protocol)
}

func validAddress(a byte) bool {
	return (a >= '0' && a <= '9') || (a >= 'a' && a <= 'z') || (a >= 'A' && a <= 'Z')
}

// stripAddress checks that a response came from addr and returns the rest.
func stripAddress(addr byte, line string) (string, error) {
	if line == "" {
		return "", errors.New().WithData(ErrMalformed, "empty response")
	}
	if line[0] != addr {
		return "", errors.New().WithData(ErrWrongAddress, fmt.Sprintf("expected %c, got %q", addr, line))
	}

	return line[1:], nil
}

// parseMeasure parses the atttn answer to aM!: seconds until data is ready
// and the number of values that will be available.
func parseMeasure(addr byte, line string) (time.Duration, int, error) {
	rest, err := stripAddress(addr, line)
	if err != nil {
		return 0, 0, err
	}
	if len(rest) != 4 {
		return 0, 0, errors.New().WithData(ErrMalformed, fmt.Sprintf("measure response %q", line))
	}

	secs, err := strconv.Atoi(rest[:3])
	if err != nil {
		return 0, 0, errors.New().Wrap(ErrMalformed, err)
	}
	n, err := strconv.Atoi(rest[3:])
	if err != nil {
		return 0, 0, errors.New().Wrap(ErrMalformed, err)
	}

	return time.Duration(secs) * time.Second, n, nil
}

// parseValues splits a data payload such as "+1.23-4.5+6" at each sign.
func parseValues(payload string) ([]float64, error) {
	var values []float64

	start := -1
	for i := 0; i <= len(payload); i++ {
		if i < len(payload) && payload[i] != '+' && payload[i] != '-' {
			continue
		}
		if start >= 0 {
			v, err := strconv.ParseFloat(payload[start:i], 64)
			if err != nil {
				return nil, errors.New().WithData(ErrMalformed, fmt.Sprintf("value %q", payload[start:i]))
			}
			values = append(values, v)
		} else if i > 0 {
			return nil, errors.New().WithData(ErrMalformed, fmt.Sprintf("payload %q", payload))
		}
		start = i
	}

	return values, nil
}

// parseInfo splits the fixed-width aI! answer: allccccccccmmmmmmvvvxxx...
func parseInfo(addr byte, line string) (Info, error) {
	rest, err := stripAddress(addr, line)
	if err != nil {
		return Info{}, err
	}
	if len(rest) < 19 {
		return Info{}, errors.New().WithData(ErrIdentification, fmt.Sprintf("short response %q", line))
	}

	return Info{
		Protocol: rest[0:1] + "." + rest[1:2],
		Vendor:   strings.TrimSpace(rest[2:10]),
		Model:    strings.TrimSpace(rest[10:16]),
		Version:  strings.TrimSpace(rest[16:19]),
		Serial:   strings.TrimSpace(rest[19:]),
	}, nil
}
