package sensor

import (
	"context"

	"codeberg.org/mutker/envlogger/internal/timing"
)

// PollStatus is the answer of a driver asked whether its result is in.
type PollStatus int

const (
	PollPending PollStatus = iota
	PollReady
	PollFailed
)

func (p PollStatus) String() string {
	switch p {
	case PollPending:
		return "pending"
	case PollReady:
		return "ready"
	case PollFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Driver is the transport-specific half of a sensor. Implementations own
// their buffers and must not block for longer than one bounded transport
// timeout per call.
type Driver interface {
	// Trigger asks the device to start a measurement.
	Trigger(ctx context.Context) error
	// Poll reports whether the triggered measurement can be read. It is only
	// called once the sensor's measurement time has elapsed, and must answer
	// PollFailed rather than PollPending forever when the device stops responding.
	Poll(ctx context.Context, now timing.Millis) PollStatus
	// Read returns one raw value per declared variable.
	Read(ctx context.Context) ([]Reading, error)
	// Variables is the static description of the outputs, bounds included.
	Variables() []Variable
	// Location is derived from bus and address, e.g. "ttyUSB0_1".
	Location() string
}

// Setupper is implemented by drivers that need one-time preparation while
// the sensor is powered.
type Setupper interface {
	Setup(ctx context.Context) error
}

// RetryBudgeter is implemented by drivers whose family has a known retry
// ceiling per sample.
type RetryBudgeter interface {
	RetryBudget() int
}
