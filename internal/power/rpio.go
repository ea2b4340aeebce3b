package power

import (
	"strconv"
	"sync"

	"codeberg.org/mutker/envlogger/internal/errors"
	rpio "github.com/stianeikeland/go-rpio/v4"
)

var (
	rpioOnce sync.Once
	rpioErr  error
)

type rpioLine struct {
	pin rpio.Pin
	mu  sync.Mutex
}

// NewRPIO drives a BCM-numbered pin through /dev/gpiomem. Useful on
// Raspberry Pi images without the periph sysfs drivers.
func NewRPIO(bcm int) (Controller, error) {
	rpioOnce.Do(func() {
		if err := rpio.Open(); err != nil {
			rpioErr = errors.New().Wrap(ErrHostInit, err)
		}
	})
	if rpioErr != nil {
		return nil, rpioErr
	}

	pin := rpio.Pin(bcm)
	pin.Output()
	pin.Low()

	return &rpioLine{pin: pin}, nil
}

func (l *rpioLine) On() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pin.High()

	return nil
}

func (l *rpioLine) Off() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pin.Low()

	return nil
}

func (*rpioLine) Controllable() bool { return true }

func (l *rpioLine) String() string {
	return "BCM" + strconv.Itoa(int(l.pin))
}
