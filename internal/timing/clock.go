package timing

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Clock supplies the monotonic millisecond counter.
type Clock interface {
	Millis() Millis
}

type monoClock struct {
	c     clock.Clock
	start time.Time

	mu   sync.Mutex
	last time.Duration
}

// NewClock counts milliseconds since its creation on c, truncated to 32
// bits. The real clock measures with Go's monotonic reading, so wall clock
// steps do not move the counter; a clock that goes backwards anyway holds the
// counter where it was. A nil c uses the real clock.
func NewClock(c clock.Clock) Clock {
	if c == nil {
		c = clock.New()
	}

	return &monoClock{c: c, start: c.Now()}
}

func (m *monoClock) Millis() Millis {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d := m.c.Since(m.start); d > m.last {
		m.last = d
	}

	//nolint:gosec // G115: truncation is the rollover
	return Millis(uint64(m.last.Milliseconds()))
}
