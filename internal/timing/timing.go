// Package timing holds the millisecond arithmetic shared by every sensor
// timing gate.
//
// Time is a 32-bit millisecond counter that rolls over roughly every 49.7
// days. Elapsed time is always computed by unsigned subtraction so gates
// keep working across the rollover; absolute timestamps are never compared.
package timing

import (
	"math"
	"time"
)

// Millis is a point on, or a span of, the rolling millisecond counter.
type Millis uint32

// MaxSpan is the longest span that can be measured without ambiguity.
const MaxSpan = Millis(math.MaxUint32)

// Elapsed returns the milliseconds from ref to now, modulo 2^32.
func Elapsed(now, ref Millis) Millis {
	return now - ref
}

// Reached reports whether at least d has elapsed since ref.
func Reached(now, ref, d Millis) bool {
	return Elapsed(now, ref) >= d
}

// FromDuration converts d to Millis, clamping negatives to zero and
// anything past MaxSpan to MaxSpan.
func FromDuration(d time.Duration) Millis {
	ms := d.Milliseconds()
	if ms <= 0 {
		return 0
	}
	if ms > int64(MaxSpan) {
		return MaxSpan
	}

	return Millis(ms)
}

// Duration converts m back to a time.Duration.
func (m Millis) Duration() time.Duration {
	return time.Duration(m) * time.Millisecond
}

// Stamp is an optional timestamp. The zero value is unset.
type Stamp struct {
	at  Millis
	set bool
}

func (s *Stamp) Set(at Millis) {
	s.at = at
	s.set = true
}

func (s *Stamp) Clear() {
	*s = Stamp{}
}

func (s Stamp) Get() (Millis, bool) {
	return s.at, s.set
}

func (s Stamp) IsSet() bool {
	return s.set
}
