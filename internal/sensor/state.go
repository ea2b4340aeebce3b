package sensor

// State is the power and measurement stage. Stages only move forward, one
// at a time, until PowerDown returns the sensor to Off.
type State int

const (
	Off State = iota
	Powering
	WarmedUp
	Stable
	Measuring
	Ready
)

var stateNames = [...]string{"off", "powering", "warmed_up", "stable", "measuring", "ready"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}

	return stateNames[s]
}
