package sensor

type tally struct {
	sum    float64
	valid  int
	failed int
}

// Accumulator folds repeated samples into a mean per variable. Missing and
// implausible samples only count as failures.
type Accumulator struct {
	vars    []Variable
	tallies []tally
}

func NewAccumulator(vars []Variable) *Accumulator {
	return &Accumulator{
		vars:    vars,
		tallies: make([]tally, len(vars)),
	}
}

// Reset zeroes every variable. Called at the start of a logging cycle.
func (a *Accumulator) Reset() {
	for i := range a.tallies {
		a.tallies[i] = tally{}
	}
}

// Record vets r against the variable's bounds and folds it in. The vetted
// reading is returned. An index outside the declared variables records
// nothing.
func (a *Accumulator) Record(i int, r Reading) Reading {
	if i < 0 || i >= len(a.tallies) {
		return Missing()
	}

	t := &a.tallies[i]
	if !r.Valid || !a.vars[i].Bounds.Contains(r.Value) {
		t.failed++
		return Missing()
	}

	t.sum += r.Value
	t.valid++

	return r
}

// Finalize returns the mean of the valid samples and how many there were.
// With no valid samples the result is missing and the count is zero.
func (a *Accumulator) Finalize(i int) (Reading, int) {
	if i < 0 || i >= len(a.tallies) {
		return Missing(), 0
	}

	t := a.tallies[i]
	if t.valid == 0 {
		return Missing(), 0
	}

	return Valid(t.sum / float64(t.valid)), t.valid
}

// Failures returns how many samples of variable i were rejected this cycle.
func (a *Accumulator) Failures(i int) int {
	if i < 0 || i >= len(a.tallies) {
		return 0
	}

	return a.tallies[i].failed
}
