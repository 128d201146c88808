package decision

import "sync"

// Threshold bands over the final evaluation note in [-1, 1]. The risk delta
// shifts the bands so riskier sessions act earlier on buy signals and later
// on sell signals.
const (
	veryLongThreshold = -0.85
	longThreshold     = -0.25
	neutralThreshold  = 0.25
	shortThreshold    = 0.85

	riskThreshold = 0.2
)

// StateFor maps a final evaluation note and a risk setting to a trading
// state.
func StateFor(finalEval, risk float64) State {
	delta := riskThreshold * risk
	switch {
	case finalEval < veryLongThreshold+delta:
		return StateVeryLong
	case finalEval < longThreshold+delta:
		return StateLong
	case finalEval < neutralThreshold-delta:
		return StateNeutral
	case finalEval < shortThreshold-delta:
		return StateShort
	default:
		return StateVeryShort
	}
}

// Tracker remembers the last state per symbol and reports whether a newly
// computed state is a change worth acting on. Neutral transitions are
// recorded but never actionable.
type Tracker struct {
	mu     sync.Mutex
	states map[string]State
}

func NewTracker() *Tracker {
	return &Tracker{states: make(map[string]State)}
}

// Update records the state for symbol and returns true when it differs from
// the previous one and is actionable.
func (t *Tracker) Update(symbol string, state State) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	previous := t.states[symbol]
	t.states[symbol] = state
	return state != previous && state.Actionable()
}

// Current returns the last recorded state for symbol.
func (t *Tracker) Current(symbol string) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.states[symbol]
}
