// Package decision holds the discrete trading state and the threshold
// decider that derives it from a final evaluation note.
package decision

// State is the discrete action band a final evaluation lands in. It drives
// which sizing branch executes; it is supplied to the sizing engine, never
// computed there.
type State int

const (
	StateUnknown State = iota
	StateVeryShort
	StateShort
	StateNeutral
	StateLong
	StateVeryLong
)

var stateNames = map[State]string{
	StateUnknown:   "unknown",
	StateVeryShort: "very_short",
	StateShort:     "short",
	StateNeutral:   "neutral",
	StateLong:      "long",
	StateVeryLong:  "very_long",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Known reports whether s is one of the five recognized states.
func (s State) Known() bool {
	return s >= StateVeryShort && s <= StateVeryLong
}

// Actionable reports whether the state calls for order creation.
func (s State) Actionable() bool {
	return s.Known() && s != StateNeutral
}
