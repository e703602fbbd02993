package challenge

// State is a step of the challenge protocol.
type State int

// Protocol states. Direct means the operation never needed a challenge.
const (
	Direct State = iota
	Issued
	Requested
	Confirmed
	Satisfied
	Retried
)

var stateNames = [...]string{"direct", "issued", "requested", "confirmed", "satisfied", "retried"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// ParseState is the inverse of String.
func ParseState(s string) (State, bool) {
	for i, n := range stateNames {
		if n == s {
			return State(i), true
		}
	}
	return 0, false
}
