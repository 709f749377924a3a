package generate

// State is the phase a generation run is in.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateCollecting
	StateRendering
	StateEmitting
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:       "idle",
	StateValidating: "validating",
	StateCollecting: "collecting",
	StateRendering:  "rendering",
	StateEmitting:   "emitting",
	StateDone:       "done",
	StateFailed:     "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// transitions lists the states reachable from each state. Done and Failed
// are terminal.
var transitions = map[State][]State{
	StateIdle:       {StateValidating, StateRendering, StateDone, StateFailed},
	StateValidating: {StateCollecting, StateFailed},
	StateCollecting: {StateRendering, StateDone, StateFailed},
	StateRendering:  {StateRendering, StateEmitting, StateDone, StateFailed},
	StateEmitting:   {StateRendering, StateDone, StateFailed},
}

func (s State) canTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}
