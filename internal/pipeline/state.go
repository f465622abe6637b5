package pipeline

// State is the orchestrator's position in a run.
type State int

const (
	StateIdle State = iota
	StateAnalyzing
	StateGeneratingVariations
	StateExecuting
	StateAggregating
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateIdle:                 "idle",
	StateAnalyzing:            "analyzing",
	StateGeneratingVariations: "generating_variations",
	StateExecuting:            "executing",
	StateAggregating:          "aggregating",
	StateDone:                 "done",
	StateFailed:               "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

// next is the single forward step from each non-terminal state.
var next = map[State]State{
	StateIdle:                 StateAnalyzing,
	StateAnalyzing:            StateGeneratingVariations,
	StateGeneratingVariations: StateExecuting,
	StateExecuting:            StateAggregating,
	StateAggregating:          StateDone,
}

// CanTransition reports whether moving from s to to is allowed. Stages only
// move forward one step; Failed is reachable from any non-terminal state.
func (s State) CanTransition(to State) bool {
	if s.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	n, ok := next[s]
	return ok && n == to
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
