package saturate

import "fmt"

// State is the lifecycle of a Runner. Converged and IterationCapReached
// are terminal.
type State int

const (
	Running State = iota
	Converged
	IterationCapReached
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Converged:
		return "converged"
	case IterationCapReached:
		return "iteration_cap_reached"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether the runner has stopped.
func (s State) Terminal() bool {
	return s == Converged || s == IterationCapReached
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
