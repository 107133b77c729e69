package manager

// State is the lifecycle state of one daemon role.
//
//	Stopped -> Starting -> Running -> Stopping -> Stopped
//	                \-> Error (spawn failure, nonzero exit, readiness timeout)
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateError
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// States lists every state, in declaration order.
var States = []State{StateStopped, StateStarting, StateRunning, StateStopping, StateError}
