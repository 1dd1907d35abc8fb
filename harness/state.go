package harness

// State is a step of Suite startup.
type State int

const (
	StateIdle State = iota
	StatePortChecked
	StateLaunching
	StateLaunched
	StatePolling
	StateReady
	StateFailed
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePortChecked:
		return "port-checked"
	case StateLaunching:
		return "launching"
	case StateLaunched:
		return "launched"
	case StatePolling:
		return "polling"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
