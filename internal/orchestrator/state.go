package orchestrator

// State is a step of a run.
type State int

const (
	Validating State = iota
	LogRotating
	CriticalSection
	Flashing
	Overlaying
	Stabilizing
	Launching
	Streaming
	Restoring
	Done
	Failed
)

var stateNames = [...]string{
	Validating:      "validating",
	LogRotating:     "log-rotating",
	CriticalSection: "critical-section",
	Flashing:        "flashing",
	Overlaying:      "overlaying",
	Stabilizing:     "stabilizing",
	Launching:       "launching",
	Streaming:       "streaming",
	Restoring:       "restoring",
	Done:            "done",
	Failed:          "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
