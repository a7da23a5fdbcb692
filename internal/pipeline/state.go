package pipeline

// State is where a run currently sits in the linear sync sequence. A run
// moves forward only; StateFailed and StateDone are terminal.
type State int

const (
	StateIdle State = iota
	StateConnected
	StateSchemaReady
	StateExtracted
	StateLoaded
	StateExported
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:        "IDLE",
	StateConnected:   "CONNECTED",
	StateSchemaReady: "SCHEMA_READY",
	StateExtracted:   "EXTRACTED",
	StateLoaded:      "LOADED",
	StateExported:    "EXPORTED",
	StateDone:        "DONE",
	StateFailed:      "FAILED",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}
