package eventstream

// EventKind categorizes a decoded upstream event for dispatch by the
// Stream Coordinator.
type EventKind string

const (
	EventContent          EventKind = "content"
	EventToolCallFragment EventKind = "tool_call_fragment"
	EventMetadata         EventKind = "metadata" // usage / context-window accounting
	EventException        EventKind = "exception"
)

// ToolCallFragment is one incremental slice of a native tool-use frame.
// ArgsChunk holds only this fragment's piece of the arguments; the pieces
// of fragments sharing the same ToolUseID concatenate, in order, until Stop
// is set.
type ToolCallFragment struct {
	ToolUseID string
	Name      string
	ArgsChunk string
	Stop      bool
}

// Event is one dispatch-ready upstream event, decoded from a Frame's JSON
// payload.
type Event struct {
	Kind EventKind

	Content string

	ToolFragment ToolCallFragment

	// ContextUsagePercent, when > 0, is the upstream's own estimate of how
	// full the model's context window is — preferred over local token
	// estimation per the Token Counter's design (internal/tokencount).
	ContextUsagePercent float64
	MeteringCredits     float64

	ExceptionType    string
	ExceptionMessage string
}
