// Package canonical defines the gateway's internal request/response
// representation. Both dialect translators (OpenAI, Anthropic) convert
// into and out of this shape so the rest of the pipeline — upstream
// encoding, the event-stream parser, the tool-call reconciler, the stream
// coordinator — only ever has to reason about one schema.
package canonical

// PartKind tags the variant held by a Part. Dialect conversion switches
// exhaustively over PartKind rather than relying on type assertions alone,
// so adding a new kind forces every conversion site to be revisited.
type PartKind string

const (
	PartText       PartKind = "text"
	PartImage      PartKind = "image"
	PartToolUse    PartKind = "tool_use"
	PartToolResult PartKind = "tool_result"
)

// Part is one tagged-variant content unit inside a Message. Exactly the
// fields relevant to Kind are populated; the rest are zero.
type Part struct {
	Kind PartKind

	// PartText
	Text string

	// PartImage. Upstream only accepts inline base64 image data — a
	// request containing a remote URL instead of ImageBase64 surfaces as
	// errors.UnsupportedInputError.
	ImageMediaType string
	ImageBase64    string
	ImageURL       string // non-empty only if the client supplied a URL; never sent upstream

	// PartToolUse
	ToolUseID   string
	ToolName    string
	ToolArgsRaw string // raw JSON text of the arguments object

	// PartToolResult
	ToolResultID      string
	ToolResultContent string
	ToolResultIsError bool
}

// Role identifies the speaker of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of canonical conversation history.
type Message struct {
	Role  Role
	Parts []Part
}

// ToolDescriptor is a tool definition offered to the model. Descriptions
// longer than the configured relocation threshold get excised to the
// system prompt and replaced by a short stub (see toolcall/relocate.go).
type ToolDescriptor struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
}

// Request is the canonical, dialect-independent representation of an
// inbound chat/messages request.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	Tools       []ToolDescriptor
	Stream      bool
	MaxTokens   int
	Temperature *float64
	TopP        *float64
	Stop        []string
}

// LastUserMessage returns the final message with RoleUser, which becomes
// the upstream "current input"; every earlier message becomes history.
// Returns false if there is no user message.
func (r *Request) LastUserMessage() (Message, int, bool) {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i], i, true
		}
	}
	return Message{}, -1, false
}

// FinishReason is the dialect-independent completion reason, mapped to
// each dialect's own vocabulary by the outbound translators.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishLength    FinishReason = "length"
	FinishToolCalls FinishReason = "tool_calls"
)

// ToolCall is one resolved tool invocation, whether parsed from a native
// upstream tool-use frame or recovered from bracket-encoded plain text.
type ToolCall struct {
	ID     string
	Name   string
	Args   string // JSON text; repaired or raw-string per parser fallback rules
	Native bool   // true if it arrived as a native tool-use frame, false if bracket-extracted
}

// Usage carries token accounting for a completed (or completing) response.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int

	// CreditsUsed is the upstream's own metering/accounting figure for this
	// response (its meaning is opaque to the gateway), surfaced as-is on
	// the final chunk. Zero means the upstream never reported one.
	CreditsUsed float64
}

// Response is the canonical, dialect-independent completed response,
// assembled by the Stream Coordinator once a generation finishes (or used
// directly for non-streaming calls).
type Response struct {
	ID           string
	Model        string
	Content      string
	ToolCalls    []ToolCall
	FinishReason FinishReason
	Usage        Usage
}
