package eventstream

import (
	"bytes"
	"encoding/json"
	"strings"
)

// FrameSink receives every successfully decoded frame before dispatch,
// ahead of any JSON interpretation. The default NopSink does nothing; a
// debug exporter can be wired in instead without touching the parser
// itself.
type FrameSink interface {
	Frame(f *Frame)
}

type nopSink struct{}

func (nopSink) Frame(*Frame) {}

// NopSink is the default, no-op FrameSink.
var NopSink FrameSink = nopSink{}

// Parser incrementally decodes a byte stream into Events. It tolerates
// Feed being called with arbitrarily split chunks — including splits in
// the middle of the 8-byte length prelude itself — by buffering until a
// complete frame is available.
type Parser struct {
	buf  bytes.Buffer
	sink FrameSink

	// toolArgs accumulates partial JSON argument text per in-flight
	// tool-use id, since upstream streams it in fragments.
	toolArgs map[string]*strings.Builder
	toolName map[string]string
}

// NewParser constructs a Parser. Pass NopSink unless a FrameSink is wired.
func NewParser(sink FrameSink) *Parser {
	if sink == nil {
		sink = NopSink
	}
	return &Parser{
		sink:     sink,
		toolArgs: make(map[string]*strings.Builder),
		toolName: make(map[string]string),
	}
}

// Feed appends data to the internal buffer and decodes every complete
// frame now available. A frame that fails to decode (bad CRC, malformed
// header, unparseable JSON payload) is reported as an entry in errs (the
// DecodeFrame error, or a *ParseErrorDetail for a payload that fails to
// dispatch) for the caller to log, and skipped — it never aborts
// the stream. Feed is safe to call repeatedly as more bytes arrive; it is
// idempotent in the sense that feeding the same logical byte stream split
// at any boundary yields the same Events in the same order.
func (p *Parser) Feed(data []byte) (events []Event, errs []error) {
	p.buf.Write(data)

	for {
		frame, consumed, err := DecodeFrame(p.buf.Bytes())
		if err == ErrIncomplete {
			break
		}
		if consumed > 0 {
			// Advance past this frame's bytes regardless of decode
			// success, so a single malformed frame doesn't wedge the
			// parser on every subsequent Feed call.
			remaining := make([]byte, p.buf.Len()-consumed)
			copy(remaining, p.buf.Bytes()[consumed:])
			p.buf.Reset()
			p.buf.Write(remaining)
		} else {
			// No frame-length information recoverable at all; drop
			// everything buffered so far rather than spin forever.
			errs = append(errs, err)
			p.buf.Reset()
			break
		}

		if err != nil {
			errs = append(errs, err)
			continue
		}

		p.sink.Frame(frame)

		event, ok, derr := p.dispatch(frame)
		if derr != nil {
			errs = append(errs, derr)
			continue
		}
		if ok {
			events = append(events, event)
		}
	}

	return events, errs
}

type rawPayload struct {
	Content                string  `json:"content"`
	ToolUseID               string  `json:"toolUseId"`
	Name                    string  `json:"name"`
	Input                   string  `json:"input"`
	Stop                    bool    `json:"stop"`
	ContextUsagePercentage  float64 `json:"contextUsagePercentage"`
	MeteringCredits         float64 `json:"meteringCredits"`
	Message                 string  `json:"message"`
	Reason                  string  `json:"reason"`
}

func (p *Parser) dispatch(f *Frame) (Event, bool, error) {
	if f.MessageType() == "exception" {
		var raw rawPayload
		_ = json.Unmarshal(f.Payload, &raw)
		reason := raw.Reason
		if reason == "" {
			reason = f.EventType()
		}
		return Event{Kind: EventException, ExceptionType: reason, ExceptionMessage: raw.Message}, true, nil
	}

	if len(f.Payload) == 0 {
		return Event{}, false, nil
	}

	var raw rawPayload
	if err := json.Unmarshal(f.Payload, &raw); err != nil {
		return Event{}, false, &ParseErrorDetail{Reason: "malformed json payload: " + err.Error()}
	}

	eventType := strings.ToLower(f.EventType())

	switch {
	case strings.Contains(eventType, "tooluse"):
		builder, ok := p.toolArgs[raw.ToolUseID]
		if !ok {
			builder = &strings.Builder{}
			p.toolArgs[raw.ToolUseID] = builder
			p.toolName[raw.ToolUseID] = raw.Name
		}
		builder.WriteString(raw.Input)

		frag := ToolCallFragment{
			ToolUseID: raw.ToolUseID,
			Name:      p.toolName[raw.ToolUseID],
			ArgsChunk: raw.Input,
			Stop:      raw.Stop,
		}
		if raw.Stop {
			delete(p.toolArgs, raw.ToolUseID)
			delete(p.toolName, raw.ToolUseID)
		}
		return Event{Kind: EventToolCallFragment, ToolFragment: frag, ContextUsagePercent: raw.ContextUsagePercentage, MeteringCredits: raw.MeteringCredits}, true, nil

	case raw.Content != "" || strings.Contains(eventType, "assistantresponse"):
		return Event{Kind: EventContent, Content: raw.Content, ContextUsagePercent: raw.ContextUsagePercentage, MeteringCredits: raw.MeteringCredits}, true, nil

	case raw.ContextUsagePercentage > 0 || raw.MeteringCredits > 0:
		return Event{Kind: EventMetadata, ContextUsagePercent: raw.ContextUsagePercentage, MeteringCredits: raw.MeteringCredits}, true, nil

	default:
		// Unknown event type with an empty/irrelevant payload: not an
		// error, just nothing for the coordinator to act on.
		return Event{}, false, nil
	}
}

// AccumulatedToolArgs returns the raw (unrepaired) argument text
// accumulated so far for an in-flight tool use id, for diagnostics.
func (p *Parser) AccumulatedToolArgs(toolUseID string) string {
	if b, ok := p.toolArgs[toolUseID]; ok {
		return b.String()
	}
	return ""
}

// ParseErrorDetail is a non-fatal per-frame decode failure.
type ParseErrorDetail struct {
	Reason string
}

func (e *ParseErrorDetail) Error() string { return e.Reason }
