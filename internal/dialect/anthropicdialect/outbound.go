package anthropicdialect

import (
	"encoding/json"
	"fmt"

	anthropic "github.com/liushuangls/go-anthropic/v2"

	"github.com/kiro-gateway/kiro-gateway/internal/canonical"
)

func sseEvent(eventType string, data interface{}) string {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Sprintf("event: error\ndata: {\"error\":%q}\n\n", err.Error())
	}
	return "event: " + eventType + "\ndata: " + string(payload) + "\n\n"
}

type messageStartPayload struct {
	Type    string          `json:"type"`
	Message anthropicMsgDoc `json:"message"`
}

type anthropicMsgDoc struct {
	ID           string                     `json:"id"`
	Type         string                     `json:"type"`
	Role         string                     `json:"role"`
	Content      []anthropic.MessageContent `json:"content"`
	Model        string                     `json:"model"`
	StopReason   interface{}                `json:"stop_reason"`
	StopSequence interface{}                `json:"stop_sequence"`
	Usage        usageWithCredits           `json:"usage"`
}

// usageWithCredits extends the SDK's Usage struct with the gateway's own
// credits_used figure, which Anthropic's wire shape has no slot for but
// which upstream callers still want surfaced.
type usageWithCredits struct {
	anthropic.Usage
	CreditsUsed float64 `json:"credits_used,omitempty"`
}

func toUsageWithCredits(usage canonical.Usage) usageWithCredits {
	return usageWithCredits{
		Usage: anthropic.Usage{
			InputTokens:  usage.PromptTokens,
			OutputTokens: usage.CompletionTokens,
		},
		CreditsUsed: usage.CreditsUsed,
	}
}

// MessageStartEvent renders the stream-opening `message_start` event with
// empty content and zeroed usage, per the Anthropic streaming shape.
func MessageStartEvent(id, model string) string {
	return sseEvent("message_start", messageStartPayload{
		Type: "message_start",
		Message: anthropicMsgDoc{
			ID:      id,
			Type:    "message",
			Role:    "assistant",
			Content: []anthropic.MessageContent{},
			Model:   model,
		},
	})
}

type contentBlockStartPayload struct {
	Type         string                   `json:"type"`
	Index        int                      `json:"index"`
	ContentBlock anthropic.MessageContent `json:"content_block"`
}

// TextBlockStartEvent opens a text content block at index.
func TextBlockStartEvent(index int) string {
	empty := ""
	return sseEvent("content_block_start", contentBlockStartPayload{
		Type:         "content_block_start",
		Index:        index,
		ContentBlock: anthropic.NewTextMessageContent(empty),
	})
}

// ToolUseBlockStartEvent opens a tool_use content block at index.
func ToolUseBlockStartEvent(index int, toolUseID, name string) string {
	return sseEvent("content_block_start", contentBlockStartPayload{
		Type:         "content_block_start",
		Index:        index,
		ContentBlock: anthropic.NewToolUseMessageContent(toolUseID, name, json.RawMessage("{}")),
	})
}

type contentBlockDeltaPayload struct {
	Type  string      `json:"type"`
	Index int         `json:"index"`
	Delta deltaObject `json:"delta"`
}

type deltaObject struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
}

// TextDeltaEvent streams one fragment of assistant text at index.
func TextDeltaEvent(index int, text string) string {
	return sseEvent("content_block_delta", contentBlockDeltaPayload{
		Type:  "content_block_delta",
		Index: index,
		Delta: deltaObject{Type: "text_delta", Text: text},
	})
}

// InputJSONDeltaEvent streams one fragment of a tool call's argument JSON.
func InputJSONDeltaEvent(index int, partialJSON string) string {
	return sseEvent("content_block_delta", contentBlockDeltaPayload{
		Type:  "content_block_delta",
		Index: index,
		Delta: deltaObject{Type: "input_json_delta", PartialJSON: partialJSON},
	})
}

// ContentBlockStopEvent closes the block at index.
func ContentBlockStopEvent(index int) string {
	return sseEvent("content_block_stop", struct {
		Type  string `json:"type"`
		Index int    `json:"index"`
	}{"content_block_stop", index})
}

type messageDeltaPayload struct {
	Type  string             `json:"type"`
	Delta messageDeltaFields `json:"delta"`
	Usage usageWithCredits   `json:"usage"`
}

type messageDeltaFields struct {
	StopReason   string      `json:"stop_reason"`
	StopSequence interface{} `json:"stop_sequence"`
}

// MessageDeltaEvent carries the resolved stop reason and final usage.
func MessageDeltaEvent(finish canonical.FinishReason, usage canonical.Usage) string {
	return sseEvent("message_delta", messageDeltaPayload{
		Type:  "message_delta",
		Delta: messageDeltaFields{StopReason: mapStopReason(finish)},
		Usage: toUsageWithCredits(usage),
	})
}

// MessageStopEvent closes the stream.
func MessageStopEvent() string {
	return sseEvent("message_stop", struct {
		Type string `json:"type"`
	}{"message_stop"})
}

// NonStreamResponse assembles a complete canonical.Response into a single
// Anthropic Messages API JSON body, built from the SDK's own content-block
// constructors.
func NonStreamResponse(id, model string, resp canonical.Response) ([]byte, error) {
	var content []anthropic.MessageContent
	if resp.Content != "" {
		content = append(content, anthropic.NewTextMessageContent(resp.Content))
	}
	for _, tc := range resp.ToolCalls {
		content = append(content, anthropic.NewToolUseMessageContent(tc.ID, tc.Name, json.RawMessage(tc.Args)))
	}

	doc := anthropicMsgDoc{
		ID:         id,
		Type:       "message",
		Role:       "assistant",
		Content:    content,
		Model:      model,
		StopReason: mapStopReason(resp.FinishReason),
		Usage:      toUsageWithCredits(resp.Usage),
	}
	return json.Marshal(doc)
}

func mapStopReason(f canonical.FinishReason) string {
	switch f {
	case canonical.FinishToolCalls:
		return "tool_use"
	case canonical.FinishLength:
		return "max_tokens"
	default:
		return "end_turn"
	}
}
