package openaidialect

import (
	"encoding/json"
	"fmt"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"github.com/kiro-gateway/kiro-gateway/internal/canonical"
)

// DonePrefix is the terminator line every OpenAI SSE stream ends with.
const DonePrefix = "data: [DONE]\n\n"

func sseLine(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		// Only hand-built structs flow through here; a marshal failure
		// indicates a bug, not a runtime condition worth recovering from
		// gracefully.
		return fmt.Sprintf("data: {\"error\":%q}\n\n", err.Error())
	}
	return "data: " + string(data) + "\n\n"
}

// ContentDeltaChunk renders one streamed content fragment. first marks
// whether this is the stream's opening chunk, which alone carries
// role:"assistant".
func ContentDeltaChunk(id, model string, created int64, content string, first bool) string {
	delta := openai.ChatCompletionStreamChoiceDelta{Content: content}
	if first {
		delta.Role = openai.ChatMessageRoleAssistant
	}
	chunk := openai.ChatCompletionStreamResponse{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: created,
		Model:   model,
		Choices: []openai.ChatCompletionStreamChoice{{Index: 0, Delta: delta}},
	}
	return sseLine(chunk)
}

// ToolCallChunk renders one streamed tool-call fragment. index is the
// 0-based dense position assigned by the reconciler.
func ToolCallChunk(id, model string, created int64, index int, tc canonical.ToolCall) string {
	chunk := openai.ChatCompletionStreamResponse{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: created,
		Model:   model,
		Choices: []openai.ChatCompletionStreamChoice{{
			Index: 0,
			Delta: openai.ChatCompletionStreamChoiceDelta{
				ToolCalls: []openai.ToolCall{{
					Index: &index,
					ID:    tc.ID,
					Type:  openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Args,
					},
				}},
			},
		}},
	}
	return sseLine(chunk)
}

// FinalChunk renders the closing choice with an empty delta and the
// resolved finish reason.
func FinalChunk(id, model string, created int64, finish canonical.FinishReason) string {
	chunk := openai.ChatCompletionStreamResponse{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: created,
		Model:   model,
		Choices: []openai.ChatCompletionStreamChoice{{
			Index:        0,
			Delta:        openai.ChatCompletionStreamChoiceDelta{},
			FinishReason: mapFinishReason(finish),
		}},
	}
	return sseLine(chunk)
}

// usageWithCredits extends the upstream SDK's Usage struct with the
// gateway's own credits_used figure, which OpenAI's wire shape has no slot
// for but which upstream callers still want surfaced.
type usageWithCredits struct {
	openai.Usage
	CreditsUsed float64 `json:"credits_used,omitempty"`
}

func toUsageWithCredits(usage canonical.Usage) usageWithCredits {
	return usageWithCredits{
		Usage: openai.Usage{
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
			TotalTokens:      usage.TotalTokens,
		},
		CreditsUsed: usage.CreditsUsed,
	}
}

// UsageChunk renders the trailing usage-only SSE event that follows the
// final chunk in OpenAI's streaming shape.
func UsageChunk(usage canonical.Usage) string {
	return sseLine(struct {
		Usage usageWithCredits `json:"usage"`
	}{
		Usage: toUsageWithCredits(usage),
	})
}

// NonStreamResponse assembles a complete canonical.Response into a single
// OpenAI ChatCompletionResponse JSON body.
func NonStreamResponse(id, model string, created int64, resp canonical.Response) ([]byte, error) {
	msg := openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: resp.Content,
	}
	for _, tc := range resp.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
			ID:   tc.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      tc.Name,
				Arguments: tc.Args,
			},
		})
	}

	out := struct {
		ID      string                        `json:"id"`
		Object  string                        `json:"object"`
		Created int64                         `json:"created"`
		Model   string                        `json:"model"`
		Choices []openai.ChatCompletionChoice `json:"choices"`
		Usage   usageWithCredits              `json:"usage"`
	}{
		ID:      id,
		Object:  "chat.completion",
		Created: created,
		Model:   model,
		Choices: []openai.ChatCompletionChoice{{
			Index:        0,
			Message:      msg,
			FinishReason: mapFinishReason(resp.FinishReason),
		}},
		Usage: toUsageWithCredits(resp.Usage),
	}
	return json.Marshal(out)
}

func mapFinishReason(f canonical.FinishReason) openai.FinishReason {
	switch f {
	case canonical.FinishToolCalls:
		return openai.FinishReasonToolCalls
	case canonical.FinishLength:
		return openai.FinishReasonLength
	default:
		return openai.FinishReasonStop
	}
}
