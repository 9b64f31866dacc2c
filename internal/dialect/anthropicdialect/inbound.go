// Package anthropicdialect translates between the Anthropic `/v1/messages`
// wire format and the gateway's canonical request/response. The inbound
// request, including tool definitions and message content blocks, is
// decoded from a lightweight local mirror of the wire shape (wireRequest,
// wireTool, wireBlock) so the gateway controls exactly how each block
// variant maps onto a canonical Part; responses are encoded on the way out
// using the Go SDK's (`liushuangls/go-anthropic/v2`) own constructors
// (`anthropic.NewTextMessageContent` etc. — see outbound.go).
package anthropicdialect

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/kiro-gateway/kiro-gateway/internal/canonical"
	"github.com/kiro-gateway/kiro-gateway/internal/dialect/modelmap"
	gwerrors "github.com/kiro-gateway/kiro-gateway/internal/errors"
	"github.com/kiro-gateway/kiro-gateway/internal/toolcall"
)

type wireRequest struct {
	Model         string           `json:"model"`
	System        json.RawMessage `json:"system"`
	Messages      []wireMessage    `json:"messages"`
	Tools         []wireTool       `json:"tools"`
	MaxTokens     int              `json:"max_tokens"`
	Temperature   *float64         `json:"temperature"`
	TopP          *float64         `json:"top_p"`
	StopSequences []string         `json:"stop_sequences"`
	Stream        bool             `json:"stream"`
}

type wireMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type wireTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

type wireBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content"` // tool_result: string or array of text blocks
	IsError   bool            `json:"is_error"`
	Source    *wireImageSource `json:"source"`
}

type wireImageSource struct {
	Type      string `json:"type"` // "base64" or "url"
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
	URL       string `json:"url"`
}

// ParseRequest decodes an Anthropic Messages API request body into a
// canonical.Request.
func ParseRequest(body []byte, modelTable map[string]string, toolDescMaxLength int) (*canonical.Request, error) {
	var req wireRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &gwerrors.ParseError{Reason: "invalid Anthropic request body: " + err.Error()}
	}

	systemPrompt, err := decodeSystem(req.System)
	if err != nil {
		return nil, err
	}

	messages := make([]canonical.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		parts, err := decodeContentBlocks(m.Content)
		if err != nil {
			return nil, err
		}
		role := canonical.RoleUser
		if m.Role == "assistant" {
			role = canonical.RoleAssistant
		}
		messages = append(messages, canonical.Message{Role: role, Parts: parts})
	}

	tools := make([]canonical.ToolDescriptor, 0, len(req.Tools))
	for _, t := range req.Tools {
		tools = append(tools, canonical.ToolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	tools, systemPrompt = toolcall.RelocateOversizedDescriptions(tools, systemPrompt, toolDescMaxLength)

	out := &canonical.Request{
		Model:       modelmap.Resolve(modelTable, req.Model),
		System:      systemPrompt,
		Messages:    messages,
		Tools:       tools,
		Stream:      req.Stream,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.StopSequences,
	}
	return out, nil
}

// decodeSystem handles both the plain-string and typed-block-array forms
// Anthropic accepts for the top-level "system" field.
func decodeSystem(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString, nil
	}
	var blocks []wireBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", &gwerrors.ParseError{Reason: "invalid system field: " + err.Error()}
	}
	var parts []string
	for _, b := range blocks {
		if b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

func decodeContentBlocks(raw json.RawMessage) ([]canonical.Part, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if asString == "" {
			return nil, nil
		}
		return []canonical.Part{{Kind: canonical.PartText, Text: asString}}, nil
	}

	var blocks []wireBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil, &gwerrors.ParseError{Reason: "invalid content blocks: " + err.Error()}
	}

	parts := make([]canonical.Part, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case "text":
			parts = append(parts, canonical.Part{Kind: canonical.PartText, Text: b.Text})
		case "image":
			if b.Source == nil || b.Source.Type != "base64" {
				return nil, &gwerrors.UnsupportedInputError{
					Reason: "image source must be inline base64; remote URLs are not supported by the upstream",
				}
			}
			if _, err := base64.StdEncoding.DecodeString(b.Source.Data); err != nil {
				return nil, &gwerrors.UnsupportedInputError{Reason: "image source data is not valid base64"}
			}
			parts = append(parts, canonical.Part{
				Kind:           canonical.PartImage,
				ImageMediaType: b.Source.MediaType,
				ImageBase64:    b.Source.Data,
			})
		case "tool_use":
			parts = append(parts, canonical.Part{
				Kind:        canonical.PartToolUse,
				ToolUseID:   b.ID,
				ToolName:    b.Name,
				ToolArgsRaw: string(b.Input),
			})
		case "tool_result":
			content, err := decodeToolResultContent(b.Content)
			if err != nil {
				return nil, err
			}
			parts = append(parts, canonical.Part{
				Kind:              canonical.PartToolResult,
				ToolResultID:      b.ToolUseID,
				ToolResultContent: content,
				ToolResultIsError: b.IsError,
			})
		}
	}
	return parts, nil
}

func decodeToolResultContent(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString, nil
	}
	var blocks []wireBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", &gwerrors.ParseError{Reason: "invalid tool_result content: " + err.Error()}
	}
	var parts []string
	for _, b := range blocks {
		if b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n"), nil
}
