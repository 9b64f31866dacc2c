// Package upstream encodes a canonical.Request into the UPSTREAM vendor's
// own JSON request envelope: a conversationState carrying an ordered
// history plus a single current userInputMessage.
package upstream

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/kiro-gateway/kiro-gateway/internal/canonical"
)

// ContentBlock is one entry of an UPSTREAM message's content array.
type ContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ToolUseID string          `json:"toolUseId,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"isError,omitempty"`
	MediaType string          `json:"mediaType,omitempty"`
	Data      string          `json:"data,omitempty"`
}

// HistoryMessage is one prior turn carried in conversationState.history.
type HistoryMessage struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ToolSpec is one tool offered to the model, attached under
// userInputMessageContext.tools.
type ToolSpec struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema,omitempty"`
}

// UserInputMessageContext carries the system prompt and tool specs
// alongside the current input message.
type UserInputMessageContext struct {
	SystemPrompt string     `json:"systemPrompt,omitempty"`
	Tools        []ToolSpec `json:"tools,omitempty"`
}

// UserInputMessage is the current turn's content.
type UserInputMessage struct {
	Content []ContentBlock           `json:"content"`
	Context UserInputMessageContext  `json:"userInputMessageContext"`
}

// ConversationState is the envelope's top-level conversational payload.
type ConversationState struct {
	ConversationID    string             `json:"conversationId"`
	History           []HistoryMessage   `json:"history"`
	UserInputMessage  UserInputMessage   `json:"userInputMessage"`
}

// Envelope is the full UPSTREAM request body.
type Envelope struct {
	ProfileIdentifier string            `json:"profileIdentifier,omitempty"`
	ConversationState ConversationState `json:"conversationState"`
	ModelID           string            `json:"modelId"`
	MaxTokens         int               `json:"maxTokens,omitempty"`
}

// Encode builds the UPSTREAM envelope for req. The last canonical user
// message becomes the current userInputMessage; all earlier messages
// become history. conversationID is generated fresh via uuid if absent.
func Encode(req *canonical.Request, conversationID, profileIdentifier string) *Envelope {
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	_, lastUserIdx, hasUser := req.LastUserMessage()

	var history []HistoryMessage
	for i, m := range req.Messages {
		if hasUser && i == lastUserIdx {
			continue
		}
		history = append(history, HistoryMessage{
			Role:    string(m.Role),
			Content: partsToBlocks(m.Parts),
		})
	}

	var currentBlocks []ContentBlock
	if hasUser {
		currentBlocks = partsToBlocks(req.Messages[lastUserIdx].Parts)
	}

	var tools []ToolSpec
	for _, t := range req.Tools {
		tools = append(tools, ToolSpec{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}

	return &Envelope{
		ProfileIdentifier: profileIdentifier,
		ModelID:           req.Model,
		MaxTokens:         req.MaxTokens,
		ConversationState: ConversationState{
			ConversationID: conversationID,
			History:        history,
			UserInputMessage: UserInputMessage{
				Content: currentBlocks,
				Context: UserInputMessageContext{
					SystemPrompt: req.System,
					Tools:        tools,
				},
			},
		},
	}
}

func partsToBlocks(parts []canonical.Part) []ContentBlock {
	blocks := make([]ContentBlock, 0, len(parts))
	for _, p := range parts {
		switch p.Kind {
		case canonical.PartText:
			blocks = append(blocks, ContentBlock{Type: "text", Text: p.Text})
		case canonical.PartImage:
			blocks = append(blocks, ContentBlock{Type: "image", MediaType: p.ImageMediaType, Data: p.ImageBase64})
		case canonical.PartToolUse:
			blocks = append(blocks, ContentBlock{
				Type:      "tool_use",
				ToolUseID: p.ToolUseID,
				Name:      p.ToolName,
				Input:     json.RawMessage(p.ToolArgsRaw),
			})
		case canonical.PartToolResult:
			blocks = append(blocks, ContentBlock{
				Type:      "tool_result",
				ToolUseID: p.ToolResultID,
				Content:   p.ToolResultContent,
				IsError:   p.ToolResultIsError,
			})
		}
	}
	return blocks
}
