// Package openaidialect translates between the OpenAI `/v1/chat/completions`
// wire format and the gateway's canonical request/response, using the
// official OpenAI Go SDK's wire types (via its meguminnnnnnnnn fork) as the
// schema rather than hand-rolled structs.
package openaidialect

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"github.com/kiro-gateway/kiro-gateway/internal/canonical"
	"github.com/kiro-gateway/kiro-gateway/internal/dialect/modelmap"
	gwerrors "github.com/kiro-gateway/kiro-gateway/internal/errors"
	"github.com/kiro-gateway/kiro-gateway/internal/toolcall"
)

// ParseRequest decodes an OpenAI chat-completion request body into a
// canonical.Request. modelTable resolves the client-supplied model name to
// an upstream model id; toolDescMaxLength triggers relocation of oversized
// tool descriptions into the system prompt.
func ParseRequest(body []byte, modelTable map[string]string, toolDescMaxLength int) (*canonical.Request, error) {
	var req openai.ChatCompletionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &gwerrors.ParseError{Reason: "invalid OpenAI request body: " + err.Error()}
	}

	var systemParts []string
	var messages []canonical.Message

	for i, m := range req.Messages {
		switch m.Role {
		case openai.ChatMessageRoleSystem:
			if m.Content != "" {
				systemParts = append(systemParts, m.Content)
			}
		case openai.ChatMessageRoleUser:
			parts, err := userContentToParts(m)
			if err != nil {
				return nil, err
			}
			messages = append(messages, canonical.Message{Role: canonical.RoleUser, Parts: parts})
		case openai.ChatMessageRoleAssistant:
			var parts []canonical.Part
			if strings.TrimSpace(m.Content) != "" {
				parts = append(parts, canonical.Part{Kind: canonical.PartText, Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				parts = append(parts, canonical.Part{
					Kind:        canonical.PartToolUse,
					ToolUseID:   tc.ID,
					ToolName:    tc.Function.Name,
					ToolArgsRaw: tc.Function.Arguments,
				})
			}
			messages = append(messages, canonical.Message{Role: canonical.RoleAssistant, Parts: parts})
		case openai.ChatMessageRoleTool:
			// A tool-role message becomes a tool_result part on a new user
			// message, per spec: tool_call_id copies to tool_use_id.
			_ = i
			messages = append(messages, canonical.Message{
				Role: canonical.RoleUser,
				Parts: []canonical.Part{{
					Kind:              canonical.PartToolResult,
					ToolResultID:      m.ToolCallID,
					ToolResultContent: m.Content,
				}},
			})
		}
	}

	var tools []canonical.ToolDescriptor
	for _, t := range req.Tools {
		if t.Function == nil {
			continue
		}
		var schema map[string]interface{}
		if t.Function.Parameters != nil {
			if raw, err := json.Marshal(t.Function.Parameters); err == nil {
				_ = json.Unmarshal(raw, &schema)
			}
		}
		tools = append(tools, canonical.ToolDescriptor{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			InputSchema: schema,
		})
	}

	systemPrompt := strings.Join(systemParts, "\n\n")
	tools, systemPrompt = toolcall.RelocateOversizedDescriptions(tools, systemPrompt, toolDescMaxLength)

	out := &canonical.Request{
		Model:    modelmap.Resolve(modelTable, req.Model),
		System:   systemPrompt,
		Messages: messages,
		Tools:    tools,
		Stream:   req.Stream,
	}
	if req.MaxTokens > 0 {
		out.MaxTokens = req.MaxTokens
	}
	if req.Temperature != 0 {
		v := float64(req.Temperature)
		out.Temperature = &v
	}
	if req.TopP != 0 {
		v := float64(req.TopP)
		out.TopP = &v
	}
	if len(req.Stop) > 0 {
		out.Stop = req.Stop
	}
	return out, nil
}

func userContentToParts(m openai.ChatCompletionMessage) ([]canonical.Part, error) {
	if len(m.MultiContent) == 0 {
		if m.Content == "" {
			return nil, nil
		}
		return []canonical.Part{{Kind: canonical.PartText, Text: m.Content}}, nil
	}

	var parts []canonical.Part
	for _, c := range m.MultiContent {
		switch c.Type {
		case openai.ChatMessagePartTypeText:
			parts = append(parts, canonical.Part{Kind: canonical.PartText, Text: c.Text})
		case openai.ChatMessagePartTypeImageURL:
			if c.ImageURL == nil {
				continue
			}
			mediaType, data, ok := decodeDataURI(c.ImageURL.URL)
			if !ok {
				return nil, &gwerrors.UnsupportedInputError{
					Reason: "image_url must be an inline data: URI; remote URLs are not supported by the upstream",
				}
			}
			parts = append(parts, canonical.Part{
				Kind:           canonical.PartImage,
				ImageMediaType: mediaType,
				ImageBase64:    data,
			})
		}
	}
	return parts, nil
}

// decodeDataURI splits a "data:<media-type>;base64,<data>" URI. Returns
// ok=false for anything else (http(s) URLs included).
func decodeDataURI(uri string) (mediaType string, base64Data string, ok bool) {
	const prefix = "data:"
	if !strings.HasPrefix(uri, prefix) {
		return "", "", false
	}
	rest := uri[len(prefix):]
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return "", "", false
	}
	header := rest[:comma]
	data := rest[comma+1:]
	if !strings.HasSuffix(header, ";base64") {
		return "", "", false
	}
	mediaType = strings.TrimSuffix(header, ";base64")
	if _, err := base64.StdEncoding.DecodeString(data); err != nil {
		return "", "", false
	}
	return mediaType, data, true
}
