package openaidialect

import (
	"strings"
	"testing"

	"github.com/kiro-gateway/kiro-gateway/internal/canonical"
)

func TestParseRequestBasic(t *testing.T) {
	body := []byte(`{
		"model": "gpt-4o",
		"stream": true,
		"messages": [
			{"role": "system", "content": "be terse"},
			{"role": "user", "content": "hello"}
		]
	}`)

	req, err := ParseRequest(body, nil, 10000)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if req.System != "be terse" {
		t.Fatalf("system = %q", req.System)
	}
	if !req.Stream {
		t.Fatal("expected Stream true")
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != canonical.RoleUser {
		t.Fatalf("messages = %+v", req.Messages)
	}
}

func TestParseRequestModelMapping(t *testing.T) {
	body := []byte(`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`)
	table := map[string]string{"gpt-4o": "upstream-model-id"}

	req, err := ParseRequest(body, table, 10000)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if req.Model != "upstream-model-id" {
		t.Fatalf("model = %q", req.Model)
	}
}

func TestParseRequestToolMessageBecomesToolResultPart(t *testing.T) {
	body := []byte(`{
		"model": "gpt-4o",
		"messages": [
			{"role": "user", "content": "call a tool"},
			{"role": "assistant", "content": "", "tool_calls": [
				{"id": "call_1", "type": "function", "function": {"name": "get_weather", "arguments": "{\"city\":\"NYC\"}"}}
			]},
			{"role": "tool", "tool_call_id": "call_1", "content": "72F"}
		]
	}`)

	req, err := ParseRequest(body, nil, 10000)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if len(req.Messages) != 3 {
		t.Fatalf("messages = %d, want 3", len(req.Messages))
	}
	assistant := req.Messages[1]
	if len(assistant.Parts) != 1 || assistant.Parts[0].Kind != canonical.PartToolUse {
		t.Fatalf("assistant parts = %+v", assistant.Parts)
	}
	toolResultMsg := req.Messages[2]
	if toolResultMsg.Role != canonical.RoleUser {
		t.Fatalf("tool result message role = %q", toolResultMsg.Role)
	}
	if toolResultMsg.Parts[0].Kind != canonical.PartToolResult || toolResultMsg.Parts[0].ToolResultID != "call_1" {
		t.Fatalf("tool result part = %+v", toolResultMsg.Parts[0])
	}
}

func TestParseRequestRemoteImageURLIsUnsupported(t *testing.T) {
	body := []byte(`{
		"model": "gpt-4o",
		"messages": [
			{"role": "user", "content": [
				{"type": "text", "text": "what is this"},
				{"type": "image_url", "image_url": {"url": "https://example.com/cat.png"}}
			]}
		]
	}`)

	_, err := ParseRequest(body, nil, 10000)
	if err == nil {
		t.Fatal("expected UnsupportedInputError for remote image URL")
	}
	if !strings.Contains(err.Error(), "inline") {
		t.Fatalf("error = %v", err)
	}
}

func TestParseRequestInlineImageDecoded(t *testing.T) {
	body := []byte(`{
		"model": "gpt-4o",
		"messages": [
			{"role": "user", "content": [
				{"type": "image_url", "image_url": {"url": "data:image/png;base64,aGVsbG8="}}
			]}
		]
	}`)

	req, err := ParseRequest(body, nil, 10000)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	part := req.Messages[0].Parts[0]
	if part.Kind != canonical.PartImage || part.ImageMediaType != "image/png" || part.ImageBase64 != "aGVsbG8=" {
		t.Fatalf("image part = %+v", part)
	}
}

func TestParseRequestOversizedToolDescriptionRelocated(t *testing.T) {
	long := strings.Repeat("x", 20000)
	body := []byte(`{
		"model": "gpt-4o",
		"messages": [{"role":"user","content":"hi"}],
		"tools": [{"type":"function","function":{"name":"big_tool","description":"` + long + `","parameters":{"type":"object"}}}]
	}`)

	req, err := ParseRequest(body, nil, 10000)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if !strings.Contains(req.System, "## Tool Documentation: big_tool") {
		t.Fatalf("system prompt missing relocation header: %q", req.System)
	}
	if req.Tools[0].Description == long {
		t.Fatal("expected tool description to be replaced with a stub")
	}
}
