package anthropicdialect

import (
	"strings"
	"testing"

	"github.com/kiro-gateway/kiro-gateway/internal/canonical"
)

func TestParseRequestBasic(t *testing.T) {
	body := []byte(`{
		"model": "claude-3-5-sonnet",
		"system": "be terse",
		"max_tokens": 1024,
		"messages": [
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
	if req.MaxTokens != 1024 {
		t.Fatalf("max_tokens = %d", req.MaxTokens)
	}
	if len(req.Messages) != 1 || req.Messages[0].Parts[0].Text != "hello" {
		t.Fatalf("messages = %+v", req.Messages)
	}
}

func TestParseRequestSystemAsBlockArray(t *testing.T) {
	body := []byte(`{
		"model": "claude-3-5-sonnet",
		"system": [{"type":"text","text":"part one"},{"type":"text","text":"part two"}],
		"messages": [{"role":"user","content":"hi"}]
	}`)
	req, err := ParseRequest(body, nil, 10000)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if req.System != "part one\n\npart two" {
		t.Fatalf("system = %q", req.System)
	}
}

func TestParseRequestToolUseAndResultBlocks(t *testing.T) {
	body := []byte(`{
		"model": "claude-3-5-sonnet",
		"messages": [
			{"role":"user","content":"what's the weather"},
			{"role":"assistant","content":[{"type":"tool_use","id":"t1","name":"get_weather","input":{"city":"NYC"}}]},
			{"role":"user","content":[{"type":"tool_result","tool_use_id":"t1","content":"72F"}]}
		]
	}`)
	req, err := ParseRequest(body, nil, 10000)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	toolUse := req.Messages[1].Parts[0]
	if toolUse.Kind != canonical.PartToolUse || toolUse.ToolUseID != "t1" || toolUse.ToolName != "get_weather" {
		t.Fatalf("tool_use part = %+v", toolUse)
	}
	toolResult := req.Messages[2].Parts[0]
	if toolResult.Kind != canonical.PartToolResult || toolResult.ToolResultID != "t1" || toolResult.ToolResultContent != "72F" {
		t.Fatalf("tool_result part = %+v", toolResult)
	}
}

func TestParseRequestRemoteImageUnsupported(t *testing.T) {
	body := []byte(`{
		"model": "claude-3-5-sonnet",
		"messages": [{"role":"user","content":[{"type":"image","source":{"type":"url","url":"https://example.com/x.png"}}]}]
	}`)
	_, err := ParseRequest(body, nil, 10000)
	if err == nil {
		t.Fatal("expected UnsupportedInputError")
	}
}

func TestParseRequestOversizedToolDescriptionRelocated(t *testing.T) {
	long := strings.Repeat("y", 20000)
	body := []byte(`{
		"model": "claude-3-5-sonnet",
		"messages": [{"role":"user","content":"hi"}],
		"tools": [{"name":"big_tool","description":"` + long + `","input_schema":{"type":"object"}}]
	}`)
	req, err := ParseRequest(body, nil, 10000)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if !strings.Contains(req.System, "## Tool Documentation: big_tool") {
		t.Fatalf("system = %q", req.System)
	}
}
