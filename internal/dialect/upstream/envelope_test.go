package upstream

import (
	"encoding/json"
	"testing"

	"github.com/kiro-gateway/kiro-gateway/internal/canonical"
	"github.com/kiro-gateway/kiro-gateway/internal/dialect/anthropicdialect"
	"github.com/kiro-gateway/kiro-gateway/internal/dialect/openaidialect"
)

func TestEncodeSplitsLastUserMessageFromHistory(t *testing.T) {
	req := &canonical.Request{
		Model: "m",
		Messages: []canonical.Message{
			{Role: canonical.RoleUser, Parts: []canonical.Part{{Kind: canonical.PartText, Text: "first"}}},
			{Role: canonical.RoleAssistant, Parts: []canonical.Part{{Kind: canonical.PartText, Text: "reply"}}},
			{Role: canonical.RoleUser, Parts: []canonical.Part{{Kind: canonical.PartText, Text: "second"}}},
		},
	}
	env := Encode(req, "", "")
	if len(env.ConversationState.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(env.ConversationState.History))
	}
	if env.ConversationState.UserInputMessage.Content[0].Text != "second" {
		t.Fatalf("current input = %+v", env.ConversationState.UserInputMessage.Content)
	}
	if env.ConversationState.ConversationID == "" {
		t.Fatal("expected a generated conversation id")
	}
}

func TestEncodeAttachesToolsAndSystemPrompt(t *testing.T) {
	req := &canonical.Request{
		Model:  "m",
		System: "be terse",
		Tools: []canonical.ToolDescriptor{
			{Name: "get_weather", Description: "fetch weather", InputSchema: map[string]interface{}{"type": "object"}},
		},
		Messages: []canonical.Message{
			{Role: canonical.RoleUser, Parts: []canonical.Part{{Kind: canonical.PartText, Text: "hi"}}},
		},
	}
	env := Encode(req, "conv-1", "arn:profile")
	if env.ConversationState.UserInputMessage.Context.SystemPrompt != "be terse" {
		t.Fatalf("system prompt = %q", env.ConversationState.UserInputMessage.Context.SystemPrompt)
	}
	if len(env.ConversationState.UserInputMessage.Context.Tools) != 1 {
		t.Fatalf("tools = %+v", env.ConversationState.UserInputMessage.Context.Tools)
	}
	if env.ProfileIdentifier != "arn:profile" {
		t.Fatalf("profile identifier = %q", env.ProfileIdentifier)
	}
	if env.ConversationState.ConversationID != "conv-1" {
		t.Fatalf("conversation id = %q, want caller-supplied value preserved", env.ConversationState.ConversationID)
	}
}

// TestEquivalentInputsProduceEqualEnvelopes checks that semantically
// identical OpenAI-dialect and Anthropic-dialect requests converge onto the
// same UPSTREAM envelope once translated, up to stable ordering.
func TestEquivalentInputsProduceEqualEnvelopes(t *testing.T) {
	openaiBody := []byte(`{
		"model": "m",
		"messages": [
			{"role": "system", "content": "be terse"},
			{"role": "user", "content": "hello there"}
		]
	}`)
	anthropicBody := []byte(`{
		"model": "m",
		"system": "be terse",
		"messages": [
			{"role": "user", "content": "hello there"}
		]
	}`)

	oReq, err := openaidialect.ParseRequest(openaiBody, nil, 10000)
	if err != nil {
		t.Fatalf("openai ParseRequest: %v", err)
	}
	aReq, err := anthropicdialect.ParseRequest(anthropicBody, nil, 10000)
	if err != nil {
		t.Fatalf("anthropic ParseRequest: %v", err)
	}

	oEnv := Encode(oReq, "fixed-id", "")
	aEnv := Encode(aReq, "fixed-id", "")

	oJSON, _ := json.Marshal(oEnv)
	aJSON, _ := json.Marshal(aEnv)
	if string(oJSON) != string(aJSON) {
		t.Fatalf("envelopes differ:\nopenai:    %s\nanthropic: %s", oJSON, aJSON)
	}
}
