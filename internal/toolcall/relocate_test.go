package toolcall

import (
	"strings"
	"testing"

	"github.com/kiro-gateway/kiro-gateway/internal/canonical"
)

func TestRelocateOversizedDescriptionsMovesLongOnes(t *testing.T) {
	long := strings.Repeat("x", 20000)
	tools := []canonical.ToolDescriptor{
		{Name: "short_tool", Description: "a short description"},
		{Name: "long_tool", Description: long},
	}

	out, system := RelocateOversizedDescriptions(tools, "base prompt", 10000)

	if out[0].Description != "a short description" {
		t.Fatalf("short tool description changed: %q", out[0].Description)
	}
	if out[1].Description != "See system prompt under 'Tool Documentation: long_tool'" {
		t.Fatalf("long tool stub = %q", out[1].Description)
	}
	if !strings.Contains(system, "## Tool Documentation: long_tool") {
		t.Fatal("expected relocated header in system prompt")
	}
	if !strings.HasSuffix(system, long) {
		t.Fatal("expected full original description appended to system prompt")
	}
}

func TestRelocateOversizedDescriptionsNoOverflowLeavesSystemUnchanged(t *testing.T) {
	tools := []canonical.ToolDescriptor{{Name: "t", Description: "short"}}
	out, system := RelocateOversizedDescriptions(tools, "base", 10000)
	if system != "base" {
		t.Fatalf("system = %q, want unchanged", system)
	}
	if out[0].Description != "short" {
		t.Fatalf("description changed unexpectedly: %q", out[0].Description)
	}
}
